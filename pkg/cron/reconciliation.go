package cron

import (
	"log"

	"github.com/robfig/cron/v3"

	"providerdirectory_backend/pkg/sponsorship"
)

// InitReconciliationCron schedules the daily drift check between local
// sponsorship state and the processor's subscription list. Missed webhooks
// and out-of-band cancellations surface here instead of lingering forever.
func InitReconciliationCron(svc *sponsorship.Service) {
	c := cron.New()

	_, err := c.AddFunc("0 6 * * *", func() {
		runReconciliation(svc)
	})
	if err != nil {
		log.Printf("Could not initialize reconciliation cron: %v", err)
		return
	}

	c.Start()
}

func runReconciliation(svc *sponsorship.Service) {
	log.Println("Reconciling sponsorships against the payment processor...")

	cancelled, extended, err := svc.Reconcile()
	if err != nil {
		log.Printf("Reconciliation failed: %v", err)
		return
	}

	log.Printf("Reconciliation finished: %d cancelled, %d extended", cancelled, extended)
}

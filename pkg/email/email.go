package email

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"log"
	"net/http"
	"time"
)

type EmailService struct {
	apiKey    string
	from      string
	templates *template.Template
}

type EmailData struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Html    string `json:"html"`
}

// Template data structures
type WelcomeEmailData struct {
	Name string
}

type SponsorshipActivatedData struct {
	ProviderName string
	TierName     string
	AmountPaid   float64
	Currency     string
	EndsAt       time.Time
	IsRenewal    bool
}

type SponsorshipCancelledData struct {
	ProviderName string
	TierName     string
	CancelledAt  time.Time
}

func NewEmailService(apiKey string) (*EmailService, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend API key is required")
	}

	templates, err := loadTemplates()
	if err != nil {
		return nil, fmt.Errorf("error loading email templates: %v", err)
	}

	return &EmailService{
		apiKey:    apiKey,
		from:      "Provider Directory <noreply@providerdirectory.org>",
		templates: templates,
	}, nil
}

func (s *EmailService) sendTemplateEmail(to, subject, templateName string, data interface{}) error {
	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, templateName, data); err != nil {
		return fmt.Errorf("template execution error: %v", err)
	}

	emailData := EmailData{
		From:    s.from,
		To:      to,
		Subject: subject,
		Html:    body.String(),
	}

	jsonData, err := json.Marshal(emailData)
	if err != nil {
		return fmt.Errorf("error marshaling email data: %v", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("error creating request: %v", err)
	}

	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %v", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("resend API error: %s", string(respBody))
	}

	log.Printf("Sent %q email to %s", subject, to)
	return nil
}

func (s *EmailService) SendWelcomeEmail(email, name string) error {
	data := WelcomeEmailData{
		Name: name,
	}
	return s.sendTemplateEmail(email, "Welcome to the Provider Directory!", "welcome.html", data)
}

func (s *EmailService) SendSponsorshipActivatedEmail(
	email string,
	providerName string,
	tierName string,
	amountPaid float64,
	endsAt time.Time,
	isRenewal bool,
) error {
	data := SponsorshipActivatedData{
		ProviderName: providerName,
		TierName:     tierName,
		AmountPaid:   amountPaid,
		Currency:     "USD",
		EndsAt:       endsAt,
		IsRenewal:    isRenewal,
	}
	subject := "Your sponsorship is active! 🎉"
	if isRenewal {
		subject = "Your sponsorship has renewed"
	}
	return s.sendTemplateEmail(email, subject, "sponsorship_activated.html", data)
}

func (s *EmailService) SendSponsorshipCancelledEmail(
	email string,
	providerName string,
	tierName string,
	cancelledAt time.Time,
) error {
	data := SponsorshipCancelledData{
		ProviderName: providerName,
		TierName:     tierName,
		CancelledAt:  cancelledAt,
	}
	return s.sendTemplateEmail(email, "Your sponsorship has been cancelled", "sponsorship_cancelled.html", data)
}

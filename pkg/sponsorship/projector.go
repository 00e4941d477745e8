package sponsorship

import (
	"time"

	"providerdirectory_backend/internal/model"
)

// EntitlementSnapshot is the denormalized view of one sponsorship that gets
// written onto the provider row. The sponsorship stays the source of truth;
// the snapshot only exists so listing queries need no join.
type EntitlementSnapshot struct {
	IsSponsored          bool
	SponsoredUntil       *time.Time
	SponsorshipTier      int
	StripeCustomerID     string
	StripeSubscriptionID string
}

// Snapshot derives the provider projection from a sponsorship. This is the
// single place the string tier becomes the canonical integer enum.
func Snapshot(sub *model.Sponsorship) EntitlementSnapshot {
	return EntitlementSnapshot{
		IsSponsored:          true,
		SponsoredUntil:       sub.EndsAt,
		SponsorshipTier:      Canonical(Tier(sub.Tier)),
		StripeCustomerID:     sub.StripeCustomerID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
	}
}

// ClearedSnapshot is the free-tier projection written when an entitlement is
// withdrawn.
func ClearedSnapshot() EntitlementSnapshot {
	return EntitlementSnapshot{
		IsSponsored:          false,
		SponsoredUntil:       nil,
		SponsorshipTier:      Canonical(TierFree),
		StripeCustomerID:     "",
		StripeSubscriptionID: "",
	}
}

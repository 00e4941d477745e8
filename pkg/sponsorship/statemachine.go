package sponsorship

import (
	"time"

	"providerdirectory_backend/internal/model"
)

// TransitionEvent names an edge in the sponsorship lifecycle.
type TransitionEvent string

const (
	EventActivate TransitionEvent = "activate"
	EventCancel   TransitionEvent = "cancel"
	EventExpire   TransitionEvent = "expire"
)

// transitions is the full lifecycle: pending → active → {cancelled, expired}.
// Any (status, event) pair not listed here is not an error, it is a no-op;
// at-least-once webhook delivery means the same event will be applied again
// and stale events will arrive for rows that already moved on. Terminal rows
// are never resurrected.
var transitions = map[string]map[TransitionEvent]string{
	model.SponsorshipStatusPending: {
		EventActivate: model.SponsorshipStatusActive,
		EventCancel:   model.SponsorshipStatusCancelled,
	},
	model.SponsorshipStatusActive: {
		// active + activate is the renewal edge, see applyActivate.
		EventActivate: model.SponsorshipStatusActive,
		EventCancel:   model.SponsorshipStatusCancelled,
		EventExpire:   model.SponsorshipStatusExpired,
	},
}

// Next returns the successor status for a (status, event) pair and whether
// the pair is a legal transition at all.
func Next(status string, ev TransitionEvent) (string, bool) {
	next, ok := transitions[status][ev]
	return next, ok
}

// applyActivate moves the row to active, or refreshes an already-active row
// when the new period end is later than the stored one. It reports whether
// anything changed, so replays of the same event converge to a no-op.
func applyActivate(sub *model.Sponsorship, now time.Time, endsAt time.Time) bool {
	next, ok := Next(sub.Status, EventActivate)
	if !ok {
		return false
	}

	if sub.IsActive() {
		// Renewal: only a later period end advances the row.
		if sub.EndsAt != nil && !endsAt.After(*sub.EndsAt) {
			return false
		}
		sub.EndsAt = &endsAt
		return true
	}

	sub.Status = next
	sub.StartsAt = &now
	sub.EndsAt = &endsAt
	return true
}

// applyCancel moves the row to cancelled. Terminal rows are left untouched.
func applyCancel(sub *model.Sponsorship, now time.Time) bool {
	next, ok := Next(sub.Status, EventCancel)
	if !ok {
		return false
	}
	sub.Status = next
	sub.CancelledAt = &now
	return true
}

// IsExpired is a pure predicate: the stored period has passed but the row
// still reads active or pending. It never mutates state; there is no sweep
// that flips expired rows, so read paths must consult this instead of the
// stored status alone.
func IsExpired(sub *model.Sponsorship, now time.Time) bool {
	if sub.EndsAt == nil {
		return false
	}
	return sub.EndsAt.Before(now) && sub.Status != model.SponsorshipStatusExpired
}

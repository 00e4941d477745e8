package sponsorship

import "errors"

// Typed errors for the sponsorship layer. Controllers map these to HTTP
// status codes without inspecting SDK-specific error types.
var (
	// ErrConfiguration indicates a missing (tier, period) price mapping.
	// Operator-fixable, not user-fixable.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation indicates a bad tier, billing period or provider id.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization indicates the caller cannot manage the target provider.
	ErrAuthorization = errors.New("authorization error")
	// ErrProcessor indicates the payment processor failed or timed out. It is
	// surfaced to the caller and never retried here.
	ErrProcessor = errors.New("payment processor error")
	// ErrNotFound indicates an absent sponsorship or provider.
	ErrNotFound = errors.New("not found")
	// ErrPaymentIncomplete indicates the processor reports the payment as not
	// yet succeeded, so the sponsorship cannot activate.
	ErrPaymentIncomplete = errors.New("payment not completed")
)

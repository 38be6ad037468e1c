package billing

import "errors"

// Outcome is the caller-visible result of a verification attempt.
// OutcomePending means the outcome is not yet known (transient gateway
// failure) and the caller should retry later; it is not a terminal state.
type Outcome string

const (
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailed  Outcome = "FAILED"
	OutcomePending Outcome = "PENDING"
)

var (
	// ErrInvalidPlan is returned for plan codes outside {FREE, BASIC, PRO}.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrInvalidProvider is returned for unknown payment providers.
	ErrInvalidProvider = errors.New("invalid payment provider")
	// ErrTransactionNotFound is returned when no ledger row matches a
	// transaction id.
	ErrTransactionNotFound = errors.New("payment transaction not found")
)

// VerifyResult is the normalized adapter outcome. OK means the provider
// confirmed the payment. A false OK with a transient message (see
// IsTransient) proves nothing about payment validity; any other false OK is
// a hard failure. RemoteAmount carries the provider-reported amount when
// available, for mismatch diagnostics.
type VerifyResult struct {
	OK           bool
	Message      string
	RemoteAmount *int
}

// PaymentIntent is returned to the client after initiating a paid upgrade.
// Payload holds the provider-specific form fields for the redirect.
type PaymentIntent struct {
	TransactionID string            `json:"transaction_id"`
	Plan          string            `json:"plan"`
	Provider      string            `json:"provider"`
	Amount        int               `json:"amount"`
	RedirectURL   string            `json:"redirect_url"`
	Payload       map[string]string `json:"payload"`
}

// UpgradeResult describes the outcome of an upgrade request: either the plan
// was applied immediately (trial switch or downgrade to FREE) or a payment
// intent was created and must be completed with the provider.
type UpgradeResult struct {
	Applied bool           `json:"applied"`
	Plan    string         `json:"plan"`
	Intent  *PaymentIntent `json:"intent,omitempty"`
}

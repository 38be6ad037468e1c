package billing

import (
	"context"
	"strings"
)

// Message prefixes adapters use for outcomes that prove nothing about the
// payment: the request never completed or the provider answered outside 2xx.
// The orchestrator keeps the transaction PENDING on these.
const (
	transientRequestError = "request error"
	transientBadResponse  = "bad response"
)

// Gateway is the per-provider verification client. Implementations are
// stateless, apply a bounded timeout, and classify every outcome into
// verified / not verified / transient via VerifyResult.
type Gateway interface {
	// Provider returns the provider code this gateway serves.
	Provider() string
	// InitiatePayload builds the redirect URL and form fields a client
	// needs to hand the user over to the provider's checkout.
	InitiatePayload(transactionID, plan string, amount int) (string, map[string]string)
	// Verify asks the provider whether the transaction completed with the
	// expected amount.
	Verify(ctx context.Context, transactionID string, amount int, referenceID string) VerifyResult
}

// IsTransient reports whether a non-ok verification message describes a
// communication failure rather than an explicit rejection. A timeout is not
// proof of failure.
func IsTransient(message string) bool {
	return strings.HasPrefix(message, transientRequestError) ||
		strings.HasPrefix(message, transientBadResponse)
}

package constants

// Static route constants
const (
	PublicRoute  = "/"
	BillingRoute = "/billing"
	LoginRoute   = "/login"
	APIPrefix    = "/api/v1"
)

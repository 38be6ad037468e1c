package tenantcontext

// Shared Locals/session keys used across controllers and middlewares
const (
	AuthKey    = "authenticated"
	KeyUserID  = "user_id"
	KeyContext = "TENANT_CONTEXT"
)

package routes

const (
	// Service description and observability
	Root           = "/"
	Health         = "/health"
	HealthDetailed = "/health/detailed"
	HealthLive     = "/health/live"
	HealthReady    = "/health/ready"
	Metrics        = "/metrics"

	// Account endpoints
	AuthRegister = "/api/v1/auth/register"
	AuthMe       = "/api/v1/auth/me"

	// Passkey ceremony endpoints
	PasskeyRegisterBegin        = "/api/v1/passkey/register/begin"
	PasskeyRegisterComplete     = "/api/v1/passkey/register/complete"
	PasskeyAuthenticateBegin    = "/api/v1/passkey/authenticate/begin"
	PasskeyAuthenticateComplete = "/api/v1/passkey/authenticate/complete"

	// Passkey credential management
	PasskeyCredentials    = "/api/v1/passkey/credentials"
	PasskeyCredentialByID = "/api/v1/passkey/credentials/{id}"

	// Item endpoints
	Items      = "/api/v1/items"
	ItemSearch = "/api/v1/items/search"
	ItemByID   = "/api/v1/items/{id}"
)

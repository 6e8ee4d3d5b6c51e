package api

const (
	HealthRoute = "/healthz"
	AboutRoute  = "/aboutz"

	// Identity issuer surface.
	LoginRoute  = "/login"
	TokensRoute = "/v1/tokens"

	// Local service surface.
	LocalLoginRoute    = "/local-login"
	LocalResourceRoute = "/local-resource"
	LocalAdminRoute    = "/local-admin"
)

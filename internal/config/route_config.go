package config

import "github.com/spf13/viper"

const (
	loginPathVar       = "LOGIN_PATH"
	fallbackPathVar    = "FALLBACK_PATH"
	denyMissingRoleVar = "DENY_MISSING_ROLE"
)

type RouteConfig interface {
	GetLoginPath() string
	GetFallbackPath() string
	GetDenyMissingRole() bool
}

type Routes struct {
	v *viper.Viper
}

var _ RouteConfig = Routes{}

func (r Routes) GetLoginPath() string {
	return r.v.GetString(loginPathVar)
}

// GetFallbackPath is the authenticated landing page used when a role check fails.
func (r Routes) GetFallbackPath() string {
	return r.v.GetString(fallbackPathVar)
}

func (r Routes) GetDenyMissingRole() bool {
	return r.v.GetBool(denyMissingRoleVar)
}

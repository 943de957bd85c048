package config

type AuthConfig interface {
	GetClientID() string
	GetScopes() []string
	GetOpenAuthInBrowser() bool
	GetIssuer() string
	GetDeviceAuthURL() string
	GetTokenURL() string
}

// Endpoints holds the Twitch endpoint locations. Each can be overridden through
// the environment, which is how tests and staging point at fakes.
type Endpoints struct{}

func (Endpoints) GetDeviceAuthURL() string {
	return GetEnv("TWITCH_DEVICE_URL", "https://id.twitch.tv/oauth2/device")
}

func (Endpoints) GetTokenURL() string {
	return GetEnv("TWITCH_TOKEN_URL", "https://id.twitch.tv/oauth2/token")
}

func (Endpoints) GetHelixBaseURL() string {
	return GetEnv("HELIX_BASE_URL", "https://api.twitch.tv/helix")
}

func (c *mainConfig) GetClientID() string {
	return *c.settings.ClientID
}

func (c *mainConfig) GetScopes() []string {
	return append([]string(nil), c.settings.Scopes...)
}

func (c *mainConfig) GetOpenAuthInBrowser() bool {
	return *c.settings.OpenAuthInBrowser
}

// GetIssuer returns the OIDC issuer used for endpoint discovery, or "" to use
// the static endpoints.
func (c *mainConfig) GetIssuer() string {
	if c.settings.Issuer == nil {
		return ""
	}
	return *c.settings.Issuer
}

package oauth2

// GrantType represents the OAuth 2.0 grant type sent to the token endpoint.
type GrantType string

const (
	// DeviceCodeGrant exchanges an approved device code for tokens (RFC 8628).
	// Token request includes: client_id, device_code, scope
	DeviceCodeGrant GrantType = "urn:ietf:params:oauth:grant-type:device_code"

	// RefreshTokenGrant exchanges a refresh token for a new token pair.
	// Token request includes: client_id, refresh_token
	RefreshTokenGrant GrantType = "refresh_token"
)

// Poll outcomes reported in the error text of a device-code token response.
const (
	// ErrorAuthorizationPending means the user has not approved the code yet.
	ErrorAuthorizationPending = "authorization_pending"

	// ErrorSlowDown asks the client to widen its polling interval.
	ErrorSlowDown = "slow_down"
)

// SlowDownIncrement is the number of seconds added to the poll interval each
// time the provider answers slow_down.
const SlowDownIncrement = 5

package oauth2

// TokenResponse is the token endpoint payload for both the device-code and the
// refresh grants. Twitch reports failures as {"status": 400, "message": "..."}
// while RFC 6749 providers use "error"; both are decoded.
type TokenResponse struct {
	// AccessToken is the bearer credential for Helix calls. Absent on failure.
	AccessToken string `json:"access_token,omitempty"`

	// RefreshToken is rotated on every refresh; the previous one becomes invalid.
	RefreshToken string `json:"refresh_token,omitempty"`

	// ExpiresIn is the access token lifetime in seconds.
	ExpiresIn int `json:"expires_in,omitempty"`

	TokenType string `json:"token_type,omitempty"`

	// Status mirrors the HTTP status inside the body on Twitch error responses.
	Status int `json:"status,omitempty"`

	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ErrorText returns the provider's error description, preferring "message"
// over "error". Empty means the response carries no error.
func (r *TokenResponse) ErrorText() string {
	if r.Message != "" {
		return r.Message
	}
	return r.Error
}

// EffectiveStatus returns the status embedded in the body, falling back to the
// HTTP status code of the response that carried it.
func (r *TokenResponse) EffectiveStatus(httpStatus int) int {
	if r.Status != 0 {
		return r.Status
	}
	return httpStatus
}

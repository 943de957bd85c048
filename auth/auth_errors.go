package auth

import "errors"

var (
	ErrMissingClientID    = errors.New("missing client id")
	ErrDeviceFlowRejected = errors.New("device authorization rejected")
	ErrDeviceCodeExpired  = errors.New("device code expired")
	ErrRefreshRejected    = errors.New("token refresh rejected")
	ErrNoAccessToken      = errors.New("token response without access token")
)

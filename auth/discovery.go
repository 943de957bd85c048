package auth

import (
	"context"
	"net/http"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/pkg/errors"
	xoauth2 "golang.org/x/oauth2"
)

// DiscoverEndpoint reads the issuer's OpenID configuration and returns its
// device and token endpoints. Endpoints the document does not advertise are
// taken from fallback.
func DiscoverEndpoint(ctx context.Context, issuer string, fallback xoauth2.Endpoint, client *http.Client) (xoauth2.Endpoint, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}

	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return fallback, errors.Wrapf(err, "DiscoverEndpoint %s", issuer)
	}

	ep := provider.Endpoint()
	if ep.DeviceAuthURL == "" {
		ep.DeviceAuthURL = fallback.DeviceAuthURL
	}
	if ep.TokenURL == "" {
		ep.TokenURL = fallback.TokenURL
	}
	ep.AuthStyle = xoauth2.AuthStyleInParams
	return ep, nil
}

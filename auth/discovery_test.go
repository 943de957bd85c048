package auth_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-chatter-roster/auth"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"
)

func newDiscoveryServer(t *testing.T, withDevice bool) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/openid-configuration" {
			http.NotFound(w, r)
			return
		}
		doc := map[string]any{
			"issuer":                 srv.URL,
			"authorization_endpoint": srv.URL + "/authorize",
			"token_endpoint":         srv.URL + "/token",
			"jwks_uri":               srv.URL + "/keys",
		}
		if withDevice {
			doc["device_authorization_endpoint"] = srv.URL + "/device"
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestDiscoverEndpoint(t *testing.T) {
	fallback := xoauth2.Endpoint{
		DeviceAuthURL: "https://fallback.example/device",
		TokenURL:      "https://fallback.example/token",
	}

	t.Run("advertised endpoints", func(t *testing.T) {
		srv := newDiscoveryServer(t, true)
		ep, err := auth.DiscoverEndpoint(context.Background(), srv.URL, fallback, srv.Client())
		require.NoError(t, err)
		require.Equal(t, srv.URL+"/device", ep.DeviceAuthURL)
		require.Equal(t, srv.URL+"/token", ep.TokenURL)
	})

	t.Run("missing device endpoint falls back", func(t *testing.T) {
		srv := newDiscoveryServer(t, false)
		ep, err := auth.DiscoverEndpoint(context.Background(), srv.URL, fallback, srv.Client())
		require.NoError(t, err)
		require.Equal(t, fallback.DeviceAuthURL, ep.DeviceAuthURL)
		require.Equal(t, srv.URL+"/token", ep.TokenURL)
	})

	t.Run("unreachable issuer returns fallback and error", func(t *testing.T) {
		srv := newDiscoveryServer(t, true)
		ep, err := auth.DiscoverEndpoint(context.Background(), srv.URL+"/nowhere", fallback, srv.Client())
		require.Error(t, err)
		require.Equal(t, fallback, ep)
	})
}

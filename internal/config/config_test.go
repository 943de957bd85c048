package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jrsteele09/go-chatter-roster/internal/config"
	apperrors "github.com/jrsteele09/go-chatter-roster/internal/errors"
	"github.com/jrsteele09/go-chatter-roster/internal/utils"
	"github.com/jrsteele09/go-chatter-roster/transform"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)

	require.Equal(t, "ah1dcykia4chi6pz5f3z80sizxi5ba", c.GetClientID())
	require.Equal(t, []string{"moderator:read:chatters"}, c.GetScopes())
	require.Equal(t, 500, c.GetEnoughChatters())
	require.Equal(t, 36, c.GetFontSize())
	require.Len(t, c.GetFontColors(), 5)
	require.False(t, c.GetDrawAuthCode())
	require.True(t, c.GetOpenAuthInBrowser())
	require.Empty(t, c.GetBroadcasterID())
	require.Empty(t, c.GetModeratorID())
	require.Empty(t, c.GetIssuer())
	require.Empty(t, c.GetDisplayNameTransforms())
}

func TestLoad_JSONSettings(t *testing.T) {
	path := writeFile(t, "ogof.json", `{
		"clientId": "my-client",
		"broadcasterId": "1234",
		"enoughChatters": 50,
		"openTwitchAuthInBrowser": false,
		"drawTwitchAuthCode": true,
		"fontColors": ["#ffffff"],
		"displayNameTransforms": [
			{"pattern": "_", "replace": " "},
			{"pattern": "a", "replace": "b", "maxMatches": 1}
		]
	}`)

	c, err := config.Load(path)
	require.NoError(t, err)

	require.Equal(t, "my-client", c.GetClientID())
	require.Equal(t, "1234", c.GetBroadcasterID())
	require.Equal(t, 50, c.GetEnoughChatters())
	require.False(t, c.GetOpenAuthInBrowser(), "explicit false must survive defaults")
	require.True(t, c.GetDrawAuthCode())
	require.Equal(t, []string{"#ffffff"}, c.GetFontColors())

	rules := c.GetDisplayNameTransforms()
	require.Len(t, rules, 2)
	require.Equal(t, transform.ReplaceAll, rules[0].MaxMatches)
	require.Equal(t, 1, rules[1].MaxMatches)
	require.Equal(t, "b a", transform.Apply("a_a", rules))
}

func TestLoad_YAMLSettings(t *testing.T) {
	path := writeFile(t, "settings.yaml", `
clientId: yaml-client
scopes:
  - moderator:read:chatters
  - user:read:chat
moderatorId: "99"
`)

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "yaml-client", c.GetClientID())
	require.Equal(t, []string{"moderator:read:chatters", "user:read:chat"}, c.GetScopes())
	require.Equal(t, "99", c.GetModeratorID())
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("malformed file", func(t *testing.T) {
		_, err := config.Load(writeFile(t, "bad.json", `{"clientId": [`))
		require.Error(t, err)
		require.Contains(t, err.Error(), "config.Load parse")
	})

	t.Run("bad transform pattern", func(t *testing.T) {
		_, err := config.FromSettings(config.Settings{
			DisplayNameTransforms: []config.DisplayNameTransform{{Pattern: "(", Replace: "x"}},
		})
		require.ErrorIs(t, err, apperrors.ErrInvalidTransform)
	})

	t.Run("non-positive enough chatters", func(t *testing.T) {
		_, err := config.FromSettings(config.Settings{EnoughChatters: utils.Ptr(0)})
		require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})

	t.Run("blank client id", func(t *testing.T) {
		_, err := config.FromSettings(config.Settings{ClientID: utils.Ptr("  ")})
		require.ErrorIs(t, err, apperrors.ErrInvalidConfig)
	})
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TWITCH_CLIENT_ID", "env-client")
	t.Setenv("TWITCH_BROADCASTER_ID", "42")
	t.Setenv("ENOUGH_CHATTERS", "7")
	t.Setenv("OPEN_AUTH_IN_BROWSER", "false")
	t.Setenv("PORT", "9000")
	t.Setenv("HELIX_BASE_URL", "http://helix.test")

	c, err := config.FromSettings(config.Settings{ClientID: utils.Ptr("file-client")})
	require.NoError(t, err)

	require.Equal(t, "env-client", c.GetClientID())
	require.Equal(t, "42", c.GetBroadcasterID())
	require.Equal(t, 7, c.GetEnoughChatters())
	require.False(t, c.GetOpenAuthInBrowser())
	require.Equal(t, ":9000", c.GetPort())
	require.Equal(t, "http://helix.test", c.GetHelixBaseURL())
}

func TestCors_AllowedOrigins(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://overlay.example")

	origins := config.Cors{}.GetAllowedOrigins()
	require.True(t, origins.IsAllowedOrigin("http://localhost:3000"))
	require.True(t, origins.IsAllowedOrigin("https://overlay.example"))
	require.False(t, origins.IsAllowedOrigin("*"))
	require.Equal(t, "http://localhost:3000, https://overlay.example", origins.String())
}

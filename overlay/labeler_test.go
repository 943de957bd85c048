package overlay_test

import (
	"testing"
	"time"

	"github.com/jrsteele09/go-chatter-roster/overlay"
	"github.com/jrsteele09/go-chatter-roster/roster"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

var palette = []string{"#006ce0", "#a100e0", "#e00013", "#c6e000", "#00e047"}

func TestParseColor(t *testing.T) {
	cases := []struct {
		in   string
		want overlay.Color
		ok   bool
	}{
		{"#006ce0", overlay.Color{R: 0x00, G: 0x6c, B: 0xe0}, true},
		{"a100e0", overlay.Color{R: 0xa1, G: 0x00, B: 0xe0}, true},
		{"#fff", overlay.White, true},
		{"#12345", overlay.Color{}, false},
		{"#zzzzzz", overlay.Color{}, false},
		{"", overlay.Color{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := overlay.ParseColor(tc.in)
			require.Equal(t, tc.ok, ok)
			require.Equal(t, tc.want, got)
		})
	}
	require.Equal(t, "#006ce0", overlay.Color{R: 0x00, G: 0x6c, B: 0xe0}.Hex())
}

func TestNewLabeler_InvalidColorsBecomeWhite(t *testing.T) {
	l := overlay.NewLabeler(roster.New(), []string{"#e00013", "not-a-colour"})
	require.Equal(t, []overlay.Color{{R: 0xe0, G: 0x00, B: 0x13}, overlay.White}, l.Colors())

	require.Equal(t, []overlay.Color{overlay.White}, overlay.NewLabeler(roster.New(), nil).Colors())
}

func TestLabeler_EmptyRoster(t *testing.T) {
	l := overlay.NewLabeler(roster.New(), palette)
	_, ok := l.Label(42)
	require.False(t, ok)
}

func TestLabeler_BindingIsStable(t *testing.T) {
	cache := roster.New()
	cache.Touch([]string{"alpha", "bravo", "charlie"}, t0)
	l := overlay.NewLabeler(cache, palette)

	first, ok := l.Label(4)
	require.True(t, ok)
	require.Equal(t, "bravo", first.Login)
	require.Equal(t, "bravo", first.Text())
	require.GreaterOrEqual(t, first.StyleIndex, 0)
	require.Less(t, first.StyleIndex, len(palette))
	require.Equal(t, l.Colors()[first.StyleIndex], first.Color)

	// the key set changes, the entity keeps its name
	cache.Touch([]string{"aardvark"}, t0)
	again, ok := l.Label(4)
	require.True(t, ok)
	require.Equal(t, first, again)

	// a fresh entity with the same id after Forget sees the new key set
	l.Forget(4)
	rebound, ok := l.Label(4)
	require.True(t, ok)
	require.Equal(t, "aardvark", rebound.Login)
}

func TestLabeler_PicksUpResolvedDisplayName(t *testing.T) {
	cache := roster.New()
	cache.Touch([]string{"xx_gamer_xx"}, t0)
	l := overlay.NewLabeler(cache, palette)

	lbl, ok := l.Label(7)
	require.True(t, ok)
	require.Nil(t, lbl.DisplayName)

	cache.SetDisplayName("xx_gamer_xx", "Gamer")
	lbl, ok = l.Label(7)
	require.True(t, ok)
	require.Equal(t, "Gamer", lbl.Text())

	// once resolved the binding no longer follows the cache
	cache.SetDisplayName("xx_gamer_xx", "Renamed")
	lbl, _ = l.Label(7)
	require.Equal(t, "Gamer", lbl.Text())
}

func TestLabeler_StyleIndexDependsOnLogin(t *testing.T) {
	cache := roster.New()
	cache.Touch([]string{"solo"}, t0)
	l := overlay.NewLabeler(cache, palette)

	a, _ := l.Label(1)
	b, _ := l.Label(99)
	require.Equal(t, a.Login, b.Login)
	require.Equal(t, a.StyleIndex, b.StyleIndex)
}

type prompt string

func (p prompt) PendingCode() string { return string(p) }

func TestAuthPrompt(t *testing.T) {
	code, ok := overlay.AuthPrompt(prompt("WDJB-MJHT"), true)
	require.True(t, ok)
	require.Equal(t, "WDJB-MJHT", code)

	_, ok = overlay.AuthPrompt(prompt("WDJB-MJHT"), false)
	require.False(t, ok)

	_, ok = overlay.AuthPrompt(prompt(""), true)
	require.False(t, ok)

	_, ok = overlay.AuthPrompt(nil, true)
	require.False(t, ok)
}

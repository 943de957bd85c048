// Package overlay assigns roster names to on-screen entities for a renderer.
package overlay

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/jrsteele09/go-chatter-roster/roster"
)

// Color is an opaque RGB colour.
type Color struct {
	R, G, B uint8
}

var White = Color{R: 0xff, G: 0xff, B: 0xff}

// ParseColor reads "#rrggbb" or "#rgb".
func ParseColor(s string) (Color, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return Color{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, false
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v)}, true
}

func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// Label is the name bound to one entity.
type Label struct {
	EntityID    int
	Login       string
	DisplayName *string
	StyleIndex  int
	Color       Color
}

// Text is what gets drawn: the display name once resolved, else the login.
func (l Label) Text() string {
	if l.DisplayName != nil {
		return *l.DisplayName
	}
	return l.Login
}

// Labeler binds each entity to a roster name the first time it is seen and
// keeps that binding until Forget.
type Labeler struct {
	cache  *roster.Cache
	colors []Color

	mu       sync.Mutex
	bindings map[int]*Label
}

// NewLabeler parses colors once; entries that do not parse become white.
func NewLabeler(cache *roster.Cache, colors []string) *Labeler {
	parsed := make([]Color, 0, len(colors))
	for _, c := range colors {
		col, ok := ParseColor(c)
		if !ok {
			col = White
		}
		parsed = append(parsed, col)
	}
	if len(parsed) == 0 {
		parsed = append(parsed, White)
	}
	return &Labeler{
		cache:    cache,
		colors:   parsed,
		bindings: make(map[int]*Label),
	}
}

// Colors returns the parsed palette indexed by Label.StyleIndex.
func (l *Labeler) Colors() []Color {
	return append([]Color(nil), l.colors...)
}

// Label returns the binding for entityID, creating it from the current roster
// on first sight. ok is false while the roster is empty.
func (l *Labeler) Label(entityID int) (Label, bool) {
	if l.cache.Len() == 0 {
		return Label{}, false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.bindings[entityID]; ok {
		if b.DisplayName == nil {
			if e, found := l.cache.Get(b.Login); found && e.DisplayName != nil {
				b.DisplayName = e.DisplayName
			}
		}
		return *b, true
	}

	e, ok := l.cache.NameAt(entityID)
	if !ok {
		return Label{}, false
	}
	idx := styleIndex(e.Login, len(l.colors))
	b := &Label{
		EntityID:    entityID,
		Login:       e.Login,
		DisplayName: e.DisplayName,
		StyleIndex:  idx,
		Color:       l.colors[idx],
	}
	l.bindings[entityID] = b
	return *b, true
}

// Forget drops the binding so the entity is reassigned next time it is seen.
func (l *Labeler) Forget(entityID int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.bindings, entityID)
}

func styleIndex(login string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(login)))
	return int(h.Sum32() % uint32(n))
}

// PromptSource exposes the pending device code.
type PromptSource interface {
	PendingCode() string
}

// AuthPrompt returns the code to draw instead of labels, if drawing it is
// enabled and one is pending.
func AuthPrompt(src PromptSource, draw bool) (string, bool) {
	if !draw || src == nil {
		return "", false
	}
	code := src.PendingCode()
	return code, code != ""
}

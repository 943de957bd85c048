// Package transform rewrites resolved display names through an ordered list of
// regular expression substitutions.
package transform

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ReplaceAll is the MaxMatches value that lifts the per-rule replacement limit.
const ReplaceAll = -1

// Rule is a single pattern/replacement pair. Rules are immutable once compiled
// and safe for concurrent use.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
	// MaxMatches caps how many leftmost matches are replaced. Any negative value
	// replaces every match, zero replaces nothing.
	MaxMatches int
}

// Compile builds a Rule from its textual form. The replacement uses the
// settings file's template syntax: $n is group n (the longest run of digits
// naming an existing group, else literal text), $& the whole match, ${name} a
// named or numbered group, $$ a dollar, and any other $ is literal. It is
// rewritten once into regexp.Regexp.Expand form and stored on the Rule.
func Compile(pattern, replacement string, maxMatches int) (Rule, error) {
	rx, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, errors.Wrapf(err, "transform.Compile %q", pattern)
	}
	return Rule{
		Pattern:     rx,
		Replacement: expandTemplate(replacement, rx.NumSubexp()),
		MaxMatches:  maxMatches,
	}, nil
}

// expandTemplate converts a settings replacement into Expand syntax, where a
// bare $1x would otherwise name a group called "1x".
func expandTemplate(repl string, groups int) string {
	if !strings.Contains(repl, "$") {
		return repl
	}

	var b strings.Builder
	for i := 0; i < len(repl); i++ {
		c := repl[i]
		if c != '$' {
			b.WriteByte(c)
			continue
		}
		if i+1 == len(repl) {
			b.WriteString("$$")
			continue
		}

		switch next := repl[i+1]; {
		case next == '$':
			b.WriteString("$$")
			i++
		case next == '&':
			b.WriteString("${0}")
			i++
		case next == '{':
			end := strings.IndexByte(repl[i:], '}')
			if end < 0 {
				b.WriteString("$$")
				continue
			}
			b.WriteString(repl[i : i+end+1])
			i += end
		case isDigit(next):
			j := i + 1
			for j < len(repl) && isDigit(repl[j]) {
				j++
			}
			digits := repl[i+1 : j]
			if n, err := strconv.Atoi(digits); err == nil && n <= groups {
				b.WriteString("${" + digits + "}")
			} else {
				b.WriteString("$$" + digits)
			}
			i = j - 1
		default:
			b.WriteString("$$")
		}
	}
	return b.String()
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// Apply runs the rule once over s, expanding the replacement template per match.
func (r Rule) Apply(s string) string {
	if r.Pattern == nil || r.MaxMatches == 0 {
		return s
	}

	n := r.MaxMatches
	if n < 0 {
		n = -1
	}

	matches := r.Pattern.FindAllStringSubmatchIndex(s, n)
	if len(matches) == 0 {
		return s
	}

	out := make([]byte, 0, len(s))
	last := 0
	for _, m := range matches {
		out = append(out, s[last:m[0]]...)
		out = r.Pattern.ExpandString(out, r.Replacement, s, m)
		last = m[1]
	}
	out = append(out, s[last:]...)
	return string(out)
}

// Apply feeds raw through every rule in order, each rule seeing the output of
// the previous one.
func Apply(raw string, rules []Rule) string {
	out := raw
	for _, r := range rules {
		out = r.Apply(out)
	}
	return out
}

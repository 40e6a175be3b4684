package lru

import (
	"regexp"
	"strings"
)

// Match reports whether key matches pattern in full. In pattern, '*' matches
// any run of characters (including none) and '?' matches exactly one
// character. Every other character matches itself; there are no character
// classes or escapes.
func Match(pattern, key string) bool {
	return compileGlob(pattern).MatchString(key)
}

func compileGlob(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.Grow(len(pattern) + 8)
	b.WriteString(`(?s)^`)
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteString(`.`)
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString(`$`)
	// QuoteMeta output plus .* and . always compiles.
	return regexp.MustCompile(b.String())
}

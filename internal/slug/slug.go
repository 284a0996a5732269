// Package slug derives URL-safe identifiers from titles.
package slug

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	gosimple "github.com/gosimple/slug"
)

// MaxLength bounds generated slugs so they fit the slug columns.
const MaxLength = 255

// Make lowercases and transliterates s into [a-z0-9-]. Input that
// transliterates to nothing (only punctuation, emoji) falls back to a
// stable hash of the original text so the result is never empty.
func Make(s string) string {
	out := gosimple.Make(s)
	out = strings.Trim(out, "-_")
	if out == "" {
		trimmed := strings.TrimSpace(s)
		if trimmed == "" {
			return ""
		}
		return fmt.Sprintf("%016x", xxhash.Sum64String(trimmed))
	}
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}

// Package markdown renders user-authored Markdown (articles, questions, answers) to HTML.
package markdown

import (
	"bytes"
	"context"
	"log/slog"

	"zanhu/internal/cache"
	"zanhu/internal/middleware"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Raw HTML in user content is dropped; only Markdown constructs render.
var md = goldmark.New(
	goldmark.WithExtensions(
		extension.GFM,
		extension.Linkify,
	),
	goldmark.WithRendererOptions(
		html.WithHardWraps(),
	),
)

// Renderer converts Markdown to HTML, optionally memoizing results in redis.
type Renderer struct {
	cached bool
}

// NewRenderer returns a Renderer. When cached is set, output is stored under
// the content hash so identical sources render once.
func NewRenderer(cached bool) *Renderer {
	return &Renderer{cached: cached}
}

// Render returns the HTML for src. Conversion errors yield an empty string.
func (r *Renderer) Render(ctx context.Context, src string) string {
	if src == "" {
		return ""
	}
	if !r.cached {
		return ToHTML(src)
	}

	var out string
	_ = cache.Aside(ctx, cache.MarkdownKey(src), &out, cache.MarkdownTTL, func() error {
		out = ToHTML(src)
		return nil
	})
	return out
}

// ToHTML converts src without caching.
func ToHTML(src string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(src), &buf); err != nil {
		middleware.Logger.Warn("markdown conversion failed", slog.String("error", err.Error()))
		return ""
	}
	return buf.String()
}

// ABOUTME: Converts provider answers from Markdown to HTML for rich surfaces
// ABOUTME: GitHub-flavoured tables and lists, raw HTML in answers is escaped

package markdown

import (
	"bytes"
	"html"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

var md = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// Render converts answer to HTML. Raw HTML inside answer is not passed through.
func Render(answer string) (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(answer), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderOrEscape converts answer to HTML and falls back to an escaped paragraph
// when conversion fails.
func RenderOrEscape(answer string) string {
	out, err := Render(answer)
	if err != nil {
		return "<p>" + html.EscapeString(answer) + "</p>"
	}
	return out
}

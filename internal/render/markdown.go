package render

import (
	"bytes"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
)

// HTML converts a markdown entry body to HTML. Raw HTML in the body is not
// passed through.
func HTML(body string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(body), &buf); err != nil {
		return "", errors.Wrap(err, "render markdown")
	}
	return buf.String(), nil
}

// Terminal renders markdown bodies for a terminal.
type Terminal struct {
	renderer *glamour.TermRenderer
}

// NewTerminal creates a terminal renderer wrapping at width columns.
func NewTerminal(width int) (*Terminal, error) {
	if width <= 0 {
		width = 80
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create terminal renderer")
	}
	return &Terminal{renderer: r}, nil
}

// Render returns body formatted for the terminal, falling back to the raw text.
func (t *Terminal) Render(body string) string {
	if t == nil || t.renderer == nil {
		return body
	}
	out, err := t.renderer.Render(body)
	if err != nil {
		return body
	}
	return strings.TrimRight(out, "\n")
}

package tui

import (
	"strings"

	"github.com/charmbracelet/glamour"
)

// Renderer turns question markdown into terminal output.
type Renderer func(string) (string, error)

// NewRenderer returns a glamour renderer that picks a light or dark style
// from the terminal background.
func NewRenderer(width int) (Renderer, error) {
	return newGlamour(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
}

// NewPlainRenderer renders markdown without colors, for pipes and logs.
func NewPlainRenderer(width int) (Renderer, error) {
	return newGlamour(glamour.WithStandardStyle("notty"), glamour.WithWordWrap(width))
}

func newGlamour(opts ...glamour.TermRendererOption) (Renderer, error) {
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, err
	}
	return func(markdown string) (string, error) {
		out, err := r.Render(markdown)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(out), nil
	}, nil
}

func identity(s string) (string, error) { return s, nil }

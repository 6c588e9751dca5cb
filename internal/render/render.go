// Package render holds the ways ponder displays text: Markdown or plain
// answers on stdout, styled thoughts on stderr, and tables for list modes.
package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Renderer displays a piece of text.
type Renderer interface {
	Render(text string)
}

// DefaultWidth is the wrap width used when the terminal width is unknown.
const DefaultWidth = 100

// Plain writes text unchanged, ending it with a newline.
type Plain struct {
	w io.Writer
}

func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

func (p *Plain) Render(text string) {
	if strings.HasSuffix(text, "\n") {
		fmt.Fprint(p.w, text)
		return
	}
	fmt.Fprintln(p.w, text)
}

// Markdown renders text through glamour. If glamour fails the raw text is
// written instead so an answer is never lost.
type Markdown struct {
	w        io.Writer
	renderer *glamour.TermRenderer
}

func NewMarkdown(w io.Writer, width int) (*Markdown, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, fmt.Errorf("create markdown renderer: %w", err)
	}
	return &Markdown{w: w, renderer: r}, nil
}

func (m *Markdown) Render(text string) {
	out, err := m.renderer.Render(text)
	if err != nil {
		NewPlain(m.w).Render(text)
		return
	}
	fmt.Fprint(m.w, out)
}

// ForAnswer picks Markdown for terminals and Plain for pipes or when raw
// output was requested.
func ForAnswer(w io.Writer, tty, raw bool, width int) Renderer {
	if tty && !raw {
		if md, err := NewMarkdown(w, width); err == nil {
			return md
		}
	}
	return NewPlain(w)
}

// Thought draws a round's reasoning as a dim, left-ruled block so it never
// reads like part of the answer.
type Thought struct {
	w     io.Writer
	style lipgloss.Style
	label lipgloss.Style
}

func NewThought(w io.Writer) *Thought {
	r := lipgloss.NewRenderer(w)
	return &Thought{
		w: w,
		style: r.NewStyle().
			Faint(true).
			Italic(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderLeft(true).
			BorderForeground(lipgloss.Color("8")).
			PaddingLeft(1),
		label: r.NewStyle().Bold(true).Foreground(lipgloss.Color("5")),
	}
}

func (t *Thought) Render(text string) {
	fmt.Fprintln(t.w, t.label.Render("thinking"))
	fmt.Fprintln(t.w, t.style.Render(text))
}

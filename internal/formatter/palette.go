package formatter

import "github.com/charmbracelet/lipgloss"

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#626262")

// Palette is a small stylesheet for terminal output built from named [lipgloss.Style] fields.
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	muted lipgloss.Style
}

func NewPalette(t, s, e, m string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		muted: NewEm(m),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

func (p *Palette) Title(s string) string { return p.title.Render(s) }
func (p *Palette) OK(s string) string    { return p.ok.Render(s) }
func (p *Palette) Err(s string) string   { return p.err.Render(s) }
func (p *Palette) Muted(s string) string { return p.muted.Render(s) }

// Styles returns the default palette.
func Styles() *Palette {
	return styles
}

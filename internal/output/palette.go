package output

import (
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Palette colors status words in text output.
type Palette struct {
	good  *color.Color
	bad   *color.Color
	warn  *color.Color
	muted *color.Color
	bold  *color.Color
}

// NewPalette creates a palette. A disabled palette returns text unchanged.
func NewPalette(enabled bool) *Palette {
	p := &Palette{
		good:  color.New(color.FgGreen),
		bad:   color.New(color.FgRed),
		warn:  color.New(color.FgYellow),
		muted: color.New(color.Faint),
		bold:  color.New(color.Bold),
	}
	for _, c := range []*color.Color{p.good, p.bad, p.warn, p.muted, p.bold} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// ColorEnabled resolves a color mode ("auto", "always", "never") for w.
// NO_COLOR disables auto mode.
func ColorEnabled(mode string, w io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "never":
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	return IsTerminal(w)
}

// Availability renders a connector's availability.
func (p *Palette) Availability(available, known bool) string {
	switch {
	case !known:
		return p.muted.Sprint("unknown")
	case available:
		return p.good.Sprint("available")
	default:
		return p.bad.Sprint("unavailable")
	}
}

// Phase renders a connection phase.
func (p *Palette) Phase(phase string) string {
	switch phase {
	case "connected":
		return p.good.Sprint(phase)
	case "failed":
		return p.bad.Sprint(phase)
	case "connecting":
		return p.warn.Sprint(phase)
	default:
		return p.muted.Sprint(phase)
	}
}

// SignIn renders whether a sign-in is still required.
func (p *Palette) SignIn(needed bool) string {
	if needed {
		return p.warn.Sprint("sign-in required")
	}
	return p.good.Sprint("signed in")
}

// Bold renders s in bold.
func (p *Palette) Bold(s string) string {
	return p.bold.Sprint(s)
}

// Muted renders s faint.
func (p *Palette) Muted(s string) string {
	return p.muted.Sprint(s)
}

package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/matzehuels/aurgrab/pkg/config"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan  = lipgloss.Color("36")  // Teal - package names
	colorGreen = lipgloss.Color("35")  // Green - success, versions
	colorRed   = lipgloss.Color("167") // Soft red - errors, out of date
	colorBlue  = lipgloss.Color("75")  // Light blue - links
	colorWhite = lipgloss.Color("255") // Bright white - values
	colorGray  = lipgloss.Color("245") // Gray - secondary text
	colorDim   = lipgloss.Color("240") // Dim gray - muted text
)

const (
	iconSuccess = "✓"
	iconInfo    = "›"
	iconArrow   = "→"
)

// ui renders styled output to one writer. Styles are bound to a renderer so
// that --color applies to this writer only.
type ui struct {
	w io.Writer

	title   lipgloss.Style
	name    lipgloss.Style
	version lipgloss.Style
	link    lipgloss.Style
	dim     lipgloss.Style
	value   lipgloss.Style
	key     lipgloss.Style
	bad     lipgloss.Style

	iconSuccess lipgloss.Style
	iconInfo    lipgloss.Style
	spinner     lipgloss.Style
}

// newUI builds the styles for w. mode is one of the config color modes;
// auto leaves detection to lipgloss.
func newUI(w io.Writer, mode string) *ui {
	r := lipgloss.NewRenderer(w)
	switch mode {
	case config.ColorNever:
		r.SetColorProfile(termenv.Ascii)
	case config.ColorAlways:
		r.SetColorProfile(termenv.ANSI256)
	}

	return &ui{
		w:           w,
		title:       r.NewStyle().Bold(true).Foreground(colorCyan),
		name:        r.NewStyle().Bold(true).Foreground(colorWhite),
		version:     r.NewStyle().Bold(true).Foreground(colorGreen),
		link:        r.NewStyle().Foreground(colorBlue).Underline(true),
		dim:         r.NewStyle().Foreground(colorDim),
		value:       r.NewStyle().Foreground(colorWhite),
		key:         r.NewStyle().Foreground(colorGray).Width(16),
		bad:         r.NewStyle().Bold(true).Foreground(colorRed),
		iconSuccess: r.NewStyle().Foreground(colorGreen),
		iconInfo:    r.NewStyle().Foreground(colorGray),
		spinner:     r.NewStyle().Foreground(colorCyan),
	}
}

// =============================================================================
// Status Output
// =============================================================================

func (u *ui) success(format string, args ...any) {
	fmt.Fprintln(u.w, u.iconSuccess.Render(iconSuccess)+" "+fmt.Sprintf(format, args...))
}

func (u *ui) info(format string, args ...any) {
	fmt.Fprintln(u.w, u.iconInfo.Render(iconInfo)+" "+fmt.Sprintf(format, args...))
}

// detail prints an indented, dimmed line.
func (u *ui) detail(format string, args ...any) {
	fmt.Fprintln(u.w, "  "+u.dim.Render(fmt.Sprintf(format, args...)))
}

// file prints an output path line.
func (u *ui) file(path string) {
	fmt.Fprintln(u.w, "  "+u.dim.Render(iconArrow)+" "+u.value.Render(path))
}

// keyValue prints a labeled value with the label padded to a fixed column.
func (u *ui) keyValue(key, value string) {
	fmt.Fprintln(u.w, u.key.Render(key)+" "+value)
}

func (u *ui) newline() {
	fmt.Fprintln(u.w)
}

package layout

import (
	"os"
	"strings"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"
)

const (
	defaultWidth = 80
	minWidth     = 40
)

// Sizer measures and fits text to a terminal width. Scholar names are often
// CJK or accented, so widths are display cells, not bytes.
type Sizer struct {
	Width int
}

// NewSizer creates a sizer for a fixed width. Widths below the minimum are raised.
func NewSizer(width int) *Sizer {
	if width < minWidth {
		width = minWidth
	}
	return &Sizer{Width: width}
}

// DetectSizer reads the width of f, falling back when f is not a terminal.
func DetectSizer(f *os.File) *Sizer {
	if f == nil || !term.IsTerminal(int(f.Fd())) {
		return NewSizer(defaultWidth)
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return NewSizer(defaultWidth)
	}
	return NewSizer(width)
}

// DisplayWidth calculates the actual display width of a string containing emojis and Unicode characters
func (s Sizer) DisplayWidth(str string) int {
	return runewidth.StringWidth(str)
}

// PadString pads a string to a specific display width, handling wide characters correctly
func (s Sizer) PadString(str string, width int, leftAlign bool) string {
	actualWidth := s.DisplayWidth(str)
	if actualWidth >= width {
		return str
	}

	padding := strings.Repeat(" ", width-actualWidth)
	if leftAlign {
		return str + padding
	}
	return padding + str
}

// Truncate cuts str to at most width cells, marking the cut with "...".
func (s Sizer) Truncate(str string, width int) string {
	if width <= 0 {
		return ""
	}
	if width <= 3 {
		return runewidth.Truncate(str, width, "")
	}
	return runewidth.Truncate(str, width, "...")
}

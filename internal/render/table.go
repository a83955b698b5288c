// Package render formats recognition results for terminal output.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chordwise/seville/internal/decode"
	"github.com/chordwise/seville/internal/music"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#888888"))

	chordStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	restStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	beatStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00"))
)

const (
	beatColWidth  = 11
	chordColWidth = 12
)

// SpanTable renders chord spans as an aligned table with one row per
// span: beat range, chord name, pitch classes.
func SpanTable(spans []decode.Span) string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(pad("beats", beatColWidth) + pad("chord", chordColWidth) + "pitches"))
	b.WriteString("\n")

	for _, s := range spans {
		beats := fmt.Sprintf("%d-%d", s.Start, s.End)
		style := chordStyle
		if s.Name == "N" {
			style = restStyle
		}
		b.WriteString(beatStyle.Render(pad(beats, beatColWidth)))
		b.WriteString(style.Render(pad(s.Name, chordColWidth)))
		b.WriteString(pitchNames(s.Pitches))
		b.WriteString("\n")
	}

	return b.String()
}

func pitchNames(pitches []int) string {
	if len(pitches) == 0 {
		return "-"
	}
	names := make([]string, len(pitches))
	for i, p := range pitches {
		names[i] = music.PitchName(p)
	}
	return strings.Join(names, " ")
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-len(s))
}

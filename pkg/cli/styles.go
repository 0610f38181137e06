package cli

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of terminal output.
type Theme struct {
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Dim     lipgloss.Color
}

// DefaultTheme is the violet and gold oracle theme.
var DefaultTheme = Theme{
	Primary: lipgloss.Color("#c084fc"),
	Accent:  lipgloss.Color("#fbbf24"),
	Dim:     lipgloss.Color("#6e7681"),
}

// Styles holds the styles derived from a theme.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Seeker lipgloss.Style
	Chip   lipgloss.Style
	Card   lipgloss.Style
	Help   lipgloss.Style
}

// NewStyles creates styles from a theme.
func NewStyles(t Theme) Styles {
	return Styles{
		Title:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary).Padding(0, 1),
		Label:  lipgloss.NewStyle().Bold(true).Foreground(t.Primary),
		Seeker: lipgloss.NewStyle().Bold(true).Foreground(t.Accent),
		Chip:   lipgloss.NewStyle().Foreground(t.Accent).Border(lipgloss.RoundedBorder()).BorderForeground(t.Dim).Padding(0, 1),
		Card:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(t.Primary).Padding(0, 1),
		Help:   lipgloss.NewStyle().Foreground(t.Dim),
	}
}

// Speaker renders the label in front of a message.
func (s Styles) Speaker(name string, oracle bool) string {
	if oracle {
		return s.Label.Render(name + ":")
	}
	return s.Seeker.Render(name + ":")
}

// Chips renders labels side by side as buttons.
func (s Styles) Chips(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	chips := make([]string, len(labels))
	for i, l := range labels {
		chips[i] = s.Chip.Render(l)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, chips...)
}

// Hints renders numbered follow-up suggestions.
func (s Styles) Hints(items []string) string {
	var sb strings.Builder
	for i, it := range items {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(s.Help.Render("  " + strconv.Itoa(i+1) + ") " + it))
	}
	return sb.String()
}

// Section is a labeled block of a Frame. When Tail is positive only the
// last Tail lines are shown.
type Section struct {
	Label string
	Lines []string
	Tail  int
}

// Frame is a bordered card with a title, a status and sections. The live
// voice view prints one when a session ends.
type Frame struct {
	Styles   Styles
	Title    string
	Status   string
	Sections []Section
	Help     string
}

// Render lays the frame out width cells wide. Lines that do not fit end in
// "…".
func (f Frame) Render(width int) string {
	if width <= 0 {
		return ""
	}
	inner := max(width-4, 8)

	header := f.Styles.Title.Render(clip(f.Title, inner/2))
	if f.Status != "" {
		header += " " + f.Styles.Help.Render("["+clip(f.Status, inner/2-3)+"]")
	}
	body := []string{header}
	for _, sec := range f.Sections {
		lines := sec.Lines
		if sec.Tail > 0 && len(lines) > sec.Tail {
			lines = lines[len(lines)-sec.Tail:]
		}
		body = append(body, "", f.Styles.Label.Render(sec.Label))
		for _, l := range lines {
			body = append(body, clip(l, inner))
		}
	}

	out := f.Styles.Card.Width(inner + 2).Render(strings.Join(body, "\n"))
	if f.Help != "" {
		out += "\n" + f.Styles.Help.Render(f.Help)
	}
	return out
}

// clip cuts s to width display cells, marking the cut with "…".
func clip(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	w := 0
	for i, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > width-1 {
			return s[:i] + "…"
		}
		w += rw
	}
	return s
}

package styles

import "github.com/charmbracelet/lipgloss"

var (
	// Color palette
	Primary    = lipgloss.Color("#FF6B9D")
	Secondary  = lipgloss.Color("#C792EA")
	Success    = lipgloss.Color("#C3E88D")
	Warning    = lipgloss.Color("#FFCB6B")
	Error      = lipgloss.Color("#F07178")
	Info       = lipgloss.Color("#82AAFF")
	Muted      = lipgloss.Color("#546E7A")
	Foreground = lipgloss.Color("#EEFFFF")

	RoundedBorder = lipgloss.RoundedBorder()
)

// Base styles
var (
	// Title style for headings
	TitleStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(Secondary).
			Italic(true)

	TextStyle = lipgloss.NewStyle().
			Foreground(Foreground)

	MutedStyle = lipgloss.NewStyle().
			Foreground(Muted)

	// Row under the cursor
	CursorStyle = lipgloss.NewStyle().
			Foreground(Primary).
			Bold(true)

	// Sequence number of a selected chapter
	SequenceStyle = lipgloss.NewStyle().
			Foreground(Warning).
			Bold(true)

	CardStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Secondary).
			Padding(1, 2).
			MarginBottom(1)

	// Status styles
	StatusWorking = lipgloss.NewStyle().
			Foreground(Info).
			Bold(true)

	StatusDone = lipgloss.NewStyle().
			Foreground(Success).
			Bold(true)

	StatusError = lipgloss.NewStyle().
			Foreground(Error).
			Bold(true)

	HelpStyle = lipgloss.NewStyle().
			Foreground(Muted).
			Italic(true).
			MarginTop(1)

	InputStyle = lipgloss.NewStyle().
			Border(RoundedBorder).
			BorderForeground(Primary).
			Padding(0, 1)
)

// StatusStyle picks a style for a conversion state name.
func StatusStyle(state string) lipgloss.Style {
	switch state {
	case "detecting", "converting", "scanning", "building":
		return StatusWorking
	case "done", "already-normalized":
		return StatusDone
	case "failed", "cancelled":
		return StatusError
	default:
		return MutedStyle
	}
}

package components

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/progress"

	"github.com/kerbaras/txt2epub/pkg/app/styles"
	"github.com/kerbaras/txt2epub/pkg/services"
)

// ProgressTracker follows the events of one conversion run.
type ProgressTracker struct {
	Source     string
	Percent    int
	Status     string
	ResultPath string
	Err        error
	Complete   bool

	bar   progress.Model
	width int
}

func NewProgressTracker(source string, width int) *ProgressTracker {
	p := &ProgressTracker{Source: source}
	p.SetWidth(width)
	return p
}

func (p *ProgressTracker) SetWidth(width int) {
	if width < 10 {
		width = 10
	}
	p.width = width
	p.bar = progress.New(progress.WithDefaultGradient(), progress.WithWidth(width))
}

// Update applies one worker event.
func (p *ProgressTracker) Update(ev services.ConversionEvent) {
	switch ev.Kind {
	case services.EventProgress:
		p.Percent = ev.Progress
	case services.EventStatus:
		p.Status = ev.Status
	case services.EventComplete:
		p.Complete = true
		p.ResultPath = ev.ResultPath
		p.Err = ev.Err
	}
}

// Cancelled reports a finished run with neither a result nor an error.
func (p *ProgressTracker) Cancelled() bool {
	return p.Complete && p.Err == nil && p.ResultPath == ""
}

func (p *ProgressTracker) state() string {
	switch {
	case !p.Complete:
		return "converting"
	case p.Err != nil:
		return "failed"
	case p.ResultPath == "":
		return "cancelled"
	default:
		return "done"
	}
}

func (p *ProgressTracker) View() string {
	var b strings.Builder
	b.WriteString(styles.TextStyle.Render(filepath.Base(p.Source)))
	b.WriteString("\n")

	b.WriteString(p.bar.ViewAs(float64(p.Percent) / 100))
	b.WriteString("\n")

	status := p.Status
	if status == "" {
		status = "Waiting..."
	}
	b.WriteString(styles.StatusStyle(p.state()).Render(status))
	b.WriteString("\n")

	switch {
	case p.Err != nil:
		b.WriteString(styles.StatusError.Render(fmt.Sprintf("Error: %s", p.Err)))
		b.WriteString("\n")
	case p.Cancelled():
		b.WriteString(styles.StatusError.Render("Cancelled"))
		b.WriteString("\n")
	case p.Complete:
		b.WriteString(styles.MutedStyle.Render("Output: " + p.ResultPath))
		b.WriteString("\n")
	}

	return b.String()
}

package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kerbaras/txt2epub/pkg/app/styles"
	"github.com/kerbaras/txt2epub/pkg/chapters"
)

// ChapterList renders a SelectionModel with a cursor.
type ChapterList struct {
	Model         *chapters.SelectionModel
	SelectedIndex int
	Width         int
	Height        int
}

func NewChapterList(model *chapters.SelectionModel) *ChapterList {
	if model == nil {
		model = chapters.NewSelectionModel(nil)
	}
	return &ChapterList{
		Model:  model,
		Width:  80,
		Height: 20,
	}
}

func (l *ChapterList) SetRecords(records []chapters.ChapterRecord) {
	l.Model.Replace(records)
	if l.SelectedIndex >= len(records) && len(records) > 0 {
		l.SelectedIndex = len(records) - 1
	}
	if len(records) == 0 {
		l.SelectedIndex = 0
	}
}

func (l *ChapterList) Next() {
	if l.Model.Len() == 0 {
		return
	}
	l.SelectedIndex++
	if l.SelectedIndex >= l.Model.Len() {
		l.SelectedIndex = 0
	}
}

func (l *ChapterList) Prev() {
	if l.Model.Len() == 0 {
		return
	}
	l.SelectedIndex--
	if l.SelectedIndex < 0 {
		l.SelectedIndex = l.Model.Len() - 1
	}
}

// Toggle flips the row under the cursor.
func (l *ChapterList) Toggle() error {
	return l.Model.Toggle(l.SelectedIndex)
}

func (l *ChapterList) ToggleAll() {
	l.Model.ToggleAll()
}

func (l *ChapterList) SetIllustration(path string) error {
	return l.Model.SetIllustration(l.SelectedIndex, path)
}

// visibleRange keeps the cursor inside a window of rows.
func (l *ChapterList) visibleRange() (int, int) {
	rows := l.Height
	if rows < 1 {
		rows = 1
	}

	n := l.Model.Len()
	start := 0
	end := n
	if n > rows {
		start = l.SelectedIndex - rows/2
		if start < 0 {
			start = 0
		}
		end = start + rows
		if end > n {
			end = n
			start = end - rows
		}
	}
	return start, end
}

func (l *ChapterList) View() string {
	if l.Model.Len() == 0 {
		emptyMsg := styles.MutedStyle.Render("No chapters found")
		return lipgloss.Place(l.Width, l.Height, lipgloss.Center, lipgloss.Center, emptyMsg)
	}

	var b strings.Builder
	start, end := l.visibleRange()

	for i := start; i < end; i++ {
		row, _ := l.Model.Row(i)

		box := "[ ]"
		seq := styles.MutedStyle.Render("   -")
		if n, ok := l.Model.SequenceNumber(i); ok {
			box = "[x]"
			seq = styles.SequenceStyle.Render(fmt.Sprintf("%4d", n))
		}

		text := row.Text
		if limit := l.Width - 30; limit > 10 && len([]rune(text)) > limit {
			text = string([]rune(text)[:limit-3]) + "..."
		}

		line := fmt.Sprintf("%s %s %s", box, text, styles.MutedStyle.Render(fmt.Sprintf("(line %d)", row.LineNo)))
		if row.IllustrationPath != "" {
			line += " " + styles.MutedStyle.Render("[img]")
		}

		cursor := "  "
		if i == l.SelectedIndex {
			cursor = "> "
			line = styles.CursorStyle.Render(line)
		}

		b.WriteString(cursor + seq + " " + line)
		b.WriteString("\n")
	}

	return b.String()
}

package screens

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/txt2epub/pkg/app/components"
	"github.com/kerbaras/txt2epub/pkg/app/styles"
	"github.com/kerbaras/txt2epub/pkg/chapters"
	"github.com/kerbaras/txt2epub/pkg/integrations"
	"github.com/kerbaras/txt2epub/pkg/services"
)

// ChapterPipeline scans and builds. *services.Controller implements it.
type ChapterPipeline interface {
	PatternSet(store services.SlotStore, patterns []string) (*chapters.PatternSet, error)
	Scan(ctx context.Context, path string, set *chapters.PatternSet) ([]chapters.ChapterRecord, error)
	BuildEPub(textPath string, selected []chapters.ChapterRecord, opts integrations.BookOptions) (string, error)
}

type ChaptersScreen struct {
	pipeline ChapterPipeline
	store    services.SlotStore
	textPath string

	list     *components.ChapterList
	input    textinput.Model
	editing  bool
	scanning bool
	building bool
	output   string
	width    int
	height   int
	err      error
}

func NewChaptersScreen(pipeline ChapterPipeline, store services.SlotStore, textPath string) *ChaptersScreen {
	ti := textinput.New()
	ti.Placeholder = "Path to illustration image"
	ti.CharLimit = 1024
	ti.Width = 60

	return &ChaptersScreen{
		pipeline: pipeline,
		store:    store,
		textPath: textPath,
		list:     components.NewChapterList(nil),
		input:    ti,
	}
}

func (s *ChaptersScreen) Init() tea.Cmd {
	s.scanning = true
	return s.scanChapters
}

// Editing reports whether key presses go to the text input.
func (s *ChaptersScreen) Editing() bool {
	return s.editing
}

func (s *ChaptersScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.list.Width = msg.Width
		s.list.Height = msg.Height - 10

	case tea.KeyMsg:
		if s.editing {
			return s.updateInput(msg)
		}
		if s.scanning || s.building {
			return s, nil
		}

		switch msg.String() {
		case "up", "k":
			s.list.Prev()
		case "down", "j":
			s.list.Next()
		case " ":
			if err := s.list.Toggle(); err != nil {
				s.err = err
			}
		case "a":
			s.list.ToggleAll()
		case "i":
			if s.list.Model.Len() > 0 {
				row, _ := s.list.Model.Row(s.list.SelectedIndex)
				s.input.SetValue(row.IllustrationPath)
				s.input.Focus()
				s.editing = true
				return s, textinput.Blink
			}
		case "r":
			s.scanning = true
			s.err = nil
			return s, s.scanChapters
		case "e":
			s.building = true
			s.err = nil
			return s, s.buildEPub(s.list.Model.Selected())
		}

	case chaptersScannedMsg:
		s.scanning = false
		s.err = msg.err
		if msg.err == nil {
			s.list.SetRecords(msg.records)
		}

	case epubBuiltMsg:
		s.building = false
		s.err = msg.err
		s.output = msg.path

	default:
		if s.editing {
			s.input, cmd = s.input.Update(msg)
		}
	}

	return s, cmd
}

func (s *ChaptersScreen) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if err := s.list.SetIllustration(strings.TrimSpace(s.input.Value())); err != nil {
			s.err = err
		}
		s.input.Blur()
		s.editing = false
		return s, nil
	case "esc":
		s.input.Blur()
		s.editing = false
		return s, nil
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)
	return s, cmd
}

func (s *ChaptersScreen) View() string {
	header := styles.TitleStyle.Render("Chapters")

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	var body string
	switch {
	case s.scanning:
		body = styles.StatusWorking.Render("Scanning for chapters...")
	default:
		body = s.list.View()
	}

	summary := styles.SubtitleStyle.Render(fmt.Sprintf("%d of %d chapters selected",
		s.list.Model.SelectedCount(), s.list.Model.Len()))

	var footer string
	switch {
	case s.editing:
		footer = styles.InputStyle.Render(s.input.View())
	case s.building:
		footer = styles.StatusWorking.Render("Building EPUB...")
	case s.output != "":
		footer = styles.StatusDone.Render("Written " + s.output)
	}

	help := styles.HelpStyle.Render(
		"↑/k ↓/j: navigate • space: toggle • a: toggle all • i: illustration • e: build EPUB • r: rescan • q: quit",
	)

	return fmt.Sprintf("%s\n%s\n\n%s%s\n%s\n%s", header, summary, errorMsg, body, footer, help)
}

// Messages
type chaptersScannedMsg struct {
	records []chapters.ChapterRecord
	err     error
}

type epubBuiltMsg struct {
	path string
	err  error
}

// Commands
func (s *ChaptersScreen) scanChapters() tea.Msg {
	set, err := s.pipeline.PatternSet(s.store, nil)
	if err != nil {
		return chaptersScannedMsg{err: err}
	}

	records, err := s.pipeline.Scan(context.Background(), s.textPath, set)
	return chaptersScannedMsg{records: records, err: err}
}

func (s *ChaptersScreen) buildEPub(selected []chapters.ChapterRecord) tea.Cmd {
	return func() tea.Msg {
		path, err := s.pipeline.BuildEPub(s.textPath, selected, integrations.BookOptions{})
		return epubBuiltMsg{path: path, err: err}
	}
}

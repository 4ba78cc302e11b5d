package screens

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/txt2epub/pkg/app/components"
	"github.com/kerbaras/txt2epub/pkg/app/styles"
	"github.com/kerbaras/txt2epub/pkg/services"
)

// Converter starts conversion runs. *services.Controller implements it.
type Converter interface {
	StartConversion(path string) (*services.ConversionWorker, error)
}

type ConvertScreen struct {
	controller Converter
	path       string
	worker     *services.ConversionWorker
	tracker    *components.ProgressTracker
	width      int
	height     int
	err        error
}

func NewConvertScreen(controller Converter, path string) *ConvertScreen {
	return &ConvertScreen{
		controller: controller,
		path:       path,
		tracker:    components.NewProgressTracker(path, 60),
	}
}

func (s *ConvertScreen) Init() tea.Cmd {
	return s.startConversion
}

func (s *ConvertScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		s.width = msg.Width
		s.height = msg.Height
		s.tracker.SetWidth(msg.Width - 4)

	case tea.KeyMsg:
		switch msg.String() {
		case "c", "esc":
			if s.worker != nil && !s.tracker.Complete {
				s.worker.Cancel()
			}
		case "r":
			if s.tracker.Complete && s.tracker.ResultPath == "" {
				s.tracker = components.NewProgressTracker(s.path, s.width-4)
				s.err = nil
				return s, s.startConversion
			}
		}

	case conversionStartedMsg:
		if msg.err != nil {
			s.err = msg.err
			return s, nil
		}
		s.worker = msg.worker
		return s, s.listenForEvents

	case conversionEventMsg:
		// events of a replaced run are stale
		if s.worker == nil || msg.event.RunID != s.worker.RunID() {
			return s, nil
		}
		s.tracker.Update(msg.event)
		if msg.event.Kind != services.EventComplete {
			return s, s.listenForEvents
		}
		if msg.event.Err == nil && msg.event.ResultPath != "" {
			path := msg.event.ResultPath
			return s, func() tea.Msg {
				return SwitchScreenMsg{Screen: "chapters", Data: path}
			}
		}
	}

	return s, nil
}

func (s *ConvertScreen) View() string {
	header := styles.TitleStyle.Render("Converting to UTF-8")

	var errorMsg string
	if s.err != nil {
		errorMsg = styles.StatusError.Render(fmt.Sprintf("Error: %s", s.err)) + "\n\n"
	}

	help := "c/esc: cancel • q: quit"
	if s.tracker.Complete {
		help = "r: retry • q: quit"
	}

	return fmt.Sprintf("%s\n\n%s%s\n%s",
		header,
		errorMsg,
		styles.CardStyle.Render(s.tracker.View()),
		styles.HelpStyle.Render(help),
	)
}

// Messages
type conversionStartedMsg struct {
	worker *services.ConversionWorker
	err    error
}

type conversionEventMsg struct {
	event services.ConversionEvent
}

// Commands
func (s *ConvertScreen) startConversion() tea.Msg {
	w, err := s.controller.StartConversion(s.path)
	return conversionStartedMsg{worker: w, err: err}
}

func (s *ConvertScreen) listenForEvents() tea.Msg {
	ev, ok := <-s.worker.Events()
	if !ok {
		return nil
	}
	return conversionEventMsg{event: ev}
}

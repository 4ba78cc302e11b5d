package screens

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/txt2epub/pkg/services"
)

type screenType int

const (
	convertView screenType = iota
	chaptersView
)

// Pipeline is everything the screens need from the controller.
type Pipeline interface {
	Converter
	ChapterPipeline
	CancelConversion()
}

// SwitchScreenMsg moves the program to another screen.
type SwitchScreenMsg struct {
	Screen string
	Data   interface{}
}

type RootScreen struct {
	pipeline Pipeline
	store    services.SlotStore

	currentView screenType
	convert     *ConvertScreen
	chapters    *ChaptersScreen

	width  int
	height int
}

func NewRootScreen(pipeline Pipeline, store services.SlotStore, path string) *RootScreen {
	return &RootScreen{
		pipeline:    pipeline,
		store:       store,
		currentView: convertView,
		convert:     NewConvertScreen(pipeline, path),
	}
}

func (r *RootScreen) Init() tea.Cmd {
	return r.convert.Init()
}

func (r *RootScreen) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		r.width = msg.Width
		r.height = msg.Height

	case tea.KeyMsg:
		editing := r.currentView == chaptersView && r.chapters.Editing()
		switch msg.String() {
		case "ctrl+c":
			r.pipeline.CancelConversion()
			return r, tea.Quit
		case "q":
			if !editing {
				r.pipeline.CancelConversion()
				return r, tea.Quit
			}
		}

	case SwitchScreenMsg:
		if msg.Screen == "chapters" {
			if path, ok := msg.Data.(string); ok {
				r.chapters = NewChaptersScreen(r.pipeline, r.store, path)
				r.currentView = chaptersView
				cmd = r.chapters.Init()
				if r.width > 0 {
					r.chapters.Update(tea.WindowSizeMsg{Width: r.width, Height: r.height})
				}
			}
		}
		return r, cmd
	}

	// Forward message to active screen
	switch r.currentView {
	case convertView:
		newModel, newCmd := r.convert.Update(msg)
		r.convert = newModel.(*ConvertScreen)
		return r, newCmd
	case chaptersView:
		newModel, newCmd := r.chapters.Update(msg)
		r.chapters = newModel.(*ChaptersScreen)
		return r, newCmd
	}

	return r, cmd
}

func (r *RootScreen) View() string {
	switch r.currentView {
	case chaptersView:
		return r.chapters.View()
	default:
		return r.convert.View()
	}
}

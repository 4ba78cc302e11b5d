package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/kerbaras/txt2epub/pkg/app/screens"
	"github.com/kerbaras/txt2epub/pkg/services"
)

type App struct {
	controller *services.Controller
	store      services.SlotStore
	path       string
}

func NewApp(controller *services.Controller, store services.SlotStore, path string) *App {
	return &App{controller: controller, store: store, path: path}
}

func (a *App) Run() error {
	model := screens.NewRootScreen(a.controller, a.store, a.path)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

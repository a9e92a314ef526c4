package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// Keyboard pan and zoom steps.
const (
	panStep  = 1.0  // tiles per key press
	zoomStep = 1.25 // zoom factor per key press
)

// GridKeyMap defines the key bindings of the grid view.
type GridKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Left    key.Binding
	Right   key.Binding
	ZoomIn  key.Binding
	ZoomOut key.Binding
	Reset   key.Binding
	GoTo    key.Binding
	Open    key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k GridKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.ZoomIn, k.ZoomOut, k.GoTo, k.Help, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k GridKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Left, k.Right},
		{k.ZoomIn, k.ZoomOut, k.Reset},
		{k.GoTo, k.Open, k.Help, k.Quit},
	}
}

// DefaultGridKeyMap returns default key bindings.
func DefaultGridKeyMap() GridKeyMap {
	return GridKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k", "w"),
			key.WithHelp("↑/k", "pan up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j", "s"),
			key.WithHelp("↓/j", "pan down"),
		),
		Left: key.NewBinding(
			key.WithKeys("left", "h", "a"),
			key.WithHelp("←/h", "pan left"),
		),
		Right: key.NewBinding(
			key.WithKeys("right", "l", "d"),
			key.WithHelp("→/l", "pan right"),
		),
		ZoomIn: key.NewBinding(
			key.WithKeys("+", "=", "z"),
			key.WithHelp("+", "zoom in"),
		),
		ZoomOut: key.NewBinding(
			key.WithKeys("-", "_", "x"),
			key.WithHelp("-", "zoom out"),
		),
		Reset: key.NewBinding(
			key.WithKeys("0"),
			key.WithHelp("0", "reset zoom"),
		),
		GoTo: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "go to x,y"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "open hovered"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// Action is a camera command derived from a key.
type Action int

const (
	ActionNone Action = iota
	ActionPan
	ActionZoom
	ActionReset
	ActionGoTo
	ActionOpen
	ActionHelp
	ActionQuit
)

// KeyAction is the decoded meaning of a key press. DX and DY are the pan
// in tiles for ActionPan; Factor is the zoom factor for ActionZoom.
type KeyAction struct {
	Action Action
	DX, DY float64
	Factor float64
}

// MapKey translates a key message to a grid action.
func (k GridKeyMap) MapKey(msg tea.KeyMsg) KeyAction {
	switch {
	case key.Matches(msg, k.Quit):
		return KeyAction{Action: ActionQuit}
	case key.Matches(msg, k.Up):
		return KeyAction{Action: ActionPan, DY: -panStep}
	case key.Matches(msg, k.Down):
		return KeyAction{Action: ActionPan, DY: panStep}
	case key.Matches(msg, k.Left):
		return KeyAction{Action: ActionPan, DX: -panStep}
	case key.Matches(msg, k.Right):
		return KeyAction{Action: ActionPan, DX: panStep}
	case key.Matches(msg, k.ZoomIn):
		return KeyAction{Action: ActionZoom, Factor: zoomStep}
	case key.Matches(msg, k.ZoomOut):
		return KeyAction{Action: ActionZoom, Factor: 1 / zoomStep}
	case key.Matches(msg, k.Reset):
		return KeyAction{Action: ActionReset}
	case key.Matches(msg, k.GoTo):
		return KeyAction{Action: ActionGoTo}
	case key.Matches(msg, k.Open):
		return KeyAction{Action: ActionOpen}
	case key.Matches(msg, k.Help):
		return KeyAction{Action: ActionHelp}
	}
	return KeyAction{}
}

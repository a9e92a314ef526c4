package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/tilegrid/internal/core"
	"github.com/vovakirdan/tilegrid/internal/input"
	"github.com/vovakirdan/tilegrid/internal/platform/viewer"
	"github.com/vovakirdan/tilegrid/internal/render"
)

// hudRows is the number of terminal rows below the canvas.
const hudRows = 2

// wheelPixels is the pan distance of one wheel notch in terminal pixels.
const wheelPixels = 6

// wheelZoomUnits is the wheel delta of one zoom notch.
const wheelZoomUnits = 10

// Options configures a grid model.
type Options struct {
	// Title names the content in the status bar.
	Title string

	// FPS is the frame rate of the tick loop.
	FPS int

	// Supersample is the number of canvas pixels per terminal pixel edge.
	Supersample int

	// Renderer styles the output; the default renderer when nil.
	Renderer *lipgloss.Renderer
}

// events collects what the grid reports during Draw and Click. The model
// is copied on every Update, so it holds a pointer.
type events struct {
	hovered *render.HoverEvent
	clicked *render.ClickEvent
}

// Model is the Bubble Tea model of the grid view.
type Model struct {
	viewer    *viewer.Viewer
	presenter *Presenter
	opts      Options
	events    *events

	keys   GridKeyMap
	help   help.Model
	prompt textinput.Model

	styles    hudStyles
	width     int // terminal columns
	height    int // terminal rows
	frame     string
	pressed   bool
	prompting bool
	status    string
	quitting  bool
}

// NewModel creates the grid model for v, sized for a cols×rows terminal.
func NewModel(v *viewer.Viewer, cols, rows int, opts Options) Model {
	if opts.Supersample <= 0 {
		opts.Supersample = 1
	}
	ev := &events{}
	v.Grid().OnHover(func(e render.HoverEvent) {
		if e.Tile == nil {
			ev.hovered = nil
			return
		}
		ev.hovered = &e
	})
	v.Grid().OnClick(func(e render.ClickEvent) {
		ev.clicked = &e
	})

	prompt := textinput.New()
	prompt.Prompt = "go to x,y: "
	prompt.Placeholder = "12,-4"
	prompt.CharLimit = 32

	m := Model{
		viewer:    v,
		presenter: NewPresenter(opts.Renderer),
		opts:      opts,
		events:    ev,
		keys:      DefaultGridKeyMap(),
		help:      help.New(),
		prompt:    prompt,
		styles:    newHUDStyles(opts.Renderer),
	}
	m.resize(cols, rows)
	return m
}

// Init starts the frame loop.
func (m Model) Init() tea.Cmd {
	return tickCmd(m.opts.FPS)
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.prompting {
			return m.handlePrompt(msg)
		}
		return m.handleKey(msg)

	case tea.MouseMsg:
		m.handleMouse(tea.MouseEvent(msg))
		return m, nil

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case TickMsg:
		return m.handleTick(time.Time(msg))
	}
	return m, nil
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyEsc {
		m.events.clicked = nil
		m.help.ShowAll = false
		m.status = ""
		return m, nil
	}

	ctrl := m.viewer.Control()
	act := m.keys.MapKey(msg)
	switch act.Action {
	case ActionQuit:
		m.quitting = true
		return m, tea.Quit
	case ActionPan:
		ctrl.Nudge(act.DX, act.DY)
	case ActionZoom:
		ctrl.ClearFocus()
		ctrl.ZoomStep(act.Factor)
	case ActionReset:
		ctrl.Reset()
	case ActionGoTo:
		m.prompting = true
		m.prompt.SetValue("")
		return m, m.prompt.Focus()
	case ActionOpen:
		m.open()
	case ActionHelp:
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// handlePrompt feeds the go-to prompt until it is submitted or cancelled.
func (m Model) handlePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.prompting = false
		m.prompt.Blur()
		return m, nil
	case tea.KeyEnter:
		m.prompting = false
		m.prompt.Blur()
		t, err := core.ParseTile(m.prompt.Value())
		if err != nil {
			m.status = fmt.Sprintf("cannot go to %q", m.prompt.Value())
			return m, nil
		}
		ctrl := m.viewer.Control()
		ctrl.Interrupt()
		ctrl.Pan().Stop()
		m.viewer.Camera().GoTo(t)
		m.status = "at " + t.String()
		return m, nil
	}

	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// handleMouse translates terminal mouse events into pointer and wheel
// events in canvas pixels.
func (m *Model) handleMouse(e tea.MouseEvent) {
	now := time.Now()
	px, py := m.toCanvas(e.X, e.Y)
	controls := m.viewer.Controls()

	inside := e.Y < m.canvasRows()
	m.viewer.Grid().SetPointer(render.Pointer{X: px, Y: py, Present: inside, Hover: true})
	m.viewer.Invalidate()

	if e.IsWheel() {
		s := float64(wheelPixels * m.opts.Supersample)
		we := input.WheelEvent{X: px, Y: py, Time: now, Zoom: e.Ctrl || e.Alt}
		switch e.Button {
		case tea.MouseButtonWheelUp:
			we.DY = -s
		case tea.MouseButtonWheelDown:
			we.DY = s
		case tea.MouseButtonWheelLeft:
			we.DX = -s
		case tea.MouseButtonWheelRight:
			we.DX = s
		}
		if e.Shift && we.DX == 0 {
			we.DX, we.DY = we.DY, 0
		}
		if we.Zoom {
			we.DY = sign(we.DY+we.DX) * wheelZoomUnits
			we.DX = 0
		}
		controls.Wheel(we)
		return
	}

	pe := input.PointerEvent{X: px, Y: py, Time: now}
	switch e.Action {
	case tea.MouseActionPress:
		if e.Button != tea.MouseButtonLeft || !inside {
			return
		}
		m.pressed = true
		controls.PointerDown(pe)
	case tea.MouseActionMotion:
		if m.pressed {
			controls.PointerMove(pe)
		}
	case tea.MouseActionRelease:
		if !m.pressed {
			return
		}
		m.pressed = false
		controls.PointerUp(pe)
	}
}

// handleTick advances one frame.
func (m Model) handleTick(now time.Time) (tea.Model, tea.Cmd) {
	if m.viewer.Frame(now) || m.frame == "" {
		m.frame = m.presenter.Present(m.viewer.Canvas(), m.width, m.canvasRows(), m.opts.Supersample)
	}
	return m, tickCmd(m.opts.FPS)
}

// open clicks the hovered tile, or the tile at the centre without a pointer.
func (m *Model) open() {
	w, h := m.viewer.Size()
	px, py := float64(w)/2, float64(h)/2
	if p := m.viewer.Grid().Pointer(); p.Present {
		px, py = p.X, p.Y
	}
	if !m.viewer.Grid().Click(px, py, w, h, time.Now()) {
		m.status = "moving too fast"
	}
}

func (m *Model) resize(cols, rows int) {
	m.width, m.height = max(cols, 1), max(rows, hudRows+1)
	m.help.Width = m.width
	m.prompt.Width = max(m.width-len(m.prompt.Prompt)-1, 1)
	w, h := CanvasSize(m.width, m.canvasRows(), m.opts.Supersample)
	m.viewer.Resize(w, h)
	m.frame = ""
}

func (m Model) canvasRows() int {
	return max(m.height-hudRows, 1)
}

// toCanvas maps a terminal cell to the canvas pixel at its centre.
func (m Model) toCanvas(col, row int) (float64, float64) {
	s := float64(m.opts.Supersample)
	return (float64(col) + 0.5) * s, (float64(row)*2 + 1) * s
}

// View renders the canvas with the status bar below it.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	if m.help.ShowAll {
		b.WriteString(m.helpOverlay())
	} else {
		b.WriteString(m.frame)
	}
	b.WriteByte('\n')
	b.WriteString(m.statusLine())
	b.WriteByte('\n')

	switch {
	case m.prompting:
		b.WriteString(m.prompt.View())
	case m.events.clicked != nil:
		b.WriteString(m.detailLine(*m.events.clicked))
	default:
		b.WriteString(m.styles.help.Render(m.help.View(m.keys)))
	}
	return b.String()
}

// IsQuitting returns true if user requested to quit.
func (m Model) IsQuitting() bool {
	return m.quitting
}

// Run shows the grid of v in the terminal until the user quits.
func Run(v *viewer.Viewer, cols, rows int, opts Options) error {
	p := tea.NewProgram(
		NewModel(v, cols, rows, opts),
		tea.WithAltScreen(),
		tea.WithMouseAllMotion(),
	)
	_, err := p.Run()
	return err
}

func sign(v float64) float64 {
	switch {
	case v < 0:
		return -1
	case v > 0:
		return 1
	}
	return 0
}

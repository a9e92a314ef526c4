package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/tilegrid/internal/storage"
)

// Position browser layout constants
const (
	positionsMinHeight = 4
	positionsChrome    = 8 // title, borders and help
)

// PositionStore is the storage the position browser reads and edits.
type PositionStore interface {
	Positions() ([]storage.Position, error)
	ResetPosition(source string) error
}

// PositionsKeyMap defines the key bindings for the position browser.
type PositionsKeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Reset  key.Binding
	Reload key.Binding
	Quit   key.Binding
}

// ShortHelp returns key bindings for the short help view.
func (k PositionsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Reset, k.Reload, k.Quit}
}

// FullHelp returns key bindings for the full help view.
func (k PositionsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Reset, k.Reload, k.Quit},
	}
}

// DefaultPositionsKeyMap returns default key bindings.
func DefaultPositionsKeyMap() PositionsKeyMap {
	return PositionsKeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		Reset: key.NewBinding(
			key.WithKeys("d", "delete"),
			key.WithHelp("d", "forget position"),
		),
		Reload: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "reload"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// PositionsModel lists saved camera positions and lets the user forget them.
type PositionsModel struct {
	store     PositionStore
	positions []storage.Position
	table     table.Model
	help      help.Model
	keys      PositionsKeyMap
	err       error
	width     int
	height    int
	quitting  bool
}

// NewPositionsModel creates a position browser over store.
func NewPositionsModel(store PositionStore, width, height int) PositionsModel {
	m := PositionsModel{
		store:  store,
		keys:   DefaultPositionsKeyMap(),
		help:   help.New(),
		width:  width,
		height: height,
	}
	m.table = m.createTable()
	m.load()
	return m
}

// createTable creates the table sized for the current window.
func (m *PositionsModel) createTable() table.Model {
	columns := []table.Column{
		{Title: "Source", Width: 24},
		{Title: "X", Width: 10},
		{Title: "Y", Width: 10},
		{Title: "Zoom", Width: 6},
		{Title: "Updated", Width: 14},
	}

	// Give the source column whatever the numbers leave
	if extra := m.width - 4 - 6 - (24 + 10 + 10 + 6 + 14); extra > 0 {
		columns[0].Width += min(extra, 40)
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(max(m.height-positionsChrome, positionsMinHeight)),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return t
}

// load reads the positions from the store into the table.
func (m *PositionsModel) load() {
	m.positions, m.err = nil, nil
	if m.store != nil {
		m.positions, m.err = m.store.Positions()
	}

	rows := make([]table.Row, len(m.positions))
	for i, p := range m.positions {
		rows[i] = table.Row{
			p.Source,
			fmt.Sprintf("%.2f", p.X),
			fmt.Sprintf("%.2f", p.Y),
			fmt.Sprintf("%.0f", p.Zoom),
			p.UpdatedAt.Local().Format("Jan 02 15:04"),
		}
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

// Selected returns the position under the cursor.
func (m PositionsModel) Selected() (storage.Position, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.positions) {
		return storage.Position{}, false
	}
	return m.positions[i], true
}

// Init initializes the position browser.
func (m PositionsModel) Init() tea.Cmd {
	return nil
}

// Update handles messages for the position browser.
func (m PositionsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, m.keys.Reset):
			if p, ok := m.Selected(); ok && m.store != nil {
				if err := m.store.ResetPosition(p.Source); err != nil {
					m.err = err
					return m, nil
				}
				m.load()
			}
			return m, nil

		case key.Matches(msg, m.keys.Reload):
			m.load()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		cursor := m.table.Cursor()
		m.table = m.createTable()
		m.load()
		m.table.SetCursor(min(cursor, max(len(m.positions)-1, 0)))
		m.help.Width = msg.Width
		return m, nil
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the position browser.
func (m PositionsModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		MarginBottom(1)
	b.WriteString(titleStyle.Render(centerText("SAVED POSITIONS", m.width)))
	b.WriteString("\n\n")

	tableStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)
	b.WriteString(tableStyle.Render(m.renderTableContent()))
	b.WriteString("\n")

	if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	helpStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))
	b.WriteString(helpStyle.Render(m.help.View(m.keys)))

	return b.String()
}

// renderTableContent renders the table or empty message.
func (m PositionsModel) renderTableContent() string {
	if len(m.positions) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Italic(true).
			Padding(2, 4)
		return emptyStyle.Render("No positions saved yet.\nPan around a grid to remember where you were!")
	}

	return m.table.View()
}

// IsQuitting returns true if user wants to quit.
func (m PositionsModel) IsQuitting() bool {
	return m.quitting
}

// RunPositions runs the position browser.
func RunPositions(store PositionStore, width, height int) error {
	p := tea.NewProgram(
		NewPositionsModel(store, width, height),
		tea.WithAltScreen(),
	)
	_, err := p.Run()
	return err
}

func centerText(text string, width int) string {
	w := lipgloss.Width(text)
	if w >= width {
		return text
	}
	return strings.Repeat(" ", (width-w)/2) + text
}

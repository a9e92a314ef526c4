package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/tilegrid/internal/render"
)

// hudStyles contains the styles of the status bar and detail line.
type hudStyles struct {
	title     lipgloss.Style
	value     lipgloss.Style
	label     lipgloss.Style
	separator lipgloss.Style
	help      lipgloss.Style
	link      lipgloss.Style
	empty     lipgloss.Style
	status    lipgloss.Style
	overlay   lipgloss.Style
}

func newHUDStyles(r *lipgloss.Renderer) hudStyles {
	if r == nil {
		r = lipgloss.DefaultRenderer()
	}
	return hudStyles{
		title:     r.NewStyle().Foreground(lipgloss.Color("51")).Bold(true),
		value:     r.NewStyle().Foreground(lipgloss.Color("255")),
		label:     r.NewStyle().Foreground(lipgloss.Color("245")),
		separator: r.NewStyle().Foreground(lipgloss.Color("240")),
		help:      r.NewStyle().Foreground(lipgloss.Color("241")),
		link:      r.NewStyle().Foreground(lipgloss.Color("75")).Underline(true),
		empty:     r.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		status:    r.NewStyle().Foreground(lipgloss.Color("226")),
		overlay: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}

// statusLine shows the hovered tile, the camera and the latest status.
func (m Model) statusLine() string {
	s := m.styles
	sep := s.separator.Render(" │ ")
	cam := m.viewer.Camera()

	parts := make([]string, 0, 5)
	if m.opts.Title != "" {
		parts = append(parts, s.title.Render(m.opts.Title))
	}
	if h := m.events.hovered; h != nil {
		tile := s.label.Render("tile ") + s.value.Render(h.Tile.String())
		if h.Meta.Title != "" {
			tile += " " + s.value.Render(render.Truncate(h.Meta.Title, 32))
		}
		if h.Meta.Subtitle != "" {
			tile += " " + s.label.Render(render.Truncate(h.Meta.Subtitle, 24))
		}
		parts = append(parts, tile)
	}
	parts = append(parts,
		s.label.Render("centre ")+s.value.Render(cam.Center().String()),
		s.label.Render("zoom ")+s.value.Render(fmt.Sprintf("%.0f", cam.Zoom())),
	)
	if m.status != "" {
		parts = append(parts, s.status.Render(m.status))
	}
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, sep))
}

// detailLine describes the clicked tile.
func (m Model) detailLine(e render.ClickEvent) string {
	s := m.styles
	sep := s.separator.Render(" │ ")

	parts := []string{s.title.Render(e.Tile.String())}
	if !e.Published {
		parts = append(parts, s.empty.Render("empty"))
	} else {
		if e.Meta.Title != "" {
			parts = append(parts, s.value.Render(e.Meta.Title))
		}
		if e.Meta.Description != "" {
			parts = append(parts, s.label.Render(render.Truncate(e.Meta.Description, 60)))
		}
		if e.Meta.Link != "" {
			parts = append(parts, s.link.Render(e.Meta.Link))
		}
		if e.Meta.IsZero() {
			parts = append(parts, s.label.Render("published"))
		}
	}
	parts = append(parts, s.help.Render("esc close"))
	return lipgloss.NewStyle().MaxWidth(m.width).Render(strings.Join(parts, sep))
}

// helpOverlay places the full help over the canvas area.
func (m Model) helpOverlay() string {
	box := m.styles.overlay.Render(m.help.FullHelpView(m.keys.FullHelp()))
	return lipgloss.Place(m.width, m.canvasRows(), lipgloss.Center, lipgloss.Center, box)
}

package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/keelpm/keel/pkg/solve"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// PlanModel is the bubbletea model for browsing a resolved plan. The left
// pane lists chosen packages; the selected package's dependencies are shown
// below the list.
type PlanModel struct {
	Plan   *solve.Plan
	Cursor int
	Height int
	Offset int
}

// NewPlanModel creates a plan browser over the given plan.
func NewPlanModel(plan *solve.Plan) PlanModel {
	return PlanModel{Plan: plan, Height: 15}
}

func (m PlanModel) Init() tea.Cmd {
	return nil
}

func (m PlanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Plan.Packages)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m PlanModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Resolution Plan"))
	b.WriteString(" ")
	b.WriteString(listDimStyle.Render(strings.Join(m.Plan.Roots, " ")))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  q quit"))
	b.WriteString("\n\n")

	end := m.Offset + m.Height
	if end > len(m.Plan.Packages) {
		end = len(m.Plan.Packages)
	}

	for i := m.Offset; i < end; i++ {
		pkg := &m.Plan.Packages[i]

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		name := pkg.Key
		if pkg.Slot != "" {
			name += ":" + pkg.Slot
		}
		line := fmt.Sprintf("%s%-40s %s", cursor, name, pkg.Version)

		if i == m.Cursor {
			b.WriteString(listSelectedStyle.Render(line))
		} else {
			b.WriteString(listNormalStyle.Render(line))
		}
		b.WriteString("\n")
	}

	if len(m.Plan.Packages) > 0 {
		pkg := &m.Plan.Packages[m.Cursor]
		b.WriteString("\n")
		b.WriteString(listDimStyle.Render(strings.Repeat("─", 50)))
		b.WriteString("\n")
		b.WriteString(renderDeps("depends", pkg.Depends))
		b.WriteString(renderDeps("rdepends", pkg.RDepends))
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Plan.Packages))))

	return b.String()
}

func renderDeps(label string, deps []string) string {
	if len(deps) == 0 {
		return ""
	}
	labelStyle := lipgloss.NewStyle().Foreground(colorGray).Width(10)
	return labelStyle.Render(label) + " " + listDimStyle.Render(strings.Join(deps, "  ")) + "\n"
}

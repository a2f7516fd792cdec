package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pbaille/annot/internal/annotation"
)

var (
	activeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	inactiveStyle = lipgloss.NewStyle().Faint(true)
)

// renderTree prints every label with its sub-labels; keys active on id are
// marked with * and highlighted
func renderTree(s *annotation.Store, id, lang string) string {
	var sb strings.Builder
	for _, opt := range s.Taxonomy().Options() {
		sb.WriteString(renderLine(s.IsActive(id, opt.Key), "", opt.ID, opt.Label.In(lang), opt.Key))
		for _, sub := range opt.SubLabels {
			sb.WriteString(renderLine(s.IsActive(id, sub.Key), "  ", sub.ID, sub.Label.In(lang), sub.Key))
		}
	}
	return sb.String()
}

func renderLine(active bool, indent, id, display, key string) string {
	mark, style := " ", inactiveStyle
	if active {
		mark, style = "*", activeStyle
	}
	return fmt.Sprintf("%s%s %s\n", indent, mark, style.Render(fmt.Sprintf("%s %s (%s)", id, display, key)))
}

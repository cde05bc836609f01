package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"watchtrail/internal/core"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(22)
	valueStyle = lipgloss.NewStyle().Bold(true)
	boxStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder(), true).Padding(0, 1)
)

// RenderSummary formats a run summary and its largest groups for the terminal.
// top limits how many groups are listed; the noise group is always shown last.
func RenderSummary(summary *core.RunSummary, groups []core.GroupSummary, top int) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Watch history clusters"))
	b.WriteString("\n\n")

	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}

	row("Run", summary.RunID)
	row("Records", fmt.Sprintf("%d", summary.Content.Points))
	row("Content clusters", fmt.Sprintf("%d", summary.Content.Clusters))
	row("Content noise", fmt.Sprintf("%d (%.1f%%)", summary.Content.Noise, pct(summary.Content.Noise, summary.Content.Points)))
	row("Time clusters", fmt.Sprintf("%d", summary.Time.Clusters))
	row("Time noise", fmt.Sprintf("%d (%.1f%%)", summary.Time.Noise, pct(summary.Time.Noise, summary.Time.Points)))
	if summary.Silhouette != 0 {
		row("Silhouette", fmt.Sprintf("%.3f", summary.Silhouette))
	}

	if len(groups) > 0 {
		b.WriteString("\n")
		var listed []core.GroupSummary
		var noise *core.GroupSummary
		for i := range groups {
			if groups[i].Name == NoiseGroupName {
				noise = &groups[i]
				continue
			}
			if top <= 0 || len(listed) < top {
				listed = append(listed, groups[i])
			}
		}
		if noise != nil {
			listed = append(listed, *noise)
		}
		for _, g := range listed {
			swatch := lipgloss.NewStyle().Foreground(lipgloss.Color(g.Color)).Render("●")
			b.WriteString(fmt.Sprintf("%s %-16s %d\n", swatch, g.Name, g.Count))
		}
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(part) / float64(total)
}

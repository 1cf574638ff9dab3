package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/airlift-cli/airlift/internal/orchestrator"
)

var (
	summaryTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#5B8DEF"))
	taskStyle = lipgloss.NewStyle().
			Bold(true)
	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#2ECC71"))
	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
	skipStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#AAAAAA"))
	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888"))
	summaryBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

// renderReport formats the per-job summary printed after every run,
// successful or not.
func renderReport(report *orchestrator.Report) string {
	lines := []string{summaryTitleStyle.Render("Run summary")}
	for _, task := range report.Tasks {
		header := fmt.Sprintf("%s · %s", task.Key, task.State)
		if len(task.BlockedBy) > 0 {
			header += fmt.Sprintf(" (blocked by %s)", strings.Join(task.BlockedBy, ", "))
		}
		lines = append(lines, taskStyle.Render(header))
		for _, job := range task.Jobs {
			lines = append(lines, renderJobLine(job))
		}
	}
	return summaryBoxStyle.Render(strings.Join(lines, "\n"))
}

func renderJobLine(job orchestrator.JobResult) string {
	line := fmt.Sprintf("%s %s (%s)", stateGlyph(job.State), job.JobKey, job.PackageName)
	if job.Duration > 0 {
		line += fmt.Sprintf(" · %s", job.Duration.Round(time.Millisecond))
	}
	if job.Detail != "" {
		line += "\n    " + detailStyle.Render(job.Detail)
	}
	return "  " + line
}

func stateGlyph(state orchestrator.JobState) string {
	switch state {
	case orchestrator.JobStateBuilt, orchestrator.JobStatePublished:
		return okStyle.Render("✓") + " " + string(state)
	case orchestrator.JobStateBuildFailed, orchestrator.JobStatePublishFailed:
		return failStyle.Render("✗") + " " + string(state)
	case orchestrator.JobStateSkipped:
		return skipStyle.Render("·") + " " + string(state)
	default:
		return string(state)
	}
}

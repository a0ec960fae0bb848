package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"forkcrawl/pkg/crawler"
)

// maxProjectRows bounds the projects panel; finished rows scroll off first
const maxProjectRows = 12

// View renders the entire TUI
func (m *Model) View() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, m.renderLogo())

	mainContent := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderLeftColumn(),
		"  ",
		m.renderRightColumn(),
	)
	sections = append(sections, mainContent)

	if m.showHelp {
		sections = append(sections, m.renderHelp())
	} else {
		sections = append(sections, helpStyle.Render("Press ? for help • q to stop"))
	}

	return baseStyle.Width(m.width).Height(m.height).Render(
		lipgloss.JoinVertical(lipgloss.Left, sections...),
	)
}

func (m *Model) renderLogo() string {
	logo := `
╔═════════════════════════════════════════════════╗
║  F O R K C R A W L   ::   fork event collector  ║
╚═════════════════════════════════════════════════╝`

	return logoStyle.Width(m.width).Render(logo)
}

func (m *Model) renderLeftColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderStatsPanel(width),
		m.renderProjectsPanel(width),
	)
}

func (m *Model) renderRightColumn() string {
	width := (m.width - 4) / 2

	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderRateLimitPanel(width),
		m.renderLogsPanel(width),
	)
}

func (m *Model) renderStatsPanel(width int) string {
	title := titleStyle.Render(" RUN ")
	c := m.countsLocked()

	stats := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Elapsed:"), statsValueStyle.Render(formatDuration(time.Since(m.sessionStartTime)))),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Projects:"), statsValueStyle.Render(fmt.Sprintf("%d/%d", c.Completed+c.Skipped+c.Deferred, m.total))),
		fmt.Sprintf("%s %s %s %s",
			statsLabelStyle.Render("Done:"),
			successStyle.Render(fmt.Sprintf("%d completed", c.Completed)),
			queueItemCompletedStyle.Render(fmt.Sprintf("%d skipped", c.Skipped)),
			errorStyle.Render(fmt.Sprintf("%d deferred", c.Deferred)),
		),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Pages fetched:"), statsValueStyle.Render(FormatCount(m.pages))),
		m.progressBar.View(),
	}

	if m.current != "" {
		stats = append(stats, fmt.Sprintf("%s %s", m.spinner.View(), queueItemActiveStyle.Render(m.current)))
	}
	if m.summary != nil {
		stats = append(stats, successStyle.Render("■ run finished"))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, stats...)),
	)
}

func (m *Model) renderProjectsPanel(width int) string {
	title := titleStyle.Render(" PROJECTS ")

	rows := m.rowsLocked()
	if len(rows) == 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("Waiting for the first project...")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	start := 0
	if len(rows) > maxProjectRows {
		start = len(rows) - maxProjectRows
	}

	var lines []string
	if start > 0 {
		lines = append(lines, lipgloss.NewStyle().Foreground(dimWhite).Render(fmt.Sprintf("  ... %d earlier", start)))
	}
	for _, row := range rows[start:] {
		lines = append(lines, renderProjectRow(row, width-6))
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, lipgloss.JoinVertical(lipgloss.Left, lines...)),
	)
}

func renderProjectRow(row ProjectRow, width int) string {
	icon, style := stateIcon(row)

	name := row.Project
	if maxName := width - 30; maxName > 3 && len(name) > maxName {
		name = name[:maxName-3] + "..."
	}

	detail := fmt.Sprintf("p%-4d %6s in window %7s total", row.Page, FormatCount(row.InRange), FormatCount(row.AllTime))
	return style.Render(fmt.Sprintf("%s %s", icon, name)) + "  " + logMessageStyle.Render(detail)
}

func stateIcon(row ProjectRow) (string, lipgloss.Style) {
	switch {
	case row.Skipped:
		return "=", queueItemCompletedStyle
	case row.State == crawler.StateCompleted:
		return "✓", successStyle
	case row.State == crawler.StateDeferred:
		return "✗", errorStyle
	case row.State == crawler.StateInterrupted:
		return "⏸", warningStyle
	default:
		return "›", queueItemActiveStyle
	}
}

func (m *Model) renderRateLimitPanel(width int) string {
	title := titleStyle.Render(" RATE LIMIT ")
	q := m.quota

	if q.Credential == "" || q.Remaining < 0 || q.Limit <= 0 {
		content := lipgloss.NewStyle().Foreground(dimWhite).Render("No quota reported yet")
		return panelStyle.Width(width).Render(lipgloss.JoinVertical(lipgloss.Left, title, content))
	}

	used := q.Limit - q.Remaining
	usage := float64(used) / float64(q.Limit) * 100

	barWidth := width - 8
	if barWidth < 1 {
		barWidth = 1
	}
	filled := int(usage * float64(barWidth) / 100)
	if filled > barWidth {
		filled = barWidth
	}
	barStyle := GetRateLimitStyle(usage)
	bar := barStyle.Render(strings.Repeat("█", filled)) +
		progressEmptyStyle.Render(strings.Repeat("░", barWidth-filled))

	resetIn := time.Until(q.ResetAt)
	if resetIn < 0 {
		resetIn = 0
	}

	content := []string{
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Credential:"), statsValueStyle.Render(q.Credential)),
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Remaining:"),
			barStyle.Render(fmt.Sprintf("%d/%d (%.0f%% used)", q.Remaining, q.Limit, usage))),
		bar,
		fmt.Sprintf("%s %s", statsLabelStyle.Render("Reset in:"), statsValueStyle.Render(formatDuration(resetIn))),
	}

	return panelStyle.Width(width).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(content, "\n")),
	)
}

func (m *Model) renderLogsPanel(width int) string {
	title := titleStyle.Render(" LOG ")

	start := len(m.logMessages) - 10
	if start < 0 {
		start = 0
	}

	maxMsgLen := width - 25
	var logs []string
	for _, entry := range m.logMessages[start:] {
		timestamp := logTimestampStyle.Render(entry.Time.Format("15:04:05"))
		level := lipgloss.NewStyle().Foreground(entry.Color).Bold(true).Render(fmt.Sprintf("[%-7s]", entry.Level))

		text := entry.Message
		if maxMsgLen > 3 && len(text) > maxMsgLen {
			text = text[:maxMsgLen-3] + "..."
		}
		logs = append(logs, fmt.Sprintf("%s %s %s", timestamp, level, logMessageStyle.Render(text)))
	}

	content := strings.Join(logs, "\n")
	if content == "" {
		content = lipgloss.NewStyle().Foreground(dimWhite).Render("No logs yet...")
	}

	logsHeight := m.height - 30
	if logsHeight < 5 {
		logsHeight = 5
	}

	return panelStyle.Width(width).Height(logsHeight).Render(
		lipgloss.JoinVertical(lipgloss.Left, title, content),
	)
}

func (m *Model) renderHelp() string {
	help := `
  Keys:
    q/Q      - Stop the crawl (progress is checkpointed)
    ctrl+l   - Clear the log panel
    ?        - Toggle this help

  Projects:
    ` + successStyle.Render("✓") + `        - Completed
    ` + queueItemCompletedStyle.Render("=") + `        - Already complete, skipped
    ` + errorStyle.Render("✗") + `        - Deferred, rerun to retry
    ` + warningStyle.Render("⏸") + `        - Interrupted
    ` + queueItemActiveStyle.Render("›") + `        - In progress
`

	return panelStyle.Width(m.width).Render(help)
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		return "00:00"
	}

	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}

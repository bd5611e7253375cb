package monitor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/internal/utils"
)

// Styles with adaptive colors for light/dark backgrounds
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			MarginLeft(2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"})

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "160", Dark: "9"}).
			Bold(true)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "34", Dark: "10"}).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "130", Dark: "214"})

	spinnerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"})

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "205"}).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "250"}).
				Padding(0, 1)

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.AdaptiveColor{Light: "63", Dark: "63"}).
			Padding(1, 2)
)

// View renders the monitor
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("⬇ downlodr") + "  " + m.viewStats() + "\n\n")
	b.WriteString(m.viewTabs() + "\n\n")

	if m.adding {
		b.WriteString(m.viewAdd())
	} else {
		b.WriteString(m.viewList())
	}

	if m.notice != nil {
		b.WriteString("\n" + renderNotice(*m.notice))
	}

	// Add status/error messages
	if m.errorMessage != "" {
		b.WriteString("\n" + errorStyle.Render("Error: "+m.errorMessage))
	} else if m.statusMessage != "" {
		b.WriteString("\n" + successStyle.Render(m.statusMessage))
	}

	if m.loading {
		b.WriteString("\n" + m.spinner.View() + " Loading...")
	}

	help := "\n\n" + helpStyle.Render(
		"  tab switch • ↑/k up • ↓/j down • p pause/resume • s stop • x remove • a add • S stop all • r refresh • q quit",
	)
	return b.String() + help
}

func (m Model) viewStats() string {
	if m.stats == nil {
		return ""
	}
	workers := fmt.Sprintf("%d/%d workers", m.stats.Running, m.stats.Ceiling)
	if m.stats.Unlimited {
		workers = fmt.Sprintf("%d workers (unlimited)", m.stats.Running)
	}
	return helpStyle.Render(workers)
}

func (m Model) viewTabs() string {
	rendered := make([]string, 0, len(tabs))
	for i, tab := range tabs {
		label := fmt.Sprintf("%s (%d)", tab, len(m.downloads[tab]))
		if i == m.tab {
			rendered = append(rendered, activeTabStyle.Render(label))
		} else {
			rendered = append(rendered, inactiveTabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, rendered...)
}

func (m Model) viewList() string {
	list := m.visible()
	if len(list) == 0 {
		return "  No downloads in " + m.currentTab() + ". Press 'a' to add a URL.\n"
	}

	var b strings.Builder
	for i, dl := range list {
		cursor := "  "
		if i == m.cursor {
			cursor = "▸ "
		}

		b.WriteString(fmt.Sprintf("  %s%s %s\n", cursor, statusIcon(dl.Status), truncate(dl.DisplayName, 60)))

		switch dl.Status {
		case domain.StatusDownloading, domain.StatusPaused:
			line := "     " + m.bar.ViewAs(dl.Progress/100)
			if dl.Speed != "" {
				line += "  " + dl.Speed
			}
			if dl.ETA != "" {
				line += "  ETA " + dl.ETA
			}
			b.WriteString(line + "\n")
		case domain.StatusFailed, domain.StatusCancelled:
			if dl.ErrorMessage != "" {
				b.WriteString("     " + errorStyle.Render(truncate(dl.ErrorMessage, 70)) + "\n")
			}
		}

		if i == m.cursor {
			b.WriteString(helpStyle.Render(fmt.Sprintf("     %s • %s", dl.Status, describe(dl))) + "\n")
		}
	}
	return b.String()
}

func (m Model) viewAdd() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Add URL") + "\n\n")
	b.WriteString("  " + m.urlInput.View() + "\n\n")
	b.WriteString(helpStyle.Render("  Enter resolve • Esc cancel"))
	return boxStyle.Render(b.String()) + "\n"
}

func renderNotice(n domain.Notice) string {
	text := fmt.Sprintf("%s %s: %s", n.Time.Format("15:04:05"), n.Title, truncate(n.Message, 80))
	switch n.Level {
	case domain.NoticeError:
		return errorStyle.Render(text)
	case domain.NoticeWarning:
		return warningStyle.Render(text)
	}
	return helpStyle.Render(text)
}

func statusIcon(s domain.DownloadStatus) string {
	switch s {
	case domain.StatusFetchingMetadata:
		return "🔎"
	case domain.StatusQueued:
		return "⏳"
	case domain.StatusInitializing:
		return "⚙"
	case domain.StatusDownloading:
		return "⬇"
	case domain.StatusPaused:
		return "⏸"
	case domain.StatusFinished:
		return "✓"
	case domain.StatusFailed:
		return "✗"
	case domain.StatusCancelled:
		return "⊘"
	}
	return "?"
}

func describe(dl *domain.Download) string {
	parts := []string{}
	if dl.FileName != "" {
		parts = append(parts, dl.FileName)
	}
	if dl.SizeBytes > 0 {
		parts = append(parts, utils.HumanBytes(dl.SizeBytes))
	}
	if len(dl.Tags) > 0 {
		parts = append(parts, "#"+strings.Join(dl.Tags, " #"))
	}
	if len(parts) == 0 {
		return dl.URL
	}
	return strings.Join(parts, " • ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

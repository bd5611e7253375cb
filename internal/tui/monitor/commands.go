package monitor

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/pkg/client"
)

// pollInterval is how often the daemon is polled
const pollInterval = time.Second

// Async commands that return tea.Msg

func tick() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func refresh(d Daemon) tea.Cmd {
	return func() tea.Msg {
		downloads := make(map[string][]*domain.Download, len(tabs))
		for _, tab := range tabs {
			list, err := d.List(tab, 0)
			if err != nil {
				return refreshedMsg{err: err}
			}
			downloads[tab] = list
		}

		stats, err := d.GetStats()
		if err != nil {
			return refreshedMsg{err: err}
		}
		return refreshedMsg{downloads: downloads, stats: stats}
	}
}

func fetchNotices(d Daemon, after uint64) tea.Cmd {
	return func() tea.Msg {
		notices, err := d.Notices(after)
		return noticesMsg{notices: notices, err: err}
	}
}

func pauseOrResume(d Daemon, dl *domain.Download) tea.Cmd {
	id, status := dl.ID, dl.Status
	return func() tea.Msg {
		if status == domain.StatusPaused {
			return actionDoneMsg{status: "✓ Resumed " + id, err: d.Resume(id)}
		}
		return actionDoneMsg{status: "✓ Paused " + id, err: d.Pause(id)}
	}
}

func stopDownload(d Daemon, id string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{status: "✓ Stopped " + id, err: d.Stop(id)}
	}
}

func removeDownload(d Daemon, id string) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{status: "✓ Removed " + id, err: d.Remove(id, false)}
	}
}

func stopAll(d Daemon) tea.Cmd {
	return func() tea.Msg {
		result, err := d.StopAll()
		if err != nil {
			return actionDoneMsg{err: err}
		}
		if len(result.Failed) > 0 {
			return actionDoneMsg{err: fmt.Errorf("%d download(s) could not be stopped", len(result.Failed))}
		}
		return actionDoneMsg{status: fmt.Sprintf("✓ Stopped %d download(s)", len(result.Succeeded))}
	}
}

func addURL(d Daemon, url string) tea.Cmd {
	return func() tea.Msg {
		dl, err := d.Add(&client.AddPayload{URL: url})
		if err != nil {
			return actionDoneMsg{err: err}
		}
		return actionDoneMsg{status: "✓ Resolving " + dl.URL}
	}
}

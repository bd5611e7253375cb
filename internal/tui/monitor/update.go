package monitor

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.adding {
			return m.handleAddKeys(msg)
		}
		// Clear previous messages on keypress
		m.errorMessage = ""
		m.statusMessage = ""
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if w := msg.Width / 4; w > 10 {
			m.bar.Width = w
		}
		return m, nil

	case tickMsg:
		return m, tea.Batch(refresh(m.daemon), fetchNotices(m.daemon, m.lastSeq), tick())

	case refreshedMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
			return m, nil
		}
		m.downloads = msg.downloads
		m.stats = msg.stats
		m.clampCursor()
		return m, nil

	case noticesMsg:
		if msg.err != nil || len(msg.notices) == 0 {
			return m, nil
		}
		last := msg.notices[len(msg.notices)-1]
		m.lastSeq = last.Seq
		m.notice = &last
		return m, nil

	case actionDoneMsg:
		m.loading = false
		if msg.err != nil {
			m.errorMessage = msg.err.Error()
		} else {
			m.statusMessage = msg.status
		}
		return m, refresh(m.daemon)

	case spinner.TickMsg:
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// cursor blink
	if m.adding {
		m.urlInput, cmd = m.urlInput.Update(msg)
		return m, cmd
	}
	return m, nil
}

// handleKeyPress handles keys in the collection view
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, keys.Tab):
		m.tab = (m.tab + 1) % len(tabs)
		m.cursor = 0
		return m, nil

	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.visible())-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, keys.Refresh):
		m.loading = true
		return m, refresh(m.daemon)

	case key.Matches(msg, keys.Add):
		m.adding = true
		m.urlInput.SetValue("")
		m.urlInput.Focus()
		return m, textinput.Blink

	case key.Matches(msg, keys.StopAll):
		m.loading = true
		return m, stopAll(m.daemon)
	}

	dl := m.selected()
	if dl == nil {
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Pause):
		if m.currentTab() != "active" {
			m.errorMessage = "Only active downloads can be paused"
			return m, nil
		}
		m.loading = true
		return m, pauseOrResume(m.daemon, dl)

	case key.Matches(msg, keys.Stop):
		if m.currentTab() != "queued" && m.currentTab() != "active" {
			m.errorMessage = "Only queued or active downloads can be stopped"
			return m, nil
		}
		m.loading = true
		return m, stopDownload(m.daemon, dl.ID)

	case key.Matches(msg, keys.Remove):
		if m.currentTab() == "history" {
			m.errorMessage = "Use 'dlr history-rm' for history entries"
			return m, nil
		}
		m.loading = true
		return m, removeDownload(m.daemon, dl.ID)
	}

	return m, nil
}

// handleAddKeys handles keys while the URL prompt is open
func (m Model) handleAddKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.adding = false
		m.urlInput.Blur()
		return m, nil

	case tea.KeyEnter:
		url := strings.TrimSpace(m.urlInput.Value())
		if url == "" {
			m.errorMessage = "URL is required"
			return m, nil
		}
		m.adding = false
		m.urlInput.Blur()
		m.loading = true
		return m, addURL(m.daemon, url)
	}

	var cmd tea.Cmd
	m.urlInput, cmd = m.urlInput.Update(msg)
	return m, cmd
}

func (m *Model) clampCursor() {
	if n := len(m.visible()); m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

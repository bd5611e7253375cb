package monitor

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/pkg/client"
)

// Daemon is the subset of the socket client the monitor needs
type Daemon interface {
	List(collection string, limit int) ([]*domain.Download, error)
	GetStats() (*client.Stats, error)
	Notices(after uint64) ([]domain.Notice, error)
	Add(payload *client.AddPayload) (*domain.Download, error)
	Pause(id string) error
	Resume(id string) error
	Stop(id string) error
	Remove(id string, deleteFile bool) error
	StopAll() (*domain.BatchResult, error)
}

// tabs in display order
var tabs = []string{"queued", "active", "finished", "history"}

type keyMap struct {
	Quit    key.Binding
	Tab     key.Binding
	Up      key.Binding
	Down    key.Binding
	Pause   key.Binding
	Stop    key.Binding
	Remove  key.Binding
	Add     key.Binding
	StopAll key.Binding
	Refresh key.Binding
}

var keys = keyMap{
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	Tab:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "switch")),
	Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	Pause:   key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause/resume")),
	Stop:    key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
	Remove:  key.NewBinding(key.WithKeys("x"), key.WithHelp("x", "remove")),
	Add:     key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add url")),
	StopAll: key.NewBinding(key.WithKeys("S"), key.WithHelp("S", "stop all")),
	Refresh: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "refresh")),
}

// Model is the Bubbletea model for the download monitor
type Model struct {
	// Navigation
	tab      int
	cursor   int
	width    int
	height   int
	quitting bool
	adding   bool

	// Dependencies
	daemon Daemon

	// State
	downloads map[string][]*domain.Download
	stats     *client.Stats
	lastSeq   uint64
	notice    *domain.Notice

	// Components
	urlInput textinput.Model
	spinner  spinner.Model
	bar      progress.Model

	// UI state
	loading       bool
	statusMessage string
	errorMessage  string
}

// NewModel creates a new monitor model
func NewModel(d Daemon) Model {
	urlInput := textinput.New()
	urlInput.Placeholder = "https://..."
	urlInput.CharLimit = 2048
	urlInput.Width = 60

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(24))

	return Model{
		tab:       1,
		daemon:    d,
		downloads: make(map[string][]*domain.Download),
		urlInput:  urlInput,
		spinner:   s,
		bar:       bar,
		loading:   true,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		refresh(m.daemon),
		fetchNotices(m.daemon, 0),
		m.spinner.Tick,
		tick(),
	)
}

// Run opens the monitor on the alternate screen until the user quits
func Run(d Daemon) error {
	_, err := tea.NewProgram(NewModel(d), tea.WithAltScreen()).Run()
	return err
}

func (m Model) currentTab() string {
	return tabs[m.tab]
}

func (m Model) visible() []*domain.Download {
	return m.downloads[m.currentTab()]
}

func (m Model) selected() *domain.Download {
	list := m.visible()
	if m.cursor < 0 || m.cursor >= len(list) {
		return nil
	}
	return list[m.cursor]
}

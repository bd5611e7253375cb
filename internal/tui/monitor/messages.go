package monitor

import (
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/pkg/client"
)

// Message types for async operations

type tickMsg time.Time

type refreshedMsg struct {
	downloads map[string][]*domain.Download
	stats     *client.Stats
	err       error
}

type noticesMsg struct {
	notices []domain.Notice
	err     error
}

type actionDoneMsg struct {
	status string
	err    error
}

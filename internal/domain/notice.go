package domain

import "time"

// NoticeLevel indica la severidad de un aviso
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

func (l NoticeLevel) rank() int {
	switch l {
	case NoticeWarning:
		return 1
	case NoticeError:
		return 2
	}
	return 0
}

// AtLeast reporta si el nivel es igual o más grave que min
func (l NoticeLevel) AtLeast(min NoticeLevel) bool {
	return l.rank() >= min.rank()
}

// Notice es un aviso visible para el usuario
type Notice struct {
	Seq      uint64      `json:"seq"`
	Time     time.Time   `json:"time"`
	Level    NoticeLevel `json:"level"`
	Code     string      `json:"code,omitempty"`
	Title    string      `json:"title"`
	Message  string      `json:"message"`
	RecordID string      `json:"record_id,omitempty"`
}

// PersistedState es el subconjunto del estado que sobrevive reinicios
type PersistedState struct {
	History    []*Download `json:"history"`
	Tags       []string    `json:"tags"`
	Categories []string    `json:"categories"`
}

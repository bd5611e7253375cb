package daemon

import (
	"log"
	"os/exec"
	"sync"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
)

// Notifier entrega avisos fuera del daemon
type Notifier interface {
	Notify(n domain.Notice)
}

// DesktopNotifier usa notify-send en Desktop Linux
type DesktopNotifier struct {
	// MinLevel filtra los avisos menos graves; vacío = todos
	MinLevel domain.NoticeLevel
}

func (d DesktopNotifier) accepts(n domain.Notice) bool {
	return n.Level.AtLeast(d.MinLevel)
}

// Notify lanza notify-send sin bloquear al que llama
func (d DesktopNotifier) Notify(n domain.Notice) {
	if !d.accepts(n) {
		return
	}
	go func() {
		args := []string{"-a", "downlodr"}
		if n.Level == domain.NoticeError {
			args = append(args, "-u", "critical")
		}
		args = append(args, n.Title, n.Message)
		if err := exec.Command("notify-send", args...).Run(); err != nil {
			log.Printf("Failed to send notification: %v", err)
		}
	}()
}

// LogNotifier solo escribe el aviso en el log
type LogNotifier struct{}

func (LogNotifier) Notify(n domain.Notice) {
	log.Printf("[%s] %s: %s", n.Level, n.Title, n.Message)
}

// MultiNotifier reparte cada aviso entre varios notifiers
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(n domain.Notice) {
	for _, x := range m {
		x.Notify(n)
	}
}

// DefaultNoticeCapacity es cuántos avisos se retienen en memoria
const DefaultNoticeCapacity = 200

// NoticeLog es un buffer circular de avisos con cursor por Seq
type NoticeLog struct {
	mu       sync.Mutex
	capacity int
	seq      uint64
	items    []domain.Notice
	now      func() time.Time
}

// NewNoticeLog crea un log con la capacidad dada
func NewNoticeLog(capacity int) *NoticeLog {
	if capacity <= 0 {
		capacity = DefaultNoticeCapacity
	}
	return &NoticeLog{capacity: capacity, now: time.Now}
}

// Add asigna Seq y Time al aviso y lo guarda
func (l *NoticeLog) Add(n domain.Notice) domain.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	n.Seq = l.seq
	if n.Time.IsZero() {
		n.Time = l.now()
	}
	l.items = append(l.items, n)
	if len(l.items) > l.capacity {
		l.items = append([]domain.Notice(nil), l.items[len(l.items)-l.capacity:]...)
	}
	return n
}

// After retorna los avisos con Seq mayor a seq
func (l *NoticeLog) After(seq uint64) []domain.Notice {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []domain.Notice{}
	for _, n := range l.items {
		if n.Seq > seq {
			out = append(out, n)
		}
	}
	return out
}

// Last retorna el Seq del último aviso
func (l *NoticeLog) Last() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.seq
}

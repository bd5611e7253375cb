package client

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/elsanchez/downlodr/internal/domain"
)

// SocketName es el nombre del socket dentro de XDG_RUNTIME_DIR
const SocketName = "downlodr.sock"

// GetDefaultSocketPath retorna el path del socket usando XDG_RUNTIME_DIR
// Desktop Linux con systemd siempre tiene esta variable
func GetDefaultSocketPath() string {
	runtimeDir := os.Getenv("XDG_RUNTIME_DIR")
	if runtimeDir == "" {
		// Fallback: construir con UID (aunque no debería ocurrir en desktop Linux moderno)
		uid := os.Getuid()
		runtimeDir = fmt.Sprintf("/run/user/%d", uid)
	}

	return filepath.Join(runtimeDir, SocketName)
}

// Client representa un cliente del daemon
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient crea un cliente con socket path personalizado
func NewClient(socketPath string) *Client {
	return &Client{socketPath: socketPath}
}

// NewDefaultClient crea un cliente con el socket path por defecto
func NewDefaultClient() *Client {
	return &Client{socketPath: GetDefaultSocketPath()}
}

// WithTimeout fija un deadline por petición (0 = sin deadline)
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.timeout = d
	return c
}

// Request representa una petición al daemon
type Request struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

// Response representa una respuesta del daemon
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// APIError es un error reportado por el daemon
type APIError struct {
	Action  string
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" && e.Code != "internal" {
		return fmt.Sprintf("%s failed: %s (%s)", e.Action, e.Message, e.Code)
	}
	return fmt.Sprintf("%s failed: %s", e.Action, e.Message)
}

// Send envía una petición al daemon y retorna la respuesta
func (c *Client) Send(req *Request) (*Response, error) {
	// Conectar al socket
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w (is daemon running?)", err)
	}
	defer conn.Close()

	if c.timeout > 0 {
		conn.SetDeadline(time.Now().Add(c.timeout))
	}

	// Enviar request
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	// Leer response
	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	return &resp, nil
}

// call envía action con payload y decodifica data en out (si no es nil)
func (c *Client) call(action string, payload interface{}, out interface{}) error {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		raw = data
	}

	resp, err := c.Send(&Request{Action: action, Payload: raw})
	if err != nil {
		return err
	}
	if !resp.Success {
		return &APIError{Action: action, Code: resp.Code, Message: resp.Error}
	}
	if out == nil || len(resp.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Ping verifica que el daemon responda y retorna su versión
func (c *Client) Ping() (string, error) {
	var result struct {
		Version string `json:"version"`
	}
	err := c.call("ping", nil, &result)
	return result.Version, err
}

// AddPayload representa el payload para añadir una descarga
type AddPayload struct {
	URL        string   `json:"url"`
	Location   string   `json:"location,omitempty"`
	RateLimit  string   `json:"rate_limit,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Wait       bool     `json:"wait,omitempty"`
}

// Add resuelve una URL y la encola
func (c *Client) Add(payload *AddPayload) (*domain.Download, error) {
	var dl domain.Download
	if err := c.call("add", payload, &dl); err != nil {
		return nil, err
	}
	return &dl, nil
}

// Status obtiene una descarga y la colección donde está
func (c *Client) Status(id string) (*domain.Download, string, error) {
	var result struct {
		Download   *domain.Download `json:"download"`
		Collection string           `json:"collection"`
	}
	if err := c.call("status", map[string]string{"id": id}, &result); err != nil {
		return nil, "", err
	}
	return result.Download, result.Collection, nil
}

// List lista una colección (queued, active, finished, history)
func (c *Client) List(collection string, limit int) ([]*domain.Download, error) {
	var result struct {
		Downloads []*domain.Download `json:"downloads"`
	}
	payload := map[string]interface{}{"collection": collection, "limit": limit}
	if err := c.call("list", payload, &result); err != nil {
		return nil, err
	}
	return result.Downloads, nil
}

// History lista el historial completo
func (c *Client) History() ([]*domain.Download, error) {
	var result struct {
		Downloads []*domain.Download `json:"downloads"`
	}
	if err := c.call("history", nil, &result); err != nil {
		return nil, err
	}
	return result.Downloads, nil
}

// Stats resume el estado del daemon
type Stats struct {
	Queued     int            `json:"queued"`
	Active     int            `json:"active"`
	Finished   int            `json:"finished"`
	History    int            `json:"history"`
	Running    int            `json:"running"`
	Ceiling    int            `json:"ceiling"`
	Unlimited  bool           `json:"unlimited"`
	ByStatus   map[string]int `json:"by_status"`
	Tags       int            `json:"tags"`
	Categories int            `json:"categories"`
}

// GetStats obtiene las estadísticas de la cola
func (c *Client) GetStats() (*Stats, error) {
	var stats Stats
	if err := c.call("stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) byID(action, id string) error {
	return c.call(action, map[string]string{"id": id}, nil)
}

// Pause pausa una descarga activa
func (c *Client) Pause(id string) error { return c.byID("pause", id) }

// Resume reanuda una descarga pausada
func (c *Client) Resume(id string) error { return c.byID("resume", id) }

// Stop quita una descarga encolada o activa
func (c *Client) Stop(id string) error { return c.byID("stop", id) }

// RemoveHistory borra una entrada del historial
func (c *Client) RemoveHistory(id string) error { return c.byID("remove_history", id) }

// Remove quita una descarga de cualquier colección operativa
func (c *Client) Remove(id string, deleteFile bool) error {
	return c.call("remove", map[string]interface{}{"id": id, "delete_file": deleteFile}, nil)
}

func (c *Client) batch(action string, payload interface{}) (*domain.BatchResult, error) {
	var result domain.BatchResult
	if err := c.call(action, payload, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopSelected detiene varias descargas
func (c *Client) StopSelected(ids []string) (*domain.BatchResult, error) {
	return c.batch("stop_selected", map[string]interface{}{"ids": ids})
}

// RemoveSelected quita varias descargas
func (c *Client) RemoveSelected(ids []string, deleteFile bool) (*domain.BatchResult, error) {
	return c.batch("remove_selected", map[string]interface{}{"ids": ids, "delete_file": deleteFile})
}

// StopAll detiene todo lo encolado y activo
func (c *Client) StopAll() (*domain.BatchResult, error) { return c.batch("stop_all", nil) }

// PauseAll pausa todas las descargas en curso
func (c *Client) PauseAll() (*domain.BatchResult, error) { return c.batch("pause_all", nil) }

// ResumeAll reanuda todas las descargas pausadas
func (c *Client) ResumeAll() (*domain.BatchResult, error) { return c.batch("resume_all", nil) }

// ClearHistory vacía el historial
func (c *Client) ClearHistory() (int, error) {
	var result struct {
		Removed int `json:"removed"`
	}
	err := c.call("clear_history", nil, &result)
	return result.Removed, err
}

// Rename renombra una descarga encolada
func (c *Client) Rename(id, name string) error {
	return c.call("rename", map[string]string{"id": id, "name": name}, nil)
}

// SetEncoding cambia el formato de una descarga encolada
func (c *Client) SetEncoding(id string, enc domain.Encoding) error {
	return c.call("set_encoding", map[string]interface{}{"id": id, "encoding": enc}, nil)
}

// LabelPayload es el payload de las acciones tag_* y category_*
type LabelPayload struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// Label ejecuta kind_op (p. ej. "tag", "rename"). Retorna cuántas descargas cambiaron.
func (c *Client) Label(kind, op string, payload *LabelPayload) (int, error) {
	var result struct {
		Changed int `json:"changed"`
	}
	err := c.call(kind+"_"+op, payload, &result)
	return result.Changed, err
}

// Labels retorna los pools de tags y categorías
func (c *Client) Labels() (tags, categories []string, err error) {
	var result struct {
		Tags       []string `json:"tags"`
		Categories []string `json:"categories"`
	}
	err = c.call("labels", nil, &result)
	return result.Tags, result.Categories, err
}

// Notices retorna los avisos posteriores a after
func (c *Client) Notices(after uint64) ([]domain.Notice, error) {
	var result struct {
		Notices []domain.Notice `json:"notices"`
	}
	if err := c.call("notices", map[string]uint64{"after": after}, &result); err != nil {
		return nil, err
	}
	return result.Notices, nil
}

// SetCeiling cambia el límite de concurrencia; unlimited lo desactiva
func (c *Client) SetCeiling(ceiling int, unlimited bool) error {
	return c.call("set_ceiling", map[string]interface{}{"ceiling": ceiling, "unlimited": unlimited}, nil)
}

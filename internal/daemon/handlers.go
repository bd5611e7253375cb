package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/elsanchez/downlodr/internal/domain"
)

// Handlers maneja las peticiones del servidor
type Handlers struct {
	queue   *QueueManager
	version string
}

// NewHandlers crea un nuevo conjunto de handlers
func NewHandlers(queue *QueueManager, version string) *Handlers {
	return &Handlers{queue: queue, version: version}
}

// AddPayload es el payload de "add"
type AddPayload struct {
	AddRequest
	Wait bool `json:"wait,omitempty"`
}

// IDPayload identifica una descarga
type IDPayload struct {
	ID string `json:"id"`
}

// IDsPayload identifica varias descargas
type IDsPayload struct {
	IDs        []string `json:"ids"`
	DeleteFile bool     `json:"delete_file,omitempty"`
}

// RemovePayload es el payload de "remove"
type RemovePayload struct {
	ID         string `json:"id"`
	DeleteFile bool   `json:"delete_file,omitempty"`
}

// ListPayload es el payload para listar descargas
type ListPayload struct {
	Collection string `json:"collection"`
	Limit      int    `json:"limit"`
}

// RenamePayload es el payload de "rename"
type RenamePayload struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EncodingPayload es el payload de "set_encoding"
type EncodingPayload struct {
	ID       string          `json:"id"`
	Encoding domain.Encoding `json:"encoding"`
}

// LabelPayload sirve para todas las acciones de tags y categorías
type LabelPayload struct {
	ID    string `json:"id,omitempty"`
	Label string `json:"label,omitempty"`
	Old   string `json:"old,omitempty"`
	New   string `json:"new,omitempty"`
}

// NoticesPayload pide los avisos posteriores a After
type NoticesPayload struct {
	After uint64 `json:"after"`
}

// CeilingPayload cambia el límite de concurrencia
type CeilingPayload struct {
	Ceiling   int  `json:"ceiling"`
	Unlimited bool `json:"unlimited,omitempty"`
}

// Dispatch enruta una acción a su handler
func (h *Handlers) Dispatch(ctx context.Context, action string, payload json.RawMessage) Response {
	switch action {
	case "ping":
		return ok(map[string]string{"message": "pong", "version": h.version})
	case "add":
		return h.HandleAdd(ctx, payload)
	case "enqueue":
		return h.HandleEnqueue(ctx, payload)
	case "status":
		return h.HandleStatus(ctx, payload)
	case "list":
		return h.HandleList(ctx, payload)
	case "history":
		return h.list(ctx, CollectionHistory, 0)
	case "stats":
		return h.HandleStats(ctx)
	case "pause":
		return h.withID(payload, func(id string) error { return h.queue.Pause(ctx, id) })
	case "resume":
		return h.withID(payload, func(id string) error { return h.queue.Resume(ctx, id) })
	case "stop":
		return h.withID(payload, func(id string) error { return h.queue.StopDownload(ctx, id) })
	case "remove":
		return h.HandleRemove(ctx, payload)
	case "remove_history":
		return h.withID(payload, func(id string) error { return h.queue.RemoveFromHistory(ctx, id) })
	case "stop_selected", "remove_selected":
		return h.HandleSelected(ctx, action, payload)
	case "stop_all":
		return batch(h.queue.StopAll(ctx))
	case "pause_all":
		return batch(h.queue.PauseAll(ctx))
	case "resume_all":
		return batch(h.queue.ResumeAll(ctx))
	case "clear_history":
		n, err := h.queue.ClearHistory(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(map[string]int{"removed": n})
	case "rename":
		return h.HandleRename(ctx, payload)
	case "set_encoding":
		return h.HandleSetEncoding(ctx, payload)
	case "tag_add", "tag_remove", "tag_rename", "tag_delete",
		"category_add", "category_remove", "category_rename", "category_delete":
		return h.HandleLabel(ctx, action, payload)
	case "labels":
		tags, categories, err := h.queue.Labels(ctx)
		if err != nil {
			return fail(err)
		}
		return ok(map[string][]string{"tags": tags, "categories": categories})
	case "notices":
		var req NoticesPayload
		if err := decode(payload, &req); err != nil {
			return fail(err)
		}
		return ok(map[string]interface{}{"notices": h.queue.Notices(req.After)})
	case "set_ceiling":
		return h.HandleSetCeiling(ctx, payload)
	case "admit":
		if err := h.queue.Admit(ctx); err != nil {
			return fail(err)
		}
		return ok(nil)
	default:
		return Response{Success: false, Error: fmt.Sprintf("unknown action: %s", action), Code: "unknown_action"}
	}
}

// HandleAdd resuelve una URL; con wait espera la metadata
func (h *Handlers) HandleAdd(ctx context.Context, payload json.RawMessage) Response {
	var req AddPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if req.URL == "" {
		return fail(errors.New("url is required"))
	}

	var (
		dl  *domain.Download
		err error
	)
	if req.Wait {
		dl, err = h.queue.ResolveAndWait(ctx, req.AddRequest)
	} else {
		dl, err = h.queue.Resolve(ctx, req.AddRequest)
	}
	if err != nil {
		return fail(err)
	}
	return ok(dl)
}

// HandleEnqueue encola una descarga con metadata completa
func (h *Handlers) HandleEnqueue(ctx context.Context, payload json.RawMessage) Response {
	var req EnqueueRequest
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	dl, err := h.queue.Enqueue(ctx, req)
	if err != nil {
		return fail(err)
	}
	return ok(dl)
}

// HandleStatus maneja la petición de status
func (h *Handlers) HandleStatus(ctx context.Context, payload json.RawMessage) Response {
	var req IDPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if req.ID == "" {
		return fail(errors.New("id is required"))
	}

	dl, col, err := h.queue.Status(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{
		"download":   dl,
		"collection": col,
	})
}

// HandleList maneja la petición de listar descargas
func (h *Handlers) HandleList(ctx context.Context, payload json.RawMessage) Response {
	var req ListPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}

	if req.Collection == "" {
		req.Collection = string(CollectionActive)
	}
	col, err := ParseCollection(req.Collection)
	if err != nil {
		return fail(err)
	}
	return h.list(ctx, col, req.Limit)
}

func (h *Handlers) list(ctx context.Context, col Collection, limit int) Response {
	downloads, err := h.queue.List(ctx, col)
	if err != nil {
		return fail(err)
	}
	if limit > 0 && len(downloads) > limit {
		downloads = downloads[len(downloads)-limit:]
	}
	return ok(map[string]interface{}{
		"collection": col,
		"downloads":  downloads,
		"count":      len(downloads),
	})
}

// HandleStats maneja la petición de estadísticas
func (h *Handlers) HandleStats(ctx context.Context) Response {
	stats, err := h.queue.GetStats(ctx)
	if err != nil {
		return fail(fmt.Errorf("get stats: %w", err))
	}
	return ok(stats)
}

// HandleRemove quita una descarga, opcionalmente borrando el archivo
func (h *Handlers) HandleRemove(ctx context.Context, payload json.RawMessage) Response {
	var req RemovePayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if req.ID == "" {
		return fail(errors.New("id is required"))
	}
	if err := h.queue.Remove(ctx, req.ID, RemoveOptions{DeleteFile: req.DeleteFile}); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"id": req.ID})
}

// HandleSelected aplica stop o remove a varias descargas
func (h *Handlers) HandleSelected(ctx context.Context, action string, payload json.RawMessage) Response {
	var req IDsPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if len(req.IDs) == 0 {
		return fail(errors.New("ids are required"))
	}
	if action == "stop_selected" {
		return batch(h.queue.StopSelected(ctx, req.IDs))
	}
	return batch(h.queue.RemoveSelected(ctx, req.IDs, RemoveOptions{DeleteFile: req.DeleteFile}))
}

// HandleRename renombra una descarga encolada
func (h *Handlers) HandleRename(ctx context.Context, payload json.RawMessage) Response {
	var req RenamePayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if err := h.queue.Rename(ctx, req.ID, req.Name); err != nil {
		return fail(err)
	}
	dl, _, err := h.queue.Status(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return ok(dl)
}

// HandleSetEncoding cambia el formato de una descarga encolada
func (h *Handlers) HandleSetEncoding(ctx context.Context, payload json.RawMessage) Response {
	var req EncodingPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if err := h.queue.SetEncoding(ctx, req.ID, req.Encoding); err != nil {
		return fail(err)
	}
	dl, _, err := h.queue.Status(ctx, req.ID)
	if err != nil {
		return fail(err)
	}
	return ok(dl)
}

// HandleLabel maneja tag_* y category_*
func (h *Handlers) HandleLabel(ctx context.Context, action string, payload json.RawMessage) Response {
	kindName, op, _ := strings.Cut(action, "_")
	kind, err := ParseLabelKind(kindName)
	if err != nil {
		return fail(err)
	}

	var req LabelPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}

	switch op {
	case "add":
		err = h.queue.AddLabel(ctx, kind, req.ID, req.Label)
	case "remove":
		err = h.queue.RemoveLabel(ctx, kind, req.ID, req.Label)
	case "rename":
		var n int
		if n, err = h.queue.RenameLabel(ctx, kind, req.Old, req.New); err == nil {
			return ok(map[string]int{"changed": n})
		}
	case "delete":
		var n int
		if n, err = h.queue.DeleteLabel(ctx, kind, req.Label); err == nil {
			return ok(map[string]int{"changed": n})
		}
	default:
		err = fmt.Errorf("unknown label operation: %s", op)
	}
	if err != nil {
		return fail(err)
	}
	return ok(nil)
}

// HandleSetCeiling cambia el límite de concurrencia en caliente
func (h *Handlers) HandleSetCeiling(ctx context.Context, payload json.RawMessage) Response {
	var req CeilingPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	ceiling := req.Ceiling
	if req.Unlimited {
		ceiling = 0
	} else if ceiling < 1 {
		return fail(fmt.Errorf("ceiling must be >= 1, got %d", ceiling))
	}
	if err := h.queue.SetCeiling(ctx, ceiling); err != nil {
		return fail(err)
	}
	return ok(map[string]interface{}{"ceiling": ceiling, "unlimited": ceiling == 0})
}

func (h *Handlers) withID(payload json.RawMessage, fn func(id string) error) Response {
	var req IDPayload
	if err := decode(payload, &req); err != nil {
		return fail(err)
	}
	if req.ID == "" {
		return fail(errors.New("id is required"))
	}
	if err := fn(req.ID); err != nil {
		return fail(err)
	}
	return ok(map[string]string{"id": req.ID})
}

// decode acepta un payload vacío
func decode(payload json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 || string(payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("invalid payload: %w", err)
	}
	return nil
}

func ok(v interface{}) Response {
	if v == nil {
		return Response{Success: true}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fail(fmt.Errorf("encode response: %w", err))
	}
	return Response{Success: true, Data: data}
}

func fail(err error) Response {
	return Response{Success: false, Error: err.Error(), Code: domain.ErrorCode(err)}
}

func batch(result *domain.BatchResult, err error) Response {
	if err != nil {
		return fail(err)
	}
	return ok(result)
}

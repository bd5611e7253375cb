package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/elsanchez/downlodr/internal/domain"
	"github.com/elsanchez/downlodr/pkg/client"
)

func dispatch(t *testing.T, h *Handlers, action string, payload interface{}) Response {
	t.Helper()
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatal(err)
		}
		raw = data
	}
	return h.Dispatch(context.Background(), action, raw)
}

func TestHandlers_Dispatch(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 1})
	h := NewHandlers(env.q, "test")

	env.enqueue(t, "h1", "mp4")
	env.enqueue(t, "h2", "mp4")

	tests := []struct {
		name    string
		action  string
		payload interface{}
		success bool
		code    string
	}{
		{"ping", "ping", nil, true, ""},
		{"status", "status", IDPayload{ID: "h1"}, true, ""},
		{"status missing id", "status", nil, false, "internal"},
		{"status unknown", "status", IDPayload{ID: "nope"}, false, "not_found"},
		{"list default", "list", nil, true, ""},
		{"list bad collection", "list", ListPayload{Collection: "paused"}, false, "internal"},
		{"pause queued", "pause", IDPayload{ID: "h2"}, false, "invalid_transition"},
		{"rename queued", "rename", RenamePayload{ID: "h2", Name: "Other"}, true, ""},
		{"tag add", "tag_add", LabelPayload{ID: "h2", Label: "news"}, true, ""},
		{"bad label op", "tag_merge", LabelPayload{}, false, "unknown_action"},
		{"ceiling zero", "set_ceiling", CeilingPayload{Ceiling: 0}, false, "internal"},
		{"unknown", "explode", nil, false, "unknown_action"},
		{"bad payload", "status", json.RawMessage(`{"id":`), false, "internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp Response
			if raw, isRaw := tt.payload.(json.RawMessage); isRaw {
				resp = h.Dispatch(context.Background(), tt.action, raw)
			} else {
				resp = dispatch(t, h, tt.action, tt.payload)
			}
			if resp.Success != tt.success {
				t.Fatalf("expected success=%v, got %+v", tt.success, resp)
			}
			if resp.Code != tt.code {
				t.Errorf("expected code %q, got %q", tt.code, resp.Code)
			}
		})
	}
}

func TestHandlers_StatusPayload(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 1})
	h := NewHandlers(env.q, "test")
	env.enqueue(t, "s1", "webm")

	resp := dispatch(t, h, "status", IDPayload{ID: "s1"})
	var result struct {
		Download   domain.Download `json:"download"`
		Collection string          `json:"collection"`
	}
	if err := json.Unmarshal(resp.Data, &result); err != nil {
		t.Fatal(err)
	}
	if result.Collection != "active" || result.Download.ID != "s1" || result.Download.Encoding.Ext != "webm" {
		t.Errorf("unexpected status payload %+v", result)
	}
}

func TestHandlers_SetCeilingUnlimited(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 1})
	h := NewHandlers(env.q, "test")
	env.enqueue(t, "c1", "mp4")
	env.enqueue(t, "c2", "mp4")

	resp := dispatch(t, h, "set_ceiling", CeilingPayload{Unlimited: true})
	if !resp.Success {
		t.Fatalf("set_ceiling failed: %s", resp.Error)
	}
	stats, _ := env.q.GetStats(context.Background())
	if !stats.Unlimited || stats.Active != 2 {
		t.Errorf("expected both admitted without ceiling, got %+v", stats)
	}
}

func TestServer_ClientRoundTrip(t *testing.T) {
	env := newTestEnv(t, Options{Ceiling: 2})
	env.meta.results["https://vimeo.com/42"] = &domain.Metadata{
		Title:    "Forty Two",
		FormatID: "hd",
		Ext:      "mp4",
		Formats:  []domain.Format{{FormatID: "hd", Ext: "mp4"}},
	}

	socketPath := filepath.Join(t.TempDir(), "d.sock")
	server := NewServer(socketPath, NewHandlers(env.q, "1.2.3"))
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}
	defer server.Stop()

	c := client.NewClient(socketPath)

	version, err := c.Ping()
	if err != nil || version != "1.2.3" {
		t.Fatalf("ping: %q %v", version, err)
	}

	dl, err := c.Add(&client.AddPayload{URL: "https://vimeo.com/42", Tags: []string{"film"}, Wait: true})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if dl.FileName != "Forty Two.mp4" {
		t.Errorf("unexpected file name %q", dl.FileName)
	}

	got, col, err := c.Status(dl.ID)
	if err != nil || col != "active" || got.Status != domain.StatusInitializing {
		t.Errorf("unexpected status %v %s %v", got, col, err)
	}

	stats, err := c.GetStats()
	if err != nil || stats.Active != 1 || stats.Tags != 1 {
		t.Errorf("unexpected stats %+v (%v)", stats, err)
	}

	n, err := c.Label("tag", "rename", &client.LabelPayload{Old: "film", New: "movies"})
	if err != nil || n != 1 {
		t.Errorf("rename tag: %d %v", n, err)
	}

	err = c.Pause("missing")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "not_found" {
		t.Errorf("expected not_found API error, got %v", err)
	}

	result, err := c.StopSelected([]string{dl.ID, "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Succeeded) != 1 || len(result.Failed) != 1 {
		t.Errorf("unexpected batch result %+v", result)
	}

	downloads, err := c.List("active", 0)
	if err != nil || len(downloads) != 0 {
		t.Errorf("expected empty active list, got %d (%v)", len(downloads), err)
	}

	notices, err := c.Notices(0)
	if err != nil {
		t.Fatal(err)
	}
	for _, n := range notices {
		t.Logf("notice %d: %s", n.Seq, n.Title)
	}

	t.Log("✅ Client round trip over the Unix socket")
}

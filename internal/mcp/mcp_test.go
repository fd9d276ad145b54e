package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmccay/mstash/internal/acquire"
	"github.com/tmccay/mstash/internal/blob"
	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/logger"
	"github.com/tmccay/mstash/internal/record"
	"github.com/tmccay/mstash/internal/store"
)

// testSetup creates handlers over a temporary store and a stub boundary.
func testSetup(t *testing.T) *Handlers {
	t.Helper()

	baseDir := t.TempDir()
	st, err := store.Open(baseDir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	boundary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/resolve":
			fmt.Fprint(w, `{"username":"alice","media":[{"url":"m","contentType":"image/jpeg"}]}`)
		case "/download":
			w.Header().Set("Content-Type", "image/jpeg")
			fmt.Fprint(w, "jpegbytes")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(boundary.Close)

	log := logger.NewWithWriter(io.Discard, "error", "json")
	pipeline := acquire.New(st, acquire.NewClient(boundary.URL, boundary.Client(), log), log)

	return NewHandlers(st, pipeline, config.DefaultConfig(), baseDir)
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// resultText extracts the text payload from a tool result.
func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", result.Content[0])
	}
	return text.Text
}

// seedRecord stores a record directly and returns its ID.
func seedRecord(t *testing.T, h *Handlers, id, username string, typ record.MediaType) string {
	t.Helper()
	rec := record.Record{
		ID:          id,
		Username:    username,
		Type:        typ,
		Source:      "https://x/p/" + id,
		Filename:    id + ".jpg",
		ContentType: "image/jpeg",
		SavedAt:     "2026-05-01T12:00:00Z",
		Bytes:       blob.Encode([]byte("payload")),
	}
	if err := h.store.Put(context.Background(), rec); err != nil {
		t.Fatalf("seed record %q: %v", id, err)
	}
	return id
}

func TestHandleSave(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		args      map[string]any
		wantError bool
		errorCode string
	}{
		{
			name:      "missing links",
			args:      map[string]any{},
			wantError: true,
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "valid link",
			args:      map[string]any{"links": "https://x/p/ABC"},
			wantError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleSave(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if result.IsError != tt.wantError {
				t.Fatalf("IsError = %v, want %v: %s", result.IsError, tt.wantError, resultText(t, result))
			}
			if tt.errorCode != "" && !strings.Contains(resultText(t, result), tt.errorCode) {
				t.Errorf("expected error code %s in %s", tt.errorCode, resultText(t, result))
			}
		})
	}

	// The valid link above actually committed a record.
	all, err := h.store.All(ctx)
	if err != nil {
		t.Fatalf("store.All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("stored records = %d, want 1", len(all))
	}
	if all[0].Username != "alice" {
		t.Errorf("username = %q, want alice", all[0].Username)
	}
}

func TestHandleGet(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	id := seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)

	t.Run("summary omits bytes", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{"id": id}))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if result.IsError {
			t.Fatalf("unexpected error: %s", resultText(t, result))
		}
		text := resultText(t, result)
		if !strings.Contains(text, id) {
			t.Error("expected record id in result")
		}
		if strings.Contains(text, `"bytes"`) {
			t.Error("summary should not include payload bytes")
		}
	})

	t.Run("include_bytes returns payload", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{"id": id, "include_bytes": true}))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		text := resultText(t, result)
		if !strings.Contains(text, `"bytes"`) {
			t.Error("expected payload bytes in result")
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{"id": "NOPE"}))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected error result")
		}
		if !strings.Contains(resultText(t, result), "NOT_FOUND") {
			t.Errorf("expected NOT_FOUND, got %s", resultText(t, result))
		}
	})

	t.Run("missing id", func(t *testing.T) {
		result, err := h.HandleGet(ctx, makeRequest(map[string]any{}))
		if err != nil {
			t.Fatalf("handler error: %v", err)
		}
		if !result.IsError {
			t.Fatal("expected error result")
		}
	})
}

func TestHandleList(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypeReel)
	seedRecord(t, h, "alice_2_0-CCCCCC", "alice", record.TypeStory)
	seedRecord(t, h, "bob_1_0-BBBBBB", "bob", record.TypeReel)

	tests := []struct {
		name      string
		args      map[string]any
		wantCount float64
	}{
		{"all", map[string]any{}, 3},
		{"by username", map[string]any{"username": "alice"}, 2},
		{"by type", map[string]any{"type": "Reel"}, 2},
		{"combined", map[string]any{"username": "alice", "type": "Reel"}, 1},
		{"no match", map[string]any{"username": "carol"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := h.HandleList(ctx, makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler error: %v", err)
			}
			if result.IsError {
				t.Fatalf("unexpected error: %s", resultText(t, result))
			}
			var out map[string]any
			if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
				t.Fatalf("decode result: %v", err)
			}
			if out["count"] != tt.wantCount {
				t.Errorf("count = %v, want %v", out["count"], tt.wantCount)
			}
		})
	}
}

func TestHandleUsers(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	seedRecord(t, h, "bob_1_0-BBBBBB", "bob", record.TypeReel)
	seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)

	result, err := h.HandleUsers(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	var out struct {
		Usernames []string `json:"usernames"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(out.Usernames) != 2 || out.Usernames[0] != "alice" || out.Usernames[1] != "bob" {
		t.Errorf("usernames = %v, want [alice bob]", out.Usernames)
	}
}

func TestHandleDelete(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	id := seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)
	seedRecord(t, h, "bob_1_0-BBBBBB", "bob", record.TypeReel)

	result, err := h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	n, err := h.store.Count(ctx)
	if err != nil {
		t.Fatalf("store.Count: %v", err)
	}
	if n != 1 {
		t.Errorf("count after delete = %d, want 1", n)
	}

	// Deleting again reports NOT_FOUND.
	result, err = h.HandleDelete(ctx, makeRequest(map[string]any{"id": id}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "NOT_FOUND") {
		t.Errorf("expected NOT_FOUND, got %s", resultText(t, result))
	}
}

func TestHandleWipe(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)

	// Without confirm nothing happens.
	result, err := h.HandleWipe(ctx, makeRequest(map[string]any{"confirm": false}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result without confirm")
	}

	result, err = h.HandleWipe(ctx, makeRequest(map[string]any{"confirm": true}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	n, err := h.store.Count(ctx)
	if err != nil {
		t.Fatalf("store.Count: %v", err)
	}
	if n != 0 {
		t.Errorf("count after wipe = %d, want 0", n)
	}
}

func TestHandleExportImport_RoundTrip(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)
	seedRecord(t, h, "bob_1_0-BBBBBB", "bob", record.TypeReel)

	path := filepath.Join(t.TempDir(), "backup.jsonl")
	result, err := h.HandleExport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}

	if err := h.store.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}

	result, err = h.HandleImport(ctx, makeRequest(map[string]any{"path": path}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	n, err := h.store.Count(ctx)
	if err != nil {
		t.Fatalf("store.Count: %v", err)
	}
	if n != 2 {
		t.Errorf("count after import = %d, want 2", n)
	}
}

func TestHandleExport_DefaultPath(t *testing.T) {
	h := testSetup(t)
	ctx := context.Background()
	seedRecord(t, h, "alice_1_0-AAAAAA", "alice", record.TypePost)

	result, err := h.HandleExport(ctx, makeRequest(map[string]any{}))
	if err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error: %s", resultText(t, result))
	}

	var out struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal([]byte(resultText(t, result)), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if !strings.HasPrefix(out.Path, filepath.Join(h.baseDir, "exports")) {
		t.Errorf("default export path %q not under exports dir", out.Path)
	}
}

func TestValidateDisabledTools(t *testing.T) {
	unknown := ValidateDisabledTools([]string{"stash_save", "bogus_tool"})
	if len(unknown) != 1 || unknown[0] != "bogus_tool" {
		t.Errorf("unknown = %v, want [bogus_tool]", unknown)
	}
}

func TestNewServer_SkipsDisabledTools(t *testing.T) {
	h := testSetup(t)
	cfg := config.DefaultConfig()
	cfg.DisabledTools = []string{"stash_wipe"}

	s := NewServer(h, cfg, "test")
	if s == nil {
		t.Fatal("expected server")
	}
}

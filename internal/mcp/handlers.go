package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tmccay/mstash/internal/acquire"
	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
	"github.com/tmccay/mstash/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	store    *store.Store
	pipeline *acquire.Pipeline
	cfg      *config.Config
	baseDir  string
}

// NewHandlers creates a new Handlers instance. baseDir anchors default export
// paths.
func NewHandlers(st *store.Store, pipeline *acquire.Pipeline, cfg *config.Config, baseDir string) *Handlers {
	return &Handlers{store: st, pipeline: pipeline, cfg: cfg, baseDir: baseDir}
}

// Request types for each tool

// SaveRequest represents the arguments for save.
type SaveRequest struct {
	Links string `json:"links"`
}

// GetRequest represents the arguments for get.
type GetRequest struct {
	ID           string `json:"id"`
	IncludeBytes bool   `json:"include_bytes,omitempty"`
}

// ListRequest represents the arguments for list.
type ListRequest struct {
	Username string `json:"username,omitempty"`
	Type     string `json:"type,omitempty"`
}

// DeleteRequest represents the arguments for delete.
type DeleteRequest struct {
	ID string `json:"id"`
}

// WipeRequest represents the arguments for wipe.
type WipeRequest struct {
	Confirm bool `json:"confirm"`
}

// ExportRequest represents the arguments for export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// ImportRequest represents the arguments for import.
type ImportRequest struct {
	Path string `json:"path"`
}

// Summary is a record without its payload bytes, sized for tool output.
type Summary struct {
	ID          string           `json:"id"`
	Username    string           `json:"username"`
	Type        record.MediaType `json:"type"`
	Source      string           `json:"source"`
	Filename    string           `json:"filename"`
	ContentType string           `json:"contentType"`
	SavedAt     string           `json:"savedAt"`
	Title       string           `json:"title,omitempty"`
}

func summarize(r record.Record) Summary {
	return Summary{
		ID:          r.ID,
		Username:    r.Username,
		Type:        r.Type,
		Source:      r.Source,
		Filename:    r.Filename,
		ContentType: r.ContentType,
		SavedAt:     r.SavedAt,
		Title:       r.Title,
	}
}

// Handler implementations

// HandleSave handles the save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SaveRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Links == "" {
		return errorResult(errors.NewInvalidRequest("links are required")), nil
	}

	batch := h.pipeline.SaveBatch(ctx, input.Links)
	return successResult(batch)
}

// HandleGet handles the get tool call.
func (h *Handlers) HandleGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	rec, err := h.store.Get(ctx, input.ID)
	if err != nil {
		return errorResult(err), nil
	}

	if input.IncludeBytes {
		return successResult(rec)
	}
	return successResult(summarize(rec))
}

// HandleList handles the list tool call.
func (h *Handlers) HandleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	var records []record.Record
	switch {
	case input.Username != "":
		records, err = h.store.ByUsername(ctx, input.Username)
	case input.Type != "":
		records, err = h.store.ByType(ctx, record.MediaType(input.Type))
	default:
		records, err = h.store.All(ctx)
	}
	if err != nil {
		return errorResult(err), nil
	}

	records = record.Filter(records, input.Username, record.MediaType(input.Type))
	records = record.SortBySavedAtDesc(records)

	items := make([]Summary, len(records))
	for i, r := range records {
		items[i] = summarize(r)
	}
	return successResult(map[string]any{
		"count": len(items),
		"items": items,
	})
}

// HandleUsers handles the users tool call.
func (h *Handlers) HandleUsers(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	users, err := h.store.Usernames(ctx)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"usernames": users})
}

// HandleDelete handles the delete tool call.
func (h *Handlers) HandleDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewInvalidRequest("id is required")), nil
	}

	if err := h.store.Delete(ctx, input.ID); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": true, "id": input.ID})
}

// HandleWipe handles the wipe tool call.
func (h *Handlers) HandleWipe(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[WipeRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if !input.Confirm {
		return errorResult(errors.NewInvalidRequest("confirm must be true")), nil
	}

	if err := h.store.Clear(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"wiped": true})
}

// HandleExport handles the export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	path := input.Path
	if path == "" {
		path = store.DefaultExportPath(h.baseDir, time.Now())
	}

	n, err := h.store.ExportToFile(ctx, path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"exported": n, "path": path})
}

// HandleImport handles the import tool call.
func (h *Handlers) HandleImport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ImportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if input.Path == "" {
		return errorResult(errors.NewInvalidRequest("path is required")), nil
	}

	n, err := h.store.ImportFromFile(ctx, input.Path)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"imported": n, "path": input.Path})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if sErr, ok := err.(*errors.StashError); ok {
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": sErr.Message,
			"status":  sErr.Status,
		}
		// Only include details for non-internal errors to avoid leaking
		// sensitive info like file paths or SQL errors
		if sErr.Code != errors.ErrInternal && sErr.Code != errors.ErrStorage && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}

package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmccay/mstash/internal/acquire"
	"github.com/tmccay/mstash/internal/blob"
	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
	"github.com/tmccay/mstash/internal/store"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	store    *store.Store
	pipeline *acquire.Pipeline
	cfg      *config.Config
	renderer *Renderer
}

// HandleList handles GET /records: the saved-media grid, optionally filtered
// by username and/or media type.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	username := r.URL.Query().Get("username")
	mediaType := r.URL.Query().Get("type")

	// Narrow through an index when a single filter applies; the remaining
	// selector is applied in memory.
	var records []record.Record
	var err error
	switch {
	case username != "":
		records, err = h.store.ByUsername(r.Context(), username)
	case mediaType != "":
		records, err = h.store.ByType(r.Context(), record.MediaType(mediaType))
	default:
		records, err = h.store.All(r.Context())
	}
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	records = record.Filter(records, username, record.MediaType(mediaType))
	records = record.SortBySavedAtDesc(records)

	usernames, err := h.store.Usernames(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	total, err := h.store.Count(r.Context())
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Saved media",
			Version: h.renderer.version,
			Nav:     "records",
		},
		Records:   records,
		Usernames: usernames,
		Username:  username,
		MediaType: mediaType,
		Total:     total,
	})
}

// HandleDetail handles GET /records/{id}: view a single record.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("record ID is required"))
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "detail", DetailPageData{
		PageData: PageData{
			Title:   rec.Filename,
			Version: h.renderer.version,
			Nav:     "records",
		},
		Record:   rec,
		MediaURL: "/records/" + rec.ID + "/media",
		IsVideo:  isVideo(rec.ContentType),
	})
}

// HandleMedia handles GET /records/{id}/media: the decoded payload bytes.
func (h *Handlers) HandleMedia(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("record ID is required"))
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	payload, err := blob.Decode(rec.Bytes, rec.ContentType)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if payload.ContentType != "" {
		w.Header().Set("Content-Type", payload.ContentType)
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", rec.Filename))
	_, _ = w.Write(payload.Bytes)
}

// HandleSave handles POST /records/save: acquire one or more links pasted
// into the save form. The batch runs to completion even when links fail.
func (h *Handlers) HandleSave(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	links := r.FormValue("links")
	if strings.TrimSpace(links) == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("links are required"))
		return
	}

	batch := h.pipeline.SaveBatch(r.Context(), links)

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, batch)
		return
	}

	http.Redirect(w, r, "/records", http.StatusFound)
}

// HandleDelete handles DELETE /records/{id}: remove a single record.
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("record ID is required"))
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{
			"deleted": true,
			"id":      id,
		})
		return
	}

	http.Redirect(w, r, "/records", http.StatusFound)
}

// HandleWipe handles POST /records/wipe: remove every record.
func (h *Handlers) HandleWipe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}

	if r.FormValue("confirm") != "true" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("confirm parameter must be \"true\""))
		return
	}

	if err := h.store.Clear(r.Context()); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		renderJSON(w, http.StatusOK, map[string]any{"wiped": true})
		return
	}

	http.Redirect(w, r, "/records", http.StatusFound)
}

// HandleExport handles GET /export: download the full store as JSONL. The
// export is buffered so a mid-stream storage failure still yields a clean
// error response instead of a truncated file.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if _, err := h.store.ExportAll(r.Context(), &buf); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	filename := fmt.Sprintf("mstash-export-%s.jsonl", time.Now().UTC().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(buf.Bytes())
}

// HandleHelp handles GET /help: the rendered usage page.
func (h *Handlers) HandleHelp(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, "help", HelpPageData{
		PageData: PageData{
			Title:   "Help",
			Version: h.renderer.version,
			Nav:     "help",
		},
		RenderedHTML: renderMarkdown(helpMD),
	})
}

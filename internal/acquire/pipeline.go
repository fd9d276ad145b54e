package acquire

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tmccay/mstash/internal/blob"
	"github.com/tmccay/mstash/internal/record"
	"github.com/tmccay/mstash/internal/store"
)

// Pipeline acquires source links sequentially: one link's resolve and all of
// its media downloads complete before the next link starts, which bounds
// concurrent network use.
type Pipeline struct {
	store  *store.Store
	client *Client
	log    *slog.Logger
	now    func() time.Time // injectable for tests
}

// New creates a pipeline committing to st through the given boundary client.
func New(st *store.Store, client *Client, log *slog.Logger) *Pipeline {
	return &Pipeline{
		store:  st,
		client: client,
		log:    log,
		now:    time.Now,
	}
}

// LinkResult reports one link's acquisition.
type LinkResult struct {
	Link    string   `json:"link"`
	Saved   int      `json:"saved"`
	Skipped int      `json:"skipped"` // items whose download failed
	IDs     []string `json:"ids"`
}

// LinkError pairs a failed link with its error inside a batch.
type LinkError struct {
	Link    string `json:"link"`
	Message string `json:"message"`
}

// BatchResult reports a whole batch. The batch always runs to completion;
// per-link failures are collected, never fatal.
type BatchResult struct {
	BatchID string       `json:"batch_id"`
	Links   int          `json:"links"`
	Saved   int          `json:"saved"`
	Failed  []LinkError  `json:"failed,omitempty"`
	Results []LinkResult `json:"results"`
}

// SaveLink acquires one source link. Resolution failure aborts the link with
// no records committed. A failed item download skips only that item; the
// remaining items still commit.
func (p *Pipeline) SaveLink(ctx context.Context, link string) (*LinkResult, error) {
	typ := record.Classify(link)

	res, err := p.client.Resolve(ctx, link)
	if err != nil {
		return nil, err
	}

	// The boundary's type wins over path classification.
	if res.Type != "" {
		typ = record.MediaType(res.Type)
	}
	username := res.Username
	if username == "" {
		username = record.UnknownUser
	}

	acquiredAt := p.now()
	savedAt := acquiredAt.UTC().Format(time.RFC3339)

	result := &LinkResult{Link: link}
	for i, m := range res.Media {
		payload, err := p.client.Download(ctx, m.URL)
		if err != nil {
			p.log.Warn("media download failed, skipping item",
				"link", link, "item", i, "url", m.URL, "error", err)
			result.Skipped++
			continue
		}

		contentType := m.ContentType
		if contentType == "" {
			contentType = payload.ContentType
		}

		id := record.NewID(username, acquiredAt, i)
		filename := m.Filename
		if filename == "" {
			filename = fmt.Sprintf("%s.%s", id, record.ExtForContentType(contentType))
		}

		rec := record.Record{
			ID:          id,
			Username:    username,
			Type:        typ,
			Source:      link,
			Filename:    filename,
			ContentType: contentType,
			SavedAt:     savedAt,
			Bytes:       blob.Encode(payload.Bytes),
			Title:       res.Title,
		}

		if err := p.store.Put(ctx, rec); err != nil {
			// Store failures are not per-item noise; surface them. Items
			// already committed for this link stay committed.
			return result, err
		}
		result.Saved++
		result.IDs = append(result.IDs, id)
	}

	p.log.Info("link acquired",
		"link", link, "type", typ, "username", username,
		"saved", result.Saved, "skipped", result.Skipped)
	return result, nil
}

// SaveBatch splits raw input on whitespace and acquires each link in order.
// A failure on one link is recorded and the batch moves on; the aggregate
// operation always completes.
func (p *Pipeline) SaveBatch(ctx context.Context, raw string) *BatchResult {
	links := strings.Fields(raw)
	batch := &BatchResult{
		BatchID: uuid.NewString(),
		Links:   len(links),
	}

	log := p.log.With("batch_id", batch.BatchID)
	log.Info("batch started", "links", len(links))

	for _, link := range links {
		res, err := p.SaveLink(ctx, link)
		if err != nil {
			log.Warn("link failed", "link", link, "error", err)
			batch.Failed = append(batch.Failed, LinkError{Link: link, Message: err.Error()})
			if res == nil {
				continue
			}
		}
		batch.Saved += res.Saved
		batch.Results = append(batch.Results, *res)
	}

	log.Info("batch finished", "saved", batch.Saved, "failed", len(batch.Failed))
	return batch
}

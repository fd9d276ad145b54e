package store

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
)

// ExportHeader is the first line of a JSONL export file.
type ExportHeader struct {
	MstashExport  bool   `json:"_mstash_export"`
	SchemaVersion string `json:"schema_version"`
	ExportedAt    int64  `json:"exported_at"`
}

// exportLine is the parse shape for one line of an export file: either the
// header or a record. Header lines carry _mstash_export=true.
type exportLine struct {
	MstashExport bool `json:"_mstash_export,omitempty"`
	record.Record
}

// ExportAll writes every stored record to w as JSONL: a header line followed
// by one record per line, fields preserved verbatim (including the base64
// payload), so ImportAll reproduces an equivalent store.
func (s *Store) ExportAll(ctx context.Context, w io.Writer) (int, error) {
	records, err := s.All(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	header := ExportHeader{
		MstashExport:  true,
		SchemaVersion: "1.0",
		ExportedAt:    time.Now().Unix(),
	}
	if err := enc.Encode(header); err != nil {
		return 0, errors.NewStorage(err)
	}

	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return 0, errors.NewStorage(err)
		}
	}
	return len(records), nil
}

// ImportAll parses the whole input first and only then commits, so malformed
// trailing data never leaves a half-imported store. Every parsed record is
// put (insert-or-replace by id) inside one transaction.
func (s *Store) ImportAll(ctx context.Context, r io.Reader) (int, error) {
	records, err := parseExport(r)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.NewStorage(err)
	}
	defer tx.Rollback() //nolint:errcheck

	query := `
		INSERT INTO records (` + allColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			type = excluded.type,
			source = excluded.source,
			filename = excluded.filename,
			content_type = excluded.content_type,
			saved_at = excluded.saved_at,
			bytes = excluded.bytes,
			title = excluded.title
	`
	for _, rec := range records {
		_, err := tx.ExecContext(ctx, query,
			rec.ID, rec.Username, string(rec.Type), rec.Source, rec.Filename,
			rec.ContentType, rec.SavedAt, rec.Bytes, rec.Title,
		)
		if err != nil {
			return 0, errors.NewStorage(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, errors.NewStorage(err)
	}
	return len(records), nil
}

// parseExport reads JSONL export input into records. Any unparseable line or
// record without an id fails the whole parse.
func parseExport(r io.Reader) ([]record.Record, error) {
	var records []record.Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024) // payload lines can be large
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var parsed exportLine
		if err := json.Unmarshal(line, &parsed); err != nil {
			return nil, errors.NewImportFailed(
				fmt.Sprintf("line %d: invalid JSON: %v", lineNum, err),
				map[string]any{"line": lineNum},
			)
		}

		if parsed.MstashExport {
			continue // header line
		}

		if parsed.ID == "" {
			return nil, errors.NewImportFailed(
				fmt.Sprintf("line %d: missing id field", lineNum),
				map[string]any{"line": lineNum},
			)
		}

		records = append(records, parsed.Record)
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.NewImportFailed(
			fmt.Sprintf("failed to read input: %v", err), nil)
	}

	return records, nil
}

// ExportToFile exports to path, writing a temp file first and renaming into
// place so a failed export never clobbers an existing file.
func (s *Store) ExportToFile(ctx context.Context, path string) (int, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return 0, errors.NewStorage(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.NewStorage(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	count, err := s.ExportAll(ctx, file)
	if err != nil {
		return 0, err
	}

	if err := file.Sync(); err != nil {
		return 0, errors.NewStorage(err)
	}
	if err := file.Close(); err != nil {
		return 0, errors.NewStorage(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	if err := os.Rename(tempPath, path); err != nil {
		return 0, errors.NewStorage(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return count, nil
}

// ImportFromFile imports records from a JSONL export file at path.
func (s *Store) ImportFromFile(ctx context.Context, path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFound(path)
		}
		return 0, errors.NewStorage(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	return s.ImportAll(ctx, file)
}

// DefaultExportPath generates the default export path under baseDir/exports.
func DefaultExportPath(baseDir string, now time.Time) string {
	filename := fmt.Sprintf("mstash-export-%s.jsonl", now.Format("2006-01-02T150405"))
	return filepath.Join(baseDir, "exports", filename)
}

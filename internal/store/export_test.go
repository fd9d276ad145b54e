package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tmccay/mstash/internal/errors"
	"github.com/tmccay/mstash/internal/record"
)

func TestExportImport_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := testStore(t)

	want := []record.Record{
		testRecord("a", "alice", record.TypeReel),
		testRecord("b", "bob", record.TypePost),
		testRecord("c", "alice", record.TypeStory),
	}
	for _, r := range want {
		require.NoError(t, src.Put(ctx, r))
	}

	var buf bytes.Buffer
	count, err := src.ExportAll(ctx, &buf)
	require.NoError(t, err)
	require.Equal(t, 3, count)

	// First line is the header.
	firstLine, _, _ := strings.Cut(buf.String(), "\n")
	require.Contains(t, firstLine, `"_mstash_export":true`)

	dst := testStore(t)
	imported, err := dst.ImportAll(ctx, bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	require.Equal(t, 3, imported)

	got, err := dst.All(ctx)
	require.NoError(t, err)
	require.Len(t, got, 3)

	byID := map[string]record.Record{}
	for _, r := range got {
		byID[r.ID] = r
	}
	for _, w := range want {
		require.Equal(t, w, byID[w.ID], "record %s not preserved verbatim", w.ID)
	}
}

func TestImportAll_MalformedLineImportsNothing(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	input := `{"_mstash_export":true,"schema_version":"1.0","exported_at":1}
{"id":"a","username":"alice","type":"Reel","source":"s","filename":"a.jpg","contentType":"image/jpeg","savedAt":"2026-01-01T00:00:00Z","bytes":"aGk=","title":""}
this is not json
`
	_, err := s.ImportAll(ctx, strings.NewReader(input))
	require.True(t, errors.Is(err, errors.ErrImportFailed))

	// Parse-then-commit: the valid leading record must not have been put.
	all, err := s.All(ctx)
	require.NoError(t, err)
	require.Empty(t, all)
}

func TestImportAll_MissingID(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	input := `{"username":"alice","type":"Reel"}` + "\n"
	_, err := s.ImportAll(ctx, strings.NewReader(input))
	require.True(t, errors.Is(err, errors.ErrImportFailed))
}

func TestImportAll_ReplacesExisting(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)

	old := testRecord("a", "alice", record.TypeReel)
	require.NoError(t, s.Put(ctx, old))

	replacement := testRecord("a", "someone-else", record.TypePost)
	var buf bytes.Buffer
	src := testStore(t)
	require.NoError(t, src.Put(ctx, replacement))
	_, err := src.ExportAll(ctx, &buf)
	require.NoError(t, err)

	_, err = s.ImportAll(ctx, &buf)
	require.NoError(t, err)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, replacement, got)
}

func TestExportToFile_ImportFromFile(t *testing.T) {
	ctx := context.Background()
	s := testStore(t)
	require.NoError(t, s.Put(ctx, testRecord("a", "alice", record.TypeReel)))

	path := filepath.Join(t.TempDir(), "out.jsonl")
	count, err := s.ExportToFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// No temp file left behind.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)

	dst := testStore(t)
	imported, err := dst.ImportFromFile(ctx, path)
	require.NoError(t, err)
	require.Equal(t, 1, imported)
}

func TestImportFromFile_Missing(t *testing.T) {
	s := testStore(t)
	_, err := s.ImportFromFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"))
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

// Package record defines the Media Record model and the pure view functions
// consumers apply on top of a full store scan.
package record

import (
	"crypto/rand"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// MediaType categorizes the source link a record was acquired from.
type MediaType string

const (
	TypeReel    MediaType = "Reel"
	TypeStory   MediaType = "Story"
	TypePost    MediaType = "Post"
	TypeUnknown MediaType = "Unknown"
)

// UnknownUser is the sentinel username used when the resolution boundary
// omits one.
const UnknownUser = "unknown"

// Record is one persisted downloaded asset plus its provenance metadata.
// It is fully self-contained: Bytes holds the base64-encoded payload, so
// export/import never needs to re-fetch anything.
type Record struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Type        MediaType `json:"type"`
	Source      string    `json:"source"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	SavedAt     string    `json:"savedAt"` // RFC 3339, sortable
	Bytes       string    `json:"bytes"`   // base64 payload (internal/blob)
	Title       string    `json:"title"`
}

// Classify derives a MediaType from the shape of a source link. The query
// component is ignored. First marker wins. This is a fallback only: a type
// returned by the resolution boundary supersedes it.
func Classify(link string) MediaType {
	link, _, _ = strings.Cut(link, "?")
	switch {
	case strings.Contains(link, "/reel/"):
		return TypeReel
	case strings.Contains(link, "/stories/"):
		return TypeStory
	case strings.Contains(link, "/p/"):
		return TypePost
	default:
		return TypeUnknown
	}
}

// ExtForContentType maps a MIME type to a filename extension for synthesized
// filenames. Unrecognized types get "bin".
func ExtForContentType(contentType string) string {
	switch {
	case strings.Contains(contentType, "jpeg"):
		return "jpg"
	case strings.Contains(contentType, "png"):
		return "png"
	case strings.Contains(contentType, "mp4"):
		return "mp4"
	case strings.Contains(contentType, "webp"):
		return "webp"
	default:
		return "bin"
	}
}

// NewID builds a record ID from the owning username, the acquisition time,
// and the per-batch item index. A short ULID tail keeps IDs unique even when
// two items for the same user land in the same millisecond with the same
// index.
func NewID(username string, at time.Time, index int) string {
	entropy := ulid.MustNew(ulid.Timestamp(at), ulid.Monotonic(rand.Reader, 0))
	tail := entropy.String()
	return fmt.Sprintf("%s_%d_%d-%s", username, at.UnixMilli(), index, tail[len(tail)-6:])
}

// DistinctUsernames returns the sorted set of usernames across records,
// case-sensitive. Used to populate the username filter domain.
func DistinctUsernames(records []Record) []string {
	seen := make(map[string]bool, len(records))
	users := make([]string, 0, len(records))
	for _, r := range records {
		if !seen[r.Username] {
			seen[r.Username] = true
			users = append(users, r.Username)
		}
	}
	sort.Strings(users)
	return users
}

// Filter keeps records matching both selectors. An empty username or type
// selector places no constraint.
func Filter(records []Record, byUsername string, byType MediaType) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if byUsername != "" && r.Username != byUsername {
			continue
		}
		if byType != "" && r.Type != byType {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortBySavedAtDesc sorts records most-recently-saved first. The sort is
// stable: ties keep their input order. Records with an unparseable SavedAt
// sort last.
func SortBySavedAtDesc(records []Record) []Record {
	out := make([]Record, len(records))
	copy(out, records)
	sort.SliceStable(out, func(i, j int) bool {
		return parseSavedAt(out[i].SavedAt).After(parseSavedAt(out[j].SavedAt))
	})
	return out
}

func parseSavedAt(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

package errors

import (
	"fmt"
	"testing"
)

func TestStashError_Error(t *testing.T) {
	err := &StashError{
		Code:    ErrNotFound,
		Status:  404,
		Message: "record not found: x",
	}

	expected := "NOT_FOUND: record not found: x"
	if err.Error() != expected {
		t.Errorf("Error() = %q, want %q", err.Error(), expected)
	}
}

func TestNewInvalidRequest(t *testing.T) {
	err := NewInvalidRequest("record id is required")

	if err.Code != ErrInvalidRequest {
		t.Errorf("Code = %q, want %q", err.Code, ErrInvalidRequest)
	}
	if err.Status != 400 {
		t.Errorf("Status = %d, want 400", err.Status)
	}
	if err.Message != "record id is required" {
		t.Errorf("Message = %q, want %q", err.Message, "record id is required")
	}
}

func TestNewNotFound(t *testing.T) {
	err := NewNotFound("alice_1_0-AAAAAA")

	if err.Code != ErrNotFound {
		t.Errorf("Code = %q, want %q", err.Code, ErrNotFound)
	}
	if err.Status != 404 {
		t.Errorf("Status = %d, want 404", err.Status)
	}
	if err.Details["identifier"] != "alice_1_0-AAAAAA" {
		t.Errorf("Details[identifier] = %v, want %q", err.Details["identifier"], "alice_1_0-AAAAAA")
	}
}

func TestNewResolveFailed(t *testing.T) {
	cause := fmt.Errorf("boundary returned status 502")
	err := NewResolveFailed("https://x/reel/A", cause)

	if err.Code != ErrResolveFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrResolveFailed)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Message != cause.Error() {
		t.Errorf("Message = %q, want %q", err.Message, cause.Error())
	}
	if err.Details["link"] != "https://x/reel/A" {
		t.Errorf("Details[link] = %v, want the failing link", err.Details["link"])
	}
}

func TestNewDownloadFailed(t *testing.T) {
	err := NewDownloadFailed("https://cdn/1.jpg", nil)

	if err.Code != ErrDownloadFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrDownloadFailed)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	// nil cause falls back to a generic message
	if err.Message != "download failed" {
		t.Errorf("Message = %q, want %q", err.Message, "download failed")
	}
	if err.Details["url"] != "https://cdn/1.jpg" {
		t.Errorf("Details[url] = %v, want the media URL", err.Details["url"])
	}
}

func TestNewDecodeFailed(t *testing.T) {
	err := NewDecodeFailed(nil)

	if err.Code != ErrDecodeFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrDecodeFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
}

func TestNewImportFailed(t *testing.T) {
	err := NewImportFailed("line 3: invalid JSON", map[string]any{"line": 3})

	if err.Code != ErrImportFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrImportFailed)
	}
	if err.Status != 422 {
		t.Errorf("Status = %d, want 422", err.Status)
	}
	if err.Details["line"] != 3 {
		t.Errorf("Details[line] = %v, want 3", err.Details["line"])
	}
}

func TestNewStorage(t *testing.T) {
	err := NewStorage(fmt.Errorf("disk full"))

	if err.Code != ErrStorage {
		t.Errorf("Code = %q, want %q", err.Code, ErrStorage)
	}
	if err.Status != 500 {
		t.Errorf("Status = %d, want 500", err.Status)
	}
}

func TestNewNetworkFailed(t *testing.T) {
	err := NewNetworkFailed("https://app/index.html", fmt.Errorf("connection refused"))

	if err.Code != ErrNetworkFailed {
		t.Errorf("Code = %q, want %q", err.Code, ErrNetworkFailed)
	}
	if err.Status != 502 {
		t.Errorf("Status = %d, want 502", err.Status)
	}
	if err.Details["url"] != "https://app/index.html" {
		t.Errorf("Details[url] = %v, want the asset URL", err.Details["url"])
	}
}

func TestNewInternal(t *testing.T) {
	t.Run("with error", func(t *testing.T) {
		err := NewInternal(fmt.Errorf("database connection failed"))

		if err.Code != ErrInternal {
			t.Errorf("Code = %q, want %q", err.Code, ErrInternal)
		}
		if err.Status != 500 {
			t.Errorf("Status = %d, want 500", err.Status)
		}
	})

	t.Run("with nil", func(t *testing.T) {
		err := NewInternal(nil)

		if err.Message != "internal error" {
			t.Errorf("Message = %q, want %q", err.Message, "internal error")
		}
	})
}

func TestIs(t *testing.T) {
	t.Run("matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if !Is(err, ErrNotFound) {
			t.Error("Is() = false, want true")
		}
	})

	t.Run("non-matching code", func(t *testing.T) {
		err := NewNotFound("test")
		if Is(err, ErrStorage) {
			t.Error("Is() = true, want false")
		}
	})

	t.Run("non-StashError", func(t *testing.T) {
		err := fmt.Errorf("plain error")
		if Is(err, ErrNotFound) {
			t.Error("Is() = true, want false for non-StashError")
		}
	})

	t.Run("wrapped StashError", func(t *testing.T) {
		inner := NewNotFound("test")
		wrapped := fmt.Errorf("items[0]: %w", inner)
		if !Is(wrapped, ErrNotFound) {
			t.Error("Is() = false, want true for wrapped StashError")
		}
		if Is(wrapped, ErrStorage) {
			t.Error("Is() = true, want false for wrong code on wrapped StashError")
		}
	})
}

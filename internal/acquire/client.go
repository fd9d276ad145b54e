// Package acquire turns user-supplied source links into committed Media
// Records: classify, resolve through the helper boundary, download each media
// asset, encode, and put.
package acquire

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tmccay/mstash/internal/blob"
	"github.com/tmccay/mstash/internal/errors"
)

// MediaDescriptor is one downloadable asset in a resolution response.
type MediaDescriptor struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Filename    string `json:"filename"`
}

// Resolution is the boundary's answer for one source link. Type and Username
// are optional; Media is ordered.
type Resolution struct {
	Type     string            `json:"type"`
	Username string            `json:"username"`
	Title    string            `json:"title"`
	Media    []MediaDescriptor `json:"media"`
}

// Client talks to the resolution/download boundary. The boundary is opaque:
// it translates a source link into structured metadata and proxies raw media
// bytes.
type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

// NewClient creates a boundary client for the given base address. The
// http.Client's timeout bounds every request; there are no retries.
func NewClient(base string, httpClient *http.Client, log *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{base: base, http: httpClient, log: log}
}

// Resolve asks the boundary to translate a source link. A transport error or
// non-2xx status is a RESOLVE_FAILED error; the caller aborts that link.
func (c *Client) Resolve(ctx context.Context, link string) (*Resolution, error) {
	u := fmt.Sprintf("%s/resolve?url=%s", c.base, url.QueryEscape(link))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.NewResolveFailed(link, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewResolveFailed(link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.NewResolveFailed(link,
			fmt.Errorf("boundary returned status %d", resp.StatusCode))
	}

	var res Resolution
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, errors.NewResolveFailed(link, fmt.Errorf("invalid resolution body: %w", err))
	}
	return &res, nil
}

// Download fetches one media asset through the boundary's proxy. A transport
// error or non-2xx status is a DOWNLOAD_FAILED error; the caller skips only
// that item.
func (c *Client) Download(ctx context.Context, mediaURL string) (blob.Payload, error) {
	u := fmt.Sprintf("%s/download?u=%s", c.base, url.QueryEscape(mediaURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return blob.Payload{}, errors.NewDownloadFailed(mediaURL, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return blob.Payload{}, errors.NewDownloadFailed(mediaURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return blob.Payload{}, errors.NewDownloadFailed(mediaURL,
			fmt.Errorf("boundary returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return blob.Payload{}, errors.NewDownloadFailed(mediaURL, err)
	}

	return blob.Payload{
		Bytes:       body,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// Package assetcache keeps the application's own static assets available
// offline. It is a versioned, named, on-disk cache behind an
// http.RoundTripper: cache-first with network fallback, filled at install
// time from a fixed manifest and opportunistically at runtime for same-origin
// GET responses.
package assetcache

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tmccay/mstash/internal/blob"
	"github.com/tmccay/mstash/internal/errors"
)

// DefaultManifest lists the app-shell paths installed for offline use.
var DefaultManifest = []string{
	"/",
	"/index.html",
	"/app.js",
	"/manifest.webmanifest",
}

// entry is one stored response. The body travels through the blob codec so
// the entry file is plain structured text.
type entry struct {
	Method      string `json:"method"`
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Cache is a versioned response cache. One Cache may serve concurrent
// requests: reads go straight to the filesystem, writes are atomic per key
// (temp file + rename) and bookkeeping is mutex-guarded.
type Cache struct {
	root      string // versions live in subdirectories of root
	version   string
	dir       string // root/version
	origin    string // scheme://host whose GET responses may be cached
	transport http.RoundTripper
	log       *slog.Logger

	mu sync.Mutex // serializes install/activate and per-key writes
}

// New creates a cache bound to the given version tag. origin is the
// application's own origin; responses from anywhere else are never cached
// opportunistically. transport handles actual network traffic
// (http.DefaultTransport if nil).
func New(root, version, origin string, transport http.RoundTripper, log *slog.Logger) (*Cache, error) {
	if version == "" {
		return nil, errors.NewInvalidRequest("cache version is required")
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, errors.NewStorage(err)
	}
	return &Cache{
		root:      root,
		version:   version,
		dir:       filepath.Join(root, version),
		origin:    strings.TrimSuffix(origin, "/"),
		transport: transport,
		log:       log,
	}, nil
}

// Installed reports whether this version's cache has been committed.
func (c *Cache) Installed() bool {
	info, err := os.Stat(c.dir)
	return err == nil && info.IsDir()
}

// Install populates the cache with the fixed asset manifest (paths relative
// to the origin). Assets are fetched into a staging directory and the whole
// set is committed with a single rename: any fetch failure fails the install
// with nothing committed as ready.
func (c *Cache) Install(ctx context.Context, manifest []string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	randBytes := make([]byte, 4)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(err)
	}
	staging := c.dir + "." + hex.EncodeToString(randBytes) + ".staging"
	if err := os.MkdirAll(staging, 0700); err != nil {
		return errors.NewStorage(err)
	}

	success := false
	defer func() {
		if !success {
			os.RemoveAll(staging)
		}
	}()

	for _, path := range manifest {
		u := c.origin + "/" + strings.TrimPrefix(path, "/")
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.NewNetworkFailed(u, err)
		}
		resp, err := c.transport.RoundTrip(req)
		if err != nil {
			return errors.NewNetworkFailed(u, err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return errors.NewNetworkFailed(u, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return errors.NewNetworkFailed(u,
				fmt.Errorf("manifest asset returned status %d", resp.StatusCode))
		}

		e := entry{
			Method:      http.MethodGet,
			URL:         u,
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        blob.Encode(body),
		}
		if err := writeEntry(staging, e); err != nil {
			return err
		}
	}

	// Reinstalling the same version replaces it wholesale.
	if err := os.RemoveAll(c.dir); err != nil {
		return errors.NewStorage(err)
	}
	if err := os.Rename(staging, c.dir); err != nil {
		return errors.NewStorage(err)
	}
	success = true

	c.log.Info("asset cache installed", "version", c.version, "assets", len(manifest))
	return nil
}

// Activate makes this version the only one: every sibling version directory
// under the cache root is purged. Requests already answered by an older
// version are unaffected.
func (c *Cache) Activate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.root)
	if err != nil {
		return errors.NewStorage(err)
	}
	for _, de := range entries {
		if de.Name() == c.version {
			continue
		}
		if err := os.RemoveAll(filepath.Join(c.root, de.Name())); err != nil {
			return errors.NewStorage(err)
		}
		c.log.Info("purged superseded cache version", "version", de.Name())
	}
	return nil
}

// RoundTrip implements the cache-first policy: exact-match hit → cached
// response without touching the network; miss → network, opportunistically
// caching same-origin success-status GET responses; network failure → one
// defensive re-check of the cache before surfacing the error.
func (c *Cache) RoundTrip(req *http.Request) (*http.Response, error) {
	if e, ok := c.lookup(req); ok {
		return e.response(req), nil
	}

	resp, err := c.transport.RoundTrip(req)
	if err != nil {
		// The miss determination may be stale: another request could have
		// filled this key while we were on the network.
		if e, ok := c.lookup(req); ok {
			return e.response(req), nil
		}
		return nil, err
	}

	if c.cacheable(req, resp) {
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, readErr
		}
		e := entry{
			Method:      req.Method,
			URL:         req.URL.String(),
			Status:      resp.StatusCode,
			ContentType: resp.Header.Get("Content-Type"),
			Body:        blob.Encode(body),
		}
		c.mu.Lock()
		if err := writeEntry(c.dir, e); err != nil {
			c.log.Warn("failed to cache response", "url", e.URL, "error", err)
		}
		c.mu.Unlock()
		resp.Body = io.NopCloser(bytes.NewReader(body))
		resp.ContentLength = int64(len(body))
	}

	return resp, nil
}

// cacheable: read-only request, success status, and the application's own
// origin. Third-party origins and non-GET requests are never cached this way.
func (c *Cache) cacheable(req *http.Request, resp *http.Response) bool {
	if req.Method != http.MethodGet {
		return false
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false
	}
	return c.origin != "" && req.URL.Scheme+"://"+req.URL.Host == c.origin
}

func (c *Cache) lookup(req *http.Request) (*entry, bool) {
	data, err := os.ReadFile(filepath.Join(c.dir, keyFile(req.Method, req.URL.String())))
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, false
	}
	return &e, true
}

// response rebuilds an http.Response from a stored entry.
func (e *entry) response(req *http.Request) *http.Response {
	payload, err := blob.Decode(e.Body, e.ContentType)
	if err != nil {
		// A corrupt entry behaves like a miss would have: empty body is
		// still better than failing a request we promised to answer.
		payload = blob.Payload{ContentType: e.ContentType}
	}
	header := make(http.Header)
	if e.ContentType != "" {
		header.Set("Content-Type", e.ContentType)
	}
	return &http.Response{
		Status:        http.StatusText(e.Status),
		StatusCode:    e.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(payload.Bytes)),
		ContentLength: int64(len(payload.Bytes)),
		Request:       req,
	}
}

// keyFile derives the on-disk filename for a request identity (method + URL).
func keyFile(method, url string) string {
	sum := sha256.Sum256([]byte(method + " " + url))
	return hex.EncodeToString(sum[:]) + ".json"
}

// writeEntry stores an entry atomically: temp file in the same directory,
// then rename over the final name.
func writeEntry(dir string, e entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.NewInternal(err)
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(err)
	}
	final := filepath.Join(dir, keyFile(e.Method, e.URL))
	temp := final + "." + hex.EncodeToString(randBytes) + ".tmp"

	if err := os.WriteFile(temp, data, 0600); err != nil {
		return errors.NewStorage(err)
	}
	if err := os.Rename(temp, final); err != nil {
		os.Remove(temp)
		return errors.NewStorage(err)
	}
	return nil
}

// Warm is the install-then-activate lifecycle used by the CLI: install the
// manifest for this version (skipped if already committed, unless force),
// then activate, purging superseded versions.
func (c *Cache) Warm(ctx context.Context, manifest []string, force bool) error {
	if force || !c.Installed() {
		if err := c.Install(ctx, manifest); err != nil {
			return err
		}
	}
	return c.Activate()
}

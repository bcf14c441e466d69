// Package source locates PDF documents given as paths or URLs.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultMaxBytes caps the size of downloaded documents.
const DefaultMaxBytes int64 = 256 << 20

// ErrUnsupportedScheme is returned for URLs that are neither local nor HTTP.
var ErrUnsupportedScheme = errors.New("unsupported URL scheme")

// Document is a PDF available on the local filesystem.
type Document struct {
	Path string

	temp bool
}

// Close removes the file if it was downloaded.
func (d *Document) Close() error {
	if d.temp {
		return os.Remove(d.Path)
	}
	return nil
}

// Fetcher resolves document locations, downloading remote documents into
// temporary files.
type Fetcher struct {
	client    *http.Client
	userAgent string
	headers   map[string]string
	maxBytes  int64
}

// NewFetcher creates a new fetcher
func NewFetcher(userAgent string, headers map[string]string) *Fetcher {
	if userAgent == "" {
		userAgent = "pdfsnap/1.0.0"
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		userAgent: userAgent,
		headers:   headers,
		maxBytes:  DefaultMaxBytes,
	}
}

// Resolve returns a local document for a plain path, a file:// URL or an
// http(s):// URL. The caller must Close the result.
func (f *Fetcher) Resolve(ctx context.Context, location string) (*Document, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		return nil, fmt.Errorf("empty document location")
	}

	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || isDriveLetter(u.Scheme) {
		return f.local(location)
	}

	switch strings.ToLower(u.Scheme) {
	case "file":
		return f.local(filepath.FromSlash(u.Path))
	case "http", "https":
		return f.download(ctx, u.String())
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// IsLocal reports whether Resolve would read location from the local
// filesystem rather than download it.
func IsLocal(location string) bool {
	location = strings.TrimSpace(location)
	u, err := url.Parse(location)
	if err != nil || u.Scheme == "" || isDriveLetter(u.Scheme) {
		return true
	}
	return strings.EqualFold(u.Scheme, "file")
}

func (f *Fetcher) local(path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}
	return &Document{Path: path}, nil
}

// download fetches url into a temporary file
func (f *Fetcher) download(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", f.userAgent)
	for key, value := range f.headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	tmp, err := os.CreateTemp("", "pdfsnap-*.pdf")
	if err != nil {
		return nil, err
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, f.maxBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil && n > f.maxBytes {
		err = fmt.Errorf("document exceeds %d bytes", f.maxBytes)
	}
	if err != nil {
		os.Remove(tmp.Name())
		return nil, err
	}

	return &Document{Path: tmp.Name(), temp: true}, nil
}

// isDriveLetter reports whether a parsed scheme is really a Windows drive.
func isDriveLetter(scheme string) bool {
	return len(scheme) == 1 && filepath.VolumeName(scheme+":") != ""
}

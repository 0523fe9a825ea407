// Package source supplies raw transcript text to the parser. Every failure
// wraps ErrInputUnavailable so callers can tell input problems from parse
// problems.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// ErrInputUnavailable means the raw log could not be obtained.
var ErrInputUnavailable = errors.New("input unavailable")

// Source yields the whole raw log as one block of text.
type Source interface {
	Read(ctx context.Context) (string, error)
	// Ref names the source in logs and events.
	Ref() string
}

// File reads a log file from disk.
type File struct {
	Path string
}

func (f File) Ref() string { return f.Path }

func (f File) Read(_ context.Context) (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("%w: read %s: %v", ErrInputUnavailable, f.Path, err)
	}
	return string(data), nil
}

// HTTP fetches a log over HTTP GET.
type HTTP struct {
	URL    string
	Client *http.Client
}

// NewHTTP returns an HTTP source with a bounded client timeout.
func NewHTTP(url string) *HTTP {
	return &HTTP{URL: url, Client: &http.Client{Timeout: 30 * time.Second}}
}

func (h *HTTP) Ref() string { return h.URL }

func (h *HTTP) Read(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: build request: %v", ErrInputUnavailable, err)
	}

	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: fetch %s: %v", ErrInputUnavailable, h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrInputUnavailable, h.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read body: %v", ErrInputUnavailable, err)
	}
	return string(body), nil
}

// Text is an in-memory log, used for request bodies and bus payloads.
type Text struct {
	Name string
	Body string
}

func (t Text) Ref() string { return t.Name }

func (t Text) Read(_ context.Context) (string, error) { return t.Body, nil }

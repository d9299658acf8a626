package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"wadlib/internal/catalog"
	"wadlib/internal/model"
)

const defaultUserAgent = "wadlib/1"

// HTTPSource downloads with plain GET requests. An entry's own URL takes
// precedence over baseURL + filename.
type HTTPSource struct {
	name      string
	baseURL   string
	userAgent string
	client    *http.Client
}

// NewHTTPSource creates an HTTP source. A nil client uses a client with a
// 30 minute overall timeout.
func NewHTTPSource(name, baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Minute}
	}
	return &HTTPSource{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		client:    client,
	}
}

// WithUserAgent overrides the User-Agent header.
func (s *HTTPSource) WithUserAgent(ua string) *HTTPSource {
	if ua != "" {
		s.userAgent = ua
	}
	return s
}

func (s *HTTPSource) Name() string { return s.name }

func (s *HTTPSource) urlFor(entry catalog.Entry) (string, error) {
	if entry.URL != "" {
		return entry.URL, nil
	}
	if s.baseURL == "" {
		return "", fmt.Errorf("no url for %s and no base url configured", entry.Slug)
	}
	return s.baseURL + "/" + url.PathEscape(entry.Filename), nil
}

// Open issues a GET, with a Range header when offset is positive.
func (s *HTTPSource) Open(ctx context.Context, entry catalog.Entry, offset int64) (*Transfer, error) {
	target, err := s.urlFor(entry)
	if err != nil {
		return nil, err
	}

	resp, err := s.get(ctx, target, offset)
	if err != nil {
		return nil, err
	}

	// The partial file is already complete or larger than the object.
	if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable && offset > 0 {
		resp.Body.Close()
		return s.Open(ctx, entry, 0)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		total := resp.ContentLength
		if total < 0 {
			total = 0
		}
		return &Transfer{Body: resp.Body, Offset: 0, Total: total}, nil
	case http.StatusPartialContent:
		start, total, err := parseContentRange(resp.Header.Get("Content-Range"))
		if err != nil || start != offset {
			resp.Body.Close()
			if err == nil {
				err = fmt.Errorf("server resumed at %d, requested %d", start, offset)
			}
			return nil, fmt.Errorf("resuming %s: %w", target, err)
		}
		return &Transfer{Body: resp.Body, Offset: start, Total: total}, nil
	case http.StatusNotFound, http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: %w", target, model.ErrNotFound)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status %s", target, resp.Status)
	}
}

func (s *HTTPSource) get(ctx context.Context, target string, offset int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	if offset > 0 {
		req.Header.Set("Range", rangeHeader(offset))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target, err)
	}
	return resp, nil
}

// Compile-time check that HTTPSource implements Source
var _ Source = (*HTTPSource)(nil)

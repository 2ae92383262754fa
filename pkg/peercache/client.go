// Package peercache asks a peer-cache service (pacserve) which hosts on the
// local network already hold the pending packages, and keeps the answer
// consistent with the local package cache.
package peercache

//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/glorpus-work/gopill/pkg/errors"
)

// DefaultTimeout bounds one search round-trip.
const DefaultTimeout = 10 * time.Second

// Client queries a peer-cache service.
type Client interface {
	// Search returns a filename to URL mapping for the filenames the service
	// can serve. A nil map means the service had no answer.
	Search(ctx context.Context, server string, filenames []string) (map[string]string, error)
}

// HTTPClient talks to a pacserve instance over HTTP: it POSTs
// {"filenames": [...]} to <server>/search and expects a JSON object mapping
// filenames to URLs. 404 means nothing is known.
type HTTPClient struct {
	client    *http.Client
	userAgent string
}

// NewHTTPClient creates a new HTTP client for peer-cache searches.
func NewHTTPClient(timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		userAgent: "gopill/1.0",
	}
}

type searchRequest struct {
	Filenames []string `json:"filenames"`
}

// Search implements Client.
func (hc *HTTPClient) Search(ctx context.Context, server string, filenames []string) (map[string]string, error) {
	if len(filenames) == 0 {
		return nil, nil
	}
	body, err := json.Marshal(searchRequest{Filenames: filenames})
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode search request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(server, "/")+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %w", errors.ErrPeerCache, err)
	}
	req.Header.Set("User-Agent", hc.userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := hc.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrPeerCache, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: unexpected status code: %d", errors.ErrPeerCache, resp.StatusCode)
	}

	var found map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&found); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %w", errors.ErrPeerCache, err)
	}
	return found, nil
}

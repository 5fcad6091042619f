package artifacts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Gateway fetches raw artifact bytes from remote object storage.
// Implementations are stateless: no caching, no retries, no decoding.
type Gateway interface {
	Fetch(ctx context.Context, bucket, objectPath string) ([]byte, error)
}

// HTTPGateway reads objects over the store's HTTP surface
// (GET {endpoint}/{bucket}/{objectPath}).
type HTTPGateway struct {
	endpoint string
	client   *http.Client
}

// NewHTTPGateway creates a gateway against the given store endpoint,
// e.g. "objectstore.plant.local:9000". Secure selects https.
func NewHTTPGateway(endpoint string, secure bool) *HTTPGateway {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	return &HTTPGateway{
		endpoint: fmt.Sprintf("%s://%s", scheme, endpoint),
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

// Fetch returns the object bytes, ErrNotFound for a missing object, or
// ErrUnavailable when the store cannot be reached or misbehaves.
func (g *HTTPGateway) Fetch(ctx context.Context, bucket, objectPath string) ([]byte, error) {
	u := fmt.Sprintf("%s/%s/%s", g.endpoint, url.PathEscape(bucket), objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", objectPath, err)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s/%s: %w: %v", bucket, objectPath, ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s/%s: %w", bucket, objectPath, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("fetching %s/%s: status %d: %w", bucket, objectPath, resp.StatusCode, ErrUnavailable)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s/%s: %w: %v", bucket, objectPath, ErrUnavailable, err)
	}
	return data, nil
}

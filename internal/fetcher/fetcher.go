// Package fetcher retrieves raw page bytes for the tracker. It is the only
// component that touches the network; the engine consumes its FetchResult
// and never blocks on I/O itself.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/Houeta/rival-radar/internal/models"
)

// maxBodyBytes caps how much of a response body is read. Pathologically
// large pages are cut here; the normalizer flags further truncation.
const maxBodyBytes = 10 << 20

const userAgent = "Mozilla/5.0 (compatible; GoHttpClient/1.0)"

// Fetcher downloads tracked pages over HTTP.
type Fetcher struct {
	log    *slog.Logger
	client *http.Client
}

// New creates a Fetcher with the given request timeout.
func New(log *slog.Logger, timeout time.Duration) *Fetcher {
	return &Fetcher{
		log:    log,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves one page. Failures are reported inside the result, never
// as an error: a failed fetch is the caller's signal to skip the cycle.
func (f *Fetcher) Fetch(ctx context.Context, page models.TrackedPage) models.FetchResult {
	result := models.FetchResult{PageID: page.ID, FetchedAt: time.Now().UTC()}

	body, contentType, err := f.get(ctx, page.URL)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to fetch page", "url", page.URL, "error", err)
		result.FetchError = err.Error()
		return result
	}

	result.Content = body
	result.ContentType = contentType
	result.Succeeded = true

	return result
}

func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, string, error) {
	reqURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to parse destination URL %s: %w", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create new request %s: %w", reqURL.String(), err)
	}

	req.Header.Add("User-Agent", userAgent)

	f.log.DebugContext(ctx, "Send request", "method", req.Method, "URL", req.URL)

	res, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to request %s: %w", rawURL, err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("status code error: [%d] %s", res.StatusCode, res.Status)
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	f.log.DebugContext(ctx, "Successfully received http response", "status code", res.StatusCode, "bytes", len(body))

	return body, res.Header.Get("Content-Type"), nil
}

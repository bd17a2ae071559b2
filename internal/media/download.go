package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrDownloadFailed    = errors.New("image download failed")
)

const maxImageBytes = 25 << 20

// Downloader fetches image bytes, spacing requests with a token bucket.
type Downloader struct {
	client  *http.Client
	limiter *rate.Limiter
	agent   string
	logger  *slog.Logger
}

// NewDownloader allows perSecond requests per second with the given burst.
// A non-positive rate disables pacing.
func NewDownloader(perSecond float64, burst int, logger *slog.Logger) *Downloader {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(limit, burst),
		agent:   "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		logger:  logger.With("component", "downloader"),
	}
}

func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", d.agent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrDownloadFailed, url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read image body: %w", err)
	}
	d.logger.Debug("downloaded image", "url", url, "bytes", len(data))
	return data, nil
}

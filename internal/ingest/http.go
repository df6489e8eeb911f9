package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/vocmax/internal/htmlutil"
	"github.com/lox/vocmax/internal/httputil"
)

// IndexFile lists the object keys served by an HTTP mirror, one per line.
const IndexFile = "index.txt"

// HTTPSource reads weather files from a static HTTP mirror.
type HTTPSource struct {
	baseURL    string
	client     *http.Client
	maxElapsed time.Duration
}

func NewHTTPSource(baseURL string) *HTTPSource {
	return &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		client:     httputil.NewClient(0),
		maxElapsed: 2 * time.Minute,
	}
}

func (h *HTTPSource) Name() string { return "http" }

func (h *HTTPSource) List(ctx context.Context) ([]string, error) {
	body, err := h.get(ctx, IndexFile)
	if err != nil {
		return nil, err
	}
	var keys []string
	sc := bufio.NewScanner(bytes.NewReader(body))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		keys = append(keys, line)
	}
	return keys, sc.Err()
}

func (h *HTTPSource) Fetch(ctx context.Context, key string) ([]byte, error) {
	return h.get(ctx, key)
}

// get retries throttling and server errors with exponential backoff. Other
// failures are permanent.
func (h *HTTPSource) get(ctx context.Context, key string) ([]byte, error) {
	u, err := url.JoinPath(h.baseURL, key)
	if err != nil {
		return nil, fmt.Errorf("url for %s: %w", key, err)
	}

	var body []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := h.client.Do(req)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch %s: %w", key, err))
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("fetch %s: status %d", key, resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return backoff.Permanent(fmt.Errorf("fetch %s: status %d: %s", key, resp.StatusCode,
				htmlutil.Snippet(b, resp.Header.Get("Content-Type"), 200)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = h.maxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return body, nil
}

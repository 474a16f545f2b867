package intel

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"nophish/internal/reputation"
)

const (
	maxResponseBytes   = 10 << 20 // 10 MiB safety cap
	defaultHTTPTimeout = 30 * time.Second
	defaultUserAgent   = "nophish/1.0"
)

func defaultHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

// readBody returns the capped body of a 2xx response, or ErrUnavailable for any other status.
func readBody(resp *http.Response) ([]byte, error) {
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", reputation.ErrUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %w", reputation.ErrUnavailable, err)
	}
	return content, nil
}

package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"nophish/internal/reputation"

	"golang.org/x/time/rate"
)

const (
	defaultAnalysisRequestsPerMinute = 120
	defaultAnalysisBurst             = 10
)

// AnalysisMatch describes one domain the analysis service matched.
type AnalysisMatch struct {
	Domain string `json:"domain"`
	Source string `json:"source"`
	Type   string `json:"type"`
	Trust  bool   `json:"trust"`
}

// AnalysisVerdict is the decoded analysis response.
type AnalysisVerdict struct {
	Match   bool            `json:"match"`
	Matches []AnalysisMatch `json:"matches"`
}

// AnalysisClient submits raw URLs or text to a real-time scoring service and
// trusts its boolean match flag.
type AnalysisClient struct {
	name       string
	url        string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

type AnalysisOption func(*AnalysisClient)

func WithAnalysisName(name string) AnalysisOption {
	return func(c *AnalysisClient) {
		if name != "" {
			c.name = name
		}
	}
}

func WithAnalysisHTTPClient(client *http.Client) AnalysisOption {
	return func(c *AnalysisClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithAnalysisUserAgent(ua string) AnalysisOption {
	return func(c *AnalysisClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithRateLimit bounds the call volume to the service.
func WithRateLimit(requestsPerMinute, burst int) AnalysisOption {
	return func(c *AnalysisClient) {
		if requestsPerMinute <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), burst)
	}
}

func NewAnalysisClient(url string, opts ...AnalysisOption) *AnalysisClient {
	c := &AnalysisClient{
		name:       "Anti-Fish API",
		url:        url,
		userAgent:  defaultUserAgent,
		httpClient: defaultHTTPClient(),
		limiter:    rate.NewLimiter(rate.Every(time.Minute/defaultAnalysisRequestsPerMinute), defaultAnalysisBurst),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AnalysisClient) Name() string {
	return c.name
}

func (c *AnalysisClient) Check(ctx context.Context, input string) (bool, error) {
	verdict, err := c.Analyze(ctx, input)
	if err != nil {
		return false, err
	}
	return verdict.Match, nil
}

// Analyze returns the full verdict including the matched-domain descriptors.
func (c *AnalysisClient) Analyze(ctx context.Context, input string) (*AnalysisVerdict, error) {
	if strings.TrimSpace(input) == "" {
		return &AnalysisVerdict{}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: rate limit wait: %w", reputation.ErrUnavailable, err)
		}
	}

	body, err := json.Marshal(map[string]string{"message": input})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: execute request: %w", reputation.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	content, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	return parseAnalysisVerdict(content)
}

func parseAnalysisVerdict(content []byte) (*AnalysisVerdict, error) {
	var payload struct {
		Match   *bool           `json:"match"`
		Matches []AnalysisMatch `json:"matches"`
	}
	if err := json.Unmarshal(content, &payload); err != nil {
		return nil, fmt.Errorf("%w: %w", reputation.ErrMalformed, err)
	}
	if payload.Match == nil {
		return nil, fmt.Errorf("%w: missing match field", reputation.ErrMalformed)
	}
	return &AnalysisVerdict{Match: *payload.Match, Matches: payload.Matches}, nil
}

package intel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nophish/internal/reputation"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

const (
	defaultSnapshotTTL   = 10 * time.Minute
	snapshotFetchTimeout = 30 * time.Second
)

// CommunityListClient matches domains against a downloaded snapshot of a
// community-maintained phishing list. The snapshot is shared by all callers
// and refreshed at most once per TTL.
type CommunityListClient struct {
	name       string
	url        string
	userAgent  string
	ttl        time.Duration
	httpClient *http.Client
	now        func() time.Time

	mu        sync.RWMutex
	snapshot  []string
	fetchedAt time.Time

	fetches singleflight.Group
}

type CommunityListOption func(*CommunityListClient)

func WithCommunityName(name string) CommunityListOption {
	return func(c *CommunityListClient) {
		if name != "" {
			c.name = name
		}
	}
}

func WithSnapshotTTL(ttl time.Duration) CommunityListOption {
	return func(c *CommunityListClient) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithCommunityHTTPClient(client *http.Client) CommunityListOption {
	return func(c *CommunityListClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithCommunityUserAgent(ua string) CommunityListOption {
	return func(c *CommunityListClient) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func NewCommunityListClient(url string, opts ...CommunityListOption) *CommunityListClient {
	c := &CommunityListClient{
		name:       "Phish.Sinking.Yachts",
		url:        url,
		userAgent:  defaultUserAgent,
		ttl:        defaultSnapshotTTL,
		httpClient: defaultHTTPClient(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *CommunityListClient) Name() string {
	return c.name
}

// Check normalizes the input and reports whether it contains a listed domain
// or is contained in one.
func (c *CommunityListClient) Check(ctx context.Context, input string) (bool, error) {
	domain := reputation.Normalize(input)
	if strings.TrimSpace(domain) == "" {
		return false, nil
	}

	listed, err := c.domains(ctx)
	if err != nil {
		return false, err
	}
	return matchesListed(domain, listed), nil
}

func matchesListed(domain string, listed []string) bool {
	for _, entry := range listed {
		if strings.Contains(domain, entry) || strings.Contains(entry, domain) {
			return true
		}
	}
	return false
}

func (c *CommunityListClient) domains(ctx context.Context) ([]string, error) {
	c.mu.RLock()
	snapshot, fetchedAt := c.snapshot, c.fetchedAt
	c.mu.RUnlock()

	if snapshot != nil && c.now().Sub(fetchedAt) < c.ttl {
		return snapshot, nil
	}

	ch := c.fetches.DoChan("snapshot", func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.Background(), snapshotFetchTimeout)
		defer cancel()
		return c.fetch(fetchCtx)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", reputation.ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			if snapshot != nil {
				log.Warn("Community list refresh failed, using stale snapshot", "source", c.name, "age", c.now().Sub(fetchedAt).Round(time.Second), "error", res.Err)
				return snapshot, nil
			}
			return nil, res.Err
		}
		return res.Val.([]string), nil
	}
}

func (c *CommunityListClient) fetch(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
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

	listed, err := parseCommunityList(content)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.snapshot = listed
	c.fetchedAt = c.now()
	c.mu.Unlock()

	log.Debug("Community list snapshot refreshed", "source", c.name, "domains", len(listed))
	return listed, nil
}

type communityListPayload struct {
	Domains *[]string `json:"domains"`
}

// parseCommunityList accepts either {"domains": [...]} or a bare JSON array.
func parseCommunityList(content []byte) ([]string, error) {
	trimmed := bytes.TrimSpace(content)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", reputation.ErrMalformed)
	}

	var raw []string
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return nil, fmt.Errorf("%w: %w", reputation.ErrMalformed, err)
		}
	case '{':
		var payload communityListPayload
		if err := json.Unmarshal(trimmed, &payload); err != nil {
			return nil, fmt.Errorf("%w: %w", reputation.ErrMalformed, err)
		}
		if payload.Domains == nil {
			return nil, fmt.Errorf("%w: missing domains field", reputation.ErrMalformed)
		}
		raw = *payload.Domains
	default:
		return nil, fmt.Errorf("%w: unexpected payload", reputation.ErrMalformed)
	}

	listed := make([]string, 0, len(raw))
	for _, entry := range raw {
		normalized := strings.TrimSpace(reputation.Normalize(entry))
		if normalized == "" {
			continue
		}
		listed = append(listed, normalized)
	}
	return listed, nil
}

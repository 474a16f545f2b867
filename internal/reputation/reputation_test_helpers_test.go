package reputation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"nophish/internal/database"
)

type fakeStore struct {
	mu       sync.Mutex
	active   map[string]bool
	readErr  error
	writeErr error
	failOnce bool
	writes   int
}

func newFakeStore(active ...string) *fakeStore {
	s := &fakeStore{active: make(map[string]bool)}
	for _, d := range active {
		s.active[d] = true
	}
	return s
}

func (s *fakeStore) IsActiveScam(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return false, s.readErr
	}
	return s.active[strings.ToLower(name)], nil
}

func (s *fakeStore) UpsertScam(_ context.Context, name, _, _ string) (database.UpsertOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.failOnce {
		s.failOnce = false
		return database.UpsertUnchanged, errors.New("transient write failure")
	}
	if s.writeErr != nil {
		return database.UpsertUnchanged, s.writeErr
	}
	if active, ok := s.active[name]; ok {
		if active {
			return database.UpsertUnchanged, nil
		}
		s.active[name] = true
		return database.UpsertReactivated, nil
	}
	s.active[name] = true
	return database.UpsertInserted, nil
}

func (s *fakeStore) DeactivateScam(_ context.Context, name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return false, s.writeErr
	}
	if !s.active[name] {
		return false, nil
	}
	s.active[name] = false
	return true, nil
}

func (s *fakeStore) ListActiveScamDomains(context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	var out []string
	for d, active := range s.active {
		if active {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *fakeStore) CountActiveScams(ctx context.Context) (int64, error) {
	domains, err := s.ListActiveScamDomains(ctx)
	return int64(len(domains)), err
}

func (s *fakeStore) writeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

type fakeClient struct {
	name    string
	matched bool
	err     error
	delay   time.Duration

	mu    sync.Mutex
	calls []string
}

func (c *fakeClient) Name() string { return c.name }

func (c *fakeClient) Check(ctx context.Context, input string) (bool, error) {
	c.mu.Lock()
	c.calls = append(c.calls, input)
	c.mu.Unlock()

	if c.delay > 0 {
		select {
		case <-time.After(c.delay):
		case <-ctx.Done():
			return false, ctx.Err()
		}
	}
	return c.matched, c.err
}

func (c *fakeClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

type recordingPromotions struct {
	mu       sync.Mutex
	requests []PromotionRequest
}

func (r *recordingPromotions) Enqueue(req PromotionRequest) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests = append(r.requests, req)
	return true
}

func (r *recordingPromotions) all() []PromotionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]PromotionRequest(nil), r.requests...)
}

package intel

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nophish/internal/reputation"
)

func TestCommunityListMatchesBothDirections(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"domains":["steamcommunity-gift.ru","", "login.disc0rd.example"]}`))
	}))
	defer srv.Close()

	client := NewCommunityListClient(srv.URL)

	cases := []struct {
		input string
		want  bool
	}{
		{"https://www.steamcommunity-gift.ru/trade", true},
		{"sub.steamcommunity-gift.ru", true},
		{"disc0rd.example", true},
		{"example.org", false},
	}
	for _, tc := range cases {
		got, err := client.Check(context.Background(), tc.input)
		if err != nil {
			t.Fatalf("Check(%q) returned error: %v", tc.input, err)
		}
		if got != tc.want {
			t.Errorf("Check(%q) = %v, want %v", tc.input, got, tc.want)
		}
	}
}

func TestCommunityListAcceptsBareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`["bad.example"]`))
	}))
	defer srv.Close()

	got, err := NewCommunityListClient(srv.URL).Check(context.Background(), "bad.example")
	if err != nil || !got {
		t.Fatalf("Check = %v, %v; want true", got, err)
	}
}

func TestCommunityListErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusBadGateway, "down", reputation.ErrUnavailable},
		{"missing field", http.StatusOK, `{"other":[]}`, reputation.ErrMalformed},
		{"null field", http.StatusOK, `{"domains":null}`, reputation.ErrMalformed},
		{"not json", http.StatusOK, `<html>`, reputation.ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewCommunityListClient(srv.URL).Check(context.Background(), "x.example")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestCommunityListSnapshotIsSharedAndCached(t *testing.T) {
	var hits int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		<-release
		_, _ = w.Write([]byte(`{"domains":["bad.example"]}`))
	}))
	defer srv.Close()

	client := NewCommunityListClient(srv.URL, WithSnapshotTTL(time.Hour))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := client.Check(context.Background(), "bad.example"); err != nil {
				t.Errorf("Check: %v", err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if _, err := client.Check(context.Background(), "bad.example"); err != nil {
		t.Fatalf("Check: %v", err)
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("snapshot downloads = %d, want 1", got)
	}
}

func TestCommunityListServesStaleSnapshotOnFailure(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"domains":["bad.example"]}`))
	}))
	defer srv.Close()

	now := time.Now()
	client := NewCommunityListClient(srv.URL, WithSnapshotTTL(time.Minute))
	client.now = func() time.Time { return now }

	if ok, err := client.Check(context.Background(), "bad.example"); err != nil || !ok {
		t.Fatalf("Check = %v, %v", ok, err)
	}

	fail.Store(true)
	now = now.Add(2 * time.Minute)

	if ok, err := client.Check(context.Background(), "bad.example"); err != nil || !ok {
		t.Fatalf("stale Check = %v, %v; want true from stale snapshot", ok, err)
	}
}

func TestCommunityListRespectsCallerDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := NewCommunityListClient(srv.URL).Check(ctx, "x.example")
	if !errors.Is(err, context.DeadlineExceeded) || !errors.Is(err, reputation.ErrUnavailable) {
		t.Fatalf("error = %v, want deadline exceeded wrapped as unavailable", err)
	}
}

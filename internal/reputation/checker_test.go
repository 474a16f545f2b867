package reputation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"
)

func newTestChecker(store *fakeStore, community, analysis *fakeClient, promotions Promotions) *Checker {
	registry := NewRegistry(store, NewCache())
	return NewChecker(registry, community, analysis,
		WithPromotions(promotions),
		WithScanTimeout(200*time.Millisecond),
		WithCommandTimeout(200*time.Millisecond),
	)
}

func TestCheckAggregatesTiers(t *testing.T) {
	store := newFakeStore()
	community := &fakeClient{name: "Community", matched: true}
	analysis := &fakeClient{name: "Analysis"}
	promotions := &recordingPromotions{}

	result := newTestChecker(store, community, analysis, promotions).Check(context.Background(), "https://www.Evil.example/login")

	if !result.IsScam {
		t.Fatal("expected scam verdict")
	}
	if !reflect.DeepEqual(result.Sources, []string{TierCommunity}) {
		t.Fatalf("sources = %v, want [tier2]", result.Sources)
	}
	if result.Domain != "evil.example" {
		t.Fatalf("domain = %q, want evil.example", result.Domain)
	}
	if analysis.callCount() != 1 {
		t.Fatalf("full check must query tier 3, calls = %d", analysis.callCount())
	}

	reqs := promotions.all()
	if len(reqs) != 1 || reqs[0].Domain != "evil.example" || reqs[0].Source != "Community" {
		t.Fatalf("promotions = %+v", reqs)
	}
}

func TestCheckListsEveryMatchingTier(t *testing.T) {
	store := newFakeStore("evil.example")
	community := &fakeClient{name: "Community", matched: true}
	analysis := &fakeClient{name: "Analysis", matched: true}
	promotions := &recordingPromotions{}

	result := newTestChecker(store, community, analysis, promotions).Check(context.Background(), "evil.example")

	want := []string{TierLocal, TierCommunity, TierAnalysis}
	if !reflect.DeepEqual(result.Sources, want) {
		t.Fatalf("sources = %v, want %v", result.Sources, want)
	}
	if len(promotions.all()) != 0 {
		t.Fatal("domains already in the local tier must not be promoted")
	}
	if !strings.Contains(result.Details[0], "Found in local database (1 domains)") {
		t.Fatalf("details[0] = %q", result.Details[0])
	}
}

func TestCheckFailsOpenOnOutage(t *testing.T) {
	store := newFakeStore()
	community := &fakeClient{name: "Community", err: fmt.Errorf("%w: connection refused", ErrUnavailable)}
	analysis := &fakeClient{name: "Analysis", err: fmt.Errorf("%w: status 503", ErrUnavailable)}

	result := newTestChecker(store, community, analysis, &recordingPromotions{}).Check(context.Background(), "unknown.example")

	if result.IsScam {
		t.Fatal("outage must not produce a scam verdict")
	}
	if len(result.Sources) != 0 {
		t.Fatalf("sources = %v, want empty", result.Sources)
	}
	if len(result.Details) != 3 {
		t.Fatalf("details = %v, want one line per tier", result.Details)
	}
}

func TestCheckTreatsMalformedAndTimeoutAsMiss(t *testing.T) {
	store := newFakeStore()
	community := &fakeClient{name: "Community", err: ErrMalformed}
	analysis := &fakeClient{name: "Analysis", matched: true, delay: time.Second}

	result := newTestChecker(store, community, analysis, &recordingPromotions{}).Check(context.Background(), "slow.example")

	if result.IsScam || len(result.Sources) != 0 {
		t.Fatalf("result = %+v, want clean", result)
	}
	if !strings.Contains(result.Details[1], "unexpected response") {
		t.Fatalf("details[1] = %q", result.Details[1])
	}
	if !strings.Contains(result.Details[2], "timed out") {
		t.Fatalf("details[2] = %q", result.Details[2])
	}
}

func TestCheckStoreFailureIsUnknown(t *testing.T) {
	store := newFakeStore()
	store.readErr = errors.New("db down")
	community := &fakeClient{name: "Community"}
	analysis := &fakeClient{name: "Analysis", matched: true}

	result := newTestChecker(store, community, analysis, &recordingPromotions{}).Check(context.Background(), "x.example")

	if !reflect.DeepEqual(result.Sources, []string{TierAnalysis}) {
		t.Fatalf("sources = %v, want [tier3]", result.Sources)
	}
	if result.Details[0] != "Local database unavailable" {
		t.Fatalf("details[0] = %q", result.Details[0])
	}
}

func TestScanShortCircuits(t *testing.T) {
	t.Run("local hit skips external tiers", func(t *testing.T) {
		store := newFakeStore("evil.example")
		community := &fakeClient{name: "Community", matched: true}
		analysis := &fakeClient{name: "Analysis", matched: true}

		result := newTestChecker(store, community, analysis, &recordingPromotions{}).Scan(context.Background(), "https://evil.example/x")

		if !result.IsScam || community.callCount() != 0 || analysis.callCount() != 0 {
			t.Fatalf("result = %+v, community calls = %d, analysis calls = %d", result, community.callCount(), analysis.callCount())
		}
	})

	t.Run("community hit skips analysis", func(t *testing.T) {
		store := newFakeStore()
		community := &fakeClient{name: "Community", matched: true}
		analysis := &fakeClient{name: "Analysis", matched: true}

		result := newTestChecker(store, community, analysis, &recordingPromotions{}).Scan(context.Background(), "https://evil.example/x")

		if !reflect.DeepEqual(result.Sources, []string{TierCommunity}) {
			t.Fatalf("sources = %v, want [tier2]", result.Sources)
		}
		if analysis.callCount() != 0 {
			t.Fatalf("analysis called %d times, want 0", analysis.callCount())
		}
	})

	t.Run("community miss falls through", func(t *testing.T) {
		store := newFakeStore()
		community := &fakeClient{name: "Community"}
		analysis := &fakeClient{name: "Analysis", matched: true}

		result := newTestChecker(store, community, analysis, &recordingPromotions{}).Scan(context.Background(), "https://evil.example/x")

		if !reflect.DeepEqual(result.Sources, []string{TierAnalysis}) {
			t.Fatalf("sources = %v, want [tier3]", result.Sources)
		}
	})
}

func TestScanAllRunsEveryTier(t *testing.T) {
	store := newFakeStore()
	community := &fakeClient{name: "Community", matched: true}
	analysis := &fakeClient{name: "Analysis", matched: true}

	result := newTestChecker(store, community, analysis, &recordingPromotions{}).ScanAll(context.Background(), "evil.example")

	if !reflect.DeepEqual(result.Sources, []string{TierCommunity, TierAnalysis}) {
		t.Fatalf("sources = %v", result.Sources)
	}
}

func TestAnalysisReceivesRawInput(t *testing.T) {
	store := newFakeStore()
	community := &fakeClient{name: "Community"}
	analysis := &fakeClient{name: "Analysis"}

	newTestChecker(store, community, analysis, &recordingPromotions{}).Check(context.Background(), "https://Evil.example/path")

	if analysis.calls[0] != "https://Evil.example/path" {
		t.Fatalf("analysis input = %q", analysis.calls[0])
	}
}

func TestCheckEmptyInput(t *testing.T) {
	community := &fakeClient{name: "Community"}
	result := newTestChecker(newFakeStore(), community, &fakeClient{name: "Analysis"}, nil).Check(context.Background(), "")
	if result.IsScam || community.callCount() != 0 {
		t.Fatalf("empty input should not reach any tier: %+v", result)
	}
}

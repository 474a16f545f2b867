package support

import (
	"context"
	"strings"
	"testing"
	"time"
)

func TestLeaderLockWithoutRedisRunsDirectly(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ran := false
	lock := NewLeaderLock(nil, "nophish:test", time.Second)
	if err := lock.Run(ctx, func(context.Context) { ran = true }); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !ran {
		t.Fatal("run function was not invoked")
	}
}

func TestLeaderLockRejectsNilRun(t *testing.T) {
	if err := NewLeaderLock(nil, "nophish:test", time.Second).Run(context.Background(), nil); err == nil {
		t.Fatal("expected error for nil run function")
	}
}

func TestNewLeaderLockDefaultsTTL(t *testing.T) {
	lock := NewLeaderLock(nil, "nophish:test", 0)
	if lock.ttl != DefaultLeadershipTTL {
		t.Fatalf("ttl = %v, want %v", lock.ttl, DefaultLeadershipTTL)
	}
}

func TestOwnerIDsAreUnique(t *testing.T) {
	first := newOwnerID()
	second := newOwnerID()
	if first == second {
		t.Fatalf("owner ids should differ, both were %q", first)
	}
	if strings.Count(first, ":") < 2 {
		t.Fatalf("owner id %q missing host/pid/uuid parts", first)
	}
}

func TestRenewEvery(t *testing.T) {
	tests := []struct {
		ttl  time.Duration
		want time.Duration
	}{
		{45 * time.Second, 15 * time.Second},
		{2 * time.Second, time.Second},
		{0, time.Second},
	}
	for _, tc := range tests {
		if got := renewEvery(tc.ttl); got != tc.want {
			t.Fatalf("renewEvery(%v) = %v, want %v", tc.ttl, got, tc.want)
		}
	}
}

package database

import (
	"context"
	"testing"

	"nophish/internal/domain"
)

func TestWhitelistGuildAndGlobalScope(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.AddWhitelist(ctx, domain.WhitelistDomain{Domain: "Guild.example", GuildScope: "100", AddedByUserID: "1", AddedByUsername: "mod"}); err != nil {
		t.Fatalf("AddWhitelist: %v", err)
	}
	if _, err := store.AddWhitelist(ctx, domain.WhitelistDomain{Domain: "global.example", GuildScope: domain.GlobalScope, AddedByUserID: "1", AddedByUsername: "mod"}); err != nil {
		t.Fatalf("AddWhitelist: %v", err)
	}

	cases := []struct {
		domain string
		guild  string
		want   bool
	}{
		{"guild.example", "100", true},
		{"guild.example", "200", false},
		{"global.example", "100", true},
		{"global.example", "200", true},
		{"other.example", "100", false},
	}
	for _, tc := range cases {
		got, err := store.IsWhitelisted(ctx, tc.domain, tc.guild)
		if err != nil {
			t.Fatalf("IsWhitelisted(%s, %s): %v", tc.domain, tc.guild, err)
		}
		if got != tc.want {
			t.Errorf("IsWhitelisted(%s, %s) = %v, want %v", tc.domain, tc.guild, got, tc.want)
		}
	}
}

func TestWhitelistRemoveAndReadd(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	entry := domain.WhitelistDomain{Domain: "safe.example", GuildScope: "100", AddedByUserID: "1", AddedByUsername: "mod", Reason: "partner"}

	outcome, err := store.AddWhitelist(ctx, entry)
	if err != nil || outcome != UpsertInserted {
		t.Fatalf("AddWhitelist = %s, %v; want inserted", outcome, err)
	}
	outcome, err = store.AddWhitelist(ctx, entry)
	if err != nil || outcome != UpsertUnchanged {
		t.Fatalf("second AddWhitelist = %s, %v; want unchanged", outcome, err)
	}

	removed, err := store.RemoveWhitelist(ctx, "safe.example", "100")
	if err != nil || !removed {
		t.Fatalf("RemoveWhitelist = %v, %v; want true", removed, err)
	}
	if ok, _ := store.IsWhitelisted(ctx, "safe.example", "100"); ok {
		t.Fatal("removed entry should not whitelist")
	}

	outcome, err = store.AddWhitelist(ctx, entry)
	if err != nil || outcome != UpsertReactivated {
		t.Fatalf("re-add = %s, %v; want reactivated", outcome, err)
	}

	var rows int64
	store.db.Model(&domain.WhitelistDomain{}).Where("domain = ?", "safe.example").Count(&rows)
	if rows != 1 {
		t.Fatalf("rows = %d, want 1", rows)
	}

	list, err := store.ListWhitelist(ctx, "100", 25)
	if err != nil || len(list) != 1 {
		t.Fatalf("ListWhitelist = %v, %v", list, err)
	}
	count, err := store.CountWhitelist(ctx, "100")
	if err != nil || count != 1 {
		t.Fatalf("CountWhitelist = %d, %v; want 1", count, err)
	}
}

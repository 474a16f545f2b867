package commands

import (
	"context"
	"fmt"
	"strings"

	"nophish/internal/domain"
	"nophish/internal/reputation"
	"nophish/internal/reveal"

	"github.com/charmbracelet/log"
)

const whitelistNote = "Domain is whitelisted for this server; message scanning skips it"

// CheckReport is the full diagnostic result of a manual check.
type CheckReport struct {
	reputation.Result
	Whitelisted bool `json:"whitelisted"`
	// Entry is the stored row behind a local match.
	Entry *domain.ScamDomain `json:"entry,omitempty"`
}

// Check runs every tier for one domain. The whitelist does not change the
// verdict, it only adds a note.
func (s *Service) Check(ctx context.Context, inv Invoker, input string) (CheckReport, error) {
	if _, err := normalizeArgument(input); err != nil {
		return CheckReport{}, err
	}

	report := CheckReport{Result: s.checker.Check(ctx, strings.TrimSpace(input))}

	if report.Matched(reputation.TierLocal) {
		entry, err := s.store.FindScam(ctx, report.Domain)
		if err != nil {
			log.Warn("Scam entry lookup failed during check", "domain", report.Domain, "error", err)
		}
		report.Entry = entry
	}

	if inv.GuildID != "" {
		whitelisted, err := s.store.IsWhitelisted(ctx, report.Domain, inv.GuildID)
		if err != nil {
			log.Warn("Whitelist lookup failed during check", "domain", report.Domain, "guild_id", inv.GuildID, "error", err)
		}
		if whitelisted {
			report.Whitelisted = true
			report.Details = append(report.Details, whitelistNote)
		}
	}

	log.Info("Manual domain check", "domain", report.Domain, "guild_id", inv.GuildID, "user", inv.Username, "is_scam", report.IsScam, "sources", report.Sources)
	return report, nil
}

// ListChange reports the effect of a blacklist or whitelist edit.
type ListChange struct {
	Domain  string `json:"domain"`
	Scope   string `json:"scope,omitempty"`
	Outcome string `json:"outcome"`
	Changed bool   `json:"changed"`
}

func (s *Service) BlacklistAdd(ctx context.Context, inv Invoker, input, reason string) (ListChange, error) {
	name, err := normalizeArgument(input)
	if err != nil {
		return ListChange{}, err
	}

	notes := fmt.Sprintf("Added by %s", inv.Username)
	if reason = strings.TrimSpace(reason); reason != "" {
		notes += ": " + reason
	}

	outcome, err := s.blacklist.Promote(ctx, name, domain.SourceManual, notes)
	if err != nil {
		return ListChange{}, fmt.Errorf("blacklist %s: %w", name, err)
	}

	log.Info("Domain blacklisted", "domain", name, "outcome", outcome.String(), "user", inv.Username, "guild_id", inv.GuildID)
	return ListChange{Domain: name, Outcome: outcome.String(), Changed: outcome.Changed()}, nil
}

func (s *Service) BlacklistRemove(ctx context.Context, inv Invoker, input string) (ListChange, error) {
	name, err := normalizeArgument(input)
	if err != nil {
		return ListChange{}, err
	}

	changed, err := s.blacklist.Deactivate(ctx, name)
	if err != nil {
		return ListChange{}, fmt.Errorf("remove %s from blacklist: %w", name, err)
	}

	outcome := "not_found"
	if changed {
		outcome = "deactivated"
		log.Info("Domain removed from blacklist", "domain", name, "user", inv.Username, "guild_id", inv.GuildID)
	}
	return ListChange{Domain: name, Outcome: outcome, Changed: changed}, nil
}

// BlacklistList returns the manually added active domains.
func (s *Service) BlacklistList(ctx context.Context) ([]domain.ScamDomain, error) {
	return s.store.ListScamsBySource(ctx, domain.SourceManual, listLimit)
}

func (s *Service) WhitelistAdd(ctx context.Context, inv Invoker, input, reason string, global bool) (ListChange, error) {
	name, err := normalizeArgument(input)
	if err != nil {
		return ListChange{}, err
	}
	scope, err := s.whitelistScope(inv, global)
	if err != nil {
		return ListChange{}, err
	}

	outcome, err := s.store.AddWhitelist(ctx, domain.WhitelistDomain{
		Domain:          name,
		GuildScope:      scope,
		GuildName:       inv.GuildName,
		AddedByUserID:   inv.UserID,
		AddedByUsername: inv.Username,
		Reason:          strings.TrimSpace(reason),
	})
	if err != nil {
		return ListChange{}, fmt.Errorf("whitelist %s: %w", name, err)
	}

	log.Info("Domain whitelisted", "domain", name, "scope", scope, "outcome", outcome.String(), "user", inv.Username)
	return ListChange{Domain: name, Scope: scope, Outcome: outcome.String(), Changed: outcome.Changed()}, nil
}

func (s *Service) WhitelistRemove(ctx context.Context, inv Invoker, input string, global bool) (ListChange, error) {
	name, err := normalizeArgument(input)
	if err != nil {
		return ListChange{}, err
	}
	scope, err := s.whitelistScope(inv, global)
	if err != nil {
		return ListChange{}, err
	}

	changed, err := s.store.RemoveWhitelist(ctx, name, scope)
	if err != nil {
		return ListChange{}, fmt.Errorf("remove %s from whitelist: %w", name, err)
	}

	outcome := "not_found"
	if changed {
		outcome = "deactivated"
		log.Info("Domain removed from whitelist", "domain", name, "scope", scope, "user", inv.Username)
	}
	return ListChange{Domain: name, Scope: scope, Outcome: outcome, Changed: changed}, nil
}

func (s *Service) WhitelistList(ctx context.Context, inv Invoker) ([]domain.WhitelistDomain, error) {
	if err := requireGuild(inv); err != nil {
		return nil, err
	}
	return s.store.ListWhitelist(ctx, inv.GuildID, listLimit)
}

// whitelistScope resolves the scope of a whitelist change. Global entries
// disable scanning in every guild, so they are reserved for the owner.
func (s *Service) whitelistScope(inv Invoker, global bool) (string, error) {
	if global {
		if !s.isOwner(inv) {
			log.Warn("Global whitelist change blocked", "user", inv.Username, "user_id", inv.UserID, "guild", inv.GuildID)
			return "", ErrForbidden
		}
		return domain.GlobalScope, nil
	}
	if err := requireGuild(inv); err != nil {
		return "", err
	}
	return inv.GuildID, nil
}

// Reveal returns the findings hidden behind a warning.
func (s *Service) Reveal(ctx context.Context, token string) ([]reveal.Finding, error) {
	if s.reveals == nil {
		return nil, ErrUnavailable
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidArgument
	}
	return s.reveals.Get(ctx, token)
}

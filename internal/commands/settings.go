package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"nophish/internal/domain"

	"github.com/charmbracelet/log"
)

// Setting names accepted by UpdateConfig.
const (
	SettingAutoDelete    = "auto_delete"
	SettingSendWarnings  = "send_warnings"
	SettingLogDetections = "log_detections"
	SettingLogChannel    = "log_channel"
	SettingManualReview  = "manual_review"
	SettingScamThreshold = "scam_threshold"
)

// SettingNames lists every updatable setting in display order.
var SettingNames = []string{
	SettingAutoDelete,
	SettingSendWarnings,
	SettingLogDetections,
	SettingLogChannel,
	SettingManualReview,
	SettingScamThreshold,
}

func (s *Service) ShowConfig(ctx context.Context, inv Invoker) (domain.ServerConfig, error) {
	if err := requireGuild(inv); err != nil {
		return domain.ServerConfig{}, err
	}
	return s.store.GetServerConfig(ctx, inv.GuildID)
}

// UpdateConfig validates and applies one setting inside the settings lock.
// An invalid value leaves the stored settings untouched.
func (s *Service) UpdateConfig(ctx context.Context, inv Invoker, setting, value string) (domain.ServerConfig, error) {
	if err := requireGuild(inv); err != nil {
		return domain.ServerConfig{}, err
	}

	apply, err := settingUpdate(strings.ToLower(strings.TrimSpace(setting)), strings.TrimSpace(value))
	if err != nil {
		return domain.ServerConfig{}, err
	}

	cfg, err := s.store.UpdateServerConfig(ctx, inv.GuildID, func(cfg *domain.ServerConfig) error {
		apply(cfg)
		s.stamp(cfg, inv)
		return nil
	})
	if err != nil {
		return domain.ServerConfig{}, err
	}

	log.Info("Guild settings updated", "guild_id", inv.GuildID, "setting", setting, "value", value, "user", inv.Username)
	return cfg, nil
}

// SetDefending switches message scanning on or off for the guild.
func (s *Service) SetDefending(ctx context.Context, inv Invoker, active bool) (domain.ServerConfig, error) {
	if err := requireGuild(inv); err != nil {
		return domain.ServerConfig{}, err
	}

	cfg, err := s.store.UpdateServerConfig(ctx, inv.GuildID, func(cfg *domain.ServerConfig) error {
		cfg.DefendingMode = active
		s.stamp(cfg, inv)
		return nil
	})
	if err != nil {
		return domain.ServerConfig{}, err
	}

	log.Info("Defending mode changed", "guild_id", inv.GuildID, "active", active, "user", inv.Username)
	return cfg, nil
}

func (s *Service) stamp(cfg *domain.ServerConfig, inv Invoker) {
	if inv.GuildName != "" {
		cfg.GuildName = inv.GuildName
	}
	cfg.UpdatedByUserID = inv.UserID
	cfg.UpdatedByUsername = inv.Username
}

func settingUpdate(setting, value string) (func(*domain.ServerConfig), error) {
	switch setting {
	case SettingAutoDelete, SettingSendWarnings, SettingLogDetections, SettingManualReview:
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s expects true or false", ErrInvalidArgument, setting)
		}
		return func(cfg *domain.ServerConfig) {
			switch setting {
			case SettingAutoDelete:
				cfg.AutoDeleteScamMessages = enabled
			case SettingSendWarnings:
				cfg.SendWarningMessages = enabled
			case SettingLogDetections:
				cfg.LogDetections = enabled
			case SettingManualReview:
				cfg.RequireManualReview = enabled
			}
		}, nil

	case SettingLogChannel:
		channelID := strings.TrimSuffix(strings.TrimPrefix(value, "<#"), ">")
		if channelID != "" {
			if _, err := strconv.ParseUint(channelID, 10, 64); err != nil {
				return nil, fmt.Errorf("%w: log_channel expects a channel mention or id", ErrInvalidArgument)
			}
		}
		return func(cfg *domain.ServerConfig) {
			cfg.LogChannelID = channelID
		}, nil

	case SettingScamThreshold:
		threshold, err := strconv.Atoi(value)
		if err != nil || threshold < domain.MinScamThreshold || threshold > domain.MaxScamThreshold {
			return nil, fmt.Errorf("%w: scam_threshold must be a number between %d and %d",
				ErrInvalidArgument, domain.MinScamThreshold, domain.MaxScamThreshold)
		}
		return func(cfg *domain.ServerConfig) {
			cfg.ScamThreshold = threshold
		}, nil
	}

	return nil, fmt.Errorf("%w: unknown setting %q", ErrInvalidArgument, setting)
}

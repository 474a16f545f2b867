package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/charmbracelet/log"
)

type Config struct {
	UserAgent string `json:"user_agent"`

	Feed struct {
		URL          string `json:"url"`
		SourceName   string `json:"source_name"`
		BatchSize    int    `json:"batch_size"`
		RefreshTimer Timer  `json:"refresh_timer"`
	} `json:"feed"`

	CommunityList struct {
		URL         string `json:"url"`
		Name        string `json:"name"`
		SnapshotTTL Timer  `json:"snapshot_ttl"`
	} `json:"community_list"`

	Analysis struct {
		URL               string `json:"url"`
		Name              string `json:"name"`
		RequestsPerMinute int    `json:"requests_per_minute"`
		Burst             int    `json:"burst"`
	} `json:"analysis"`

	Checker struct {
		ScanTimeout        Timer `json:"scan_timeout"`
		CommandTimeout     Timer `json:"command_timeout"`
		PromotionQueueSize int   `json:"promotion_queue_size"`
		ScanConcurrency    int   `json:"scan_concurrency"`
	} `json:"checker"`

	Reveal struct {
		TTL Timer `json:"ttl"`
	} `json:"reveal"`
}

type Timer struct {
	Days    uint32 `json:"days"`
	Hours   uint32 `json:"hours"`
	Minutes uint32 `json:"minutes"`
	Seconds uint32 `json:"seconds"`
}

// IsZero reports whether no component of the timer is set.
func (t Timer) IsZero() bool {
	return t.Days == 0 && t.Hours == 0 && t.Minutes == 0 && t.Seconds == 0
}

const defaultSettingsFilePath = "data/settings.json"

var (
	//go:embed default_settings.json
	defaultConfig []byte

	configValue atomic.Value
	configMu    sync.Mutex

	settingsFilePath = defaultSettingsFilePath
)

func init() {
	var cfg Config
	if err := json.Unmarshal(defaultConfig, &cfg); err != nil {
		panic("config: embedded default settings are invalid: " + err.Error())
	}
	configValue.Store(cfg)
}

// DefaultConfig returns the embedded defaults.
func DefaultConfig() Config {
	var cfg Config
	_ = json.Unmarshal(defaultConfig, &cfg)
	return cfg
}

// SetSettingsPath overrides where ReadSettings looks for the settings file.
func SetSettingsPath(path string) {
	if path == "" {
		path = defaultSettingsFilePath
	}
	configMu.Lock()
	settingsFilePath = path
	configMu.Unlock()
}

// ReadSettings loads the settings file, seeding it with the embedded defaults
// when it does not exist yet. Missing fields keep their default values.
func ReadSettings() error {
	configMu.Lock()
	path := settingsFilePath
	configMu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return err
		}

		log.Warn("Settings file not found, creating with default configuration", "path", path)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, defaultConfig, 0o644); err != nil {
			return err
		}
		data = defaultConfig
	}

	newConfig := DefaultConfig()
	if err := json.Unmarshal(data, &newConfig); err != nil {
		return err
	}

	if err := applyConfigUpdate(newConfig, configUpdateOptions{source: "file"}); err != nil {
		return err
	}

	log.Debug("Settings file loaded successfully", "path", path)
	return nil
}

// SetConfig replaces the active configuration and persists it.
func SetConfig(newConfig Config) error {
	return applyConfigUpdate(newConfig, configUpdateOptions{persistToFile: true, source: "local"})
}

type configUpdateOptions struct {
	persistToFile bool
	source        string
}

func applyConfigUpdate(newConfig Config, opts configUpdateOptions) error {
	configMu.Lock()
	defer configMu.Unlock()

	configValue.Store(newConfig)
	SetRefreshInterval()

	var errs []error

	if opts.persistToFile {
		data, err := json.MarshalIndent(newConfig, "", "  ")
		if err != nil {
			log.Error("Error marshalling new configuration", "error", err)
			errs = append(errs, err)
		} else if err := os.WriteFile(settingsFilePath, data, 0o644); err != nil {
			log.Error("Error writing new configuration to file", "error", err)
			errs = append(errs, err)
		}
	}

	if opts.source != "" {
		log.Debug("Configuration applied", "source", opts.source)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func GetConfig() Config {
	return configValue.Load().(Config)
}

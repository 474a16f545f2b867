package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nophish/internal/database"
	"nophish/internal/domain"
	"nophish/internal/reputation"

	"github.com/charmbracelet/log"
)

const (
	defaultBatchSize  = 1000
	defaultSourceName = "Discord-AntiScam GitHub"
	commentMarker     = "#"
)

var ErrEmptyFeed = errors.New("feed is empty")

// Store is the part of the database the importer writes to.
type Store interface {
	ListKnownScamDomains(ctx context.Context) ([]string, error)
	InsertScamBatch(ctx context.Context, names []string, source, notes string) (database.BatchResult, error)
	InsertImportLog(ctx context.Context, entry *domain.ImportLog) error
}

// CacheWriter receives the active domains of each committed batch.
type CacheWriter interface {
	AddCached(ctx context.Context, domains ...string)
}

// Result summarises one import run.
type Result struct {
	Imported   int `json:"imported"`
	Skipped    int `json:"skipped"`
	Unique     int `json:"unique"`
	Duplicates int `json:"duplicates"`
	Comments   int `json:"comments"`
	Blank      int `json:"blank"`
}

// Importer bulk-loads a newline-delimited domain feed into the store.
type Importer struct {
	store     Store
	cache     CacheWriter
	source    string
	batchSize int
}

type ImporterOption func(*Importer)

func WithSourceName(name string) ImporterOption {
	return func(i *Importer) {
		if name != "" {
			i.source = name
		}
	}
}

func WithBatchSize(size int) ImporterOption {
	return func(i *Importer) {
		if size > 0 {
			i.batchSize = size
		}
	}
}

func NewImporter(store Store, cache CacheWriter, opts ...ImporterOption) *Importer {
	i := &Importer{
		store:     store,
		cache:     cache,
		source:    defaultSourceName,
		batchSize: defaultBatchSize,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Importer) Source() string {
	return i.source
}

type parsedFeed struct {
	domains    []string
	duplicates int
	comments   int
	blank      int
}

// parseFeed normalizes and deduplicates the entries of a feed, keeping feed order.
func parseFeed(feedText string) parsedFeed {
	var parsed parsedFeed
	seen := make(map[string]struct{})

	for _, line := range strings.Split(feedText, "\n") {
		entry := strings.TrimSpace(line)
		switch {
		case entry == "":
			parsed.blank++
			continue
		case strings.HasPrefix(entry, commentMarker):
			parsed.comments++
			continue
		}

		name := strings.TrimSpace(reputation.Normalize(entry))
		if name == "" {
			parsed.blank++
			continue
		}
		if _, dup := seen[name]; dup {
			parsed.duplicates++
			continue
		}
		seen[name] = struct{}{}
		parsed.domains = append(parsed.domains, name)
	}

	return parsed
}

// Import stores every feed domain the store does not know yet, in batches of
// one transaction each. A failed batch stops the run and batches committed
// before it stay committed; the next run skips them, so a retry converges on
// the same state. Domains known to the store in any state are skipped, so
// manual removals are not undone by the feed. Only domains the store reports
// active after a batch reach the cache.
func (i *Importer) Import(ctx context.Context, feedText string) (Result, error) {
	parsed := parseFeed(feedText)
	result := Result{
		Unique:     len(parsed.domains),
		Duplicates: parsed.duplicates,
		Comments:   parsed.comments,
		Blank:      parsed.blank,
		Skipped:    parsed.duplicates,
	}
	if len(parsed.domains) == 0 {
		return result, ErrEmptyFeed
	}

	known, err := i.store.ListKnownScamDomains(ctx)
	if err != nil {
		return result, fmt.Errorf("feed: list known domains: %w", err)
	}
	knownSet := make(map[string]struct{}, len(known))
	for _, name := range known {
		knownSet[strings.ToLower(name)] = struct{}{}
	}

	fresh := make([]string, 0, len(parsed.domains))
	for _, name := range parsed.domains {
		if _, exists := knownSet[name]; exists {
			result.Skipped++
			continue
		}
		fresh = append(fresh, name)
	}

	notes := "Imported from " + i.source
	for start := 0; start < len(fresh); start += i.batchSize {
		end := start + i.batchSize
		if end > len(fresh) {
			end = len(fresh)
		}
		batch := fresh[start:end]

		written, err := i.store.InsertScamBatch(ctx, batch, i.source, notes)
		if err != nil {
			log.Error("Feed batch insert failed", "source", i.source, "batch_start", start, "batch_size", len(batch), "error", err)
			return result, fmt.Errorf("feed: insert batch: %w", err)
		}

		if i.cache != nil && len(written.Active) > 0 {
			i.cache.AddCached(ctx, written.Active...)
		}

		result.Imported += int(written.Inserted)
		result.Skipped += len(batch) - int(written.Inserted)
	}

	if result.Imported > 0 {
		entry := &domain.ImportLog{
			Source:          i.source,
			ImportDate:      time.Now().UTC(),
			DomainsImported: result.Imported,
			DomainsSkipped:  result.Skipped,
			Notes:           fmt.Sprintf("Processed %d unique domains from feed", result.Unique),
		}
		if err := i.store.InsertImportLog(ctx, entry); err != nil {
			log.Warn("Failed to write import log", "source", i.source, "error", err)
		}
	}

	log.Info("Feed import complete", "source", i.source, "imported", result.Imported, "skipped", result.Skipped, "unique", result.Unique)
	return result, nil
}

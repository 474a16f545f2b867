package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"nophish/internal/database"
	"nophish/internal/domain"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupFeedTestStore(t *testing.T) *database.Store {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	store, err := database.SetupDB(database.WithExistingDB(db))
	if err != nil {
		t.Fatalf("setup store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

type recordingCache struct {
	mu      sync.Mutex
	domains []string
}

func (c *recordingCache) AddCached(_ context.Context, domains ...string) {
	c.mu.Lock()
	c.domains = append(c.domains, domains...)
	c.mu.Unlock()
}

// failingStore accepts a fixed number of batches and then fails.
type failingStore struct {
	okBatches int
	inserted  []string
	logs      int
}

func (s *failingStore) ListKnownScamDomains(context.Context) ([]string, error) {
	return nil, nil
}

func (s *failingStore) InsertScamBatch(_ context.Context, names []string, _, _ string) (database.BatchResult, error) {
	if s.okBatches == 0 {
		return database.BatchResult{}, errors.New("connection reset")
	}
	s.okBatches--
	s.inserted = append(s.inserted, names...)
	return database.BatchResult{Inserted: int64(len(names)), Active: names}, nil
}

// staleListingStore hides every stored domain from the known-domain listing,
// as if rows changed between the listing and the insert.
type staleListingStore struct {
	*database.Store
}

func (staleListingStore) ListKnownScamDomains(context.Context) ([]string, error) {
	return nil, nil
}

func (s *failingStore) InsertImportLog(context.Context, *domain.ImportLog) error {
	s.logs++
	return nil
}

package reputation

import (
	"context"
	"errors"
	"sync"
	"time"

	"nophish/internal/database"

	"github.com/charmbracelet/log"
)

const (
	promotionBatchWindow      = 50 * time.Millisecond
	promotionBatchMaxItems    = 256
	promotionDefaultQueueSize = 1024
	promotionWriteTimeout     = 10 * time.Second
)

var ErrPromoterClosed = errors.New("promoter closed")

// PromotionRequest asks for a domain confirmed by an external tier to be stored.
type PromotionRequest struct {
	Domain string
	Source string
	Notes  string
}

// PromotionResult reports what happened to one promoted domain.
type PromotionResult struct {
	Request  PromotionRequest
	Outcome  database.UpsertOutcome
	Attempts int
	Err      error
}

type promoteFunc func(ctx context.Context, domain, source, notes string) (database.UpsertOutcome, error)

// Promoter writes auto-learned domains in the background. Requests are queued
// on a bounded channel, collected over a short window and deduplicated by
// domain before they reach the store.
type Promoter struct {
	promote  promoteFunc
	requests chan PromotionRequest
	onResult func(PromotionResult)

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

type PromoterOption func(*Promoter)

func WithQueueSize(size int) PromoterOption {
	return func(p *Promoter) {
		if size > 0 {
			p.requests = make(chan PromotionRequest, size)
		}
	}
}

// WithResultHandler registers a callback invoked once per processed domain.
func WithResultHandler(fn func(PromotionResult)) PromoterOption {
	return func(p *Promoter) {
		p.onResult = fn
	}
}

func NewPromoter(registry *Registry, opts ...PromoterOption) *Promoter {
	return newPromoter(registry.Promote, opts...)
}

func newPromoter(fn promoteFunc, opts ...PromoterOption) *Promoter {
	p := &Promoter{
		promote:  fn,
		requests: make(chan PromotionRequest, promotionDefaultQueueSize),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	go p.run()
	return p
}

// Enqueue hands the request to the worker without blocking. It returns false
// when the queue is full or the promoter has been closed.
func (p *Promoter) Enqueue(req PromotionRequest) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		log.Warn("Promotion dropped: promoter closed", "domain", req.Domain, "source", req.Source)
		return false
	}

	select {
	case p.requests <- req:
		return true
	default:
		log.Warn("Promotion dropped: queue full", "domain", req.Domain, "source", req.Source)
		return false
	}
}

// Close stops accepting requests and waits until queued ones are written or ctx ends.
func (p *Promoter) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.requests)
	}
	p.mu.Unlock()

	if ctx == nil {
		ctx = context.Background()
	}

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Promoter) run() {
	defer close(p.done)

	batch := make([]PromotionRequest, 0, promotionBatchMaxItems)
	var timer *time.Timer
	var timerC <-chan time.Time

	stopTimer := func() {
		if timer != nil {
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer = nil
			timerC = nil
		}
	}

	flush := func() {
		if len(batch) == 0 {
			return
		}
		items := make([]PromotionRequest, len(batch))
		copy(items, batch)
		batch = batch[:0]
		p.processBatch(items)
	}

	for {
		select {
		case req, ok := <-p.requests:
			if !ok {
				stopTimer()
				flush()
				return
			}
			batch = append(batch, req)
			if len(batch) >= promotionBatchMaxItems {
				stopTimer()
				flush()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(promotionBatchWindow)
				timerC = timer.C
			}
		case <-timerC:
			timer = nil
			timerC = nil
			flush()
		}
	}
}

func (p *Promoter) processBatch(batch []PromotionRequest) {
	seen := make(map[string]struct{}, len(batch))
	unique := make([]PromotionRequest, 0, len(batch))
	for _, req := range batch {
		key := cacheKey(req.Domain)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		req.Domain = key
		unique = append(unique, req)
	}

	if dropped := len(batch) - len(unique); dropped > 0 {
		log.Debug("Promotion batch deduplicated", "requests", len(batch), "unique", len(unique))
	}

	for _, req := range unique {
		result := p.write(req)
		if p.onResult != nil {
			p.onResult(result)
		}
	}
}

// write tries the store once and retries once more on failure.
func (p *Promoter) write(req PromotionRequest) PromotionResult {
	result := PromotionResult{Request: req}

	for attempt := 1; attempt <= 2; attempt++ {
		result.Attempts = attempt

		ctx, cancel := context.WithTimeout(context.Background(), promotionWriteTimeout)
		outcome, err := p.promote(ctx, req.Domain, req.Source, req.Notes)
		cancel()

		if err == nil {
			result.Outcome = outcome
			result.Err = nil
			if outcome.Changed() {
				log.Info("Domain promoted to scam database", "domain", req.Domain, "source", req.Source, "outcome", outcome.String())
			}
			return result
		}
		result.Err = err
	}

	log.Warn("Promotion failed, dropping", "domain", req.Domain, "source", req.Source, "attempts", result.Attempts, "error", result.Err)
	return result
}

package reputation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Tier names recorded in Result.Sources, in evaluation order.
const (
	TierLocal     = "tier1"
	TierCommunity = "tier2"
	TierAnalysis  = "tier3"
)

const (
	defaultScanTimeout    = 10 * time.Second
	defaultCommandTimeout = 30 * time.Second
)

// Result is the aggregated verdict for one domain.
type Result struct {
	Domain  string   `json:"domain"`
	IsScam  bool     `json:"is_scam"`
	Sources []string `json:"sources"`
	Details []string `json:"details"`
}

// Matched reports whether the given tier matched.
func (r Result) Matched(tier string) bool {
	for _, source := range r.Sources {
		if source == tier {
			return true
		}
	}
	return false
}

// Promotions accepts fire-and-forget promotion requests.
type Promotions interface {
	Enqueue(req PromotionRequest) bool
}

// Checker runs the three reputation tiers in order: the local registry, the
// community list and the analysis service.
type Checker struct {
	registry   *Registry
	community  Client
	analysis   Client
	promotions Promotions

	scanTimeout    time.Duration
	commandTimeout time.Duration
}

type CheckerOption func(*Checker)

func WithPromotions(p Promotions) CheckerOption {
	return func(c *Checker) {
		c.promotions = p
	}
}

func WithScanTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.scanTimeout = d
		}
	}
}

func WithCommandTimeout(d time.Duration) CheckerOption {
	return func(c *Checker) {
		if d > 0 {
			c.commandTimeout = d
		}
	}
}

func NewChecker(registry *Registry, community, analysis Client, opts ...CheckerOption) *Checker {
	c := &Checker{
		registry:       registry,
		community:      community,
		analysis:       analysis,
		scanTimeout:    defaultScanTimeout,
		commandTimeout: defaultCommandTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Checker) Registry() *Registry {
	return c.registry
}

type evaluation struct {
	shortCircuit bool
	timeout      time.Duration
	countLocal   bool
}

// Check runs every tier with the command timeout and reports all findings.
func (c *Checker) Check(ctx context.Context, input string) Result {
	return c.evaluate(ctx, input, evaluation{timeout: c.commandTimeout, countLocal: true})
}

// Scan is the message-path variant: a local hit returns at once and a
// community-list hit skips the analysis service.
func (c *Checker) Scan(ctx context.Context, input string) Result {
	return c.evaluate(ctx, input, evaluation{shortCircuit: true, timeout: c.scanTimeout})
}

// ScanAll runs every tier with the scan timeout. It is used when a guild needs
// more than one matching tier before acting.
func (c *Checker) ScanAll(ctx context.Context, input string) Result {
	return c.evaluate(ctx, input, evaluation{timeout: c.scanTimeout})
}

func (c *Checker) evaluate(ctx context.Context, input string, eval evaluation) Result {
	domain := Normalize(input)
	result := Result{Domain: domain, Sources: []string{}, Details: []string{}}

	if strings.TrimSpace(domain) == "" {
		result.Details = append(result.Details, "Nothing to check")
		return result
	}

	localHit := c.checkLocal(ctx, domain, eval, &result)
	if localHit && eval.shortCircuit {
		return result
	}

	var promoted []string

	communityHit := c.checkRemote(ctx, c.community, TierCommunity, input, domain, eval, &result,
		"Flagged by %s community database", "Not flagged by %s")
	if communityHit && !localHit {
		promoted = append(promoted, c.community.Name())
		c.schedulePromotion(domain, c.community.Name())
	}

	if !(communityHit && eval.shortCircuit) {
		analysisHit := c.checkRemote(ctx, c.analysis, TierAnalysis, input, domain, eval, &result,
			"Detected by %s real-time analysis", "Not detected by %s")
		if analysisHit && !localHit {
			promoted = append(promoted, c.analysis.Name())
			c.schedulePromotion(domain, c.analysis.Name())
		}
	}

	if len(promoted) > 0 {
		result.Details = append(result.Details, fmt.Sprintf("Domain queued for addition to database (detected by: %s)", strings.Join(promoted, " + ")))
	}

	log.Debug("Reputation check complete", "domain", domain, "is_scam", result.IsScam, "sources", len(result.Sources))
	return result
}

func (c *Checker) checkLocal(ctx context.Context, domain string, eval evaluation, result *Result) bool {
	if c.registry == nil {
		result.Details = append(result.Details, "Local database not configured")
		return false
	}

	hit, err := c.registry.IsKnownScam(ctx, domain)
	if err != nil {
		log.Error("Local scam lookup failed", "domain", domain, "error", err)
		result.Details = append(result.Details, "Local database unavailable")
		return false
	}
	if !hit {
		result.Details = append(result.Details, "Not found in local database")
		return false
	}

	result.IsScam = true
	result.Sources = append(result.Sources, TierLocal)

	if eval.countLocal {
		if count, err := c.registry.Count(ctx); err == nil {
			result.Details = append(result.Details, fmt.Sprintf("Found in local database (%d domains)", count))
			return true
		}
	}
	result.Details = append(result.Details, "Found in local database")
	return true
}

func (c *Checker) checkRemote(ctx context.Context, client Client, tier, input, domain string, eval evaluation, result *Result, hitFormat, missFormat string) bool {
	if client == nil {
		result.Details = append(result.Details, fmt.Sprintf("%s source not configured", tier))
		return false
	}

	tierCtx, cancel := context.WithTimeout(ctx, eval.timeout)
	matched, err := client.Check(tierCtx, input)
	cancel()

	name := client.Name()
	if err != nil {
		log.Warn("Reputation tier failed", "tier", tier, "source", name, "domain", domain, "error", err)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			result.Details = append(result.Details, fmt.Sprintf("%s timed out after %s", name, eval.timeout))
		case errors.Is(err, ErrMalformed):
			result.Details = append(result.Details, fmt.Sprintf("%s returned an unexpected response", name))
		default:
			result.Details = append(result.Details, fmt.Sprintf("%s error: %v", name, err))
		}
		return false
	}

	if !matched {
		result.Details = append(result.Details, fmt.Sprintf(missFormat, name))
		return false
	}

	result.IsScam = true
	result.Sources = append(result.Sources, tier)
	result.Details = append(result.Details, fmt.Sprintf(hitFormat, name))
	return true
}

func (c *Checker) schedulePromotion(domain, source string) {
	if c.promotions == nil {
		log.Warn("Promotion skipped: no promotion queue", "domain", domain, "source", source)
		return
	}
	c.promotions.Enqueue(PromotionRequest{
		Domain: domain,
		Source: source,
		Notes:  "Auto-detected by " + source,
	})
}

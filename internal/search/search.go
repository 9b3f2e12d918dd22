/*
Package search runs one pass over the catalog: it primes a locator session,
searches every item in random order with human-like pauses, builds store maps
and hands the finished report to the notifier.
*/
package search

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/shanehull/bottlescraper/internal/metrics"
	"github.com/shanehull/bottlescraper/internal/olcc"
	"github.com/shanehull/bottlescraper/internal/types"
)

// ErrSessionEstablishment aborts a run before any item is searched.
var ErrSessionEstablishment = errors.New("session establishment failed")

// Session is a primed browsing session against the store locator.
type Session interface {
	Prime(ctx context.Context) error
	Search(ctx context.Context, code, zip, radius string) ([]byte, error)
}

type MapBuilder interface {
	Build(ctx context.Context, entry types.CatalogEntry, zip string, addresses []string) (types.MapArtifact, error)
}

type Notifier interface {
	SendReport(report *types.Report, recipients []string) error
}

// RunLog is the append-only audit log of a run.
type RunLog interface {
	Append(text string)
	Appendf(format string, args ...any)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Config struct {
	ZIP           string
	Radius        string
	Catalog       []types.CatalogEntry
	PrimeDelayMin time.Duration
	PrimeDelayMax time.Duration
	ItemDelayMin  time.Duration
	ItemDelayMax  time.Duration
	Recipients    []string
}

type Runner struct {
	cfg      Config
	session  Session
	maps     MapBuilder
	notifier Notifier
	log      RunLog
	metrics  *metrics.Metrics
	rng      *rand.Rand
	sleep    SleepFunc
	now      func() time.Time

	outcomes []types.ItemOutcome
}

func NewRunner(cfg Config, session Session, log RunLog, rng *rand.Rand) *Runner {
	return &Runner{
		cfg:     cfg,
		session: session,
		log:     log,
		rng:     rng,
		sleep:   Sleep,
		now:     time.Now,
	}
}

// WithMaps enables map building for multi-store results.
func (r *Runner) WithMaps(maps MapBuilder) *Runner {
	r.maps = maps
	return r
}

func (r *Runner) WithNotifier(notifier Notifier) *Runner {
	r.notifier = notifier
	return r
}

func (r *Runner) WithMetrics(m *metrics.Metrics) *Runner {
	r.metrics = m
	return r
}

func (r *Runner) WithSleep(sleep SleepFunc) *Runner {
	r.sleep = sleep
	return r
}

func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	return r
}

// Outcomes returns the per-item results of the last run in search order.
func (r *Runner) Outcomes() []types.ItemOutcome {
	return r.outcomes
}

// mapRequest is a multi-store item waiting for its map.
type mapRequest struct {
	entry     types.CatalogEntry
	addresses []string
}

// Run performs one full pass. It returns ErrSessionEstablishment when the
// session cannot be primed and the context error when interrupted; item
// failures and notification failures are logged, not returned.
func (r *Runner) Run(ctx context.Context) (*types.Report, error) {
	r.outcomes = nil
	report := types.NewReport(r.now(), r.cfg.ZIP, r.cfg.Radius)

	start := time.Now()
	r.metrics.IncRequest("prime")
	err := r.session.Prime(ctx)
	r.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		r.metrics.IncError(olcc.ErrorTypeLabel(err))
		r.log.Appendf("Session establishment failed: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrSessionEstablishment, err)
	}

	r.log.Appendf("Bot has started (zip=%s, radius=%s)", r.cfg.ZIP, r.cfg.Radius)
	slog.Info("Session established, starting search", "zip", r.cfg.ZIP, "radius", r.cfg.Radius, "items", len(r.cfg.Catalog))

	if err := r.sleep(ctx, r.randomDelay(r.cfg.PrimeDelayMin, r.cfg.PrimeDelayMax)); err != nil {
		return nil, r.interrupted(err)
	}

	catalog := r.shuffled()
	var pending []mapRequest

	for i, entry := range catalog {
		outcome, result := r.searchItem(ctx, entry)
		r.outcomes = append(r.outcomes, outcome)
		r.metrics.IncItem(outcome.Kind.String())

		if result.InStock() {
			text := olcc.Format(result)
			report.AddSection(text)
			r.log.Appendf("Stock found for item: %s: %s", entry.Name, text)
			if addresses := result.Addresses(); len(addresses) > 0 {
				pending = append(pending, mapRequest{entry: entry, addresses: addresses})
			}
		} else if outcome.Err == nil {
			r.log.Appendf("No stock found for item: %s", entry.Name)
		}

		if i == len(catalog)-1 {
			break
		}
		if err := r.sleep(ctx, r.randomDelay(r.cfg.ItemDelayMin, r.cfg.ItemDelayMax)); err != nil {
			return nil, r.interrupted(err)
		}
	}

	r.buildMaps(ctx, report, pending)

	if r.notifier != nil {
		if err := r.notifier.SendReport(report, r.cfg.Recipients); err != nil {
			r.metrics.IncEmail("failed")
			r.log.Appendf("Email delivery failed: %v", err)
		} else {
			r.metrics.IncEmail("sent")
		}
	}

	r.log.Append("Bot completed")
	r.metrics.MarkCompleted(r.now())
	return report, nil
}

// searchItem fetches and classifies one catalog entry. A failed request is
// recorded as no stock.
func (r *Runner) searchItem(ctx context.Context, entry types.CatalogEntry) (types.ItemOutcome, types.SearchResult) {
	outcome := types.ItemOutcome{Entry: entry, Kind: types.NoStock}

	start := time.Now()
	r.metrics.IncRequest("search")
	body, err := r.session.Search(ctx, entry.Code, r.cfg.ZIP, r.cfg.Radius)
	r.metrics.ObserveDuration(time.Since(start))
	if err != nil {
		r.metrics.IncError(olcc.ErrorTypeLabel(err))
		r.log.Appendf("Request failed for item: %s: %v", entry.Name, err)
		slog.Warn("Search request failed", "code", entry.Code, "item", entry.Name, "error", err)
		outcome.Err = err
		return outcome, types.NewNoStock()
	}

	result, err := olcc.ClassifyHTML(bytes.NewReader(body))
	if err != nil {
		r.log.Appendf("Request failed for item: %s: %v", entry.Name, err)
		outcome.Err = err
		return outcome, types.NewNoStock()
	}

	outcome.Kind = result.Kind
	switch result.Kind {
	case types.SingleStore:
		outcome.Stores = 1
	case types.MultiStore:
		outcome.Stores = len(result.Rows)
	}
	slog.Debug("Item searched", "code", entry.Code, "kind", result.Kind.String(), "stores", outcome.Stores)
	return outcome, result
}

func (r *Runner) buildMaps(ctx context.Context, report *types.Report, pending []mapRequest) {
	if r.maps == nil {
		return
	}
	for _, req := range pending {
		artifact, err := r.maps.Build(ctx, req.entry, r.cfg.ZIP, req.addresses)
		if err != nil {
			slog.Warn("Failed to build map", "code", req.entry.Code, "error", err)
			continue
		}
		r.metrics.AddGeocodeFailures(len(artifact.Skipped))
		report.AddMap(artifact)
	}
}

func (r *Runner) interrupted(err error) error {
	r.log.Appendf("Bot interrupted: %v", err)
	return fmt.Errorf("run interrupted: %w", err)
}

func (r *Runner) shuffled() []types.CatalogEntry {
	catalog := make([]types.CatalogEntry, len(r.cfg.Catalog))
	copy(catalog, r.cfg.Catalog)
	r.rng.Shuffle(len(catalog), func(i, j int) {
		catalog[i], catalog[j] = catalog[j], catalog[i]
	})
	return catalog
}

// randomDelay returns a duration in [lo, hi].
func (r *Runner) randomDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.rng.Int64N(int64(hi-lo)+1))
}

// Sleep waits for d unless ctx is cancelled first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

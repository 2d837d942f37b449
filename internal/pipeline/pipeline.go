// Package pipeline runs one complete search: collect, filter, score, record.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/dedup"
	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/ledger"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/lock"
	"github.com/spigell/jobscout/internal/logger"
	"github.com/spigell/jobscout/internal/metrics"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/scoring"
	"github.com/spigell/jobscout/internal/source"
)

const DefaultAITimeout = 120 * time.Second

// ErrRunInProgress is returned when another run holds the run lock.
var ErrRunInProgress = lock.ErrLocked

// Config tunes a run. Zero values are taken literally: TopN 0 asks the AI
// scorer about nothing. Start from DefaultConfig.
type Config struct {
	DedupThreshold int
	TopN           int
	AITimeout      time.Duration
	AIProvider     string
	// DisabledFilters lists filter names to skip, e.g. "ledger" for a dry run.
	DisabledFilters []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DedupThreshold: dedup.DefaultThreshold,
		TopN:           scoring.DefaultTopN,
		AITimeout:      DefaultAITimeout,
		AIProvider:     "gemini",
	}
}

// PrepareFunc runs while the run lock is held, before anything is collected.
type PrepareFunc func(ctx context.Context) error

// Deps holds the collaborators of a run. Scorer may be nil, in which case
// every listing is ranked by its rule score alone.
type Deps struct {
	Collectors []source.Collector
	Profiles   *profile.Context
	Ledger     ledger.Store
	Scorer     ai.Scorer
	Locker     lock.Locker
	Logger     *zap.Logger
	Now        func() time.Time
}

// Summary counts how many listings survived each stage of a run.
type Summary struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	Raw       int       `json:"raw"`
	Eligible  int       `json:"eligible"`
	Unique    int       `json:"unique"`
	New       int       `json:"new"`
	Delivered int       `json:"delivered"`
	High      int       `json:"high"`
	Medium    int       `json:"medium"`
	// Rejected counts eligibility rejections by reason, e.g. "location".
	Rejected map[string]int `json:"rejected"`
}

// Outcome is the result of a successful run.
type Outcome struct {
	Summary Summary          `json:"summary"`
	Results []scoring.Result `json:"results"`
}

type Pipeline struct {
	cfg  Config
	deps Deps

	mu   sync.RWMutex
	last *Outcome
}

func New(cfg Config, deps Deps) (*Pipeline, error) {
	if deps.Profiles == nil {
		return nil, errors.New("profile context is required")
	}
	if deps.Ledger == nil {
		return nil, errors.New("ledger is required")
	}
	if deps.Locker == nil {
		deps.Locker = lock.NewLocal()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.TopN < 0 {
		return nil, fmt.Errorf("top-n must not be negative, got %d", cfg.TopN)
	}
	if cfg.AITimeout <= 0 {
		cfg.AITimeout = DefaultAITimeout
	}
	if cfg.AIProvider == "" {
		cfg.AIProvider = "gemini"
	}

	return &Pipeline{cfg: cfg, deps: deps}, nil
}

// Last returns the outcome of the most recent successful run, or nil.
func (p *Pipeline) Last() *Outcome {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.last
}

// Run executes one search. It fails fast with ErrRunInProgress when another
// run holds the lock. A run that finds nothing is a success with no results.
func (p *Pipeline) Run(ctx context.Context) (*Outcome, error) {
	return p.RunWith(ctx, nil)
}

// RunWith is Run with a prepare step executed once the lock is held. A busy
// pipeline never calls prepare, and a prepare error aborts the run.
func (p *Pipeline) RunWith(ctx context.Context, prepare PrepareFunc) (out *Outcome, err error) {
	release, err := p.deps.Locker.TryLock(ctx)
	if err != nil {
		if errors.Is(err, lock.ErrLocked) {
			return nil, ErrRunInProgress
		}
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	defer func() {
		if rerr := release(context.Background()); rerr != nil {
			p.deps.Logger.Warn("releasing run lock", zap.Error(rerr))
		}
	}()

	start := time.Now()
	defer func() { metrics.ObserveRun(start, err) }()

	if prepare != nil {
		if err := prepare(ctx); err != nil {
			return nil, fmt.Errorf("prepare run: %w", err)
		}
	}

	summary := Summary{RunID: uuid.NewString(), StartedAt: p.deps.Now()}
	log := p.deps.Logger.With(zap.String("run_id", summary.RunID))
	snapshot := p.deps.Profiles.Current()

	log.Info("starting run",
		zap.Int("sources", len(p.deps.Collectors)),
		zap.Int("profile_version", p.deps.Profiles.Version()),
	)

	if err := p.deps.Ledger.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("prepare ledger: %w", err)
	}

	batch := source.CollectAll(ctx, p.deps.Collectors, log)
	summary.Raw = batch.Len()
	metrics.ObserveStage("collected", summary.Raw)

	steps := filtering.Default()
	for _, name := range p.cfg.DisabledFilters {
		filtering.DisableByName(steps, name, "disabled by configuration")
	}

	deps := filtering.Deps{Logger: log, Profile: snapshot, Ledger: p.deps.Ledger, Now: p.deps.Now}
	batch, reports, err := filtering.Run(ctx, &filtering.Config{DedupThreshold: p.cfg.DedupThreshold}, deps, steps, batch)
	if err != nil {
		return nil, fmt.Errorf("filter listings: %w", err)
	}
	summary.Eligible, summary.Unique, summary.New = stageCounts(summary.Raw, reports)
	summary.Rejected = rejections(filtering.Describe(steps))

	results := p.score(ctx, log, batch, snapshot)

	recordedAt := p.deps.Now()
	entries := make([]ledger.Entry, batch.Len())
	for i, l := range batch.Items {
		entries[i] = ledger.NewEntry(l, results[i].Score, recordedAt)
	}
	if err := p.deps.Ledger.RecordAll(ctx, entries); err != nil {
		return nil, fmt.Errorf("record delivered listings: %w", err)
	}

	scoring.Rank(results)

	counts := scoring.CountByPriority(results)
	summary.Delivered = len(results)
	summary.High = counts[ai.PriorityHigh]
	summary.Medium = counts[ai.PriorityMedium]
	metrics.ObserveStage("delivered", summary.Delivered)

	log.Info("run finished",
		zap.Int("raw", summary.Raw),
		zap.Int("eligible", summary.Eligible),
		zap.Int("unique", summary.Unique),
		zap.Int("new", summary.New),
		zap.Int("delivered", summary.Delivered),
		zap.Int("high", summary.High),
		zap.Int("medium", summary.Medium),
		zap.Any("rejected", summary.Rejected),
		zap.Duration("took", time.Since(start)),
	)

	out = &Outcome{Summary: summary, Results: results}

	p.mu.Lock()
	p.last = out
	p.mu.Unlock()

	return out, nil
}

// score blends rule scores with AI opinions for the top listings.
// Results are returned in batch order.
func (p *Pipeline) score(ctx context.Context, log *zap.Logger, batch *listing.Listings, snapshot *profile.Profile) []scoring.Result {
	ruleScores := make([]float64, batch.Len())
	for i, l := range batch.Items {
		ruleScores[i] = scoring.RuleScore(l, snapshot)
	}

	opinions := make([]*ai.Opinion, batch.Len())
	if p.deps.Scorer != nil {
		for _, idx := range scoring.SelectTop(ruleScores, p.cfg.TopN) {
			opinions[idx] = p.opinion(ctx, log, batch.Items[idx], snapshot)
		}
	}

	results := make([]scoring.Result, batch.Len())
	for i, l := range batch.Items {
		results[i] = scoring.Blend(l, ruleScores[i], opinions[i])
	}
	return results
}

// opinion asks the AI scorer about one listing. Any failure means no opinion.
func (p *Pipeline) opinion(ctx context.Context, log *zap.Logger, l *listing.Listing, snapshot *profile.Profile) *ai.Opinion {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.AITimeout)
	defer cancel()

	start := time.Now()
	opinion, err := p.deps.Scorer.Score(callCtx, l, snapshot)
	metrics.ObserveAIRequest(p.cfg.AIProvider, start, err)
	if err != nil {
		log.Warn("ai scoring failed, keeping rule score",
			append(logger.ListingFields(l.Title, l.Company, l.Source), zap.Error(err))...,
		)
		return nil
	}
	return opinion
}

// stageCounts maps filter reports to the eligible, unique and new counters.
// A stage that did not run passes its input count through.
func stageCounts(raw int, reports []filtering.Report) (eligible, unique, fresh int) {
	left := map[string]int{}
	for _, r := range reports {
		left[r.Name] = r.Left
	}

	eligible = raw
	if n, ok := left[filtering.EligibilityName]; ok {
		eligible = n
	}
	unique = eligible
	if n, ok := left[filtering.DedupName]; ok {
		unique = n
	}
	fresh = unique
	if n, ok := left[filtering.LedgerName]; ok {
		fresh = n
	}
	return eligible, unique, fresh
}

// rejections collects the per-reason counters reported by the filters.
func rejections(statuses []filtering.Status) map[string]int {
	out := map[string]int{}
	for _, st := range statuses {
		for key, value := range st.Details {
			reason, ok := strings.CutPrefix(key, filtering.RejectedPrefix)
			if !ok {
				continue
			}
			if n, err := strconv.Atoi(value); err == nil {
				out[reason] += n
			}
		}
	}
	return out
}

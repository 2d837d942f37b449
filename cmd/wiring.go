package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/ai/gemini"
	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/ledger"
	"github.com/spigell/jobscout/internal/lock"
	"github.com/spigell/jobscout/internal/pipeline"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/secrets"
	"github.com/spigell/jobscout/internal/source"
)

type buildOptions struct {
	watchProfile bool
	ignoreLedger bool
	disableAI    bool
}

// components are the long lived pieces a command needs.
type components struct {
	pipeline *pipeline.Pipeline
	profiles *profile.Context
	closers  []func()
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

func build(ctx context.Context, config *Config, logger *zap.Logger, opts buildOptions) (*components, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}

	comps := &components{}

	profiles, err := loadProfile(config.Profile, opts.watchProfile, logger)
	if err != nil {
		return nil, err
	}
	comps.profiles = profiles

	store, err := newLedger(ctx, config.Ledger, comps)
	if err != nil {
		comps.Close()
		return nil, err
	}

	locker, err := newLocker(config.Lock, logger, comps)
	if err != nil {
		comps.Close()
		return nil, err
	}

	var scorer ai.Scorer
	if !opts.disableAI && config.AI != nil && config.AI.Enabled {
		scorer, err = newAIScorer(ctx, config.AI, logger)
		if err != nil {
			logger.Warn("skipping AI scoring", zap.Error(err))
			scorer = nil
		}
	}

	pcfg := pipeline.DefaultConfig()
	if config.Dedup != nil {
		pcfg.DedupThreshold = config.Dedup.Threshold
	}
	if config.Scoring != nil {
		pcfg.TopN = config.Scoring.TopN
	}
	if config.AI != nil {
		if config.AI.Timeout > 0 {
			pcfg.AITimeout = config.AI.Timeout
		}
		if config.AI.Provider != "" {
			pcfg.AIProvider = config.AI.Provider
		}
	}
	if opts.ignoreLedger {
		pcfg.DisabledFilters = append(pcfg.DisabledFilters, filtering.LedgerName)
	}

	p, err := pipeline.New(pcfg, pipeline.Deps{
		Collectors: newCollectors(config.Sources, logger),
		Profiles:   profiles,
		Ledger:     store,
		Scorer:     scorer,
		Locker:     locker,
		Logger:     logger,
	})
	if err != nil {
		comps.Close()
		return nil, err
	}
	comps.pipeline = p

	return comps, nil
}

func loadProfile(path string, watch bool, logger *zap.Logger) (*profile.Context, error) {
	if watch {
		pc, err := profile.Watch(path, logger)
		if err != nil {
			return nil, fmt.Errorf("loading profile: %w", err)
		}
		return pc, nil
	}

	p, err := profile.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return profile.NewContext(p), nil
}

func newLedger(ctx context.Context, cfg *LedgerConfig, comps *components) (ledger.Store, error) {
	if cfg == nil {
		cfg = &LedgerConfig{Driver: ledger.DriverFile}
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", ledger.DriverFile:
		return ledger.NewFileStore(cfg.Path), nil
	case ledger.DriverPostgres:
		dsn, err := secrets.Load(secrets.Source{
			Name:  "database dsn",
			Value: cfg.DSN,
			File:  cfg.DSNFile,
		})
		if err != nil {
			return nil, fmt.Errorf("%w (set ledger.dsn, ledger.dsn-file or JOBSCOUT_DATABASE_URL)", err)
		}

		pool, err := ledger.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, pool.Close)

		return ledger.NewPostgresStore(pool), nil
	default:
		return nil, fmt.Errorf("unsupported ledger driver: %s", cfg.Driver)
	}
}

func newLocker(cfg *LockConfig, logger *zap.Logger, comps *components) (lock.Locker, error) {
	if cfg == nil {
		return lock.NewLocal(), nil
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", lock.DriverLocal:
		return lock.NewLocal(), nil
	case lock.DriverRedis:
		locker, err := lock.NewRedis(cfg.RedisURL, cfg.TTL, logger)
		if err != nil {
			return nil, err
		}
		comps.closers = append(comps.closers, func() {
			if err := locker.Close(); err != nil {
				logger.Warn("closing redis client", zap.Error(err))
			}
		})
		return locker, nil
	default:
		return nil, fmt.Errorf("unsupported lock driver: %s", cfg.Driver)
	}
}

func newCollectors(cfg *SourcesConfig, logger *zap.Logger) []source.Collector {
	if cfg == nil {
		return nil
	}

	collectors := make([]source.Collector, 0, len(cfg.Files)+len(cfg.Feeds))
	for _, path := range cfg.Files {
		collectors = append(collectors, source.NewFile(path, ""))
	}
	for _, feed := range cfg.Feeds {
		f := source.NewFeed(feed.Name, feed.URL, logger)
		if cfg.UserAgent != "" {
			f.UserAgent = cfg.UserAgent
		}
		collectors = append(collectors, f)
	}

	if len(collectors) == 0 {
		logger.Warn("no sources configured", zap.String("hint", "set sources.files or sources.feeds"))
	}
	return collectors
}

func newAIScorer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Scorer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, errors.New("gemini configuration is required when ai scoring is enabled")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
		Env:  "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries))

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewScorer(generator, logger, cfg.Gemini.MaxLogLength), nil
}

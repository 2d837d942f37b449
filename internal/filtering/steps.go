package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/jobscout/internal/dedup"
	"github.com/spigell/jobscout/internal/eligibility"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/logger"
)

const (
	EligibilityName = "eligibility"
	DedupName       = "dedup"
	LedgerName      = "ledger"

	// RejectedPrefix marks Status.Details keys that count rejected listings.
	RejectedPrefix = "rejected_"
)

type eligibilityFilter struct {
	toggle
	rejected map[eligibility.Reason]int
}

// NewEligibility creates a filter that drops listings failing any eligibility gate.
func NewEligibility() Filter {
	return &eligibilityFilter{}
}

func (f *eligibilityFilter) Name() string { return EligibilityName }

func (f *eligibilityFilter) Validate(*Config) error { return nil }

func (f *eligibilityFilter) Apply(_ context.Context, deps Deps, batch *listing.Listings) (*listing.Listings, Step, error) {
	initial := batch.Len()
	if deps.Profile == nil {
		return batch, Step{}, errors.New("profile is required")
	}

	now := deps.now()
	f.rejected = make(map[eligibility.Reason]int)

	dropped := batch.Keep(func(l *listing.Listing) bool {
		reason := eligibility.Evaluate(l, deps.Profile, now)
		if reason == eligibility.Eligible {
			return true
		}
		f.rejected[reason]++
		deps.Logger.Debug("listing rejected",
			append(logger.ListingFields(l.Title, l.Company, l.Source), zap.String("reason", string(reason)))...,
		)
		return false
	})

	return batch, Step{Initial: initial, Dropped: dropped, Left: batch.Len()}, nil
}

func (f *eligibilityFilter) Status() Status {
	details := map[string]string{}
	for reason, count := range f.rejected {
		details[RejectedPrefix+string(reason)] = strconv.Itoa(count)
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type dedupFilter struct {
	toggle
	threshold int
}

// NewDedup creates a filter that collapses near-identical listings within the batch.
func NewDedup() Filter {
	return &dedupFilter{}
}

func (f *dedupFilter) Name() string { return DedupName }

func (f *dedupFilter) Validate(cfg *Config) error {
	f.threshold = dedup.DefaultThreshold
	if cfg != nil {
		f.threshold = cfg.DedupThreshold
	}
	if f.threshold < 0 || f.threshold > 100 {
		return fmt.Errorf("dedup threshold must be within 0..100, got %d", f.threshold)
	}
	return nil
}

func (f *dedupFilter) Apply(_ context.Context, _ Deps, batch *listing.Listings) (*listing.Listings, Step, error) {
	initial := batch.Len()
	dropped := dedup.Reconcile(batch, f.threshold)
	return batch, Step{Initial: initial, Dropped: dropped, Left: batch.Len()}, nil
}

func (f *dedupFilter) Status() Status {
	details := map[string]string{"threshold": strconv.Itoa(f.threshold)}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason, Details: details}
}

type ledgerFilter struct {
	toggle
}

// NewLedger creates a filter that removes listings delivered by an earlier run.
func NewLedger() Filter {
	return &ledgerFilter{}
}

func (f *ledgerFilter) Name() string { return LedgerName }

func (f *ledgerFilter) Validate(*Config) error { return nil }

// Apply fails the whole step on the first storage error.
func (f *ledgerFilter) Apply(ctx context.Context, deps Deps, batch *listing.Listings) (*listing.Listings, Step, error) {
	initial := batch.Len()
	if deps.Ledger == nil {
		return batch, Step{}, errors.New("ledger is required")
	}

	var lookupErr error
	dropped := batch.Keep(func(l *listing.Listing) bool {
		if lookupErr != nil {
			return true
		}
		delivered, err := deps.Ledger.WasDelivered(ctx, l)
		if err != nil {
			lookupErr = err
			return true
		}
		if delivered {
			deps.Logger.Debug("listing already delivered", logger.ListingFields(l.Title, l.Company, l.Source)...)
		}
		return !delivered
	})
	if lookupErr != nil {
		return batch, Step{}, fmt.Errorf("check ledger: %w", lookupErr)
	}

	return batch, Step{Initial: initial, Dropped: dropped, Left: batch.Len()}, nil
}

func (f *ledgerFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}

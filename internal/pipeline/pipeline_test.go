package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spigell/jobscout/internal/ai"
	"github.com/spigell/jobscout/internal/filtering"
	"github.com/spigell/jobscout/internal/ledger"
	"github.com/spigell/jobscout/internal/listing"
	"github.com/spigell/jobscout/internal/lock"
	"github.com/spigell/jobscout/internal/profile"
	"github.com/spigell/jobscout/internal/source"
)

var now = time.Date(2026, 2, 19, 12, 0, 0, 0, time.UTC)

const fullDescription = "Cybersecurity SaaS vendor for healthcare IT running on cloud infrastructure. " +
	"You will own onboarding, renewals, Salesforce hygiene, SQL reporting and API integrations."

type stubScorer struct {
	mu      sync.Mutex
	calls   []string
	opinion ai.Opinion
	err     error
}

func (s *stubScorer) Score(_ context.Context, l *listing.Listing, _ *profile.Profile) (*ai.Opinion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, l.Company)
	if s.err != nil {
		return nil, s.err
	}
	o := s.opinion
	return &o, nil
}

// failingLedger rejects every batch write.
type failingLedger struct {
	ledger.Store
	writes int
}

func (f *failingLedger) RecordAll(context.Context, []ledger.Entry) error {
	f.writes++
	return errors.New("connection reset")
}

func configWith(mod func(*Config)) Config {
	cfg := DefaultConfig()
	mod(&cfg)
	return cfg
}

func testProfiles(t *testing.T) *profile.Context {
	t.Helper()

	p := profile.Default()
	p.RoleTags = []string{"customer success", "solutions engineer", "account manager"}
	p.PriorityCompanies = []string{"TestCorp", "PriorityCo", "SentinelOne"}
	p.IndustryTags = []string{"cybersecurity", "saas", "healthcare it", "cloud infrastructure"}
	p.Skills = []string{"onboarding", "renewals", "salesforce", "sql", "api"}
	p.SalaryRange.Min = 130000
	p.Scoring.PrimaryRoleTags = []string{"Customer Success Manager"}
	p.Scoring.SecondaryRoleTags = []string{"Solutions Engineer"}

	if err := p.Validate(); err != nil {
		t.Fatalf("invalid test profile: %v", err)
	}
	return profile.NewContext(p)
}

func job(title, company, url string, salaryMin int, description string) *listing.Listing {
	return &listing.Listing{
		Title:       title,
		Company:     company,
		URL:         url,
		Location:    "Remote - US",
		IsRemote:    true,
		SalaryMin:   salaryMin,
		Description: description,
		PostedAt:    now,
	}
}

func newPipeline(t *testing.T, cfg Config, scorer ai.Scorer, items ...*listing.Listing) (*Pipeline, *ledger.FileStore) {
	t.Helper()

	store := ledger.NewFileStore(filepath.Join(t.TempDir(), "ledger.json"))
	deps := Deps{
		Collectors: []source.Collector{&source.Static{SourceName: "board", Items: items}},
		Profiles:   testProfiles(t),
		Ledger:     store,
		Locker:     lock.NewLocal(),
		Now:        func() time.Time { return now },
	}
	if scorer != nil {
		deps.Scorer = scorer
	}

	p, err := New(cfg, deps)
	if err != nil {
		t.Fatalf("creating pipeline: %v", err)
	}
	return p, store
}

func TestRunEndToEnd(t *testing.T) {
	scorer := &stubScorer{opinion: ai.Opinion{FitScore: 30, Priority: ai.PriorityHigh, Summary: "Strong fit"}}
	p, store := newPipeline(t, DefaultConfig(), scorer,
		job("Customer Success Manager", "TestCorp", "https://example.com/csm", 140000, fullDescription),
	)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(out.Results) != 1 {
		t.Fatalf("expected one result, got %d", len(out.Results))
	}
	r := out.Results[0]
	if r.RuleScore != 50 || r.AIScore != 30 || r.Score != 80 || r.Priority != ai.PriorityHigh {
		t.Fatalf("unexpected result: %+v", r)
	}

	s := out.Summary
	if s.Raw != 1 || s.Eligible != 1 || s.Unique != 1 || s.New != 1 || s.Delivered != 1 || s.High != 1 {
		t.Fatalf("unexpected summary: %+v", s)
	}
	if s.RunID == "" {
		t.Fatalf("expected run id")
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	if len(entries) != 1 || entries[0].Score != 80 {
		t.Fatalf("expected recorded listing, got %+v", entries)
	}

	if p.Last() != out {
		t.Fatalf("expected last outcome to be kept")
	}

	again, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on second run: %v", err)
	}
	if again.Summary.New != 0 || len(again.Results) != 0 {
		t.Fatalf("delivered listing must not be delivered twice: %+v", again.Summary)
	}
}

func TestRunScoresOnlyTopN(t *testing.T) {
	scorer := &stubScorer{opinion: ai.Opinion{FitScore: 10, Priority: ai.PriorityMedium}}
	p, _ := newPipeline(t, configWith(func(c *Config) { c.TopN = 2 }), scorer,
		job("Solutions Engineer", "Beta", "https://example.com/a", 0, ""),
		job("Customer Success Manager", "PriorityCo", "https://example.com/b", 140000, "salesforce onboarding renewals sql api"),
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
		job("Customer Success Manager", "SentinelOne", "https://example.com/d", 111000, ""),
		job("Account Manager", "Acme", "https://example.com/e", 0, ""),
	)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scorer.calls) != 2 || scorer.calls[0] != "PriorityCo" || scorer.calls[1] != "SentinelOne" {
		t.Fatalf("expected AI calls for the two best listings, got %v", scorer.calls)
	}

	expected := map[string]struct {
		rule float64
		ai   int
		prio ai.Priority
	}{
		"Beta":        {10, 0, ai.PriorityLow},
		"PriorityCo":  {40, 10, ai.PriorityMedium},
		"Gamma":       {20, 0, ai.PriorityMedium},
		"SentinelOne": {30, 10, ai.PriorityMedium},
		"Acme":        {5, 0, ai.PriorityLow},
	}
	for _, r := range out.Results {
		e := expected[r.Company]
		if r.RuleScore != e.rule || r.AIScore != e.ai || r.Priority != e.prio {
			t.Fatalf("%s: unexpected result %+v", r.Company, r)
		}
	}

	if out.Results[0].Company != "PriorityCo" || out.Results[len(out.Results)-1].Company != "Acme" {
		t.Fatalf("results must be ranked by total score")
	}
}

func TestRunSurvivesAIFailure(t *testing.T) {
	core, observed := observer.New(zapcore.WarnLevel)
	scorer := &stubScorer{err: context.DeadlineExceeded}

	p, _ := newPipeline(t, DefaultConfig(), scorer,
		job("Customer Success Manager", "TestCorp", "https://example.com/csm", 140000, fullDescription),
	)
	p.deps.Logger = zap.New(core)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("AI failure must not fail the run: %v", err)
	}
	if out.Results[0].Score != 50 || out.Results[0].AIScore != 0 || out.Results[0].Priority != ai.PriorityHigh {
		t.Fatalf("expected rule-only result, got %+v", out.Results[0])
	}
	if observed.FilterMessage("ai scoring failed, keeping rule score").Len() != 1 {
		t.Fatalf("expected AI failure to be logged")
	}
}

func TestRunWithoutScorer(t *testing.T) {
	p, _ := newPipeline(t, DefaultConfig(), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
	)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Results[0].Score != 20 || out.Results[0].Priority != ai.PriorityMedium {
		t.Fatalf("unexpected result: %+v", out.Results[0])
	}
}

func TestRunEmptyIsSuccess(t *testing.T) {
	p, _ := newPipeline(t, DefaultConfig(), nil)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("empty run must succeed: %v", err)
	}
	if out.Results == nil || len(out.Results) != 0 || out.Summary.Raw != 0 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	p, _ := newPipeline(t, DefaultConfig(), nil)

	release, err := p.deps.Locker.TryLock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer release(context.Background())

	if _, err := p.Run(context.Background()); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
}

func TestRunLedgerFailureIsFatal(t *testing.T) {
	p, store := newPipeline(t, DefaultConfig(), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
	)
	p.deps.Ledger = &failingLedger{Store: store}

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected ledger failure to abort the run")
	}
	if p.Last() != nil {
		t.Fatalf("failed run must not replace the last outcome")
	}
}

func TestRunFailedRecordLeavesListingsDeliverable(t *testing.T) {
	p, store := newPipeline(t, DefaultConfig(), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
		job("Solutions Engineer", "Delta", "https://example.com/d", 0, ""),
	)
	broken := &failingLedger{Store: store}
	p.deps.Ledger = broken

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatalf("expected ledger failure to abort the run")
	}
	if broken.writes != 1 {
		t.Fatalf("expected the listings to be recorded in a single batch, got %d writes", broken.writes)
	}

	entries, err := store.Entries()
	if err != nil {
		t.Fatalf("reading ledger: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed run must not leave ledger entries behind: %+v", entries)
	}

	p.deps.Ledger = store
	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if out.Summary.Delivered != 2 {
		t.Fatalf("expected both listings on retry, got %+v", out.Summary)
	}
}

func TestRunZeroTopNSkipsAI(t *testing.T) {
	scorer := &stubScorer{opinion: ai.Opinion{FitScore: 30, Priority: ai.PriorityHigh}}
	p, _ := newPipeline(t, configWith(func(c *Config) { c.TopN = 0 }), scorer,
		job("Customer Success Manager", "TestCorp", "https://example.com/csm", 140000, fullDescription),
	)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(scorer.calls) != 0 || out.Results[0].AIScore != 0 {
		t.Fatalf("top-n 0 must not consult the AI scorer, got calls %v", scorer.calls)
	}
}

func TestRunReportsRejections(t *testing.T) {
	onsite := job("Customer Success Manager", "Gamma", "https://example.com/onsite", 111000, "")
	onsite.Location = "Berlin, Germany"
	onsite.IsRemote = false

	p, _ := newPipeline(t, DefaultConfig(), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
		job("Junior Customer Success Manager", "Delta", "https://example.com/j", 0, ""),
		job("Software Engineer", "Delta", "https://example.com/s", 0, ""),
		onsite,
	)

	out, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rejected := out.Summary.Rejected
	if rejected["role"] != 1 || rejected["seniority"] != 1 || rejected["location"] != 1 {
		t.Fatalf("unexpected rejection counts: %v", rejected)
	}
	if out.Summary.Eligible != 1 {
		t.Fatalf("unexpected summary: %+v", out.Summary)
	}
}

func TestRunWithPrepare(t *testing.T) {
	p, _ := newPipeline(t, DefaultConfig(), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
	)

	prepared := 0
	prepare := func(context.Context) error {
		prepared++
		return nil
	}

	release, err := p.deps.Locker.TryLock(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.RunWith(context.Background(), prepare); !errors.Is(err, ErrRunInProgress) {
		t.Fatalf("expected ErrRunInProgress, got %v", err)
	}
	if prepared != 0 {
		t.Fatalf("prepare must not run while another run holds the lock")
	}
	_ = release(context.Background())

	if _, err := p.RunWith(context.Background(), prepare); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prepared != 1 {
		t.Fatalf("expected prepare to run once, got %d", prepared)
	}

	boom := errors.New("save failed")
	_, err = p.RunWith(context.Background(), func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected prepare error, got %v", err)
	}
}

func TestRunDisabledLedgerFilter(t *testing.T) {
	p, _ := newPipeline(t, configWith(func(c *Config) { c.DisabledFilters = []string{filtering.LedgerName} }), nil,
		job("Customer Success Manager", "Gamma", "https://example.com/c", 111000, ""),
	)

	for i := 0; i < 2; i++ {
		out, err := p.Run(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Summary.New != 1 || out.Summary.Delivered != 1 {
			t.Fatalf("run %d: unexpected summary %+v", i, out.Summary)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Config{}, Deps{Ledger: ledger.NewFileStore("unused")}); err == nil {
		t.Fatalf("expected missing profile context error")
	}
	if _, err := New(Config{}, Deps{Profiles: testProfiles(t)}); err == nil {
		t.Fatalf("expected missing ledger error")
	}
	negative := configWith(func(c *Config) { c.TopN = -1 })
	if _, err := New(negative, Deps{Profiles: testProfiles(t), Ledger: ledger.NewFileStore("unused")}); err == nil {
		t.Fatalf("expected negative top-n to be rejected")
	}
}

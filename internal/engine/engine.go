package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/roach88/watchgraft/internal/ir"
	"github.com/roach88/watchgraft/internal/stage"
	"github.com/roach88/watchgraft/internal/store"
)

// Config selects the stores and the run policy.
type Config struct {
	// SourcePath is the old library. Read-only.
	SourcePath string

	// TargetPath is the rebuilt library. Mutated by Apply.
	TargetPath string

	// WorkDir, when set, receives the staged intermediate tables.
	WorkDir string

	// FromStage, when set, supplies the source records from a staged
	// directory instead of SourcePath.
	FromStage string

	// Driver is the database/sql driver name. Empty uses store.DefaultDriver.
	Driver string

	// DryRun executes the apply transaction and then rolls it back.
	DryRun bool

	// HeaderToken names the spurious account row removed during apply.
	HeaderToken string

	// MaxUnresolvedPercent aborts the run before apply when more than this
	// share of events fail to resolve. 0 disables the check.
	MaxUnresolvedPercent int

	// NormalizeTitles compares titles after Unicode folding.
	NormalizeTitles bool
}

// Engine runs the extract, resolve, aggregate and apply pipeline.
//
// A run is strictly sequential and single-threaded. Every entity it builds
// is rebuilt from scratch; the only state that survives a run is the
// target store itself and, optionally, the staged directory.
type Engine struct {
	cfg    Config
	log    *slog.Logger
	runIDs RunIDGenerator
	now    func() time.Time
	hook   store.StepHook

	cascade []AccountResolver
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRunIDGenerator sets the run id source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		if g != nil {
			e.runIDs = g
		}
	}
}

// WithClock sets the clock used for manifest timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithStepHook installs a hook called after each apply step.
func WithStepHook(h store.StepHook) Option {
	return func(e *Engine) {
		e.hook = h
	}
}

// WithAccountCascade replaces the attribution cascade.
func WithAccountCascade(cascade ...AccountResolver) Option {
	return func(e *Engine) {
		e.cascade = cascade
	}
}

// New creates an Engine for cfg.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		log:    slog.Default(),
		runIDs: UUIDv7Generator{},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Report summarizes a run.
type Report struct {
	RunID  string `json:"run_id"`
	Source string `json:"source"`
	Target string `json:"target"`
	DryRun bool   `json:"dry_run"`

	SourceAccounts int `json:"source_accounts"`
	Events         int `json:"events"`
	AddedDates     int `json:"added_dates"`
	CatalogItems   int `json:"catalog_items"`

	Resolved     int `json:"resolved"`
	Unresolved   int `json:"unresolved"`
	Unsupported  int `json:"unsupported"`
	Ambiguous    int `json:"ambiguous"`
	Unattributed int `json:"unattributed"`

	// AttributedBy counts attributed events per cascade tier.
	AttributedBy map[string]int `json:"attributed_by"`

	Facts       int    `json:"facts"`
	FactsDigest string `json:"facts_digest"`

	StageDir string             `json:"stage_dir,omitempty"`
	Apply    *store.ApplyResult `json:"apply,omitempty"`
}

// UnresolvedPercent is the share of events without a target item.
func (r *Report) UnresolvedPercent() float64 {
	return percent(r.Unresolved+r.Unsupported, r.Events)
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) * 100 / float64(total)
}

// extracted holds the source side of a run.
type extracted struct {
	accounts []ir.AccountRecord
	events   []ir.HistoricalEvent
	added    []ir.AddedDateFact
}

// Check verifies both stores open and have the expected shape.
func (e *Engine) Check(ctx context.Context) error {
	src, err := store.OpenSource(ctx, e.cfg.SourcePath, store.WithDriver(e.cfg.Driver))
	if err != nil {
		return NewSourceError("open", err)
	}
	defer src.Close()

	tgt, err := store.OpenSource(ctx, e.cfg.TargetPath, store.WithDriver(e.cfg.Driver))
	if err != nil {
		return NewTargetError("open", err)
	}
	defer tgt.Close()
	return nil
}

// Extract reads the source store and stages it into WorkDir.
func (e *Engine) Extract(ctx context.Context) (*Report, error) {
	if e.cfg.WorkDir == "" {
		return nil, fmt.Errorf("extract requires a work dir")
	}
	runID := e.runIDs.Generate()
	log := e.log.With("run", runID)
	report := &Report{RunID: runID, Source: e.cfg.SourcePath, AttributedBy: map[string]int{}}

	src, err := store.OpenSource(ctx, e.cfg.SourcePath, store.WithDriver(e.cfg.Driver))
	if err != nil {
		return nil, NewSourceError("open", err)
	}
	defer src.Close()

	x, err := extractStore(ctx, src)
	if err != nil {
		return nil, err
	}
	e.countExtracted(report, x)
	log.Info("extracted source", "accounts", len(x.accounts), "events", len(x.events), "added_dates", len(x.added))

	dir, err := stage.Create(e.cfg.WorkDir)
	if err != nil {
		return nil, err
	}
	if err := stageExtracted(dir, x); err != nil {
		return nil, err
	}
	if _, err := dir.Finish(runID, e.cfg.SourcePath, e.now()); err != nil {
		return nil, err
	}
	report.StageDir = dir.Path()
	log.Info("staged source", "dir", dir.Path())
	return report, nil
}

// Run executes the full pipeline. On success the report describes what was
// applied; on failure the error is a *StageError and the target is left at
// its last committed state.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	runID := e.runIDs.Generate()
	log := e.log.With("run", runID)
	report := &Report{
		RunID:        runID,
		Source:       e.cfg.SourcePath,
		Target:       e.cfg.TargetPath,
		DryRun:       e.cfg.DryRun,
		AttributedBy: map[string]int{},
	}

	// Both stores are checked before anything is read.
	var src *store.Store
	var staged *stage.Dir
	if e.cfg.FromStage != "" {
		dir, m, err := stage.Open(e.cfg.FromStage)
		if err != nil {
			return nil, NewSourceError("open", err)
		}
		staged = dir
		report.Source = m.Source
		log.Info("reading staged source", "dir", dir.Path(), "staged_run", m.RunID)
	} else {
		s, err := store.OpenSource(ctx, e.cfg.SourcePath, store.WithDriver(e.cfg.Driver))
		if err != nil {
			return nil, NewSourceError("open", err)
		}
		defer s.Close()
		src = s
	}

	tgt, err := store.OpenTarget(ctx, e.cfg.TargetPath, store.WithDriver(e.cfg.Driver))
	if err != nil {
		return nil, NewTargetError("open", err)
	}
	defer tgt.Close()

	// Extract
	var x *extracted
	if staged != nil {
		x, err = extractStage(staged)
	} else {
		x, err = extractStore(ctx, src)
	}
	if err != nil {
		return nil, err
	}
	e.countExtracted(report, x)
	log.Info("extracted source", "accounts", len(x.accounts), "events", len(x.events), "added_dates", len(x.added))

	var workDir *stage.Dir
	switch {
	case e.cfg.WorkDir == "":
	case staged != nil && filepath.Clean(e.cfg.WorkDir) == filepath.Clean(staged.Path()):
		workDir = staged
	default:
		if workDir, err = stage.Create(e.cfg.WorkDir); err != nil {
			return nil, err
		}
		if err := stageExtracted(workDir, x); err != nil {
			return nil, err
		}
	}

	// Target identity
	targetAccounts, err := store.Collect(tgt.Accounts(ctx))
	if err != nil {
		return nil, NewTargetError("extract", err)
	}
	catalog, err := NewCatalog(tgt.CatalogItems(ctx), WithTitleFolder(e.titleFolder()))
	if err != nil {
		return nil, NewTargetError("extract", err)
	}
	report.CatalogItems = catalog.Len()

	plan := ReconcileAccounts(x.accounts, targetAccounts, e.headerToken())
	log.Info("reconciled accounts",
		"upserts", len(plan.Upserts),
		"removed", len(plan.Remove),
		"merged", len(plan.Merged),
	)

	// Resolve
	accounts := NewAccountDirectory(plan.Merged, e.cascade...)
	resolved := e.resolve(log, report, catalog, accounts, x.events)
	log.Info("resolved events",
		"resolved", report.Resolved,
		"unresolved", report.Unresolved,
		"unsupported", report.Unsupported,
		"ambiguous", report.Ambiguous,
		"unattributed", report.Unattributed,
	)

	if limit := e.cfg.MaxUnresolvedPercent; limit > 0 && report.UnresolvedPercent() > float64(limit) {
		return nil, NewThresholdError(report.Unresolved+report.Unsupported, report.Events, limit)
	}

	// Aggregate
	facts := Aggregate(resolved)
	report.Facts = len(facts)
	if report.FactsDigest, err = ir.FactsDigest(facts); err != nil {
		return nil, fmt.Errorf("digest facts: %w", err)
	}
	log.Info("aggregated view state", "facts", len(facts), "digest", report.FactsDigest)

	if workDir != nil {
		if err := workDir.WriteResolved(resolved); err != nil {
			return nil, err
		}
		if err := workDir.WriteAggregated(facts); err != nil {
			return nil, err
		}
		if _, err := workDir.Finish(runID, report.Source, e.now()); err != nil {
			return nil, err
		}
		report.StageDir = workDir.Path()
	}

	// Apply. Once the transaction starts it runs to commit or rollback.
	applyCtx := context.WithoutCancel(ctx)
	res, err := tgt.Apply(applyCtx, store.ApplyPlan{
		RemoveAccountIDs: plan.Remove,
		UpsertAccounts:   plan.Upserts,
		HeaderToken:      plan.HeaderToken,
		AddedDates:       x.added,
		Events:           resolved,
		Facts:            facts,
		DryRun:           e.cfg.DryRun,
	}, e.hook)
	if err != nil {
		log.Error("apply failed", "error", err)
		return nil, NewApplyError(err)
	}
	report.Apply = res
	log.Info("applied",
		"committed", res.Committed,
		"views", res.ViewsInserted,
		"settings", res.SettingsInserted,
		"added_dates", res.AddedDatesSet,
	)
	return report, nil
}

func (e *Engine) resolve(log *slog.Logger, report *Report, catalog *Catalog, accounts *AccountDirectory, events []ir.HistoricalEvent) []ir.ResolvedEvent {
	out := make([]ir.ResolvedEvent, 0, len(events))
	for _, ev := range events {
		r := ir.ResolvedEvent{Event: ev}

		m := catalog.Resolve(ev)
		switch {
		case !m.Supported:
			report.Unsupported++
			log.Debug("no rule for type", "guid", ev.GUID, "type", ev.Type)
		case m.GUID == "":
			report.Unresolved++
			log.Debug("unresolved event", "guid", ev.GUID, "type", ev.Type, "title", ev.Title)
		default:
			report.Resolved++
			r.Target = m.GUID
			if m.Ambiguous() {
				report.Ambiguous++
				log.Debug("ambiguous match, first wins", "guid", ev.GUID, "target", m.GUID, "candidates", m.Candidates)
			}
		}

		if r.Resolved() {
			id, tier, ok := accounts.Attribute(ev)
			if ok {
				r.AccountID = id
				r.Attributed = true
				report.AttributedBy[tier]++
			} else {
				report.Unattributed++
				log.Debug("unattributed event", "guid", ev.GUID, "account", ev.AccountID)
			}
		}
		out = append(out, r)
	}
	return out
}

func (e *Engine) countExtracted(report *Report, x *extracted) {
	report.SourceAccounts = len(x.accounts)
	report.Events = len(x.events)
	report.AddedDates = len(x.added)
}

func (e *Engine) titleFolder() TitleFolder {
	if e.cfg.NormalizeTitles {
		return NormalizedTitles()
	}
	return ExactTitles
}

func (e *Engine) headerToken() string {
	if e.cfg.HeaderToken == "" {
		return DefaultHeaderToken
	}
	return e.cfg.HeaderToken
}

// extractStore drains the three source cursors one after another; the
// store has a single connection.
func extractStore(ctx context.Context, src *store.Store) (*extracted, error) {
	var (
		x   extracted
		err error
	)
	if x.accounts, err = store.Collect(src.Accounts(ctx)); err != nil {
		return nil, NewSourceError("extract", err)
	}
	if x.events, err = store.Collect(src.Events(ctx)); err != nil {
		return nil, NewSourceError("extract", err)
	}
	if x.added, err = store.Collect(src.AddedDates(ctx)); err != nil {
		return nil, NewSourceError("extract", err)
	}
	return &x, nil
}

func extractStage(dir *stage.Dir) (*extracted, error) {
	var (
		x   extracted
		err error
	)
	if x.accounts, err = store.Collect(dir.Accounts()); err != nil {
		return nil, NewSourceError("extract", err)
	}
	if x.events, err = store.Collect(dir.Events()); err != nil {
		return nil, NewSourceError("extract", err)
	}
	if x.added, err = store.Collect(dir.AddedDates()); err != nil {
		return nil, NewSourceError("extract", err)
	}
	return &x, nil
}

func stageExtracted(dir *stage.Dir, x *extracted) error {
	if err := dir.WriteAccounts(x.accounts); err != nil {
		return err
	}
	if err := dir.WriteEvents(x.events); err != nil {
		return err
	}
	return dir.WriteAddedDates(x.added)
}

// Package batch runs one notification batch: fetch region data, group it
// into threads, filter it per user and hand the planned descriptors to the
// delivery providers.
package batch

import (
	"context"
	"slices"
	"time"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/fetch"
	"github.com/thyholm1234/DOF.not/internal/filter"
	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/notification"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/preferences"
	"github.com/thyholm1234/DOF.not/internal/species"
	"github.com/thyholm1234/DOF.not/internal/thread"
)

// Mode selects what a user is notified about
type Mode string

const (
	// ModeThreads notifies once per active thread, with its latest state
	ModeThreads Mode = "threads"
	// ModeObservations notifies about every fetched observation
	ModeObservations Mode = "observations"
)

// ParseMode accepts the known modes, case sensitive
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeThreads, ModeObservations:
		return Mode(s), true
	}
	return "", false
}

// Descriptor kinds reported to Metrics
const (
	KindObservation = "observation"
	KindWithdrawal  = "withdrawal"
)

// Fetcher collects observations for a set of regions
type Fetcher interface {
	Fetch(ctx context.Context, regions []string) (fetch.Result, error)
}

// Metrics observes batch runs
type Metrics interface {
	RecordBatch(status string, duration time.Duration)
	RecordParsed(source string, accepted, skipped int)
	RecordFilter(dropped map[string]int, passed int, baseline bool)
	SetThreads(active, withdrawn int)
	RecordPlanned(kind string, n int)
}

// Config controls a Processor
type Config struct {
	Regions         []string
	Mode            Mode
	MaxPerBatch     int
	OverrideTimeout time.Duration
	Withdrawals     bool
	Source          string
}

// Processor ties the pipeline stages together. It holds no per-batch state
// and is safe for concurrent use once built.
type Processor struct {
	cfg       Config
	fetcher   Fetcher
	table     *species.Table
	filter    *filter.Pipeline
	planner   *notification.Planner
	store     preferences.Store
	deliverer notification.Deliverer
	metrics   Metrics
	log       logger.Logger
}

// Deps are the collaborators of a Processor. Deliverer and Metrics may be nil.
type Deps struct {
	Fetcher   Fetcher
	Table     *species.Table
	Filter    *filter.Pipeline
	Planner   *notification.Planner
	Store     preferences.Store
	Deliverer notification.Deliverer
	Metrics   Metrics
	Logger    logger.Logger
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("batch")
}

// New validates deps and returns a Processor
func New(cfg Config, deps Deps) (*Processor, error) {
	if deps.Fetcher == nil || deps.Store == nil {
		return nil, errors.Newf("batch processor needs a fetcher and a store").
			Component("batch").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeThreads
	}
	if _, ok := ParseMode(string(cfg.Mode)); !ok {
		return nil, errors.Newf("unknown pipeline mode %q", cfg.Mode).
			Component("batch").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.MaxPerBatch <= 0 {
		cfg.MaxPerBatch = notification.DefaultMaxPerBatch
	}
	if cfg.OverrideTimeout <= 0 {
		cfg.OverrideTimeout = preferences.DefaultOverrideTimeout
	}
	if len(cfg.Regions) == 0 {
		return nil, errors.Newf("no regions configured").
			Component("batch").
			Category(errors.CategoryConfiguration).
			Build()
	}

	p := &Processor{
		cfg:       cfg,
		fetcher:   deps.Fetcher,
		table:     deps.Table,
		filter:    deps.Filter,
		planner:   deps.Planner,
		store:     deps.Store,
		deliverer: deps.Deliverer,
		metrics:   deps.Metrics,
		log:       deps.Logger,
	}
	if p.filter == nil {
		p.filter = filter.New(p.table)
	}
	if p.planner == nil {
		p.planner = notification.NewPlanner(notification.WithTable(p.table))
	}
	if p.log == nil {
		p.log = GetLogger()
	}
	return p, nil
}

// Snapshot is the user independent part of a batch
type Snapshot struct {
	Fetched    fetch.Result
	Aggregator *thread.Aggregator
	Candidates []observation.Observation
	Withdrawn  []*thread.Thread
}

// Plan is the outcome of a batch for one user
type Plan struct {
	UserID      string                    `json:"user" yaml:"user"`
	Report      filter.Report             `json:"report" yaml:"report"`
	Descriptors []notification.Descriptor `json:"notifications" yaml:"notifications"`
	Withdrawals []notification.Descriptor `json:"withdrawals" yaml:"withdrawals"`
	Delivered   bool                      `json:"delivered" yaml:"delivered"`
}

// All returns withdrawals first, then notifications
func (p Plan) All() []notification.Descriptor {
	out := make([]notification.Descriptor, 0, len(p.Withdrawals)+len(p.Descriptors))
	out = append(out, p.Withdrawals...)
	return append(out, p.Descriptors...)
}

// Prepare fetches every configured region and groups the items into threads
func (p *Processor) Prepare(ctx context.Context) (*Snapshot, error) {
	res, err := p.fetcher.Fetch(ctx, p.cfg.Regions)
	if err != nil {
		return nil, errors.New(err).
			Component("batch").
			Category(errors.CategoryFetch).
			Context("regions", len(p.cfg.Regions)).
			Build()
	}
	if p.metrics != nil {
		p.metrics.RecordParsed(p.cfg.Source, len(res.Items), 0)
	}

	agg := thread.NewAggregator(p.table)
	agg.AddAll(res.Chronological())

	snap := &Snapshot{Fetched: res, Aggregator: agg, Withdrawn: agg.Withdrawn()}
	switch p.cfg.Mode {
	case ModeObservations:
		snap.Candidates = res.Chronological()
		slices.Reverse(snap.Candidates)
	default:
		snap.Candidates = agg.Observations()
	}

	if p.metrics != nil {
		p.metrics.SetThreads(agg.Len()-len(snap.Withdrawn), len(snap.Withdrawn))
	}
	p.log.Info("batch prepared",
		logger.Int("items", len(res.Items)),
		logger.Int("failed_regions", len(res.Failed)),
		logger.Int("threads", agg.Len()),
		logger.Int("withdrawn", len(snap.Withdrawn)),
		logger.Int("candidates", len(snap.Candidates)))
	return snap, nil
}

// PlanFor filters a snapshot for one user and plans the descriptors
func (p *Processor) PlanFor(ctx context.Context, snap *Snapshot, userID string) (Plan, error) {
	uc, err := preferences.LoadUserContext(ctx, p.store, userID, p.cfg.OverrideTimeout)
	if err != nil {
		return Plan{UserID: userID}, err
	}
	fc := filter.ContextFor(uc)

	kept, report := p.filter.Run(snap.Candidates, fc)
	if p.metrics != nil {
		dropped := make(map[string]int, len(report.Dropped))
		for stage, n := range report.Dropped {
			dropped[string(stage)] = n
		}
		p.metrics.RecordFilter(dropped, report.Output, report.Baseline)
	}

	plan := Plan{
		UserID:      userID,
		Report:      report,
		Descriptors: p.planner.Plan(kept, p.cfg.MaxPerBatch),
	}

	if p.cfg.Withdrawals && len(snap.Withdrawn) > 0 {
		plan.Withdrawals = p.planner.PlanWithdrawals(p.scopeWithdrawn(snap.Withdrawn, fc))
	}

	if p.metrics != nil {
		p.metrics.RecordPlanned(KindObservation, len(plan.Descriptors))
		p.metrics.RecordPlanned(KindWithdrawal, len(plan.Withdrawals))
	}
	return plan, nil
}

// scopeWithdrawn keeps the withdrawn threads the user would have been told about
func (p *Processor) scopeWithdrawn(threads []*thread.Thread, fc filter.Context) []*thread.Thread {
	byID := make(map[string]*thread.Thread, len(threads))
	items := make([]observation.Observation, 0, len(threads))
	for _, t := range threads {
		byID[t.ID] = t
		obs := t.Observation()
		items = append(items, obs)
	}

	var out []*thread.Thread
	for _, obs := range p.filter.Scope(items, fc) {
		if t, ok := byID[obs.ThreadIdentity()]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Run performs one batch for users. With dryRun set nothing is delivered.
// One user failing does not stop the others; the errors are joined.
func (p *Processor) Run(ctx context.Context, userIDs []string, dryRun bool) ([]Plan, error) {
	start := time.Now()
	snap, err := p.Prepare(ctx)
	if err != nil {
		p.recordBatch(err, 0, start)
		return nil, err
	}

	plans := make([]Plan, 0, len(userIDs))
	var errs []error
	planned := 0
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		plan, err := p.PlanFor(ctx, snap, userID)
		if err != nil {
			p.log.Warn("planning failed",
				logger.String("user", userID),
				logger.Error(err))
			errs = append(errs, err)
			continue
		}
		planned += len(plan.Descriptors) + len(plan.Withdrawals)

		if !dryRun && p.deliverer != nil && (len(plan.Descriptors) > 0 || len(plan.Withdrawals) > 0) {
			if err := p.deliverer.Deliver(ctx, userID, plan.All()); err != nil {
				p.log.Warn("delivery failed",
					logger.String("user", userID),
					logger.Error(err))
				errs = append(errs, err)
			} else {
				plan.Delivered = true
			}
		}
		plans = append(plans, plan)
	}

	err = errors.Join(errs...)
	p.recordBatch(err, planned, start)
	p.log.Info("batch complete",
		logger.Int("users", len(userIDs)),
		logger.Int("descriptors", planned),
		logger.Bool("dry_run", dryRun),
		logger.Duration("duration", time.Since(start)),
		logger.Error(err))
	return plans, err
}

func (p *Processor) recordBatch(err error, planned int, start time.Time) {
	if p.metrics == nil {
		return
	}
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case planned == 0:
		status = "empty"
	}
	p.metrics.RecordBatch(status, time.Since(start))
}

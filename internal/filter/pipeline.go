// Package filter narrows observations to the ones a user wants to hear about.
//
// Three stages run in a fixed order: region and category, species exclude,
// and count threshold. No stage ever adds an item back.
package filter

import (
	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/preferences"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// Stage names a filter stage
type Stage string

const (
	StageRegion    Stage = "region"
	StageExclude   Stage = "exclude"
	StageThreshold Stage = "threshold"
)

// Stages lists the stages in the order they run
var Stages = []Stage{StageRegion, StageExclude, StageThreshold}

// Context is the per-user input to a filter run
type Context struct {
	Matrix    preferences.Matrix
	Overrides preferences.Overrides
}

// ContextFor builds a filter context from a resolved user context
func ContextFor(uc preferences.UserContext) Context {
	return Context{Matrix: uc.Matrix, Overrides: uc.Overrides}
}

// Report counts the items seen and dropped by one run
type Report struct {
	Input    int           `json:"input" yaml:"input"`
	Dropped  map[Stage]int `json:"dropped" yaml:"dropped"`
	Output   int           `json:"output" yaml:"output"`
	Baseline bool          `json:"baseline" yaml:"baseline"`
}

// Pipeline filters observations against a user's preferences. It holds only
// immutable inputs and is safe for concurrent use.
type Pipeline struct {
	table    *species.Table
	baseline species.CategorySet
	log      logger.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithBaseline sets the categories allowed when a user has no usable matrix
func WithBaseline(set species.CategorySet) Option {
	return func(p *Pipeline) {
		if set != nil {
			p.baseline = set
		}
	}
}

// WithLogger injects a logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.log = l
		}
	}
}

// New returns a pipeline classifying species with table. A nil table
// classifies everything from the records' own category tags.
func New(table *species.Table, opts ...Option) *Pipeline {
	p := &Pipeline{
		table:    table,
		baseline: species.DefaultBaseline(),
		log:      logger.Global().Module("filter"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Filter runs all stages and returns the surviving items in input order
func (p *Pipeline) Filter(items []observation.Observation, fc Context) []observation.Observation {
	out, _ := p.Run(items, fc)
	return out
}

// Run is Filter with a per-stage report
func (p *Pipeline) Run(items []observation.Observation, fc Context) ([]observation.Observation, Report) {
	report := Report{Input: len(items), Dropped: make(map[Stage]int, len(Stages))}

	kept := p.byRegion(items, fc.Matrix, &report)
	report.Dropped[StageRegion] = len(items) - len(kept)

	if len(kept) > 0 {
		before := len(kept)
		kept = p.byExclude(kept, fc.Overrides)
		report.Dropped[StageExclude] = before - len(kept)
	}
	if len(kept) > 0 {
		before := len(kept)
		kept = p.byThreshold(kept, fc.Overrides)
		report.Dropped[StageThreshold] = before - len(kept)
	}

	report.Output = len(kept)
	p.log.Debug("filter run complete",
		logger.Int("input", report.Input),
		logger.Int("output", report.Output),
		logger.Int("dropped_region", report.Dropped[StageRegion]),
		logger.Int("dropped_exclude", report.Dropped[StageExclude]),
		logger.Int("dropped_threshold", report.Dropped[StageThreshold]),
		logger.Bool("baseline", report.Baseline))
	return kept, report
}

// Scope runs only the region and exclude stages. Withdrawals use it since a
// withdrawn thread has no positive count left to compare with a threshold.
func (p *Pipeline) Scope(items []observation.Observation, fc Context) []observation.Observation {
	var report Report
	kept := p.byRegion(items, fc.Matrix, &report)
	if len(kept) == 0 {
		return kept
	}
	return p.byExclude(kept, fc.Overrides)
}

func (p *Pipeline) byRegion(items []observation.Observation, m preferences.Matrix, report *Report) []observation.Observation {
	useBaseline := !m.Usable()
	report.Baseline = useBaseline

	// region lookups repeat heavily within one batch
	allowed := make(map[string]species.CategorySet)
	out := make([]observation.Observation, 0, len(items))
	for i := range items {
		item := &items[i]
		set := p.baseline
		if !useBaseline {
			region := item.RegionKey()
			var ok bool
			if set, ok = allowed[region]; !ok {
				set = m.AllowedCategories(region)
				allowed[region] = set
			}
		}
		if set.Empty() {
			continue
		}
		if set.Contains(p.table.Resolve(item.SpeciesName(), item.LiteralCategory())) {
			out = append(out, *item)
		}
	}
	return out
}

func (p *Pipeline) byExclude(items []observation.Observation, o preferences.Overrides) []observation.Observation {
	if len(o.Exclude) == 0 {
		return items
	}
	out := items[:0:0]
	for i := range items {
		if !o.Excluded(items[i].SpeciesName()) {
			out = append(out, items[i])
		}
	}
	return out
}

func (p *Pipeline) byThreshold(items []observation.Observation, o preferences.Overrides) []observation.Observation {
	if len(o.Counts) == 0 {
		return items
	}
	out := items[:0:0]
	for i := range items {
		t, ok := o.ThresholdFor(items[i].SpeciesName())
		if !ok {
			out = append(out, items[i])
			continue
		}
		// an unknown count cannot satisfy a threshold
		count, known := items[i].CountValue()
		if known && t.Allows(count) {
			out = append(out, items[i])
		}
	}
	return out
}

// Package fetch collects region observations from log files or HTTP batch
// documents through a bounded worker pool.
package fetch

import (
	"context"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/observation"
)

// Pool defaults
const (
	DefaultConcurrency       = 8
	DefaultMaxItemsPerRegion = 250
)

// Recorder observes region fetches
type Recorder interface {
	RecordFetch(source, region string, items int, duration time.Duration, err error)
	RecordCacheHit()
}

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("fetch")
}

// Pool fetches many regions from one source with bounded concurrency
type Pool struct {
	source      Source
	concurrency int
	maxItems    int
	todayOnly   bool
	hideZero    bool
	location    *time.Location
	now         func() time.Time
	recorder    Recorder
	log         logger.Logger
}

// Option configures a Pool
type Option func(*Pool)

// WithConcurrency sets how many regions are fetched at once
func WithConcurrency(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithMaxItems caps the items kept per region
func WithMaxItems(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.maxItems = n
		}
	}
}

// WithTodayOnly keeps only items dated today in loc. now defaults to time.Now.
func WithTodayOnly(loc *time.Location, now func() time.Time) Option {
	return func(p *Pool) {
		p.todayOnly = true
		if loc != nil {
			p.location = loc
		}
		if now != nil {
			p.now = now
		}
	}
}

// WithHideZero drops items reported with a count of zero
func WithHideZero() Option {
	return func(p *Pool) { p.hideZero = true }
}

// WithRecorder sets the metrics recorder
func WithRecorder(r Recorder) Option {
	return func(p *Pool) { p.recorder = r }
}

// WithLogger overrides the package logger
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.log = l
		}
	}
}

// NewPool returns a pool over source
func NewPool(source Source, opts ...Option) *Pool {
	p := &Pool{
		source:      source,
		concurrency: DefaultConcurrency,
		maxItems:    DefaultMaxItemsPerRegion,
		location:    time.Local,
		now:         time.Now,
		log:         GetLogger(),
	}
	if loc, err := time.LoadLocation(observation.DefaultTimezone); err == nil {
		p.location = loc
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result holds the outcome of fetching a set of regions
type Result struct {
	ByRegion map[string][]observation.Observation
	Items    []observation.Observation
	Failed   []string
}

// Chronological returns all items oldest first, items without a timestamp
// first, in the order an aggregator expects to see events.
func (r Result) Chronological() []observation.Observation {
	out := slices.Clone(r.Items)
	slices.SortStableFunc(out, func(a, b observation.Observation) int {
		return compareTimestamps(a.Timestamp, b.Timestamp)
	})
	return out
}

// Fetch fetches every region. A failing region is logged and contributes no
// items; Fetch itself only fails when ctx ends before all regions are issued.
func (p *Pool) Fetch(ctx context.Context, regions []string) (Result, error) {
	res := Result{ByRegion: make(map[string][]observation.Observation, len(regions))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, region := range regions {
		if err := gctx.Err(); err != nil {
			break
		}
		g.Go(func() error {
			items := p.fetchRegion(gctx, region)
			mu.Lock()
			defer mu.Unlock()
			if items == nil {
				res.Failed = append(res.Failed, region)
				return nil
			}
			res.ByRegion[region] = items
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}

	// keep the output independent of goroutine scheduling
	slices.Sort(res.Failed)
	for _, region := range regions {
		res.Items = append(res.Items, res.ByRegion[region]...)
	}
	return res, nil
}

// fetchRegion returns nil on failure and a non-nil slice otherwise
func (p *Pool) fetchRegion(ctx context.Context, region string) []observation.Observation {
	start := time.Now()
	items, err := p.source.Fetch(ctx, region)
	if err != nil {
		p.log.Warn("region fetch failed",
			logger.String("source", p.source.Name()),
			logger.String("region", region),
			logger.Error(err))
		p.record(region, 0, start, err)
		return nil
	}

	items = p.shape(items)
	p.record(region, len(items), start, nil)
	return items
}

func (p *Pool) record(region string, n int, start time.Time, err error) {
	if p.recorder != nil {
		p.recorder.RecordFetch(p.source.Name(), region, n, time.Since(start), err)
	}
}

// shape applies the today and zero filters, sorts newest first and caps
func (p *Pool) shape(items []observation.Observation) []observation.Observation {
	today := ""
	if p.todayOnly {
		today = p.now().In(p.location).Format(observation.DayKeyLayout)
	}

	out := make([]observation.Observation, 0, len(items))
	for i := range items {
		it := items[i]
		if p.hideZero {
			if n, ok := it.CountValue(); ok && n == 0 {
				continue
			}
		}
		if today != "" && p.dayOf(&it) != today {
			continue
		}
		out = append(out, it)
	}

	slices.SortStableFunc(out, func(a, b observation.Observation) int {
		return compareNewestFirst(a.Timestamp, b.Timestamp)
	})
	if len(out) > p.maxItems {
		out = out[:p.maxItems]
	}
	return out
}

func (p *Pool) dayOf(o *observation.Observation) string {
	if o.Timestamp != nil {
		return o.Timestamp.In(p.location).Format(observation.DayKeyLayout)
	}
	return o.DayKey
}

func compareTimestamps(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	return a.Compare(*b)
}

// compareNewestFirst orders later timestamps first and unknown ones last
func compareNewestFirst(a, b *time.Time) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return b.Compare(*a)
}

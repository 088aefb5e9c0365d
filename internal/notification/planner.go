// Package notification turns filtered observations into notification
// descriptors and hands them to delivery providers.
package notification

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/species"
	"github.com/thyholm1234/DOF.not/internal/thread"
)

const (
	// DefaultMaxPerBatch caps the descriptors planned from one batch
	DefaultMaxPerBatch = 5

	DefaultThreadBase = "https://dofnot.chfotofilm.dk"
	DefaultRecordBase = "https://dofbasen.dk"

	FallbackTitle = "Ny observation"
	FallbackBody  = "Se detaljer"

	UrgencyNormal = "normal"
)

// Descriptor is one notification ready for delivery
type Descriptor struct {
	Title     string `json:"title" yaml:"title"`
	Body      string `json:"body" yaml:"body"`
	TargetURL string `json:"url" yaml:"url"`
	DedupTag  string `json:"tag" yaml:"tag"`
	Urgency   string `json:"urgency,omitempty" yaml:"urgency,omitempty"`
}

// Planner builds descriptors. The zero value is not usable; use NewPlanner.
type Planner struct {
	threadBase string
	recordBase string
	location   *time.Location
	table      *species.Table
	newTag     func() string
}

// PlannerOption configures a Planner
type PlannerOption func(*Planner)

// WithLinkBases sets the thread view and record lookup base URLs
func WithLinkBases(threadBase, recordBase string) PlannerOption {
	return func(p *Planner) {
		if threadBase != "" {
			p.threadBase = strings.TrimRight(threadBase, "/")
		}
		if recordBase != "" {
			p.recordBase = strings.TrimRight(recordBase, "/")
		}
	}
}

// WithLocation sets the zone used for dates shown to the user
func WithLocation(loc *time.Location) PlannerOption {
	return func(p *Planner) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithTable sets the classification used to choose between the thread view
// and the record link. Without a table the item's own tag decides.
func WithTable(table *species.Table) PlannerOption {
	return func(p *Planner) {
		p.table = table
	}
}

// WithTagSource replaces the generator of tags for items without any id
func WithTagSource(fn func() string) PlannerOption {
	return func(p *Planner) {
		if fn != nil {
			p.newTag = fn
		}
	}
}

// NewPlanner returns a planner with the default link bases
func NewPlanner(opts ...PlannerOption) *Planner {
	p := &Planner{
		threadBase: DefaultThreadBase,
		recordBase: DefaultRecordBase,
		location:   time.UTC,
		newTag:     uuid.NewString,
	}
	if loc, err := time.LoadLocation(observation.DefaultTimezone); err == nil {
		p.location = loc
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Plan converts items into at most maxPerBatch descriptors, keeping the
// first items. A non-positive max uses DefaultMaxPerBatch.
func (p *Planner) Plan(items []observation.Observation, maxPerBatch int) []Descriptor {
	if maxPerBatch <= 0 {
		maxPerBatch = DefaultMaxPerBatch
	}
	n := min(len(items), maxPerBatch)
	out := make([]Descriptor, 0, n)
	for i := range n {
		out = append(out, p.Describe(&items[i]))
	}
	return out
}

// Describe builds the descriptor for one item
func (p *Planner) Describe(o *observation.Observation) Descriptor {
	return Descriptor{
		Title:     title(o),
		Body:      body(o),
		TargetURL: p.targetURL(o),
		DedupTag:  p.dedupTag(o),
		Urgency:   UrgencyNormal,
	}
}

// PlanWithdrawals describes threads whose observations were retracted
func (p *Planner) PlanWithdrawals(threads []*thread.Thread) []Descriptor {
	out := make([]Descriptor, 0, len(threads))
	for _, t := range threads {
		if t == nil || !t.Withdrawn() {
			continue
		}
		out = append(out, Descriptor{
			Title:     "Tilbagekaldt: " + t.Species + " – " + t.Locality,
			Body:      "Dagens observation(er) rettet til 0 / fjernet. Sidst positivt: " + p.formatTime(t.LastActiveTimestamp),
			TargetURL: p.threadURL(p.threadDay(t), t.ID),
			DedupTag:  "withdraw-" + t.ID,
			Urgency:   UrgencyNormal,
		})
	}
	return out
}

func title(o *observation.Observation) string {
	count := strings.TrimSpace(o.CountText)
	if count == "" && o.Count != nil {
		count = strconv.Itoa(*o.Count)
	}
	head := joinNonEmpty(" ", count, strings.TrimSpace(o.Species))
	if t := joinNonEmpty(", ", head, strings.TrimSpace(o.Locality)); t != "" {
		return t
	}
	return FallbackTitle
}

func body(o *observation.Observation) string {
	if b := joinNonEmpty(", ", strings.TrimSpace(o.Behavior), strings.TrimSpace(o.Observer)); b != "" {
		return b
	}
	return FallbackBody
}

func (p *Planner) targetURL(o *observation.Observation) string {
	cat := p.table.Resolve(o.Species, o.LiteralCategory())
	if (cat == species.CategorySU || cat == species.CategorySUB) && o.DayKey != "" && o.ThreadID != "" {
		return p.threadURL(o.DayKey, o.ThreadID)
	}
	if o.ObservationID != "" {
		return p.recordBase + "/popobs.php?obsid=" + url.QueryEscape(o.ObservationID) + "&summering=tur&obs=obs"
	}
	return p.threadBase + "/"
}

func (p *Planner) threadURL(day, threadID string) string {
	return p.threadBase + "/thread.html?date=" + url.QueryEscape(day) + "&id=" + url.QueryEscape(threadID)
}

func (p *Planner) dedupTag(o *observation.Observation) string {
	switch {
	case o.ThreadIdentity() != "":
		return "thread-" + o.ThreadIdentity()
	case o.ObservationID != "":
		return "observation-" + o.ObservationID
	default:
		return p.newTag()
	}
}

func (p *Planner) threadDay(t *thread.Thread) string {
	if t.FirstTimestamp != nil {
		return t.FirstTimestamp.In(p.location).Format(observation.DayKeyLayout)
	}
	return t.DayKey
}

func (p *Planner) formatTime(ts *time.Time) string {
	if ts == nil {
		return "ukendt"
	}
	return ts.In(p.location).Format("2006-01-02 15:04")
}

func joinNonEmpty(sep string, parts ...string) string {
	kept := parts[:0:0]
	for _, s := range parts {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return strings.Join(kept, sep)
}

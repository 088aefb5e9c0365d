// Package thread groups observation events about the same sighting into
// threads and tracks their status as corrections and withdrawals arrive.
package thread

import (
	"cmp"
	"slices"
	"time"

	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// Status is the lifecycle state of a thread
type Status string

const (
	StatusActive    Status = "active"
	StatusWithdrawn Status = "withdrawn"
)

// Thread is the evolving summary of every event sharing one thread identity
type Thread struct {
	ID                  string           `json:"thread_id" yaml:"thread_id"`
	Status              Status           `json:"status" yaml:"status"`
	Species             string           `json:"species" yaml:"species"`
	Region              string           `json:"region,omitempty" yaml:"region,omitempty"`
	Organisation        string           `json:"organisation,omitempty" yaml:"organisation,omitempty"`
	Locality            string           `json:"locality,omitempty" yaml:"locality,omitempty"`
	DayKey              string           `json:"day,omitempty" yaml:"day,omitempty"`
	FirstTimestamp      *time.Time       `json:"first_ts,omitempty" yaml:"first_ts,omitempty"`
	LastTimestamp       *time.Time       `json:"last_ts,omitempty" yaml:"last_ts,omitempty"`
	LastActiveTimestamp *time.Time       `json:"last_active_ts,omitempty" yaml:"last_active_ts,omitempty"`
	MaxCount            *int             `json:"max_count,omitempty" yaml:"max_count,omitempty"`
	LastCount           *int             `json:"last_count,omitempty" yaml:"last_count,omitempty"`
	LastCountText       string           `json:"last_count_text,omitempty" yaml:"last_count_text,omitempty"`
	LastCategory        species.Category `json:"last_category,omitempty" yaml:"last_category,omitempty"`
	LastBehavior        string           `json:"last_behavior,omitempty" yaml:"last_behavior,omitempty"`
	LastObserver        string           `json:"last_observer,omitempty" yaml:"last_observer,omitempty"`
	LastObservationID   string           `json:"last_obsid,omitempty" yaml:"last_obsid,omitempty"`
	EventCount          int              `json:"event_count" yaml:"event_count"`
	Corrections         int              `json:"corrections" yaml:"corrections"`

	seen map[string]struct{}
}

// DisplayTimestamp is the time a thread sorts by. A withdrawn thread keeps
// its last active time so it does not move to the withdrawal time.
func (t *Thread) DisplayTimestamp() *time.Time {
	if t.Status == StatusWithdrawn {
		return t.LastActiveTimestamp
	}
	return t.LastTimestamp
}

// Withdrawn reports whether the thread has been retracted
func (t *Thread) Withdrawn() bool {
	return t.Status == StatusWithdrawn
}

// Observation returns a synthetic observation describing the thread's
// current state, so thread summaries can flow through the same filters as
// live observations.
func (t *Thread) Observation() observation.Observation {
	return observation.Observation{
		ThreadKey:     t.ID,
		ThreadID:      t.ID,
		Category:      t.LastCategory,
		Region:        t.Region,
		Organisation:  t.Organisation,
		Timestamp:     t.DisplayTimestamp(),
		Count:         t.LastCount,
		CountText:     t.LastCountText,
		Species:       t.Species,
		Behavior:      t.LastBehavior,
		Locality:      t.Locality,
		Observer:      t.LastObserver,
		ObservationID: t.LastObservationID,
		DayKey:        t.DayKey,
	}
}

// Aggregator owns thread state for one batch. It is not safe for
// concurrent use.
type Aggregator struct {
	threads   map[string]*Thread
	order     []string
	withdrawn []string
	classify  func(name string, literal species.Category) species.Category
}

// NewAggregator returns an empty aggregator. table may be nil, in which case
// the observation's own category tag is recorded.
func NewAggregator(table *species.Table) *Aggregator {
	return &Aggregator{
		threads:  make(map[string]*Thread),
		classify: table.Resolve,
	}
}

// Add applies one observation event and returns the updated thread.
// Observations without any thread identity are ignored.
func (a *Aggregator) Add(obs *observation.Observation) *Thread {
	id := obs.ThreadIdentity()
	if id == "" {
		return nil
	}

	t, ok := a.threads[id]
	if !ok {
		t = &Thread{
			ID:     id,
			Status: StatusActive,
			seen:   make(map[string]struct{}),
		}
		a.threads[id] = t
		a.order = append(a.order, id)
	}

	kind := a.kindOf(t, obs, ok)
	wasWithdrawn := t.Withdrawn()

	a.refresh(t, obs)

	switch kind {
	case observation.KindWithdrawal:
		t.EventCount++
		t.Status = StatusWithdrawn
		if !wasWithdrawn {
			a.withdrawn = append(a.withdrawn, id)
		}
	case observation.KindCorrection:
		t.Corrections++
		if !wasWithdrawn {
			t.LastActiveTimestamp = laterOf(t.LastActiveTimestamp, obs.Timestamp)
		}
	default:
		t.EventCount++
		t.Status = StatusActive
		if wasWithdrawn {
			a.withdrawn = slices.DeleteFunc(a.withdrawn, func(w string) bool { return w == id })
		}
		t.LastActiveTimestamp = laterOf(t.LastActiveTimestamp, obs.Timestamp)
	}

	if obs.ObservationID != "" {
		t.seen[obs.ObservationID] = struct{}{}
	}
	return t
}

// AddAll applies events in order
func (a *Aggregator) AddAll(obs []observation.Observation) {
	for i := range obs {
		a.Add(&obs[i])
	}
}

// kindOf resolves the role of an event. An explicit kind wins; a reported
// count of zero retracts the sighting; an observation id already seen in
// the thread is a correction.
func (a *Aggregator) kindOf(t *Thread, obs *observation.Observation, existing bool) observation.Kind {
	if obs.Kind != observation.KindAuto {
		return obs.Kind
	}
	if n, ok := obs.CountValue(); ok && n == 0 {
		return observation.KindWithdrawal
	}
	if existing && obs.ObservationID != "" {
		if _, dup := t.seen[obs.ObservationID]; dup {
			return observation.KindCorrection
		}
	}
	return observation.KindSighting
}

// refresh copies the event's fields onto the thread summary
func (a *Aggregator) refresh(t *Thread, obs *observation.Observation) {
	if obs.Species != "" {
		t.Species = obs.Species
	}
	if obs.Locality != "" {
		t.Locality = obs.Locality
	}
	if obs.Region != "" {
		t.Region = obs.Region
	}
	if obs.Organisation != "" {
		t.Organisation = obs.Organisation
	}
	if obs.DayKey != "" && t.DayKey == "" {
		t.DayKey = obs.DayKey
	}

	if obs.Timestamp != nil {
		if t.FirstTimestamp == nil || obs.Timestamp.Before(*t.FirstTimestamp) {
			t.FirstTimestamp = obs.Timestamp
		}
		t.LastTimestamp = laterOf(t.LastTimestamp, obs.Timestamp)
	}

	if n, ok := obs.CountValue(); ok {
		t.LastCount = &n
		if t.MaxCount == nil || n > *t.MaxCount {
			maxCount := n
			t.MaxCount = &maxCount
		}
	}
	if obs.CountText != "" {
		t.LastCountText = obs.CountText
	}

	t.LastCategory = a.classify(obs.Species, obs.LiteralCategory())
	if obs.Behavior != "" {
		t.LastBehavior = obs.Behavior
	}
	if obs.Observer != "" {
		t.LastObserver = obs.Observer
	}
	if obs.ObservationID != "" {
		t.LastObservationID = obs.ObservationID
	}
}

func laterOf(cur, next *time.Time) *time.Time {
	if next == nil {
		return cur
	}
	if cur == nil || next.After(*cur) {
		return next
	}
	return cur
}

// Get returns the thread with id
func (a *Aggregator) Get(id string) (*Thread, bool) {
	t, ok := a.threads[id]
	return t, ok
}

// Len returns the number of threads
func (a *Aggregator) Len() int {
	return len(a.threads)
}

// Threads returns the threads ordered by display timestamp, newest first.
// Threads without any timestamp sort last in first-seen order.
func (a *Aggregator) Threads() []*Thread {
	out := make([]*Thread, 0, len(a.order))
	for _, id := range a.order {
		out = append(out, a.threads[id])
	}
	slices.SortStableFunc(out, func(x, y *Thread) int {
		tx, ty := x.DisplayTimestamp(), y.DisplayTimestamp()
		switch {
		case tx == nil && ty == nil:
			return 0
		case tx == nil:
			return 1
		case ty == nil:
			return -1
		}
		return cmp.Compare(ty.UnixNano(), tx.UnixNano())
	})
	return out
}

// Withdrawn returns the threads that became withdrawn during this batch and
// are still withdrawn, in the order they were withdrawn.
func (a *Aggregator) Withdrawn() []*Thread {
	out := make([]*Thread, 0, len(a.withdrawn))
	for _, id := range a.withdrawn {
		out = append(out, a.threads[id])
	}
	return out
}

// Observations returns one summary observation per thread, active threads
// only, in Threads order.
func (a *Aggregator) Observations() []observation.Observation {
	threads := a.Threads()
	out := make([]observation.Observation, 0, len(threads))
	for _, t := range threads {
		if t.Withdrawn() {
			continue
		}
		out = append(out, t.Observation())
	}
	return out
}

// Package observation defines the Observation record and the adapters that
// build it from raw log lines and batch documents.
package observation

import (
	"time"

	"github.com/thyholm1234/DOF.not/internal/species"
)

// Kind is the role of an observation event within its thread
type Kind string

const (
	// KindAuto lets the thread aggregator infer the kind
	KindAuto Kind = ""
	// KindSighting is a new or repeated report of the sighting
	KindSighting Kind = "sighting"
	// KindCorrection updates an earlier report without changing thread status
	KindCorrection Kind = "correction"
	// KindWithdrawal retracts the sighting
	KindWithdrawal Kind = "withdrawal"
)

// DefaultTimezone is the zone local observation timestamps are written in
const DefaultTimezone = "Europe/Copenhagen"

// DayKeyLayout formats the day key used in thread links
const DayKeyLayout = "2006-01-02"

// Coordinates is a longitude/latitude pair
type Coordinates struct {
	Longitude float64 `json:"lon" yaml:"lon"`
	Latitude  float64 `json:"lat" yaml:"lat"`
}

// Observation is one reported sighting event
type Observation struct {
	ThreadKey     string           `json:"thread_key" yaml:"thread_key"`
	Source        species.Category `json:"source,omitempty" yaml:"source,omitempty"`
	Region        string           `json:"region,omitempty" yaml:"region,omitempty"`
	Timestamp     *time.Time       `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Count         *int             `json:"count,omitempty" yaml:"count,omitempty"`
	CountText     string           `json:"count_text,omitempty" yaml:"count_text,omitempty"`
	Species       string           `json:"species" yaml:"species"`
	Behavior      string           `json:"behavior,omitempty" yaml:"behavior,omitempty"`
	Locality      string           `json:"locality,omitempty" yaml:"locality,omitempty"`
	Organisation  string           `json:"organisation,omitempty" yaml:"organisation,omitempty"`
	Observer      string           `json:"observer,omitempty" yaml:"observer,omitempty"`
	Coordinates   *Coordinates     `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
	ObservationID string           `json:"obsid,omitempty" yaml:"obsid,omitempty"`
	LocalityID    string           `json:"loknr,omitempty" yaml:"loknr,omitempty"`
	ThreadID      string           `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	DayKey        string           `json:"day,omitempty" yaml:"day,omitempty"`
	Category      species.Category `json:"category,omitempty" yaml:"category,omitempty"`
	Kind          Kind             `json:"kind,omitempty" yaml:"kind,omitempty"`
	RawText       string           `json:"raw,omitempty" yaml:"raw,omitempty"`
}

// SpeciesName returns the reported species name
func (o Observation) SpeciesName() string { return o.Species }

// RegionKey returns the region slug, or the reporting branch when no slug is known
func (o Observation) RegionKey() string {
	if o.Region != "" {
		return o.Region
	}
	return o.Organisation
}

// CountValue returns the count and whether one was reported
func (o Observation) CountValue() (int, bool) {
	if o.Count == nil {
		return 0, false
	}
	return *o.Count, true
}

// LiteralCategory returns the category tag carried by the record itself.
// The log source tag is used when no explicit tag is present.
func (o Observation) LiteralCategory() species.Category {
	if o.Category.Valid() {
		return o.Category
	}
	return o.Source
}

// ThreadIdentity returns the explicit thread id, or the derived thread key
func (o Observation) ThreadIdentity() string {
	if o.ThreadID != "" {
		return o.ThreadID
	}
	return o.ThreadKey
}

// threadKeyFor derives the thread identity from species and locality
func threadKeyFor(speciesName, localityID, locality string) string {
	loc := localityID
	if loc == "" {
		loc = species.Slug(locality)
	}
	return species.Slug(speciesName) + "-" + loc
}

func intPtr(v int) *int { return &v }

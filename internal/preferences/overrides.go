package preferences

import (
	"encoding/json"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/thyholm1234/DOF.not/internal/species"
)

// ThresholdMode selects how a count threshold is compared
type ThresholdMode string

const (
	ModeGTE ThresholdMode = "gte"
	ModeEq  ThresholdMode = "eq"
)

// Threshold gates a species on its reported count. Value is always positive.
type Threshold struct {
	Mode  ThresholdMode `json:"mode"`
	Value int           `json:"value"`
}

// Allows reports whether count satisfies the threshold
func (t Threshold) Allows(count int) bool {
	if t.Mode == ModeEq {
		return count == t.Value
	}
	return count >= t.Value
}

// Overrides are a user's per-species rules, keyed by species.Normalize
type Overrides struct {
	Exclude map[string]struct{}
	Counts  map[string]Threshold
}

// NewOverrides returns empty overrides
func NewOverrides() Overrides {
	return Overrides{
		Exclude: make(map[string]struct{}),
		Counts:  make(map[string]Threshold),
	}
}

// Excluded reports whether name is excluded
func (o Overrides) Excluded(name string) bool {
	_, ok := o.Exclude[species.Normalize(name)]
	return ok
}

// ThresholdFor returns the count threshold for name, if one is configured
func (o Overrides) ThresholdFor(name string) (Threshold, bool) {
	t, ok := o.Counts[species.Normalize(name)]
	return t, ok
}

// Empty reports whether no rule is configured
func (o Overrides) Empty() bool {
	return len(o.Exclude) == 0 && len(o.Counts) == 0
}

// SetExcluded adds or removes name from the exclude set
func (o *Overrides) SetExcluded(name string, excluded bool) {
	key := species.Normalize(name)
	if key == "" {
		return
	}
	if o.Exclude == nil {
		o.Exclude = make(map[string]struct{})
	}
	if excluded {
		o.Exclude[key] = struct{}{}
		return
	}
	delete(o.Exclude, key)
}

// SetThreshold stores a count threshold for name. A non-positive value
// removes the threshold instead.
func (o *Overrides) SetThreshold(name string, mode ThresholdMode, value int) {
	key := species.Normalize(name)
	if key == "" {
		return
	}
	if o.Counts == nil {
		o.Counts = make(map[string]Threshold)
	}
	if value <= 0 {
		delete(o.Counts, key)
		return
	}
	if mode != ModeEq {
		mode = ModeGTE
	}
	o.Counts[key] = Threshold{Mode: mode, Value: value}
}

// Record is the stored and transported form of Overrides
type Record struct {
	Exclude []string             `json:"exclude"`
	Counts  map[string]Threshold `json:"counts"`
}

// Record converts overrides to their record form with sorted excludes
func (o Overrides) Record() Record {
	rec := Record{
		Exclude: make([]string, 0, len(o.Exclude)),
		Counts:  make(map[string]Threshold, len(o.Counts)),
	}
	for k := range o.Exclude {
		rec.Exclude = append(rec.Exclude, k)
	}
	slices.Sort(rec.Exclude)
	maps.Copy(rec.Counts, o.Counts)
	return rec
}

// Sanitize turns a typed record into overrides. Keys are normalized,
// non-positive thresholds are dropped and any mode other than "eq" reads
// as "gte".
func (r Record) Sanitize() Overrides {
	o := NewOverrides()
	for _, name := range r.Exclude {
		o.SetExcluded(name, true)
	}
	for name, t := range r.Counts {
		o.SetThreshold(name, t.Mode, t.Value)
	}
	return o
}

// ParseOverrides decodes a loosely typed override record. Only malformed
// JSON is an error; entries of the wrong type are skipped.
func ParseOverrides(data []byte) (Overrides, error) {
	var raw struct {
		Exclude any `json:"exclude"`
		Counts  any `json:"counts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return NewOverrides(), err
	}

	o := NewOverrides()
	if list, ok := raw.Exclude.([]any); ok {
		for _, v := range list {
			if name, ok := v.(string); ok {
				o.SetExcluded(name, true)
			}
		}
	}
	if counts, ok := raw.Counts.(map[string]any); ok {
		for name, v := range counts {
			entry, ok := v.(map[string]any)
			if !ok {
				continue
			}
			value, ok := positiveInt(entry["value"])
			if !ok {
				continue
			}
			mode := ModeGTE
			if s, ok := entry["mode"].(string); ok && strings.TrimSpace(s) == string(ModeEq) {
				mode = ModeEq
			}
			o.SetThreshold(name, mode, value)
		}
	}
	return o, nil
}

// positiveInt reads numbers and numeric strings, flooring fractions
func positiveInt(v any) (int, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || f > math.MaxInt32 {
		return 0, false
	}
	i := int(math.Floor(f))
	if i <= 0 {
		return 0, false
	}
	return i, true
}

// MarshalJSON encodes overrides as their record form
func (o Overrides) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Record())
}

// UnmarshalJSON decodes and sanitizes a record
func (o *Overrides) UnmarshalJSON(data []byte) error {
	parsed, err := ParseOverrides(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

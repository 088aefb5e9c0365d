package observation

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/regions"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// flexString accepts JSON strings, numbers, booleans and null
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*f = ""
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		*f = flexString(data)
	}
	return nil
}

func (f flexString) String() string { return string(f) }

// DocumentItem is one entry of a batch document as delivered by the
// publishing side. Field names follow the DOFbasen export.
type DocumentItem struct {
	ObsID          flexString `json:"obsid"`
	LocalityID     flexString `json:"loknr"`
	Species        flexString `json:"art"`
	Count          flexString `json:"antal"`
	CountNum       flexString `json:"antal_num"`
	Behavior       flexString `json:"adf"`
	Locality       flexString `json:"lok"`
	Afdeling       flexString `json:"dof_afdeling"`
	FirstName      flexString `json:"fornavn"`
	LastName       flexString `json:"efternavn"`
	Observer       flexString `json:"observer"`
	Longitude      flexString `json:"lon"`
	Latitude       flexString `json:"lat"`
	Date           flexString `json:"dato"`
	TimeFrom       flexString `json:"tid_fra"`
	TimeTo         flexString `json:"tid_til"`
	Kategori       flexString `json:"kategori"`
	Cat            flexString `json:"cat"`
	ThreadID       flexString `json:"thread_id"`
	DayKey         flexString `json:"ymd"`
	EventType      flexString `json:"event_type"`
	BirthTime      flexString `json:"obsidbirthtime"`
	ObservedAt     flexString `json:"ts_obs"`
}

// Document is a batch of observation items
type Document struct {
	Items []DocumentItem `json:"items"`
}

// DecodeDocument reads a batch document. Items without a species are
// dropped; a malformed document is a parse error.
func (p *Parser) DecodeDocument(r io.Reader) ([]Observation, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.New(err).
			Component("observation").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode-batch-document").
			Build()
	}

	out := make([]Observation, 0, len(doc.Items))
	for i := range doc.Items {
		if obs, ok := p.FromDocumentItem(&doc.Items[i]); ok {
			out = append(out, obs)
		}
	}
	return out, nil
}

// FromDocumentItem adapts one batch item to an Observation
func (p *Parser) FromDocumentItem(it *DocumentItem) (Observation, bool) {
	name := it.Species.String()
	if name == "" {
		return Observation{}, false
	}

	obs := Observation{
		Species:       name,
		Behavior:      it.Behavior.String(),
		Locality:      it.Locality.String(),
		Organisation:  it.Afdeling.String(),
		Observer:      observerName(it),
		ObservationID: canonicalID(it.ObsID.String()),
		LocalityID:    it.LocalityID.String(),
		ThreadID:      it.ThreadID.String(),
		DayKey:        it.DayKey.String(),
		Kind:          parseKind(it.EventType.String()),
		CountText:     it.Count.String(),
	}

	if slug, ok := regions.SlugFor(obs.Organisation); ok {
		obs.Region = slug
	}

	if c, ok := species.ParseCategory(it.Kategori.String()); ok {
		obs.Category = c
	} else if c, ok := species.ParseCategory(it.Cat.String()); ok {
		obs.Category = c
	}
	if obs.Category == species.CategorySU || obs.Category == species.CategorySUB {
		obs.Source = obs.Category
	}

	// The numeric column wins over the free-text one
	if n, ok := ParseCount(it.CountNum.String()); ok {
		obs.Count = intPtr(n)
	} else if n, ok := ParseCount(obs.CountText); ok {
		obs.Count = intPtr(n)
	}

	obs.Coordinates = documentCoordinates(it)
	obs.Timestamp = p.documentTimestamp(it)
	if obs.DayKey == "" && obs.Timestamp != nil {
		obs.DayKey = obs.Timestamp.Format(DayKeyLayout)
	}

	obs.ThreadKey = threadKeyFor(obs.Species, obs.LocalityID, obs.Locality)
	return obs, true
}

func observerName(it *DocumentItem) string {
	parts := make([]string, 0, 2)
	for _, s := range []string{it.FirstName.String(), it.LastName.String()} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	return it.Observer.String()
}

// canonicalID strips the ".0" that spreadsheet exports append to integer ids
func canonicalID(id string) string {
	return strings.TrimSuffix(strings.TrimSpace(id), ".0")
}

func parseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "withdraw", "withdrawn", "withdrawal":
		return KindWithdrawal
	case "correction", "update", "edit":
		return KindCorrection
	case "obs", "sighting":
		return KindSighting
	default:
		return KindAuto
	}
}

func documentCoordinates(it *DocumentItem) *Coordinates {
	lon, errLon := strconv.ParseFloat(strings.ReplaceAll(it.Longitude.String(), ",", "."), 64)
	lat, errLat := strconv.ParseFloat(strings.ReplaceAll(it.Latitude.String(), ",", "."), 64)
	if errLon != nil || errLat != nil {
		return nil
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return nil
	}
	return &Coordinates{Longitude: lon, Latitude: lat}
}

var documentTimeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// documentTimestamp prefers an explicit ISO timestamp, then the record's
// birth time, then date plus start time.
func (p *Parser) documentTimestamp(it *DocumentItem) *time.Time {
	if s := it.ObservedAt.String(); s != "" {
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return &ts
		}
	}

	candidates := []string{it.BirthTime.String()}
	date := it.Date.String()
	if date == "" {
		date = it.DayKey.String()
	}
	if date != "" {
		candidates = append(candidates, strings.TrimSpace(date+" "+it.TimeFrom.String()))
	}

	for _, c := range candidates {
		if c == "" {
			continue
		}
		for _, layout := range documentTimeLayouts {
			if ts, err := time.ParseInLocation(layout, c, p.location()); err == nil {
				return &ts
			}
		}
	}
	return nil
}

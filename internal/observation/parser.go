package observation

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/thyholm1234/DOF.not/internal/species"
)

// FieldDelimiter separates the fields of a log line
const FieldDelimiter = " · "

// MinFields is the number of fields a valid log line carries
const MinFields = 7

var (
	headerKeyPattern    = regexp.MustCompile(`^\[([^\]]+)\]`)
	headerTimePattern   = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[ T](\d{2}:\d{2}:\d{2})`)
	sourceTagPattern    = regexp.MustCompile(`(?i)\[(sub|su)\]`)
	countSpeciesPattern = regexp.MustCompile(`^\s*(\d+)\s+(.+)$`)
	coordinatePattern   = regexp.MustCompile(`(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)`)
)

// Parser turns raw log lines into Observations. The zero value parses
// timestamps in DefaultTimezone.
type Parser struct {
	Location *time.Location
}

// NewParser returns a parser for timestamps written in loc
func NewParser(loc *time.Location) *Parser {
	return &Parser{Location: loc}
}

func (p *Parser) location() *time.Location {
	if p != nil && p.Location != nil {
		return p.Location
	}
	return defaultLocation()
}

var defaultLocation = sync.OnceValue(func() *time.Location {
	loc, err := time.LoadLocation(DefaultTimezone)
	if err != nil {
		return time.Local
	}
	return loc
})

// ParseLine parses line with the default parser
func ParseLine(line string) (Observation, bool) {
	return (&Parser{}).ParseLine(line)
}

// ParseLine parses one log line. It returns false for lines with fewer than
// seven fields, a missing header key, an unknown source, or an empty species.
func (p *Parser) ParseLine(line string) (Observation, bool) {
	if strings.TrimSpace(line) == "" {
		return Observation{}, false
	}

	parts := strings.Split(line, FieldDelimiter)
	if len(parts) < MinFields {
		return Observation{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	header, sourceTag, countSpecies := parts[0], parts[1], parts[2]

	keyMatch := headerKeyPattern.FindStringSubmatch(header)
	if keyMatch == nil {
		return Observation{}, false
	}
	keySource, region, _ := strings.Cut(keyMatch[1], "-")

	source, ok := species.ParseCategory(keySource)
	if m := sourceTagPattern.FindStringSubmatch(sourceTag); m != nil {
		source, ok = species.ParseCategory(m[1])
	}
	if !ok || source == species.CategoryAlm {
		return Observation{}, false
	}

	var count *int
	var countText string
	speciesName := countSpecies
	if m := countSpeciesPattern.FindStringSubmatch(countSpecies); m != nil {
		speciesName = strings.TrimSpace(m[2])
		if n, err := strconv.Atoi(m[1]); err == nil {
			count = intPtr(n)
			countText = strconv.Itoa(n)
		} else {
			// out of range counts keep their digits for display only
			countText = m[1]
		}
	}
	if speciesName == "" {
		return Observation{}, false
	}

	obs := Observation{
		Source:       source,
		Region:       strings.ToLower(strings.TrimSpace(region)),
		Count:        count,
		CountText:    countText,
		Species:      speciesName,
		Behavior:     parts[3],
		Locality:     parts[4],
		Organisation: parts[5],
		Observer:     parts[6],
		Coordinates:  lastCoordinates(parts),
		RawText:      line,
	}

	if m := headerTimePattern.FindStringSubmatch(header); m != nil {
		if ts, err := time.ParseInLocation("2006-01-02 15:04:05", m[1]+" "+m[2], p.location()); err == nil {
			obs.Timestamp = &ts
			obs.DayKey = ts.Format(DayKeyLayout)
		}
	}

	obs.ThreadKey = threadKeyFor(obs.Species, "", obs.Locality)
	return obs, true
}

// lastCoordinates scans every field and keeps the last valid pair, so a
// trailing coordinate field overrides numbers that happen to match earlier.
func lastCoordinates(parts []string) *Coordinates {
	var out *Coordinates
	for _, part := range parts {
		m := coordinatePattern.FindStringSubmatch(part)
		if m == nil {
			continue
		}
		lon, errLon := strconv.ParseFloat(m[1], 64)
		lat, errLat := strconv.ParseFloat(m[2], 64)
		if errLon != nil || errLat != nil {
			continue
		}
		if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
			continue
		}
		out = &Coordinates{Longitude: lon, Latitude: lat}
	}
	return out
}

// ParseResult holds the outcome of parsing a stream of lines
type ParseResult struct {
	Observations []Observation
	Skipped      int
}

// ParseLines parses every line of r, skipping lines that do not parse.
// Blank lines are ignored and not counted as skipped.
func (p *Parser) ParseLines(r io.Reader) (ParseResult, error) {
	var res ParseResult

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		obs, ok := p.ParseLine(line)
		if !ok {
			res.Skipped++
			continue
		}
		res.Observations = append(res.Observations, obs)
	}

	return res, scanner.Err()
}

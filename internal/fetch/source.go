package fetch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/httpclient"
	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// Source yields the observations of one region
type Source interface {
	Name() string
	Fetch(ctx context.Context, region string) ([]observation.Observation, error)
}

// LogSource reads the su and sub log files of a region from a directory
type LogSource struct {
	Dir    string
	Parser *observation.Parser
}

// NewLogSource returns a source reading <dir>/<category>-<region>.log
func NewLogSource(dir string, parser *observation.Parser) *LogSource {
	return &LogSource{Dir: dir, Parser: parser}
}

// Name implements Source
func (s *LogSource) Name() string { return "log" }

// Path returns the log file for a source category and region
func (s *LogSource) Path(source species.Category, region string) string {
	return filepath.Join(s.Dir, string(source)+"-"+region+".log")
}

// Fetch implements Source. A missing file contributes nothing; the region
// is only unavailable when both files are missing.
func (s *LogSource) Fetch(ctx context.Context, region string) ([]observation.Observation, error) {
	var out []observation.Observation
	missing := 0
	skipped := 0

	for _, source := range []species.Category{species.CategorySU, species.CategorySUB} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := s.Path(source, region)
		res, err := s.readFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				missing++
				continue
			}
			return nil, errors.New(err).
				Component("fetch").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
		skipped += res.Skipped
		for i := range res.Observations {
			obs := res.Observations[i]
			if obs.Region == "" {
				obs.Region = region
			}
			if obs.Source == "" {
				obs.Source = source
			}
			out = append(out, obs)
		}
	}

	if missing == 2 {
		return nil, errors.Newf("no log files for region %s", region).
			Component("fetch").
			Category(errors.CategoryNotFound).
			Context("dir", s.Dir).
			Build()
	}
	if skipped > 0 {
		GetLogger().Debug("skipped unparseable log lines",
			logger.String("region", region),
			logger.Int("skipped", skipped))
	}
	return out, nil
}

func (s *LogSource) readFile(path string) (observation.ParseResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return observation.ParseResult{}, err
	}
	defer func() { _ = f.Close() }()
	return s.Parser.ParseLines(f)
}

// DefaultCacheTTL is how long an HTTP region document is reused
const DefaultCacheTTL = 30 * time.Second

// HTTPSource fetches <base>/<region>.json batch documents
type HTTPSource struct {
	base     string
	client   *httpclient.Client
	parser   *observation.Parser
	cache    *cache.Cache
	recorder Recorder
}

// NewHTTPSource returns a source for baseURL. A ttl of zero uses
// DefaultCacheTTL; a negative ttl disables caching.
func NewHTTPSource(baseURL string, client *httpclient.Client, parser *observation.Parser, ttl time.Duration, recorder Recorder) (*HTTPSource, error) {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		return nil, errors.Newf("fetch base url must be http or https").
			Component("fetch").
			Category(errors.CategoryConfiguration).
			Context("url", baseURL).
			Build()
	}
	if client == nil {
		client = httpclient.New(nil)
	}
	s := &HTTPSource{base: base, client: client, parser: parser, recorder: recorder}
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	if ttl > 0 {
		s.cache = cache.New(ttl, ttl*2)
	}
	return s, nil
}

// Name implements Source
func (s *HTTPSource) Name() string { return "http" }

// URL returns the document url of a region
func (s *HTTPSource) URL(region string) string {
	return s.base + "/" + region + ".json"
}

// Fetch implements Source
func (s *HTTPSource) Fetch(ctx context.Context, region string) ([]observation.Observation, error) {
	url := s.URL(region)

	var doc *observation.Document
	if s.cache != nil {
		if cached, found := s.cache.Get(url); found {
			doc = cached.(*observation.Document)
			if s.recorder != nil {
				s.recorder.RecordCacheHit()
			}
		}
	}
	if doc == nil {
		doc = &observation.Document{}
		if err := s.client.GetJSON(ctx, url, doc); err != nil {
			return nil, err
		}
		if s.cache != nil {
			s.cache.Set(url, doc, cache.DefaultExpiration)
		}
	}

	out := make([]observation.Observation, 0, len(doc.Items))
	for i := range doc.Items {
		obs, ok := s.parser.FromDocumentItem(&doc.Items[i])
		if !ok {
			continue
		}
		if obs.Region == "" {
			obs.Region = region
		}
		out = append(out, obs)
	}
	return out, nil
}

// Flush drops all cached documents
func (s *HTTPSource) Flush() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

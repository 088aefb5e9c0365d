package conf

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/regions"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadEmbeddedDefaults(t *testing.T) {
	t.Parallel()

	data, err := DefaultConfigYAML()
	require.NoError(t, err)
	path := writeConfig(t, string(data))

	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "Europe/Copenhagen", s.Timezone)
	assert.Equal(t, "log", s.Fetch.Source)
	assert.Equal(t, 8, s.Fetch.Concurrency)
	assert.Equal(t, 250, s.Fetch.MaxItemsPerRegion)
	assert.Equal(t, 30*time.Second, s.Fetch.CacheTTL)
	assert.Equal(t, regions.Slugs(), s.Fetch.Regions, "empty region list means all")
	assert.Equal(t, 5, s.Pipeline.MaxPerBatch)
	assert.Equal(t, []string{"su", "sub"}, s.Pipeline.Baseline)
	assert.Equal(t, 1500*time.Millisecond, s.Pipeline.OverrideTimeout)
	assert.Equal(t, "threads", s.Pipeline.Mode)
	assert.Equal(t, "@every 2m", s.Watch.Schedule)
	assert.Equal(t, "info", s.Logging.DefaultLevel)
	require.NotNil(t, s.Logging.Console)
	assert.True(t, s.Logging.Console.Enabled)
	assert.Equal(t, "Europe/Copenhagen", s.Location().String())
}

func TestLoadOverridesDefaults(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
fetch:
  source: http
  baseurl: https://example.org/regions
  regions: [DOF København, kobenhavn, fyn]
pipeline:
  mode: observations
  maxperbatch: 3
delivery:
  mqtt:
    enabled: true
    broker: tcp://broker:1883
    qos: 2
`)
	s, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)

	assert.Equal(t, "http", s.Fetch.Source)
	assert.Equal(t, []string{"kobenhavn", "fyn"}, s.Fetch.Regions)
	assert.Equal(t, "observations", s.Pipeline.Mode)
	assert.Equal(t, 3, s.Pipeline.MaxPerBatch)
	assert.True(t, s.Delivery.MQTT.Enabled)
	assert.Equal(t, 2, s.Delivery.MQTT.QoS)
	assert.Equal(t, "dofnot/notifications", s.Delivery.MQTT.Topic, "unset keys keep their default")
	assert.Same(t, s, GetSettings())
}

func TestLoadEnvironmentAndFlags(t *testing.T) {
	t.Setenv("DOFNOT_FETCH_LOGDIR", "/var/lib/dofnot/logs")
	t.Setenv("DOFNOT_PIPELINE_MAXPERBATCH", "9")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("debug", false, "")
	flags.Int("max", 0, "")
	require.NoError(t, flags.Parse([]string{"--debug", "--max=2"}))

	path := writeConfig(t, "fetch:\n  logdir: from-file\n")
	s, err := Load(LoadOptions{
		ConfigFile: path,
		Flags:      flags,
		FlagKeys:   map[string]string{"debug": "debug", "max": "pipeline.maxperbatch"},
	})
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/dofnot/logs", s.Fetch.LogDir, "environment beats file")
	assert.Equal(t, 2, s.Pipeline.MaxPerBatch, "flags beat environment")
	assert.True(t, s.Debug)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := Load(LoadOptions{ConfigFile: filepath.Join(t.TempDir(), "absent.yaml")})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown source", "fetch:\n  source: ftp\n", "fetch.source"},
		{"http without url", "fetch:\n  source: http\n", "fetch.baseurl"},
		{"unknown region", "fetch:\n  regions: [atlantis]\n", "unknown region"},
		{"zero concurrency", "fetch:\n  concurrency: 0\n", "fetch.concurrency"},
		{"bad mode", "pipeline:\n  mode: daily\n", "pipeline.mode"},
		{"bad baseline", "pipeline:\n  baseline: [rare]\n", "baseline category"},
		{"zero batch", "pipeline:\n  maxperbatch: 0\n", "pipeline.maxperbatch"},
		{"bad store", "store:\n  type: redis\n", "store.type"},
		{"mysql without dsn", "store:\n  type: mysql\n", "store.dsn"},
		{"bad qos", "delivery:\n  mqtt:\n    enabled: true\n    qos: 3\n", "qos"},
		{"webhook without url", "delivery:\n  webhook:\n    enabled: true\n    url: \"\"\n", "webhook.url"},
		{"shoutrrr without urls", "delivery:\n  shoutrrr:\n    enabled: true\n", "shoutrrr.urls"},
		{"bad schedule", "watch:\n  schedule: sometimes\n", "watch.schedule"},
		{"bad timezone", "timezone: Mars/Olympus\n", "timezone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(LoadOptions{ConfigFile: writeConfig(t, tt.content)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)

			var ve ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	t.Parallel()

	s := &Settings{Timezone: "UTC"}
	err := ValidateSettings(s)
	require.Error(t, err)

	var ve ValidationError
	require.True(t, errors.As(err, &ve))
	assert.GreaterOrEqual(t, len(ve.Errors), 5)
}

func TestSaveYAMLConfigRoundTrip(t *testing.T) {
	t.Parallel()

	data, err := DefaultConfigYAML()
	require.NoError(t, err)
	s, err := Load(LoadOptions{ConfigFile: writeConfig(t, string(data))})
	require.NoError(t, err)

	s.Pipeline.MaxPerBatch = 7
	s.Delivery.Users = []string{"u1", "u2"}
	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, SaveYAMLConfig(path, s))

	loaded, err := Load(LoadOptions{ConfigFile: path})
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Pipeline.MaxPerBatch)
	assert.Equal(t, []string{"u1", "u2"}, loaded.Delivery.Users)
}

func TestWriteDefaultConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, WriteDefaultConfig(path))

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	embedded, err := DefaultConfigYAML()
	require.NoError(t, err)
	assert.Equal(t, embedded, written)

	require.Error(t, WriteDefaultConfig(path), "existing files are not overwritten")
}

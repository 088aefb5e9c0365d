// Package conf loads and validates the dofnot configuration.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/logger"
)

//go:embed config.yaml
var configFiles embed.FS

// Settings is the complete configuration
type Settings struct {
	Debug    bool   `yaml:"debug" mapstructure:"debug"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"` // IANA zone used for day keys and schedules

	Logging        logger.LoggingConfig   `yaml:"logging" mapstructure:"logging"`
	Classification ClassificationSettings `yaml:"classification" mapstructure:"classification"`
	Fetch          FetchSettings          `yaml:"fetch" mapstructure:"fetch"`
	Pipeline       PipelineSettings       `yaml:"pipeline" mapstructure:"pipeline"`
	Links          LinkSettings           `yaml:"links" mapstructure:"links"`
	Store          StoreSettings          `yaml:"store" mapstructure:"store"`
	Delivery       DeliverySettings       `yaml:"delivery" mapstructure:"delivery"`
	Watch          WatchSettings          `yaml:"watch" mapstructure:"watch"`
	Metrics        MetricsSettings        `yaml:"metrics" mapstructure:"metrics"`
}

// ClassificationSettings locates the species category table
type ClassificationSettings struct {
	Path string `yaml:"path" mapstructure:"path"` // semicolon separated artsnavn;klass file
}

// FetchSettings controls where region data comes from
type FetchSettings struct {
	Source            string        `yaml:"source" mapstructure:"source"` // "log" or "http"
	LogDir            string        `yaml:"logdir" mapstructure:"logdir"`
	BaseURL           string        `yaml:"baseurl" mapstructure:"baseurl"`
	Regions           []string      `yaml:"regions" mapstructure:"regions"` // region slugs or branch names, empty means all
	Concurrency       int           `yaml:"concurrency" mapstructure:"concurrency"`
	MaxItemsPerRegion int           `yaml:"maxitemsperregion" mapstructure:"maxitemsperregion"`
	TodayOnly         bool          `yaml:"todayonly" mapstructure:"todayonly"`
	HideZero          bool          `yaml:"hidezero" mapstructure:"hidezero"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout"`   // per request
	CacheTTL          time.Duration `yaml:"cachettl" mapstructure:"cachettl"` // http documents, negative disables
}

// PipelineSettings controls filtering and planning
type PipelineSettings struct {
	MaxPerBatch     int           `yaml:"maxperbatch" mapstructure:"maxperbatch"`
	Baseline        []string      `yaml:"baseline" mapstructure:"baseline"` // categories used when a user has no usable matrix
	Mode            string        `yaml:"mode" mapstructure:"mode"`         // "threads" or "observations"
	OverrideTimeout time.Duration `yaml:"overridetimeout" mapstructure:"overridetimeout"`
	Withdrawals     bool          `yaml:"withdrawals" mapstructure:"withdrawals"`
}

// LinkSettings are the bases of notification target urls
type LinkSettings struct {
	ThreadBase string `yaml:"threadbase" mapstructure:"threadbase"`
	RecordBase string `yaml:"recordbase" mapstructure:"recordbase"`
}

// StoreSettings selects the preference store
type StoreSettings struct {
	Type string `yaml:"type" mapstructure:"type"` // "sqlite", "mysql" or "memory"
	Path string `yaml:"path" mapstructure:"path"`
	DSN  string `yaml:"dsn" mapstructure:"dsn"`
}

// DeliverySettings configures the push providers
type DeliverySettings struct {
	Users    []string         `yaml:"users" mapstructure:"users"` // users notified by the watcher
	Webhook  WebhookSettings  `yaml:"webhook" mapstructure:"webhook"`
	MQTT     MQTTSettings     `yaml:"mqtt" mapstructure:"mqtt"`
	Shoutrrr ShoutrrrSettings `yaml:"shoutrrr" mapstructure:"shoutrrr"`
}

// WebhookSettings configures the JSON publish endpoint
type WebhookSettings struct {
	Enabled       bool              `yaml:"enabled" mapstructure:"enabled"`
	URL           string            `yaml:"url" mapstructure:"url"`
	Token         string            `yaml:"token" mapstructure:"token"`
	Headers       map[string]string `yaml:"headers" mapstructure:"headers"`
	RatePerSecond float64           `yaml:"ratepersecond" mapstructure:"ratepersecond"`
	Burst         int               `yaml:"burst" mapstructure:"burst"`
}

// MQTTSettings configures the MQTT provider
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	Broker   string `yaml:"broker" mapstructure:"broker"`
	ClientID string `yaml:"clientid" mapstructure:"clientid"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Topic    string `yaml:"topic" mapstructure:"topic"`
	QoS      int    `yaml:"qos" mapstructure:"qos"`
	Retain   bool   `yaml:"retain" mapstructure:"retain"`
}

// ShoutrrrSettings configures shoutrrr service urls
type ShoutrrrSettings struct {
	Enabled bool          `yaml:"enabled" mapstructure:"enabled"`
	URLs    []string      `yaml:"urls" mapstructure:"urls"`
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// WatchSettings configures the scheduled watcher
type WatchSettings struct {
	Schedule   string `yaml:"schedule" mapstructure:"schedule"` // cron spec or descriptor
	LockFile   string `yaml:"lockfile" mapstructure:"lockfile"`
	Listen     string `yaml:"listen" mapstructure:"listen"` // empty disables the HTTP surface
	RunOnStart bool   `yaml:"runonstart" mapstructure:"runonstart"`
}

// MetricsSettings toggles the Prometheus endpoint
type MetricsSettings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`
}

// LoadOptions tell Load where to look besides the default paths
type LoadOptions struct {
	ConfigFile string         // explicit file, skips the search
	Flags      *pflag.FlagSet // bound on top of file and environment
	// FlagKeys maps flag names to config keys. When nil every flag binds
	// to the key of its own name.
	FlagKeys map[string]string
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads defaults, the config file, DOFNOT_ environment variables and
// bound flags, in increasing precedence, then validates the result.
func Load(opts LoadOptions) (*Settings, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}
	settings.Fetch.Regions = normalizeRegions(settings.Fetch.Regions)

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("config_file", v.ConfigFileUsed()).
			Build()
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()
	return settings, nil
}

// newViper assembles the layered configuration
func newViper(opts LoadOptions) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaultConfig(v)
	bindEnv(v)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName("config")
		paths, err := GetDefaultConfigPaths()
		if err != nil {
			return nil, err
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, errors.New(err).
				Component("conf").
				Category(errors.CategoryConfiguration).
				Context("operation", "read-config").
				Build()
		}
		// defaults and environment alone are a valid configuration
	}

	if err := bindFlags(v, opts); err != nil {
		return nil, err
	}
	return v, nil
}

func bindFlags(v *viper.Viper, opts LoadOptions) error {
	if opts.Flags == nil {
		return nil
	}
	if opts.FlagKeys == nil {
		if err := v.BindPFlags(opts.Flags); err != nil {
			return fmt.Errorf("error binding flags: %w", err)
		}
		return nil
	}
	for name, key := range opts.FlagKeys {
		f := opts.Flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}
	return nil
}

// GetSettings returns the settings of the last successful Load
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// DefaultConfigYAML returns the embedded default configuration
func DefaultConfigYAML() ([]byte, error) {
	return fs.ReadFile(configFiles, "config.yaml")
}

// WriteDefaultConfig writes the embedded defaults to path unless a file
// already exists there.
func WriteDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return errors.Newf("config file already exists").
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("path", path).
			Build()
	}
	data, err := DefaultConfigYAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}
	return writeAtomic(path, data)
}

// SaveYAMLConfig writes settings to configPath. It overwrites the file and
// does not preserve comments.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return writeAtomic(configPath, yamlData)
}

// writeAtomic writes through a temporary file in the target directory and
// renames it into place
func writeAtomic(path string, data []byte) error {
	tempFile, err := os.CreateTemp(filepath.Dir(path), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}
	if err := os.Rename(tempFileName, path); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// Package app builds the notification pipeline from settings and owns the
// lifetime of its shared resources.
package app

import (
	"context"
	"io/fs"
	"time"

	"github.com/thyholm1234/DOF.not/internal/batch"
	"github.com/thyholm1234/DOF.not/internal/conf"
	"github.com/thyholm1234/DOF.not/internal/errors"
	"github.com/thyholm1234/DOF.not/internal/fetch"
	"github.com/thyholm1234/DOF.not/internal/filter"
	"github.com/thyholm1234/DOF.not/internal/httpclient"
	"github.com/thyholm1234/DOF.not/internal/logger"
	"github.com/thyholm1234/DOF.not/internal/mqtt"
	"github.com/thyholm1234/DOF.not/internal/notification"
	"github.com/thyholm1234/DOF.not/internal/observability"
	"github.com/thyholm1234/DOF.not/internal/observation"
	"github.com/thyholm1234/DOF.not/internal/preferences"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// GetLogger returns the package logger
func GetLogger() logger.Logger {
	return logger.Global().Module("app")
}

// App holds the wired pipeline. Close releases the store, broker and HTTP
// connections.
type App struct {
	Settings  *conf.Settings
	Metrics   *observability.Metrics
	Store     preferences.Store
	Table     *species.Table
	Parser    *observation.Parser
	HTTP      *httpclient.Client
	Deliverer notification.Deliverer // nil when no provider is enabled
	Processor *batch.Processor

	closers []func() error
	log     logger.Logger
}

// Options select optional parts of the wiring
type Options struct {
	// SkipDelivery leaves Deliverer nil, for dry runs and inspection.
	SkipDelivery bool
}

// New wires every component described by settings. Metrics are always
// collected; settings.Metrics only controls whether they are served.
func New(settings *conf.Settings, opts Options) (*App, error) {
	if settings == nil {
		return nil, errors.Newf("settings are required").
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}

	a := &App{Settings: settings, log: GetLogger()}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	m, err := observability.NewMetrics()
	if err != nil {
		return nil, err
	}
	a.Metrics = m

	a.HTTP = httpclient.New(&httpclient.Config{DefaultTimeout: settings.Fetch.Timeout})
	a.HTTP.SetAfterResponseHook(m.HTTP.ObserveOutbound)
	a.closers = append(a.closers, func() error { a.HTTP.Close(); return nil })

	store, err := OpenStore(settings.Store)
	if err != nil {
		return nil, err
	}
	a.Store = store
	a.closers = append(a.closers, store.Close)

	a.Table = a.loadTable(settings.Classification.Path)
	a.Parser = observation.NewParser(settings.Location())

	source, err := a.newSource()
	if err != nil {
		return nil, err
	}

	if !opts.SkipDelivery {
		d, err := a.newDeliverer()
		if err != nil {
			return nil, err
		}
		a.Deliverer = d
	}

	mode, _ := batch.ParseMode(settings.Pipeline.Mode)
	deps := batch.Deps{
		Fetcher: NewPool(settings, source, m.Fetch),
		Table:   a.Table,
		Filter: filter.New(a.Table,
			filter.WithBaseline(species.ParseCategorySet(settings.Pipeline.Baseline))),
		Planner: notification.NewPlanner(
			notification.WithLinkBases(settings.Links.ThreadBase, settings.Links.RecordBase),
			notification.WithLocation(settings.Location()),
			notification.WithTable(a.Table)),
		Store:   a.Store,
		Metrics: m.Pipeline,
	}
	if a.Deliverer != nil {
		deps.Deliverer = a.Deliverer
	}

	a.Processor, err = batch.New(batch.Config{
		Regions:         settings.Fetch.Regions,
		Mode:            mode,
		MaxPerBatch:     settings.Pipeline.MaxPerBatch,
		OverrideTimeout: settings.Pipeline.OverrideTimeout,
		Withdrawals:     settings.Pipeline.Withdrawals,
		Source:          source.Name(),
	}, deps)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

// Close releases resources in reverse order of creation
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// OpenStore opens the configured preference store
func OpenStore(s conf.StoreSettings) (preferences.Store, error) {
	switch s.Type {
	case "memory":
		return preferences.NewMemoryStore(), nil
	case "mysql":
		return preferences.OpenMySQL(s.DSN)
	case "sqlite", "":
		return preferences.OpenSQLite(s.Path)
	default:
		return nil, errors.Newf("unknown store type %q", s.Type).
			Component("app").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// NewPool builds the fetch pool described by settings
func NewPool(settings *conf.Settings, source fetch.Source, recorder fetch.Recorder) *fetch.Pool {
	opts := []fetch.Option{
		fetch.WithConcurrency(settings.Fetch.Concurrency),
		fetch.WithMaxItems(settings.Fetch.MaxItemsPerRegion),
	}
	if recorder != nil {
		opts = append(opts, fetch.WithRecorder(recorder))
	}
	if settings.Fetch.TodayOnly {
		opts = append(opts, fetch.WithTodayOnly(settings.Location(), time.Now))
	}
	if settings.Fetch.HideZero {
		opts = append(opts, fetch.WithHideZero())
	}
	return fetch.NewPool(source, opts...)
}

// loadTable reads the classification table. A missing or unreadable table
// is not fatal: literal categories from the data are used instead.
func (a *App) loadTable(path string) *species.Table {
	if path == "" {
		return nil
	}
	table, err := species.LoadTableFile(path)
	if err != nil {
		level := a.log.Warn
		if errors.Is(err, fs.ErrNotExist) {
			level = a.log.Info
		}
		level("classification table unavailable, using literal categories",
			logger.String("path", path),
			logger.Error(err))
		return nil
	}
	return table
}

func (a *App) newSource() (fetch.Source, error) {
	s := a.Settings.Fetch
	if s.Source == "http" {
		return fetch.NewHTTPSource(s.BaseURL, a.HTTP, a.Parser, s.CacheTTL, a.Metrics.Fetch)
	}
	return fetch.NewLogSource(s.LogDir, a.Parser), nil
}

// newDeliverer combines every enabled provider. It returns nil, not an
// empty MultiDeliverer, when none is enabled.
func (a *App) newDeliverer() (notification.Deliverer, error) {
	d := a.Settings.Delivery
	var providers []notification.Deliverer

	if d.Webhook.Enabled {
		w, err := notification.NewWebhookDeliverer(notification.WebhookConfig{
			URL:           d.Webhook.URL,
			BearerToken:   d.Webhook.Token,
			Headers:       d.Webhook.Headers,
			RatePerSecond: d.Webhook.RatePerSecond,
			Burst:         d.Webhook.Burst,
		}, a.HTTP, a.Metrics.Delivery)
		if err != nil {
			return nil, err
		}
		providers = append(providers, w)
	}

	if d.MQTT.Enabled {
		cfg := mqtt.DefaultConfig()
		cfg.Broker = d.MQTT.Broker
		if d.MQTT.ClientID != "" {
			cfg.ClientID = d.MQTT.ClientID
		}
		cfg.Username = d.MQTT.Username
		cfg.Password = d.MQTT.Password
		cfg.QoS = byte(d.MQTT.QoS)
		cfg.Retain = d.MQTT.Retain
		client, err := mqtt.NewClient(cfg, a.Metrics.MQTT)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() error { client.Disconnect(); return nil })
		providers = append(providers, notification.NewMQTTDeliverer(client, d.MQTT.Topic, a.Metrics.Delivery))
	}

	if d.Shoutrrr.Enabled {
		s, err := notification.NewShoutrrrDeliverer(d.Shoutrrr.URLs, d.Shoutrrr.Timeout, a.Metrics.Delivery)
		if err != nil {
			return nil, err
		}
		providers = append(providers, s)
	}

	switch len(providers) {
	case 0:
		a.log.Info("no delivery provider enabled, plans are logged only")
		return nil, nil
	case 1:
		return providers[0], nil
	default:
		return notification.NewMultiDeliverer(providers...), nil
	}
}

// RunBatch runs one batch for users and logs a summary per user
func (a *App) RunBatch(ctx context.Context, users []string, dryRun bool) ([]batch.Plan, error) {
	plans, err := a.Processor.Run(ctx, users, dryRun || a.Deliverer == nil)
	for i := range plans {
		p := &plans[i]
		a.log.Info("batch planned",
			logger.String("user", p.UserID),
			logger.Int("passed", p.Report.Output),
			logger.Int("notifications", len(p.Descriptors)),
			logger.Int("withdrawals", len(p.Withdrawals)),
			logger.Bool("delivered", p.Delivered))
	}
	return plans, err
}

// conf/validate.go

package conf

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/thyholm1234/DOF.not/internal/regions"
	"github.com/thyholm1234/DOF.not/internal/species"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every
// problem found, not only the first.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}
	add := func(errs []string) { ve.Errors = append(ve.Errors, errs...) }

	if _, err := time.LoadLocation(settings.Timezone); err != nil {
		ve.Errors = append(ve.Errors, fmt.Sprintf("invalid timezone %q", settings.Timezone))
	}
	add(validateFetchSettings(&settings.Fetch))
	add(validatePipelineSettings(&settings.Pipeline))
	add(validateStoreSettings(&settings.Store))
	add(validateDeliverySettings(&settings.Delivery))
	add(validateWatchSettings(&settings.Watch))

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateFetchSettings(s *FetchSettings) []string {
	var errs []string
	switch s.Source {
	case "log":
		if strings.TrimSpace(s.LogDir) == "" {
			errs = append(errs, "fetch.logdir is required for the log source")
		}
	case "http":
		if !isHTTPURL(s.BaseURL) {
			errs = append(errs, fmt.Sprintf("fetch.baseurl must be an http(s) url, got %q", s.BaseURL))
		}
	default:
		errs = append(errs, fmt.Sprintf("fetch.source must be log or http, got %q", s.Source))
	}

	known := regions.Slugs()
	for _, r := range s.Regions {
		if !slices.Contains(known, r) {
			errs = append(errs, fmt.Sprintf("unknown region %q", r))
		}
	}
	if s.Concurrency <= 0 {
		errs = append(errs, "fetch.concurrency must be greater than 0")
	}
	if s.MaxItemsPerRegion <= 0 {
		errs = append(errs, "fetch.maxitemsperregion must be greater than 0")
	}
	if s.Timeout < 0 {
		errs = append(errs, "fetch.timeout must not be negative")
	}
	return errs
}

func validatePipelineSettings(s *PipelineSettings) []string {
	var errs []string
	if s.MaxPerBatch <= 0 {
		errs = append(errs, "pipeline.maxperbatch must be greater than 0")
	}
	if s.Mode != "threads" && s.Mode != "observations" {
		errs = append(errs, fmt.Sprintf("pipeline.mode must be threads or observations, got %q", s.Mode))
	}
	if len(s.Baseline) == 0 {
		errs = append(errs, "pipeline.baseline must name at least one category")
	}
	for _, c := range s.Baseline {
		if _, ok := species.ParseCategory(c); !ok {
			errs = append(errs, fmt.Sprintf("unknown baseline category %q", c))
		}
	}
	if s.OverrideTimeout <= 0 {
		errs = append(errs, "pipeline.overridetimeout must be greater than 0")
	}
	return errs
}

func validateStoreSettings(s *StoreSettings) []string {
	switch s.Type {
	case "memory":
	case "sqlite":
		if strings.TrimSpace(s.Path) == "" {
			return []string{"store.path is required for sqlite"}
		}
	case "mysql":
		if strings.TrimSpace(s.DSN) == "" {
			return []string{"store.dsn is required for mysql"}
		}
	default:
		return []string{fmt.Sprintf("store.type must be sqlite, mysql or memory, got %q", s.Type)}
	}
	return nil
}

func validateDeliverySettings(s *DeliverySettings) []string {
	var errs []string
	if s.Webhook.Enabled {
		if !isHTTPURL(s.Webhook.URL) {
			errs = append(errs, fmt.Sprintf("delivery.webhook.url must be an http(s) url, got %q", s.Webhook.URL))
		}
		if s.Webhook.RatePerSecond < 0 {
			errs = append(errs, "delivery.webhook.ratepersecond must not be negative")
		}
	}
	if s.MQTT.Enabled {
		if strings.TrimSpace(s.MQTT.Broker) == "" {
			errs = append(errs, "delivery.mqtt.broker is required when mqtt is enabled")
		}
		if s.MQTT.QoS < 0 || s.MQTT.QoS > 2 {
			errs = append(errs, fmt.Sprintf("delivery.mqtt.qos must be 0, 1 or 2, got %d", s.MQTT.QoS))
		}
	}
	if s.Shoutrrr.Enabled && len(s.Shoutrrr.URLs) == 0 {
		errs = append(errs, "delivery.shoutrrr.urls is required when shoutrrr is enabled")
	}
	return errs
}

func validateWatchSettings(s *WatchSettings) []string {
	if _, err := cron.ParseStandard(s.Schedule); err != nil {
		return []string{fmt.Sprintf("invalid watch.schedule %q: %v", s.Schedule, err)}
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

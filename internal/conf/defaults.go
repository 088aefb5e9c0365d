package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig sets the value of every known key, so environment
// overrides resolve for all of them.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("timezone", "Europe/Copenhagen")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Europe/Copenhagen")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/dofnot.log")
	v.SetDefault("logging.file_output.level", "info")
	v.SetDefault("logging.module_levels", map[string]string{})

	v.SetDefault("classification.path", "data/arter.csv")

	v.SetDefault("fetch.source", "log")
	v.SetDefault("fetch.logdir", "logs/regions")
	v.SetDefault("fetch.baseurl", "")
	v.SetDefault("fetch.regions", []string{})
	v.SetDefault("fetch.concurrency", 8)
	v.SetDefault("fetch.maxitemsperregion", 250)
	v.SetDefault("fetch.todayonly", true)
	v.SetDefault("fetch.hidezero", false)
	v.SetDefault("fetch.timeout", 20*time.Second)
	v.SetDefault("fetch.cachettl", 30*time.Second)

	v.SetDefault("pipeline.maxperbatch", 5)
	v.SetDefault("pipeline.baseline", []string{"su", "sub"})
	v.SetDefault("pipeline.mode", "threads")
	v.SetDefault("pipeline.overridetimeout", 1500*time.Millisecond)
	v.SetDefault("pipeline.withdrawals", true)

	v.SetDefault("links.threadbase", "https://dofnot.chfotofilm.dk")
	v.SetDefault("links.recordbase", "https://dofbasen.dk")

	v.SetDefault("store.type", "sqlite")
	v.SetDefault("store.path", "data/preferences.db")
	v.SetDefault("store.dsn", "")

	v.SetDefault("delivery.users", []string{})
	v.SetDefault("delivery.webhook.enabled", false)
	v.SetDefault("delivery.webhook.url", "http://localhost:8000/api/publish")
	v.SetDefault("delivery.webhook.token", "")
	v.SetDefault("delivery.webhook.headers", map[string]string{})
	v.SetDefault("delivery.webhook.ratepersecond", 0.0)
	v.SetDefault("delivery.webhook.burst", 1)
	v.SetDefault("delivery.mqtt.enabled", false)
	v.SetDefault("delivery.mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("delivery.mqtt.clientid", "dofnot")
	v.SetDefault("delivery.mqtt.username", "")
	v.SetDefault("delivery.mqtt.password", "")
	v.SetDefault("delivery.mqtt.topic", "dofnot/notifications")
	v.SetDefault("delivery.mqtt.qos", 1)
	v.SetDefault("delivery.mqtt.retain", false)
	v.SetDefault("delivery.shoutrrr.enabled", false)
	v.SetDefault("delivery.shoutrrr.urls", []string{})
	v.SetDefault("delivery.shoutrrr.timeout", 10*time.Second)

	v.SetDefault("watch.schedule", "@every 2m")
	v.SetDefault("watch.lockfile", "dofnot.lock")
	v.SetDefault("watch.listen", ":8080")
	v.SetDefault("watch.runonstart", true)

	v.SetDefault("metrics.enabled", true)
}

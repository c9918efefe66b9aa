// Package config loads an authclient.Config from an optional YAML file and
// BAKERY_* environment variables.
//
// Keys are snake_case and grouped like the Config sections, e.g. api.base_url or
// storage.medium. The matching variables are BAKERY_API_BASE_URL and
// BAKERY_STORAGE_MEDIUM. Environment beats file, file beats defaults.
package config

import (
	"fmt"
	"strings"

	authclient "github.com/cronos-bakery/authclient"
	"github.com/cronos-bakery/authclient/session"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "BAKERY"

// Load reads path (if non-empty, and then it must exist) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (authclient.Config, error) {
	v := viper.New()
	setDefaults(v, authclient.DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return authclient.Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return authclient.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, d authclient.Config) {
	v.SetDefault("api.base_url", d.API.BaseURL)
	v.SetDefault("api.timeout", d.API.Timeout)
	v.SetDefault("api.logout_timeout", d.API.LogoutTimeout)
	v.SetDefault("api.user_agent", d.API.UserAgent)

	v.SetDefault("storage.durability", string(d.Storage.Durability))
	v.SetDefault("storage.medium", d.Storage.Medium)
	v.SetDefault("storage.key_prefix", d.Storage.KeyPrefix)
	v.SetDefault("storage.file_path", d.Storage.FilePath)
	v.SetDefault("storage.redis_addr", d.Storage.RedisAddr)
	v.SetDefault("storage.redis_db", d.Storage.RedisDB)

	v.SetDefault("session.expiry_leeway", d.Session.ExpiryLeeway)

	v.SetDefault("pipeline.request_ids", d.Pipeline.RequestIDs)
	v.SetDefault("pipeline.busy_indicator", d.Pipeline.BusyIndicator)

	v.SetDefault("guard.login_path", d.Guard.LoginPath)
	v.SetDefault("guard.landing_path", d.Guard.LandingPath)
	v.SetDefault("guard.preserve_return_path", d.Guard.PreserveReturnPath)
	v.SetDefault("guard.return_param", d.Guard.ReturnParam)

	v.SetDefault("notifications.enabled", d.Notifications.Enabled)
	v.SetDefault("notifications.async", d.Notifications.Async)
	v.SetDefault("notifications.buffer_size", d.Notifications.BufferSize)
	v.SetDefault("notifications.drop_if_full", d.Notifications.DropIfFull)
	v.SetDefault("notifications.dedupe_window", d.Notifications.DedupeWindow)

	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.latency_histograms", d.Metrics.EnableLatencyHistograms)

	v.SetDefault("telemetry.trace_requests", d.Telemetry.TraceRequests)

	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.pretty", d.Logging.Pretty)
}

func fromViper(v *viper.Viper) authclient.Config {
	var cfg authclient.Config

	cfg.API.BaseURL = v.GetString("api.base_url")
	cfg.API.Timeout = v.GetDuration("api.timeout")
	cfg.API.LogoutTimeout = v.GetDuration("api.logout_timeout")
	cfg.API.UserAgent = v.GetString("api.user_agent")

	cfg.Storage.Durability = session.Durability(strings.ToLower(v.GetString("storage.durability")))
	cfg.Storage.Medium = strings.ToLower(v.GetString("storage.medium"))
	cfg.Storage.KeyPrefix = v.GetString("storage.key_prefix")
	cfg.Storage.FilePath = v.GetString("storage.file_path")
	cfg.Storage.RedisAddr = v.GetString("storage.redis_addr")
	cfg.Storage.RedisDB = v.GetInt("storage.redis_db")

	cfg.Session.ExpiryLeeway = v.GetDuration("session.expiry_leeway")

	cfg.Pipeline.RequestIDs = v.GetBool("pipeline.request_ids")
	cfg.Pipeline.BusyIndicator = v.GetBool("pipeline.busy_indicator")

	cfg.Guard.LoginPath = v.GetString("guard.login_path")
	cfg.Guard.LandingPath = v.GetString("guard.landing_path")
	cfg.Guard.PreserveReturnPath = v.GetBool("guard.preserve_return_path")
	cfg.Guard.ReturnParam = v.GetString("guard.return_param")

	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.Async = v.GetBool("notifications.async")
	cfg.Notifications.BufferSize = v.GetInt("notifications.buffer_size")
	cfg.Notifications.DropIfFull = v.GetBool("notifications.drop_if_full")
	cfg.Notifications.DedupeWindow = v.GetDuration("notifications.dedupe_window")

	cfg.Metrics.Enabled = v.GetBool("metrics.enabled")
	cfg.Metrics.EnableLatencyHistograms = v.GetBool("metrics.latency_histograms")

	cfg.Telemetry.TraceRequests = v.GetBool("telemetry.trace_requests")

	cfg.Logging.Level = v.GetString("logging.level")
	cfg.Logging.Pretty = v.GetBool("logging.pretty")

	return cfg
}

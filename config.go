package authclient

import (
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/cronos-bakery/authclient/session"
)

// Config is the full client configuration. Start from DefaultConfig and override
// fields; the Builder validates it once at Build time and keeps a private copy.
type Config struct {
	API           APIConfig
	Storage       StorageConfig
	Session       SessionConfig
	Pipeline      PipelineConfig
	Guard         GuardConfig
	Notifications NotificationsConfig
	Metrics       MetricsConfig
	Telemetry     TelemetryConfig
	Logging       LoggingConfig
}

/*
====================================
API CONFIG
====================================
*/

// APIConfig locates the backend.
type APIConfig struct {
	// BaseURL prefixes every endpoint, e.g. "http://localhost:8080/api/v1".
	BaseURL string
	// Timeout bounds each HTTP exchange. Zero means no client-side limit.
	Timeout time.Duration
	// LogoutTimeout bounds the background server logout.
	LogoutTimeout time.Duration
	UserAgent     string
}

/*
====================================
STORAGE CONFIG
====================================
*/

// Durable medium names.
const (
	MediumMemory = "memory"
	MediumRedis  = "redis"
	MediumFile   = "file"
)

// StorageConfig selects where tokens and the cached identity live.
type StorageConfig struct {
	Durability session.Durability
	// Medium is the durable medium: "memory", "redis" or "file".
	Medium    string
	KeyPrefix string
	// FilePath is required when Medium is "file".
	FilePath string
	// RedisAddr is used when Medium is "redis" and no client was passed to the Builder.
	RedisAddr string
	RedisDB   int
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig tunes token expiry checks.
type SessionConfig struct {
	// ExpiryLeeway treats an access token as expired this long before its exp claim.
	ExpiryLeeway time.Duration
}

/*
====================================
PIPELINE CONFIG
====================================
*/

// PipelineConfig toggles optional request stages.
type PipelineConfig struct {
	RequestIDs bool
	// BusyIndicator enables the Busy stage.
	BusyIndicator bool
}

/*
====================================
GUARD CONFIG
====================================
*/

// GuardConfig drives route guard redirects.
type GuardConfig struct {
	LoginPath   string
	LandingPath string
	// PreserveReturnPath appends the requested path to login redirects.
	PreserveReturnPath bool
	ReturnParam        string
}

/*
====================================
NOTIFICATIONS CONFIG
====================================
*/

// NotificationsConfig controls delivery of user-facing error notifications.
type NotificationsConfig struct {
	Enabled bool
	// Async delivers through a Dispatcher instead of on the request goroutine.
	Async      bool
	BufferSize int
	DropIfFull bool
	// DedupeWindow collapses identical notifications raised within the window,
	// even when they come from separate failed requests. Zero disables
	// deduplication and gives every failed request its own notification.
	DedupeWindow time.Duration
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig enables in-process metrics.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
TELEMETRY CONFIG
====================================
*/

// TelemetryConfig enables OpenTelemetry instrumentation of the base transport.
type TelemetryConfig struct {
	TraceRequests bool
}

/*
====================================
LOGGING CONFIG
====================================
*/

// LoggingConfig is read by the CLI and examples when they build a logger.
type LoggingConfig struct {
	Level  string
	Pretty bool
}

// DefaultConfig returns the configuration used when the Builder is given none.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL:       "http://localhost:8080/api/v1",
			Timeout:       30 * time.Second,
			LogoutTimeout: 5 * time.Second,
			UserAgent:     "bakery-authclient",
		},
		Storage: StorageConfig{
			Durability: session.DurabilitySplit,
			Medium:     MediumMemory,
			KeyPrefix:  "",
			RedisAddr:  "localhost:6379",
		},
		Session: SessionConfig{
			ExpiryLeeway: 0,
		},
		Pipeline: PipelineConfig{
			RequestIDs:    true,
			BusyIndicator: true,
		},
		Guard: GuardConfig{
			LoginPath:          "/auth/login",
			LandingPath:        "/dashboard",
			PreserveReturnPath: true,
			ReturnParam:        "returnUrl",
		},
		Notifications: NotificationsConfig{
			Enabled:      true,
			Async:        false,
			BufferSize:   64,
			DropIfFull:   true,
			DedupeWindow: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
		Telemetry: TelemetryConfig{
			TraceRequests: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// API
	if strings.TrimSpace(c.API.BaseURL) == "" {
		return errors.New("API BaseURL must be set")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return errors.New("API BaseURL must be an absolute http(s) URL")
	}
	if c.API.Timeout < 0 {
		return errors.New("API Timeout must be >= 0")
	}
	if c.API.LogoutTimeout <= 0 {
		return errors.New("API LogoutTimeout must be > 0")
	}

	// Storage
	if !c.Storage.Durability.Valid() {
		return errors.New("Storage Durability must be split or persistent")
	}
	switch c.Storage.Medium {
	case MediumMemory, MediumRedis:
	case MediumFile:
		if strings.TrimSpace(c.Storage.FilePath) == "" {
			return errors.New("Storage FilePath is required for the file medium")
		}
	default:
		return errors.New("Storage Medium must be memory, redis or file")
	}
	if c.Storage.RedisDB < 0 {
		return errors.New("Storage RedisDB must be >= 0")
	}

	// Session
	if c.Session.ExpiryLeeway < 0 {
		return errors.New("Session ExpiryLeeway must be >= 0")
	}
	if c.Session.ExpiryLeeway >= session.SessionWindow {
		return errors.New("Session ExpiryLeeway must be shorter than the activity window")
	}

	// Guard
	if !strings.HasPrefix(c.Guard.LoginPath, "/") {
		return errors.New("Guard LoginPath must start with /")
	}
	if !strings.HasPrefix(c.Guard.LandingPath, "/") {
		return errors.New("Guard LandingPath must start with /")
	}
	if c.Guard.PreserveReturnPath && strings.TrimSpace(c.Guard.ReturnParam) == "" {
		return errors.New("Guard ReturnParam must be set when PreserveReturnPath is true")
	}

	// Notifications
	if c.Notifications.Async && c.Notifications.BufferSize <= 0 {
		return errors.New("Notifications BufferSize must be > 0")
	}
	if c.Notifications.DedupeWindow < 0 {
		return errors.New("Notifications DedupeWindow must be >= 0")
	}

	// Metrics
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

/*
====================================
LINT
====================================
*/

// LintWarning is an advisory finding about a valid but questionable setting.
type LintWarning struct {
	Code    string
	Message string
}

// LintWarnings is the result of Config.Lint.
type LintWarnings []LintWarning

// Codes returns the warning codes in order.
func (ws LintWarnings) Codes() []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.Code)
	}
	return out
}

// Lint returns advisory warnings. It never fails; run Validate for hard errors.
func (c Config) Lint() LintWarnings {
	var ws LintWarnings

	if u, err := url.Parse(c.API.BaseURL); err == nil && u.Scheme == "http" && !isLoopback(u.Hostname()) {
		ws = append(ws, LintWarning{
			Code:    "plaintext_base_url",
			Message: "bearer tokens are sent over plain HTTP to a non-loopback host",
		})
	}
	if c.Storage.Durability == session.DurabilityPersistent {
		ws = append(ws, LintWarning{
			Code:    "access_token_persisted",
			Message: "the access token outlives the process; only the activity window guards restore",
		})
	}
	if c.Storage.Medium == MediumMemory {
		ws = append(ws, LintWarning{
			Code:    "volatile_durable_medium",
			Message: "the durable medium is in-memory; sessions are not restored after restart",
		})
	}
	if c.Session.ExpiryLeeway > time.Minute {
		ws = append(ws, LintWarning{
			Code:    "leeway_large",
			Message: "ExpiryLeeway above one minute forces frequent refreshes for short-lived tokens",
		})
	}
	if c.Notifications.Enabled && c.Notifications.Async && c.Notifications.DropIfFull {
		ws = append(ws, LintWarning{
			Code:    "notifications_may_drop",
			Message: "async notifications are dropped when the buffer is full",
		})
	}
	if c.API.Timeout == 0 {
		ws = append(ws, LintWarning{
			Code:    "no_request_timeout",
			Message: "requests have no client-side timeout",
		})
	}

	return ws
}

func isLoopback(host string) bool {
	return host == "localhost" || host == "127.0.0.1" || host == "::1"
}

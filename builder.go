package authclient

import (
	"errors"
	"net/http"
	"time"

	"github.com/cronos-bakery/authclient/apierror"
	"github.com/cronos-bakery/authclient/jwt"
	"github.com/cronos-bakery/authclient/notify"
	"github.com/cronos-bakery/authclient/pipeline"
	"github.com/cronos-bakery/authclient/session"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Builder assembles a Client. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	medium session.Medium

	notifier  notify.Notifier
	indicator notify.Indicator
	transport http.RoundTripper
	log       zerolog.Logger
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
		log:    zerolog.Nop(),
	}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used when Storage.Medium is "redis". The Client
// does not close it.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMedium supplies the durable medium directly, overriding Storage.Medium.
func (b *Builder) WithMedium(m session.Medium) *Builder {
	b.medium = m
	return b
}

// WithNotifier sets where user-facing error notifications go. Without one,
// notifications are logged.
func (b *Builder) WithNotifier(n notify.Notifier) *Builder {
	b.notifier = n
	return b
}

// WithIndicator sets the busy indicator driven by the request pipeline.
func (b *Builder) WithIndicator(ind notify.Indicator) *Builder {
	b.indicator = ind
	return b
}

// WithTransport sets the base RoundTripper under the pipeline.
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithLogger sets the logger used by every component.
func (b *Builder) WithLogger(log zerolog.Logger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source for expiry and activity checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process metrics.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the request latency histogram.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, ErrBuilderUsed
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.medium == nil && cfg.Storage.Medium == MediumRedis && b.redis == nil && cfg.Storage.RedisAddr == "" {
		return nil, errors.New("redis medium requires a client or Storage RedisAddr")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		cfg:      cfg,
		log:      b.log.With().Str("component", "authclient").Logger(),
		now:      now,
		decoder:  jwt.NewDecoder(cfg.Session.ExpiryLeeway),
		metrics:  NewMetrics(cfg.Metrics),
		state:    Anonymous{},
		watchers: make(map[int]chan State),
	}

	durable, err := b.durableMedium(c, cfg)
	if err != nil {
		return nil, err
	}
	var scoped session.Medium
	if cfg.Storage.Durability == session.DurabilitySplit {
		mem := session.NewMemoryMedium()
		c.closers = append(c.closers, mem.Close)
		scoped = mem
	}

	c.store = session.NewStore(scoped, durable, cfg.Storage.Durability,
		session.WithKeyPrefix(cfg.Storage.KeyPrefix),
		session.WithLogger(b.log.With().Str("component", "session").Logger()),
	)
	c.tracker = session.NewTracker(c.store, now)

	c.notifier = b.buildNotifier(c, cfg)
	c.http = &http.Client{
		Transport: b.buildPipeline(c, cfg),
		Timeout:   cfg.API.Timeout,
	}

	b.built = true
	return c, nil
}

func (b *Builder) durableMedium(c *Client, cfg Config) (session.Medium, error) {
	if b.medium != nil {
		return b.medium, nil
	}

	switch cfg.Storage.Medium {
	case MediumRedis:
		rdb := b.redis
		if rdb == nil {
			owned := redis.NewClient(&redis.Options{
				Addr: cfg.Storage.RedisAddr,
				DB:   cfg.Storage.RedisDB,
			})
			c.closers = append(c.closers, func() { _ = owned.Close() })
			rdb = owned
		}
		return session.NewRedisMedium(rdb), nil
	case MediumFile:
		return session.NewFileMedium(cfg.Storage.FilePath), nil
	case MediumMemory:
		mem := session.NewMemoryMedium()
		c.closers = append(c.closers, mem.Close)
		return mem, nil
	default:
		return nil, errors.New("unsupported storage medium")
	}
}

func (b *Builder) buildNotifier(c *Client, cfg Config) notify.Notifier {
	if !cfg.Notifications.Enabled {
		return notify.NoOp{}
	}

	var sink notify.Notifier = notify.NewLogSink(b.log)
	if b.notifier != nil {
		sink = b.notifier
	}
	if cfg.Notifications.DedupeWindow > 0 {
		d := notify.NewDedupe(sink, cfg.Notifications.DedupeWindow)
		c.closers = append(c.closers, d.Close)
		sink = d
	}
	if cfg.Notifications.Async {
		d := notify.NewDispatcher(notify.DispatcherConfig{
			BufferSize: cfg.Notifications.BufferSize,
			DropIfFull: cfg.Notifications.DropIfFull,
		}, sink)
		// the dispatcher drains into the dedupe stage, so it must close first
		c.closers = append([]func(){d.Close}, c.closers...)
		c.dispatcher = d
		sink = d
	}
	return sink
}

func (b *Builder) buildPipeline(c *Client, cfg Config) http.RoundTripper {
	base := b.transport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Telemetry.TraceRequests {
		base = otelhttp.NewTransport(base)
	}

	ps := pipelineSession{c: c}
	var mws []pipeline.Middleware
	if cfg.Pipeline.RequestIDs {
		mws = append(mws, pipeline.RequestID())
	}
	if c.metrics.LatencyEnabled() {
		mws = append(mws, pipeline.Timing(func(d time.Duration, _ error) {
			c.metrics.Observe(MetricRequestLatency, d)
		}))
	}
	// Busy always runs so the skip marker never reaches the backend.
	ind := b.indicator
	if !cfg.Pipeline.BusyIndicator {
		ind = notify.NoOpIndicator{}
	}
	mws = append(mws,
		pipeline.Busy(ind),
		pipeline.Report(pipeline.ReportOptions{
			Notifier: c.notifier,
			Logger:   b.log.With().Str("component", "pipeline").Logger(),
			OnError:  func(*apierror.Error) { c.metrics.Inc(MetricRequestError) },
			Now:      c.now,
		}),
		pipeline.Recover(ps, pipeline.OnRetry(func(*http.Request) {
			c.metrics.Inc(MetricRequestRetried)
		})),
		pipeline.Attach(ps),
	)
	return pipeline.Chain(base, mws...)
}

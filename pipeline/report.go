package pipeline

import (
	"context"
	"net/http"
	"time"

	"github.com/cronos-bakery/authclient/apierror"
	"github.com/cronos-bakery/authclient/notify"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// ReportOptions configures the Report stage.
type ReportOptions struct {
	Notifier notify.Notifier
	Logger   zerolog.Logger
	// OnError observes every classified failure, reported or not.
	OnError func(*apierror.Error)
	Now     func() time.Time
}

// Report classifies failures and tells the user about them.
//
// Responses with status >= 400 are consumed and replaced by an *apierror.Error;
// transport failures become KindNetwork. Validation errors with field details yield
// one notification per field, everything else a single notification. Cancellation
// by the caller is passed through unclassified and unreported.
//
// Report raises one notification per failed request, but the Notifier decides what
// reaches the user. A Client wraps its notifier in a notify.Dedupe when
// NotificationsConfig.DedupeWindow is positive (2s by default), so identical
// failures from separate requests inside that window, such as several concurrent
// calls hitting the same outage, surface as one notification.
func Report(opts ReportOptions) Middleware {
	if opts.Notifier == nil {
		opts.Notifier = notify.NoOp{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			resp, err := next.RoundTrip(req)

			var apiErr *apierror.Error
			switch {
			case err != nil:
				if e, ok := apierror.As(err); ok {
					apiErr = e
				} else if apierror.IsCanceled(err) && ctx.Err() != nil {
					return nil, err
				} else {
					apiErr = apierror.FromTransport(req, err)
				}
			case resp.StatusCode >= http.StatusBadRequest:
				apiErr = apierror.FromResponse(resp)
			default:
				return resp, nil
			}

			if apiErr.RequestID == "" {
				apiErr.RequestID = req.Header.Get(RequestIDHeader)
			}
			logFailure(ctx, opts.Logger, apiErr)
			if opts.OnError != nil {
				opts.OnError(apiErr)
			}
			if !reportingDisabled(ctx) {
				for _, n := range notificationsFor(apiErr, opts.Now()) {
					opts.Notifier.Notify(ctx, n)
				}
			}
			return nil, apiErr
		})
	}
}

func notificationsFor(e *apierror.Error, now time.Time) []notify.Notification {
	base := notify.Notification{
		Timestamp: now,
		Level:     notify.LevelError,
		Kind:      e.Kind.String(),
		Status:    e.Status,
		RequestID: e.RequestID,
		Message:   e.Message,
	}
	if e.Kind != apierror.KindValidation || len(e.Fields) == 0 {
		return []notify.Notification{base}
	}

	out := make([]notify.Notification, 0, len(e.Fields))
	for _, f := range e.Fields {
		n := base
		n.Field = f.Field
		n.Message = f.Message
		out = append(out, n)
	}
	return out
}

func logFailure(ctx context.Context, log zerolog.Logger, e *apierror.Error) {
	ev := log.Warn()
	if e.Kind == apierror.KindServer || e.Kind == apierror.KindNetwork {
		ev = log.Error()
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		ev = ev.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	ev.Err(e.Err).
		Str("kind", e.Kind.String()).
		Int("status", e.Status).
		Str("method", e.Method).
		Str("url", e.URL).
		Str("request_id", e.RequestID).
		Msg(e.Message)
}

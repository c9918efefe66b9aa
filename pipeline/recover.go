package pipeline

import (
	"context"
	"io"
	"net/http"

	"github.com/cronos-bakery/authclient/apierror"
)

// maxRetries is how many times a request is replayed after a successful refresh.
const maxRetries = 1

// Refresher renews the access token. Concurrent calls must share one refresh.
type Refresher interface {
	Refresh(ctx context.Context) error
	// Expire tears the session down after an authentication failure that a refresh
	// could not fix.
	Expire(ctx context.Context)
}

// RecoverOption configures the Recover stage.
type RecoverOption func(*recoverOptions)

type recoverOptions struct {
	onRetry func(*http.Request)
}

// OnRetry registers fn to observe every replay Recover sends, before it is sent.
func OnRetry(fn func(*http.Request)) RecoverOption {
	return func(o *recoverOptions) { o.onRetry = fn }
}

// Recover replays a request once after a 401 from a non-auth endpoint, provided the
// refresh succeeds. A refresh failure, or a second 401, ends in an
// *apierror.Error of KindAuthentication carrying the session-expired message.
//
// Requests whose body cannot be replayed (no GetBody) are returned as-is.
func Recover(refresher Refresher, opts ...RecoverOption) Middleware {
	var o recoverOptions
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			ctx := req.Context()
			if IsAuthPath(req.URL.Path) || Attempt(ctx) >= maxRetries {
				return next.RoundTrip(req)
			}

			resp, err := next.RoundTrip(req)
			if err != nil || resp.StatusCode != http.StatusUnauthorized {
				return resp, err
			}
			if !replayable(req) {
				return resp, nil
			}

			if rerr := refresher.Refresh(ctx); rerr != nil {
				if apierror.IsCanceled(rerr) && ctx.Err() != nil {
					drain(resp)
					return nil, rerr
				}
				return nil, expired(resp, rerr)
			}
			drain(resp)

			retry, err := replay(req, Attempt(ctx)+1)
			if err != nil {
				return nil, apierror.FromTransport(req, err)
			}
			if o.onRetry != nil {
				o.onRetry(retry)
			}
			resp, err = next.RoundTrip(retry)
			if err == nil && resp.StatusCode == http.StatusUnauthorized {
				refresher.Expire(ctx)
				return nil, expired(resp, nil)
			}
			return resp, err
		})
	}
}

func replayable(req *http.Request) bool {
	return req.Body == nil || req.Body == http.NoBody || req.GetBody != nil
}

func replay(req *http.Request, attempt int) (*http.Request, error) {
	retry := req.Clone(withAttempt(req.Context(), attempt))
	retry.Header.Del("Authorization")
	if req.Body != nil && req.Body != http.NoBody {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}

func expired(resp *http.Response, cause error) *apierror.Error {
	e := apierror.FromResponse(resp)
	e.Kind = apierror.KindAuthentication
	e.Message = apierror.SessionExpiredMessage
	e.Err = cause
	return e
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}

package pipeline

import (
	"io"
	"net/http"
	"sync"

	"github.com/cronos-bakery/authclient/notify"
)

// Busy shows ind while a request is outstanding. Hide runs exactly once per Show:
// when the round trip fails or panics, or when a successful response body reaches
// EOF or is closed.
func Busy(ind notify.Indicator) Middleware {
	if ind == nil {
		ind = notify.NoOpIndicator{}
	}
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (resp *http.Response, err error) {
			if req.Header.Get(SkipLoadingHeader) != "" {
				req = cloneRequest(req)
				req.Header.Del(SkipLoadingHeader)
				return next.RoundTrip(req)
			}

			ind.Show()
			var once sync.Once
			hide := func() { once.Do(ind.Hide) }

			handedOff := false
			defer func() {
				if !handedOff {
					hide()
				}
			}()

			resp, err = next.RoundTrip(req)
			if err != nil || resp == nil || resp.Body == nil || resp.Body == http.NoBody {
				return resp, err
			}
			resp.Body = &busyBody{ReadCloser: resp.Body, release: hide}
			handedOff = true
			return resp, nil
		})
	}
}

type busyBody struct {
	io.ReadCloser
	release func()
}

func (b *busyBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err == io.EOF {
		b.release()
	}
	return n, err
}

func (b *busyBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}

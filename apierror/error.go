package apierror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 1 << 20

// Kind is the class of a failed call.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindValidation
	KindServer
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// KindForStatus maps an HTTP status to a Kind. Status 0 means no response arrived.
func KindForStatus(status int) Kind {
	switch {
	case status == 0:
		return KindNetwork
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status >= 500 && status <= 599:
		return KindServer
	default:
		return KindUnknown
	}
}

// FieldError is one entry of a validation payload.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error is a classified backend failure.
type Error struct {
	Kind       Kind
	Status     int
	StatusText string
	// Message is the user-facing text: the backend's message when it sent one,
	// otherwise the default for the status.
	Message string
	Fields  []FieldError

	Method    string
	URL       string
	RequestID string

	// Err is the underlying cause: a transport error, or the refresh error when
	// 401 recovery failed.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Status != 0 {
		fmt.Fprintf(&b, " (%d)", e.Status)
	}
	if e.Method != "" || e.URL != "" {
		fmt.Fprintf(&b, " %s %s", e.Method, e.URL)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the call may succeed: the backend was
// unreachable or answered 502, 503 or 504.
func (e *Error) Retryable() bool {
	if e == nil {
		return false
	}
	switch e.Status {
	case 0:
		return e.Kind == KindNetwork
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Errors  json.RawMessage `json:"errors"`
}

// FromResponse classifies resp, consuming and closing its body.
func FromResponse(resp *http.Response) *Error {
	e := &Error{
		Kind:       KindForStatus(resp.StatusCode),
		Status:     resp.StatusCode,
		StatusText: statusText(resp),
	}
	if req := resp.Request; req != nil {
		e.Method = req.Method
		e.URL = redactURL(req)
		e.RequestID = req.Header.Get("X-Request-ID")
	}

	var body []byte
	if resp.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
	}

	var env envelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		e.Message = strings.TrimSpace(env.Message)
		e.Fields = parseFields(env.Errors)
	}
	if e.Message == "" {
		e.Message = DefaultMessage(e.Status, e.StatusText)
	}
	return e
}

// FromTransport classifies a failure that produced no response.
func FromTransport(req *http.Request, err error) *Error {
	e := &Error{
		Kind:    KindNetwork,
		Message: DefaultMessage(0, ""),
		Err:     err,
	}
	if req != nil {
		e.Method = req.Method
		e.URL = redactURL(req)
		e.RequestID = req.Header.Get("X-Request-ID")
	}
	return e
}

func parseFields(raw json.RawMessage) []FieldError {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var list []FieldError
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]FieldError, 0, len(list))
		for _, f := range list {
			if f.Field == "" {
				f.Field = "general"
			}
			if f.Message == "" {
				f.Message = "Validation error"
			}
			out = append(out, f)
		}
		return out
	}

	var byField map[string]json.RawMessage
	if err := json.Unmarshal(raw, &byField); err != nil {
		return nil
	}
	out := make([]FieldError, 0, len(byField))
	for field, v := range byField {
		var msg string
		var msgs []string
		switch {
		case json.Unmarshal(v, &msg) == nil:
		case json.Unmarshal(v, &msgs) == nil && len(msgs) > 0:
			msg = msgs[0]
		default:
			continue
		}
		out = append(out, FieldError{Field: field, Message: msg})
	}
	slices.SortFunc(out, func(a, b FieldError) int { return strings.Compare(a.Field, b.Field) })
	return out
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
}

func redactURL(req *http.Request) string {
	if req.URL == nil {
		return ""
	}
	u := *req.URL
	u.RawQuery = ""
	u.User = nil
	return u.String()
}

// As returns the *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsKind reports whether err carries an *Error of kind k.
func IsKind(err error, k Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == k
}

// IsRetryable reports whether err is a retryable *Error.
func IsRetryable(err error) bool {
	e, ok := As(err)
	return ok && e.Retryable()
}

// IsCanceled reports whether err stems from the caller giving up.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

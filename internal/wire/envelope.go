// Package wire decodes the backend's response envelope.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

const maxBody = 4 << 20

// ErrEmptyBody is returned when a value was expected but the body was empty.
var ErrEmptyBody = errors.New("wire: empty response body")

// Envelope is the backend's success wrapper.
type Envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// Wrap builds the envelope the backend sends around data.
func Wrap(data any, message string, now time.Time) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Success: true, Message: message, Data: raw, Timestamp: now.UTC()}, nil
}

// Decode reads r into out. A body shaped like an Envelope (a "success" field next
// to "data") is unwrapped; any other JSON body is decoded as-is. A nil out only
// drains r.
func Decode(r io.Reader, out any) error {
	body, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return fmt.Errorf("wire: read body: %w", err)
	}
	if out == nil {
		return nil
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return ErrEmptyBody
	}

	var probe map[string]json.RawMessage
	if json.Unmarshal(body, &probe) == nil {
		_, hasSuccess := probe["success"]
		data, hasData := probe["data"]
		if hasSuccess && hasData {
			body = data
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("wire: decode body: %w", err)
	}
	return nil
}

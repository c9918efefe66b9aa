package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Notify(context.Context, Notification) {
	s.count.Add(1)
}

type gateSink struct {
	gate chan struct{}
}

func (s *gateSink) Notify(context.Context, Notification) {
	<-s.gate
}

func TestDispatcherDeliversInOrderAndDrainsOnClose(t *testing.T) {
	sink := NewChannelSink(16)
	d := NewDispatcher(DispatcherConfig{BufferSize: 16}, sink)

	for i := 0; i < 5; i++ {
		d.Notify(context.Background(), Notification{Message: string(rune('a' + i))})
	}
	d.Close()

	var got []string
	for i := 0; i < 5; i++ {
		got = append(got, (<-sink.Events()).Message)
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)

	d.Notify(context.Background(), Notification{Message: "late"})
	select {
	case n := <-sink.Events():
		t.Fatalf("unexpected delivery after close: %+v", n)
	default:
	}
}

func TestDispatcherDropIfFullCountsDrops(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 1, DropIfFull: true}, sink)

	// One event is held by the blocked sink, one fills the buffer, the rest drop.
	for i := 0; i < 10; i++ {
		d.Notify(context.Background(), Notification{Message: "x"})
		time.Sleep(time.Millisecond)
	}
	close(sink.gate)
	d.Close()

	assert.GreaterOrEqual(t, d.Dropped(), uint64(8))
}

func TestDispatcherBlockingRespectsContext(t *testing.T) {
	sink := &gateSink{gate: make(chan struct{})}
	d := NewDispatcher(DispatcherConfig{BufferSize: 1}, sink)
	defer func() {
		close(sink.gate)
		d.Close()
	}()

	d.Notify(context.Background(), Notification{})
	d.Notify(context.Background(), Notification{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		d.Notify(ctx, Notification{})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify ignored context cancellation")
	}
}

func TestDedupeCollapsesBurst(t *testing.T) {
	sink := &countingSink{}
	d := NewDedupe(sink, time.Minute)
	defer d.Close()

	expired := Notification{Level: LevelError, Message: "Your session has expired. Please sign in again."}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Notify(context.Background(), expired)
		}()
	}
	wg.Wait()
	d.Notify(context.Background(), Notification{Level: LevelError, Field: "name", Message: "required"})

	assert.Equal(t, int64(2), sink.count.Load())
}

func TestDedupeZeroWindowForwardsAll(t *testing.T) {
	sink := &countingSink{}
	d := NewDedupe(sink, 0)
	defer d.Close()

	for i := 0; i < 3; i++ {
		d.Notify(context.Background(), Notification{Message: "same"})
	}
	assert.Equal(t, int64(3), sink.count.Load())
}

func TestJSONWriterSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONWriterSink(&buf)
	s.Notify(context.Background(), Notification{Level: LevelError, Kind: "validation", Field: "name", Message: "required", Status: 400})

	var got Notification
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &got))
	assert.Equal(t, "name", got.Field)
	assert.Equal(t, 400, got.Status)
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	NewLogSink(zerolog.New(&buf)).Notify(context.Background(), Notification{Level: LevelError, Kind: "server", Message: "boom"})

	out := buf.String()
	assert.True(t, strings.Contains(out, `"level":"error"`), out)
	assert.True(t, strings.Contains(out, `"message":"boom"`), out)
}

func TestMultiFansOut(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	Multi{a, nil, b}.Notify(context.Background(), Notification{})
	assert.Equal(t, int64(1), a.count.Load())
	assert.Equal(t, int64(1), b.count.Load())
}

func TestSpinnerAggregatesConcurrentRequests(t *testing.T) {
	var transitions []bool
	s := NewSpinner(func(visible bool) { transitions = append(transitions, visible) })

	const n = 32
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			s.Show()
			time.Sleep(time.Millisecond)
			s.Hide()
		}()
	}
	close(start)
	wg.Wait()

	assert.False(t, s.Visible())
	assert.Equal(t, 0, s.Active())
	require.NotEmpty(t, transitions)
	assert.True(t, transitions[0])
	assert.False(t, transitions[len(transitions)-1])
	for i := 1; i < len(transitions); i++ {
		assert.NotEqual(t, transitions[i-1], transitions[i], "transitions must alternate")
	}
}

func TestSpinnerHideNeverUnderflows(t *testing.T) {
	s := NewSpinner(nil)
	s.Hide()
	s.Show()
	assert.True(t, s.Visible())
	s.Hide()
	s.Hide()
	assert.Equal(t, 0, s.Active())
}

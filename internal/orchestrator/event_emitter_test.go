package orchestrator

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventEmitter_DropsWhenFull(t *testing.T) {
	e := NewEventEmitter(1, 5*time.Millisecond)

	e.Emit(Event{Type: EventRunStarted})
	e.Emit(Event{Type: EventStageStarted})

	assert.Equal(t, uint64(1), e.DroppedCount())
	got := <-e.Events()
	assert.Equal(t, EventRunStarted, got.Type)
}

func TestEventEmitter_CloseIsIdempotent(t *testing.T) {
	e := NewEventEmitter(4, time.Millisecond)
	e.Emit(Event{Type: EventRunStarted})
	e.Close()
	e.Close()

	// Emitting after close must not panic.
	e.Emit(Event{Type: EventRunCompleted})

	var types []EventType
	for ev := range e.Events() {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []EventType{EventRunStarted}, types)
}

func TestEventEmitter_Defaults(t *testing.T) {
	e := NewEventEmitter(0, 0)
	assert.Equal(t, 1, cap(e.events))
	assert.Equal(t, 100*time.Millisecond, e.dropTimeout)
}

func TestMultiSink_FansOutInOrder(t *testing.T) {
	var got []string
	sinks := multiSink{
		EventSinkFunc(func(Event) { got = append(got, "a") }),
		EventSinkFunc(func(Event) { got = append(got, "b") }),
	}
	sinks.Emit(Event{Type: EventRunStarted})
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestDebugLogger_WritesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "debug.log")
	l, err := NewDebugLogger(path)
	require.NoError(t, err)
	l.Emit(Event{Type: EventStageFailed, RunID: "r1", Stage: StatePO, Error: errors.New("boom")})
	l.Emit(Event{Type: EventStageCompleted, RunID: "r1", Stage: StatePO, Duration: 1500 * time.Millisecond})
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "guardian debug log opened")
	assert.Contains(t, text, "run=r1 stage_failed stage=po err=boom")
	assert.True(t, strings.Contains(text, "duration=1.5s"))
}

func TestDebugLogger_NopIsSafe(t *testing.T) {
	var nilLogger *DebugLogger
	nilLogger.Log("ignored %d", 1)
	assert.NoError(t, nilLogger.Close())

	l, err := NewDebugLogger("")
	require.NoError(t, err)
	l.Emit(Event{Type: EventRunStarted})
	assert.NoError(t, l.Close())
}

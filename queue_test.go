package utubettl

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	q, err := New()
	require.NoError(t, err)
	defer q.Close()

	require.Equal(t, defaultHorizon, q.defaultTTL)
	require.Equal(t, defaultHorizon, q.defaultTTR)
}

func TestNew_DefaultTTRFollowsTTL(t *testing.T) {
	q, err := New(WithDefaultTTL(time.Hour))
	require.NoError(t, err)
	defer q.Close()

	require.Equal(t, time.Hour, q.defaultTTL)
	require.Equal(t, time.Hour, q.defaultTTR, "ttr defaults to ttl when not set explicitly")
}

func TestClose_Idempotent(t *testing.T) {
	q, err := New()
	require.NoError(t, err)

	require.NoError(t, q.Close())
	require.NoError(t, q.Close())
}

func TestWithLogger_ReceivesEntries(t *testing.T) {
	spy := &spyLogger{enabled: true}
	q, err := New(WithLogger(spy), WithOnTaskChange(func(Task, EventKind) {
		panic("trigger a callback-panic log entry")
	}))
	require.NoError(t, err)
	defer q.Close()

	q.Put("x", PutOptions{})

	require.NotEmpty(t, spy.entries)
	require.Equal(t, "callback", spy.entries[0].Category)
}

type spyLogger struct {
	enabled bool
	entries []LogEntry
}

func (s *spyLogger) Log(entry LogEntry)  { s.entries = append(s.entries, entry) }
func (s *spyLogger) IsEnabled(Level) bool { return s.enabled }

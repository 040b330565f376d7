package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/firstprinciples/internal/gateway"
	"github.com/ashureev/firstprinciples/internal/identity"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func readLines(t *testing.T, fs afero.Fs, path string) []Event {
	t.Helper()
	data, err := afero.ReadFile(fs, path)
	require.NoError(t, err)

	var events []Event
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		var ev Event
		require.NoError(t, json.Unmarshal([]byte(line), &ev))
		events = append(events, ev)
	}
	return events
}

func TestFileLoggerWritesPerSessionNDJSON(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := afero.NewMemMapFs()
	logger, err := NewLogger(Config{Enabled: true, Dir: "/transcripts", QueueSize: 16, Fs: fs}, slog.Default())
	require.NoError(t, err)

	logger.Log(Event{UserID: "anon_1", SessionID: "tab-1", Operation: "analyze", Response: "first"})
	logger.Log(Event{UserID: "anon_1", SessionID: "tab-1", Operation: "challenge", Response: "second"})
	logger.Log(Event{UserID: "anon_1", SessionID: "tab-2", Operation: "analyze", Response: "other"})
	require.NoError(t, logger.Close())

	events := readLines(t, fs, filepath.Join("/transcripts", "anon_1", "tab-1.ndjson"))
	require.Len(t, events, 2)
	assert.Equal(t, "first", events[0].Response)
	assert.Equal(t, "second", events[1].Response)

	events = readLines(t, fs, filepath.Join("/transcripts", "anon_1", "tab-2.ndjson"))
	require.Len(t, events, 1)

	// Logging after close is ignored.
	logger.Log(Event{UserID: "anon_1", SessionID: "tab-1"})
	require.NoError(t, logger.Close())
}

func TestObserverRecordsExchange(t *testing.T) {
	defer goleak.VerifyNone(t)

	fs := afero.NewMemMapFs()
	logger, err := NewLogger(Config{Enabled: true, Dir: "/t", Fs: fs}, nil)
	require.NoError(t, err)

	ctx := identity.WithIdentity(context.Background(), "anon_1", "tab-1")
	obs := Observer(logger)
	obs.ObserveExchange(ctx, gateway.Exchange{
		Operation: gateway.OpAnalyze,
		Model:     "gpt-3.5-turbo",
		Prompt:    "prompt text",
		Result: gateway.Result{
			Operation: gateway.OpAnalyze,
			Err:       &gateway.Error{Err: errors.New("rate limited"), Kind: gateway.KindRateLimit, StatusCode: 429},
		},
		Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, logger.Close())

	events := readLines(t, fs, filepath.Join("/t", "anon_1", "tab-1.ndjson"))
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, "analyze", ev.Operation)
	assert.Equal(t, "gpt-3.5-turbo", ev.Model)
	assert.Equal(t, "prompt text", ev.Prompt)
	assert.Equal(t, "Error analyzing problem: rate limited", ev.Response)
	assert.True(t, ev.Failed)
	assert.Equal(t, "rate_limit", ev.ErrorKind)
	assert.Equal(t, int64(1500), ev.DurationMS)
	assert.NotEmpty(t, ev.Timestamp)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "__", safeName(".."))
	assert.Equal(t, "a_b_c", safeName("a/b:c"))
	assert.Equal(t, "unknown", safeName(""))
	assert.Equal(t, "anon_0f", safeName("anon_0f"))
}

func TestDisabledLoggerIsNop(t *testing.T) {
	logger, err := NewLogger(Config{Enabled: false}, nil)
	require.NoError(t, err)
	assert.IsType(t, Nop{}, logger)
	logger.Log(Event{})
	assert.NoError(t, logger.Close())
}

package logger

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoggerWritesJSONToSubscribers(t *testing.T) {
	var stdout bytes.Buffer
	b := NewBroadcaster(&stdout)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	log := NewWithSink(Config{LogLevel: "info"}, b)
	log.Named("fetcher").Info("page loaded", zap.Int("bytes", 42))

	select {
	case line := <-ch:
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "page loaded", entry["msg"])
		assert.Equal(t, "fetcher", entry["logger"])
		assert.Equal(t, "truthlens", entry["service"])
		assert.EqualValues(t, 42, entry["bytes"])
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the log line")
	}
	assert.Contains(t, stdout.String(), "page loaded")
}

func TestLoggerRespectsLevel(t *testing.T) {
	var stdout bytes.Buffer
	log := NewWithSink(Config{LogLevel: "warn"}, NewBroadcaster(&stdout))

	log.Info("hidden")
	log.Warn("shown")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "shown")
}

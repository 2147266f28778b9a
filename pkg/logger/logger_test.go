package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	batches [][]AggregatedLogEntry
	done    chan struct{}
}

func (p *capturePublisher) PublishMessage(_ context.Context, _ string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	close(p.done)
	return nil
}

func TestFieldsAreWritten(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.DebugLevel)

	l.Info("analysis done",
		String("symbol", "BTC"),
		Decimal("amount", decimal.RequireFromString("1000.50")),
		Duration("took", 1500*time.Millisecond),
		Bool("cached", true),
	)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "analysis done", out["message"])
	assert.Equal(t, "BTC", out["symbol"])
	assert.Equal(t, "1000.5", out["amount"])
	assert.EqualValues(t, 1500, out["took"])
	assert.Equal(t, true, out["cached"])
}

func TestWithAddsFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, zerolog.InfoLevel).With(String("component", "engine"))
	l.Debug("hidden")
	l.Warn("visible")

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	assert.Equal(t, "engine", out["component"])
	assert.Equal(t, "visible", out["message"])
}

func TestCollectorDeduplicates(t *testing.T) {
	pub := &capturePublisher{done: make(chan struct{})}
	c := NewLogCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 2,
		Topic:          "logs",
		Publisher:      pub,
	})
	defer c.Close()

	fields := map[string]interface{}{"symbol": "BTC"}
	c.AddLog("error", "upstream failed", fields, "a.go:1")
	c.AddLog("error", "upstream failed", fields, "a.go:1")
	assert.Equal(t, 1, c.Pending())

	c.AddLog("error", "store failed", nil, "b.go:2")

	select {
	case <-pub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("batch not published")
	}
	assert.Equal(t, 0, c.Pending())

	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.batches, 1)
	require.Len(t, pub.batches[0], 2)
	for _, e := range pub.batches[0] {
		if e.Message == "upstream failed" {
			assert.Equal(t, 2, e.Count)
		}
	}
}

func TestErrorFieldNil(t *testing.T) {
	k, v := Error(nil).GetKeyValue()
	assert.Equal(t, "error", k)
	assert.Nil(t, v)

	_, v = Error(errors.New("boom")).GetKeyValue()
	assert.Equal(t, "boom", v)
}

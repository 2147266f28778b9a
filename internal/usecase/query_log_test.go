package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"DWML/internal/domain/models"
)

type fakePublisher struct {
	entries []*models.QueryLogEntry
	err     error
}

func (p *fakePublisher) PublishQueryLog(_ context.Context, e *models.QueryLogEntry) error {
	if p.err != nil {
		return p.err
	}
	p.entries = append(p.entries, e)
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func TestNewQueryLogRouterValidatesBackend(t *testing.T) {
	_, err := NewQueryLogRouter(nil, nil, nil, "sql")
	assert.Error(t, err)
	_, err = NewQueryLogRouter(nil, nil, nil, "kafka")
	assert.Error(t, err)
	_, err = NewQueryLogRouter(&fakeQueryLog{}, nil, nil, "mongo")
	assert.Error(t, err)
}

func TestQueryLogRouterRoutes(t *testing.T) {
	at := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

	store := &fakeQueryLog{}
	r, err := NewQueryLogRouter(store, nil, nil, QueryLogBackendSQL)
	require.NoError(t, err)
	require.NoError(t, r.Record(context.Background(), "BTC", dec("10"), at))
	assert.Len(t, store.entries, 1)

	pub := &fakePublisher{}
	r, err = NewQueryLogRouter(nil, pub, nil, QueryLogBackendKafka)
	require.NoError(t, err)
	require.NoError(t, r.Record(context.Background(), "ETH", dec("5"), at))
	require.Len(t, pub.entries, 1)
	assert.Equal(t, "ETH", pub.entries[0].Symbol)
	assert.Equal(t, at, pub.entries[0].GeneratedAt)
}

func TestQueryLogRouterPreservesErrorKind(t *testing.T) {
	pub := &fakePublisher{err: models.ErrPersistence}
	r, err := NewQueryLogRouter(nil, pub, nil, QueryLogBackendKafka)
	require.NoError(t, err)
	err = r.Record(context.Background(), "ETH", dec("5"), time.Now())
	assert.ErrorIs(t, err, models.ErrPersistence)
}

func TestQueryLogSinkHandle(t *testing.T) {
	store := &fakeQueryLog{}
	m := &fakeMetrics{}
	h := NewQueryLogSink("dwml.query_log", store, m, nil)
	assert.Equal(t, "dwml.query_log", h.Topic())

	err := h.Handle(context.Background(), []byte(`{"symbol":"BTC","investment":"1000.5","generated_at":"2024-06-01T10:00:00Z"}`))
	require.NoError(t, err)
	require.Len(t, store.entries, 1)
	assert.True(t, store.entries[0].Investment.Equal(dec("1000.5")))
	assert.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), store.entries[0].GeneratedAt.UTC())

	assert.Error(t, h.Handle(context.Background(), []byte(`not json`)))
	assert.Error(t, h.Handle(context.Background(), []byte(`{"investment":"1"}`)))
	assert.Equal(t, []string{"sink_decode", "sink_decode"}, m.errors)

	store.err = errors.New("locked")
	assert.Error(t, h.Handle(context.Background(), []byte(`{"symbol":"BTC","investment":"1","generated_at":"2024-06-01T10:00:00Z"}`)))
}

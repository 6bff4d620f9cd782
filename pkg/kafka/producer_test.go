package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent_Fields(t *testing.T) {
	type batchData struct {
		BatchID string `json:"batch_id"`
		Count   int    `json:"count"`
	}

	data := batchData{BatchID: "b-1", Count: 50}
	event, err := NewEvent("bulkpromo.batch.generated", "b-1", "code_batch", "bulkpromo", data)
	require.NoError(t, err)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, "bulkpromo.batch.generated", event.EventType)
	assert.Equal(t, "b-1", event.AggregateID)
	assert.Equal(t, 1, event.Version)
	assert.WithinDuration(t, time.Now().UTC(), event.Timestamp, 2*time.Second)

	var got batchData
	require.NoError(t, event.UnmarshalData(&got))
	assert.Equal(t, data, got)
}

func TestNewEvent_InvalidData(t *testing.T) {
	_, err := NewEvent("x", "agg", "t", "s", make(chan int))
	require.Error(t, err)
}

func TestProducer_Publish_WritesKeyedMessageWithHeaders(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, logger: discardLogger()}

	event, err := NewEvent("bulkpromo.batch.generated", "batch-7", "code_batch", "bulkpromo", map[string]int{"count": 3})
	require.NoError(t, err)
	event.WithCorrelationID("corr-1")

	require.NoError(t, p.Publish(context.Background(), "bulkpromo.batch.generated", event))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "bulkpromo.batch.generated", msg.Topic)
	assert.Equal(t, "batch-7", string(msg.Key))

	carrier := NewHeaderCarrier(&msg.Headers)
	assert.Equal(t, "bulkpromo.batch.generated", carrier.Get("event_type"))
	assert.Equal(t, "corr-1", carrier.Get("correlation_id"))

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, event.EventID, decoded.EventID)
}

func TestProducer_Publish_WriteError(t *testing.T) {
	p := &Producer{writer: &fakeWriter{err: errors.New("broker down")}, logger: discardLogger()}

	event, err := NewEvent("bulkpromo.batch.failed", "k", "code_batch", "bulkpromo", nil)
	require.NoError(t, err)

	err = p.Publish(context.Background(), "bulkpromo.batch.failed", event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestProducer_Ping_NoBrokers(t *testing.T) {
	p := &Producer{writer: &fakeWriter{}, logger: discardLogger()}
	assert.Error(t, p.Ping(context.Background()))
}

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig([]string{"localhost:9092"})
	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.False(t, cfg.Async)
}

package worker

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"discus-vision/internal/model"
	"discus-vision/internal/repository"
)

type fakeStore struct {
	records []model.PredictionRecord
	err     error
}

func (f *fakeStore) Create(record *model.PredictionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, *record)
	return nil
}

func encode(t *testing.T, event model.ImageEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestHandleStoresRecord(t *testing.T) {
	store := &fakeStore{}
	w := NewPredictionPersistWorker(nil, store, "q", zap.NewNop().Sugar())

	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	body := encode(t, model.ImageEvent{
		EventID:    "evt-1",
		Type:       model.EventPredictionCompleted,
		OccurredAt: at,
		Record:     model.PredictionRecord{ID: 99, PredictedClass: "Cobalt", Confidence: "90.40%"},
	})

	require.NoError(t, w.handle(body))
	require.Len(t, store.records, 1)
	got := store.records[0]
	assert.Zero(t, got.ID)
	assert.Equal(t, "evt-1", got.EventID)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Equal(t, "Cobalt", got.PredictedClass)
}

func TestHandleRejects(t *testing.T) {
	w := NewPredictionPersistWorker(nil, &fakeStore{}, "q", zap.NewNop().Sugar())

	assert.ErrorContains(t, w.handle([]byte("{")), "decode event failed")
	assert.ErrorContains(t, w.handle(encode(t, model.ImageEvent{Type: "slot.cleared"})), "unexpected event type")

	failing := NewPredictionPersistWorker(nil, &fakeStore{err: errors.New("db down")}, "q", zap.NewNop().Sugar())
	err := failing.handle(encode(t, model.ImageEvent{EventID: "e", Type: model.EventPredictionCompleted}))
	assert.ErrorContains(t, err, "db down")
}

func TestHandleDuplicateIsSuccess(t *testing.T) {
	w := NewPredictionPersistWorker(nil, &fakeStore{err: repository.ErrDuplicateEvent}, "q", zap.NewNop().Sugar())
	err := w.handle(encode(t, model.ImageEvent{EventID: "e", Type: model.EventPredictionCompleted}))
	assert.NoError(t, err)
}

type ackCall struct {
	tag     uint64
	ack     bool
	requeue bool
}

type recordingAcknowledger struct {
	calls []ackCall
}

func (a *recordingAcknowledger) Ack(tag uint64, multiple bool) error {
	a.calls = append(a.calls, ackCall{tag: tag, ack: true})
	return nil
}

func (a *recordingAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.calls = append(a.calls, ackCall{tag: tag, requeue: requeue})
	return nil
}

func (a *recordingAcknowledger) Reject(tag uint64, requeue bool) error {
	a.calls = append(a.calls, ackCall{tag: tag, requeue: requeue})
	return nil
}

func TestSettle(t *testing.T) {
	valid := encode(t, model.ImageEvent{EventID: "evt-ok", Type: model.EventPredictionCompleted})

	tests := []struct {
		name    string
		store   *fakeStore
		body    []byte
		want    ackCall
		records int
	}{
		{name: "stored event is acked", store: &fakeStore{}, body: valid, want: ackCall{tag: 7, ack: true}, records: 1},
		{name: "duplicate event is acked", store: &fakeStore{err: repository.ErrDuplicateEvent}, body: valid, want: ackCall{tag: 7, ack: true}},
		{name: "undecodable body is dropped", store: &fakeStore{}, body: []byte("not json"), want: ackCall{tag: 7}},
		{name: "store failure is dropped", store: &fakeStore{err: errors.New("db down")}, body: valid, want: ackCall{tag: 7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acker := &recordingAcknowledger{}
			w := NewPredictionPersistWorker(nil, tt.store, "q", zap.NewNop().Sugar())

			w.settle(amqp.Delivery{Acknowledger: acker, DeliveryTag: 7, MessageId: "m-1", Body: tt.body})

			require.Len(t, acker.calls, 1)
			assert.Equal(t, tt.want, acker.calls[0])
			assert.Len(t, tt.store.records, tt.records)
		})
	}
}

func TestCloseWithoutStart(t *testing.T) {
	w := NewPredictionPersistWorker(nil, &fakeStore{}, "q", zap.NewNop().Sugar())
	w.Close()
}

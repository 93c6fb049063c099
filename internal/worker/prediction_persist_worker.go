package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"discus-vision/internal/model"
	"discus-vision/internal/platform/rabbitmq"
	"discus-vision/internal/repository"
)

// RecordStore is the persistence the worker writes to.
type RecordStore interface {
	Create(record *model.PredictionRecord) error
}

// PredictionPersistWorker drains prediction events into the history table.
type PredictionPersistWorker struct {
	conn      *amqp.Connection
	store     RecordStore
	queueName string
	logger    *zap.SugaredLogger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPredictionPersistWorker(conn *amqp.Connection, store RecordStore, queueName string, logger *zap.SugaredLogger) *PredictionPersistWorker {
	return &PredictionPersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		logger:    logger,
	}
}

func (w *PredictionPersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(16, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.settle(d)
			}
		}
	}()

	return nil
}

// settle persists one delivery and acks it. Events that cannot be stored are
// nacked without requeue so a poison message does not loop.
func (w *PredictionPersistWorker) settle(d amqp.Delivery) {
	if err := w.handle(d.Body); err != nil {
		w.logger.Warnw("persist prediction event failed", "message_id", d.MessageId, "error", err)
		if nackErr := d.Nack(false, false); nackErr != nil {
			w.logger.Warnw("nack prediction event failed", "message_id", d.MessageId, "error", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		w.logger.Warnw("ack prediction event failed", "message_id", d.MessageId, "error", err)
	}
}

// handle decodes and stores one event body. Redelivered events that were
// already stored count as success.
func (w *PredictionPersistWorker) handle(body []byte) error {
	var event model.ImageEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode event failed: %w", err)
	}
	if event.Type != model.EventPredictionCompleted {
		return fmt.Errorf("unexpected event type %q", event.Type)
	}

	record := event.Record
	record.ID = 0
	if record.EventID == "" {
		record.EventID = event.EventID
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = event.OccurredAt
	}

	if err := w.store.Create(&record); err != nil {
		if errors.Is(err, repository.ErrDuplicateEvent) {
			w.logger.Debugw("prediction event already stored", "event_id", record.EventID)
			return nil
		}
		return err
	}
	w.logger.Debugw("prediction event stored", "event_id", record.EventID, "class", record.PredictedClass)
	return nil
}

func (w *PredictionPersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}

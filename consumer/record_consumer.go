package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"clinic-records/models"
	"clinic-records/utils"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const groupID = "clinic-records-indexer"

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordConsumer keeps the search index in step with record events.
type RecordConsumer struct {
	es       utils.ElasticsearchClient
	reader   MessageReader
	logger   *zap.Logger
	backoff  time.Duration
	shutdown chan struct{}
	done     chan struct{}
}

func NewRecordConsumer(broker string, es utils.ElasticsearchClient, logger *zap.Logger) *RecordConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: []string{broker},
		Topic:   models.RecordEventsTopic,
		GroupID: groupID,
		MaxWait: 10 * time.Second,
	})
	return newRecordConsumer(reader, es, logger)
}

func newRecordConsumer(reader MessageReader, es utils.ElasticsearchClient, logger *zap.Logger) *RecordConsumer {
	return &RecordConsumer{
		es:       es,
		reader:   reader,
		logger:   logger,
		backoff:  5 * time.Second,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (c *RecordConsumer) Start(ctx context.Context) {
	c.logger.Info("Starting record event consumer", zap.String("topic", models.RecordEventsTopic))

	go func() {
		defer close(c.done)
		for {
			select {
			case <-c.shutdown:
				return
			case <-ctx.Done():
				return
			default:
				c.processMessage(ctx)
			}
		}
	}()
}

// Stop closes the reader and waits for the loop to exit.
func (c *RecordConsumer) Stop() {
	close(c.shutdown)
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Error closing Kafka reader", zap.Error(err))
	}
	<-c.done
}

func (c *RecordConsumer) processMessage(ctx context.Context) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, kafka.ErrGroupClosed) || c.stopping() {
			return
		}
		c.logger.Warn("Kafka read error, will retry", zap.Error(err))
		c.sleep(ctx)
		return
	}

	var event models.RecordEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Unreadable events are skipped, never retried.
		c.logger.Error("Failed to unmarshal record event", zap.Int64("offset", msg.Offset), zap.Error(err))
		c.commit(ctx, msg)
		return
	}

	if err := c.handle(ctx, event); err != nil {
		// Offset stays uncommitted so the event is redelivered.
		c.logger.Error("Failed to apply record event",
			zap.String("event", event.Event),
			zap.String("record_id", event.Data.ID),
			zap.Error(err),
		)
		c.sleep(ctx)
		return
	}
	c.commit(ctx, msg)
}

func (c *RecordConsumer) handle(ctx context.Context, event models.RecordEvent) error {
	switch event.Event {
	case models.EventRecordCreated, models.EventRecordUpdated:
		return c.es.IndexDocument(ctx, models.RecordsIndex, event.Data.ID, event.Data)
	case models.EventRecordDeleted:
		return c.es.DeleteDocument(ctx, models.RecordsIndex, event.Data.ID)
	default:
		c.logger.Warn("Unknown record event", zap.String("event", event.Event))
		return nil
	}
}

func (c *RecordConsumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit offset", zap.Int64("offset", msg.Offset), zap.Error(err))
	}
}

func (c *RecordConsumer) stopping() bool {
	select {
	case <-c.shutdown:
		return true
	default:
		return false
	}
}

func (c *RecordConsumer) sleep(ctx context.Context) {
	t := time.NewTimer(c.backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	case <-c.shutdown:
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"clinic-records/utils"

	"go.uber.org/zap"
)

const (
	eventQueueSize   = 256
	eventSendTimeout = 5 * time.Second
)

type outgoing struct {
	topic string
	key   []byte
	value []byte
}

// EventPublisher sends events to Kafka from a single goroutine, so events
// reach the broker in the order they were published and a slow broker
// never holds up a request.
type EventPublisher struct {
	kafka  utils.KafkaProducer
	logger *zap.Logger
	queue  chan outgoing
	done   chan struct{}
	once   sync.Once
}

func NewEventPublisher(kafka utils.KafkaProducer, logger *zap.Logger) *EventPublisher {
	p := &EventPublisher{
		kafka:  kafka,
		logger: logger,
		queue:  make(chan outgoing, eventQueueSize),
		done:   make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish queues event under key. When the queue is full the event is
// dropped and logged.
func (p *EventPublisher) Publish(topic, key string, event interface{}) {
	value, err := json.Marshal(event)
	if err != nil {
		p.logger.Error("Failed to marshal Kafka event", zap.Error(err))
		return
	}

	select {
	case p.queue <- outgoing{topic: topic, key: []byte(key), value: value}:
	default:
		p.logger.Error("Kafka event queue full, dropping event", zap.String("topic", topic), zap.String("key", key))
	}
}

// Close sends what is still queued and stops the publisher. Publish must
// not be called afterwards.
func (p *EventPublisher) Close() {
	p.once.Do(func() { close(p.queue) })
	<-p.done
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), eventSendTimeout)
		if err := p.kafka.SendMessage(ctx, msg.topic, msg.key, msg.value); err != nil {
			p.logger.Error("Failed to send Kafka message", zap.String("topic", msg.topic), zap.Error(err))
		}
		cancel()
	}
}

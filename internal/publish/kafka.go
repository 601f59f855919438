// internal/publish/kafka.go
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/tamzrod/modbus-poller/internal/model"
)

const (
	defaultWriteTimeout = 5 * time.Second
	batchTimeout        = 10 * time.Millisecond
)

// KafkaConfig selects the cluster and topic.
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher sends one message per snapshot, keyed by device id.
type KafkaPublisher struct {
	writer  messageWriter
	timeout time.Duration
}

// NewKafkaPublisher creates a producer. Messages of one device land on one partition.
func NewKafkaPublisher(cfg KafkaConfig) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("publish: kafka brokers required")
	}
	if cfg.Topic == "" {
		return nil, errors.New("publish: kafka topic required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: batchTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return newKafkaPublisher(w, cfg.WriteTimeout), nil
}

func newKafkaPublisher(w messageWriter, timeout time.Duration) *KafkaPublisher {
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &KafkaPublisher{writer: w, timeout: timeout}
}

func (p *KafkaPublisher) Name() string { return "kafka" }

// Publish sends the snapshot in its stored JSON shape.
func (p *KafkaPublisher) Publish(ctx context.Context, snap model.PollSnapshot) error {
	value, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("publish: encode snapshot: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.FormatInt(snap.DeviceID, 10)),
		Value: value,
		Time:  snap.CreatedAt,
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

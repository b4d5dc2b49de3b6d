package emitters

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"wallet-session/internal/config"
	"wallet-session/internal/models"
)

// MessageWriter is the subset of kafka.Writer the emitter uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaEmitter implements EventEmitter using Kafka
type KafkaEmitter struct {
	writer  MessageWriter
	timeout time.Duration
	logger  *zerolog.Logger
	mu      sync.Mutex
}

// NewKafkaEmitter creates a new KafkaEmitter
func NewKafkaEmitter(cfg config.KafkaConfig, logger *zerolog.Logger) *KafkaEmitter {
	return NewKafkaEmitterWithWriter(&kafka.Writer{
		Addr:         kafka.TCP(cfg.BrokerAddress),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireOne,
	}, logger)
}

// NewKafkaEmitterWithWriter creates an emitter on top of an existing writer
func NewKafkaEmitterWithWriter(writer MessageWriter, logger *zerolog.Logger) *KafkaEmitter {
	return &KafkaEmitter{
		writer:  writer,
		timeout: 10 * time.Second,
		logger:  logger,
	}
}

func (k *KafkaEmitter) EmitEvent(event models.WalletEvent) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer == nil {
		return fmt.Errorf("kafka emitter is closed")
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.TxHash),
		Value: value,
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(event.Kind)},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	k.logger.Info().
		Str("kind", string(event.Kind)).
		Str("txHash", event.TxHash).
		Msg("Successfully emitted event to Kafka")
	return nil
}

func (k *KafkaEmitter) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.writer != nil {
		err := k.writer.Close()
		k.writer = nil
		return err
	}
	return nil
}

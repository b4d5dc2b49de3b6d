package emitters

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"wallet-session/internal/models"
)

type MockWriter struct {
	mu       sync.Mutex
	messages []kafka.Message
	writeErr error
	closed   bool
}

func (m *MockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.messages = append(m.messages, msgs...)
	return nil
}

func (m *MockWriter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func TestKafkaEmitter_EmitEvent(t *testing.T) {
	writer := &MockWriter{}
	logger := zerolog.Nop()
	emitter := NewKafkaEmitterWithWriter(writer, &logger)

	event := models.WalletEvent{
		Kind:      models.TransferConfirmed,
		TxHash:    "0xabc",
		From:      "0xfrom",
		To:        "0xto",
		Amount:    "0.5",
		ChainID:   "0x1",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	if err := emitter.EmitEvent(event); err != nil {
		t.Fatalf("EmitEvent() error = %v", err)
	}

	if len(writer.messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(writer.messages))
	}
	msg := writer.messages[0]
	if string(msg.Key) != "0xabc" {
		t.Errorf("Key = %s, want 0xabc", msg.Key)
	}
	if len(msg.Headers) != 1 || string(msg.Headers[0].Value) != "transfer_confirmed" {
		t.Errorf("unexpected headers: %+v", msg.Headers)
	}

	var decoded models.WalletEvent
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("message is not JSON: %v", err)
	}
	if decoded.Amount != "0.5" || decoded.From != "0xfrom" || !decoded.Timestamp.Equal(event.Timestamp) {
		t.Errorf("decoded event = %+v", decoded)
	}
}

func TestKafkaEmitter_WriteError(t *testing.T) {
	writeErr := errors.New("leader not available")
	logger := zerolog.Nop()
	emitter := NewKafkaEmitterWithWriter(&MockWriter{writeErr: writeErr}, &logger)

	if err := emitter.EmitEvent(models.WalletEvent{TxHash: "0x1"}); !errors.Is(err, writeErr) {
		t.Errorf("EmitEvent() error = %v, want %v", err, writeErr)
	}
}

func TestKafkaEmitter_Close(t *testing.T) {
	writer := &MockWriter{}
	logger := zerolog.Nop()
	emitter := NewKafkaEmitterWithWriter(writer, &logger)

	if err := emitter.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !writer.closed {
		t.Error("writer should be closed")
	}
	if err := emitter.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := emitter.EmitEvent(models.WalletEvent{TxHash: "0x1"}); err == nil {
		t.Error("EmitEvent() after Close should fail")
	}
}

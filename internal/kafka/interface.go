//go:generate go run go.uber.org/mock/mockgen -source=interface.go -destination=../mocks/mock_kafka.go -package=mocks
package kafka

import (
	"context"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

// MessageProducer publishes committed chat messages.
type MessageProducer interface {
	ProduceMessage(ctx context.Context, msg *domain.Message) error
	Close() error
}

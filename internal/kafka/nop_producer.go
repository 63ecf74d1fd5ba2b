package kafka

import (
	"context"

	"github.com/MahiaRaniNatarajan/smartlearn/internal/domain"
)

// NopProducer drops every message. Used when Kafka is disabled.
type NopProducer struct{}

func (NopProducer) ProduceMessage(ctx context.Context, msg *domain.Message) error { return nil }

func (NopProducer) Close() error { return nil }

package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/boxdancer/EVENTUM-education-platform/internal/config"
)

const (
	DriverNATS  = "nats"
	DriverKafka = "kafka"
)

// Producer publishes JSON encoded events. key identifies the entity the event is about.
type Producer interface {
	Publish(ctx context.Context, key string, event any) error
	Close() error
}

// New builds the producer selected by cfg.Driver.
// An empty driver disables publishing and returns a nil Producer.
func New(cfg config.MessagingConfig, logger *slog.Logger) (Producer, error) {
	switch cfg.Driver {
	case "":
		logger.Info("event publishing disabled")
		return nil, nil
	case DriverNATS:
		return NewNATSProducer(cfg.NATSURL, cfg.Subject, logger)
	case DriverKafka:
		return NewKafkaProducer(cfg.Brokers, cfg.Topic, logger)
	default:
		return nil, fmt.Errorf("unknown messaging driver %q", cfg.Driver)
	}
}

package user

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/boxdancer/EVENTUM-education-platform/internal/db"
	"github.com/boxdancer/EVENTUM-education-platform/internal/metrics"

	"github.com/uptrace/bun"
)

// EventPublisher delivers registration events. key identifies the user.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Service interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
}

type service struct {
	store     *bun.DB
	publisher EventPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService wires the registration flow. publisher may be nil.
func NewService(store *bun.DB, publisher EventPublisher, m *metrics.Metrics, logger *slog.Logger) Service {
	return &service{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	var created *User

	err := db.WithSession(ctx, s.store, func(ctx context.Context, tx bun.Tx) error {
		u, err := NewRepository(tx, s.metrics).Create(ctx, req.Attributes())
		if err != nil {
			return err
		}
		created = u
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailExists) {
			s.metrics.RecordRegistrationConflict(ctx)
		}
		return nil, err
	}

	s.metrics.RecordUserRegistered(ctx)
	s.logger.InfoContext(ctx, "user registered", "user_id", created.UserID, "email", created.Email)

	s.publishRegistered(ctx, created)

	resp := ToResponse(created)
	return &resp, nil
}

func (s *service) publishRegistered(ctx context.Context, u *User) {
	if s.publisher == nil {
		return
	}

	event := NewUserRegisteredEvent(u, s.now())
	if err := s.publisher.Publish(ctx, u.UserID.String(), event); err != nil {
		s.metrics.RecordEventPublishFailure(ctx)
		s.logger.ErrorContext(ctx, "failed to publish user registered event",
			"user_id", u.UserID,
			"error", err,
		)
	}
}

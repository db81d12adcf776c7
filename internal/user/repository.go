package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boxdancer/EVENTUM-education-platform/internal/metrics"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
)

const uniqueViolation = "23505"

var ErrEmailExists = errors.New("user with this email already exists")

type Repository interface {
	Create(ctx context.Context, attrs Attributes) (*User, error)
}

type repository struct {
	db      bun.IDB
	metrics *metrics.Metrics
}

// NewRepository binds a repository to db, which is normally the open bun.Tx of a session.
func NewRepository(db bun.IDB, m *metrics.Metrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// Create inserts a user and reads back the server generated columns.
// Nothing is committed here.
func (r *repository) Create(ctx context.Context, attrs Attributes) (*User, error) {
	u := &User{
		Name:        attrs.Name,
		Surname:     attrs.Surname,
		ClassNumber: attrs.ClassNumber,
		ExamType:    attrs.ExamType,
		Email:       attrs.Email,
		Telegram:    attrs.Telegram,
	}

	start := time.Now()
	_, err := r.db.NewInsert().Model(u).Returning("*").Exec(ctx)

	r.metrics.RecordQuery(ctx, "insert", "users", time.Since(start), err)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C') == uniqueViolation
	}
	return false
}

package metrics

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	usersRegistered       metric.Int64Counter
	registrationConflicts metric.Int64Counter
	eventPublishFailures  metric.Int64Counter

	queryDuration metric.Float64Histogram
	queryErrors   metric.Int64Counter

	connectionsOpen    metric.Int64ObservableGauge
	connectionsIdle    metric.Int64ObservableGauge
	connectionsInUse   metric.Int64ObservableGauge
	maxOpenConnections metric.Int64ObservableGauge
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.usersRegistered, err = meter.Int64Counter(
		"eventum.users.registered",
		metric.WithDescription("Total number of users registered"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.registrationConflicts, err = meter.Int64Counter(
		"eventum.users.registration_conflicts",
		metric.WithDescription("Registrations rejected because the email is already taken"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.eventPublishFailures, err = meter.Int64Counter(
		"eventum.events.publish_failures",
		metric.WithDescription("Registration events that could not be published"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	// Buckets: 1ms, 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s
	m.queryDuration, err = meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
	)
	if err != nil {
		return nil, err
	}

	m.queryErrors, err = meter.Int64Counter(
		"db.query.errors",
		metric.WithDescription("Database query errors"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsOpen, err = meter.Int64ObservableGauge(
		"db.connections.open",
		metric.WithDescription("Current number of open database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsIdle, err = meter.Int64ObservableGauge(
		"db.connections.idle",
		metric.WithDescription("Current number of idle database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.connectionsInUse, err = meter.Int64ObservableGauge(
		"db.connections.in_use",
		metric.WithDescription("Current number of in-use database connections"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	m.maxOpenConnections, err = meter.Int64ObservableGauge(
		"db.connections.max_open",
		metric.WithDescription("Maximum number of open connections allowed"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RegisterDB reports connection pool stats of db on every collection.
func (m *Metrics) RegisterDB(db *sql.DB, meter metric.Meter) error {
	_, err := meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			stats := db.Stats()

			observer.ObserveInt64(m.connectionsOpen, int64(stats.OpenConnections))
			observer.ObserveInt64(m.connectionsIdle, int64(stats.Idle))
			observer.ObserveInt64(m.connectionsInUse, int64(stats.InUse))
			observer.ObserveInt64(m.maxOpenConnections, int64(stats.MaxOpenConnections))

			return nil
		},
		m.connectionsOpen,
		m.connectionsIdle,
		m.connectionsInUse,
		m.maxOpenConnections,
	)
	return err
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m != nil && m.usersRegistered != nil {
		m.usersRegistered.Add(ctx, 1)
	}
}

func (m *Metrics) RecordRegistrationConflict(ctx context.Context) {
	if m != nil && m.registrationConflicts != nil {
		m.registrationConflicts.Add(ctx, 1)
	}
}

func (m *Metrics) RecordEventPublishFailure(ctx context.Context) {
	if m != nil && m.eventPublishFailures != nil {
		m.eventPublishFailures.Add(ctx, 1)
	}
}

func (m *Metrics) RecordQuery(ctx context.Context, operation string, table string, duration time.Duration, err error) {
	if m == nil || m.queryDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("table", table),
	}

	m.queryDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if err != nil && m.queryErrors != nil {
		m.queryErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// NewMock creates a no-op Metrics instance for testing
// The returned Metrics will safely ignore all Record* calls
func NewMock() *Metrics {
	return &Metrics{}
}

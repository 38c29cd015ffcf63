package metricsagg

import (
	"context"
	"fmt"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const serviceName = "matching-service"

type MetricRepo interface {
	Create(ctx context.Context, m *models.MatchingMetric) error
	GetByBooking(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error)
	IncrementResponded(ctx context.Context, bookingID uuid.UUID) (bool, error)
	SetTotalNotified(ctx context.Context, bookingID uuid.UUID, total int) error
	Finish(ctx context.Context, bookingID uuid.UUID, status types.MetricStatus, acceptedDriverID *uuid.UUID, acceptedAt *time.Time, timeToMatch *int64) (bool, error)
}

// Aggregator keeps the per-attempt counters honest: responded never exceeds
// notified, and an attempt finishes exactly once. The database guards carry
// the invariants; this layer adds logging and the Prometheus side.
type Aggregator struct {
	repo   MetricRepo
	logger logger.Logger
}

func New(repo MetricRepo, log logger.Logger) *Aggregator {
	return &Aggregator{repo: repo, logger: log}
}

// Open creates the attempt record in ACTIVE with zero counters.
func (a *Aggregator) Open(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error) {
	m := &models.MatchingMetric{
		ID:          uuid.New(),
		BookingID:   bookingID,
		FinalStatus: types.MetricActive,
	}
	if err := a.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("could not open metric: %w", err)
	}
	metrics.ActiveMatchingGauge.WithLabelValues(serviceName).Inc()
	return m, nil
}

// RecordNotified stores how many drivers the broadcast reached.
func (a *Aggregator) RecordNotified(ctx context.Context, bookingID uuid.UUID, total int) error {
	if err := a.repo.SetTotalNotified(ctx, bookingID, total); err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// RecordResponse bumps totalResponded for one driver answer. A refused bump
// (already at the cap, or the attempt already finished) is logged and
// swallowed; the answer itself is still processed by the caller.
func (a *Aggregator) RecordResponse(ctx context.Context, bookingID uuid.UUID) {
	ok, err := a.repo.IncrementResponded(ctx, bookingID)
	if err != nil {
		a.logger.Error(ctx, "failed to count driver response", err)
		return
	}
	if !ok {
		a.logger.Debug(ctx, "response not counted, attempt finished or counter at cap")
	}
}

// Finalize moves the attempt out of ACTIVE. Only the first caller wins;
// later calls are no-ops so timeout, cancel and accept can race safely.
func (a *Aggregator) Finalize(ctx context.Context, bookingID uuid.UUID, status types.MetricStatus) (bool, error) {
	ok, err := a.repo.Finish(ctx, bookingID, status, nil, nil, nil)
	if err != nil {
		return false, wrap.Error(ctx, err)
	}
	if ok {
		metrics.RecordMatchingFinished(serviceName, status.String())
	}
	return ok, nil
}

// ObserveMatched records the Prometheus side of a successful assignment.
// The database row was already finished inside the assignment transaction.
func (a *Aggregator) ObserveMatched(ctx context.Context, bookingID uuid.UUID) {
	metrics.RecordMatchingFinished(serviceName, types.MetricMatched.String())

	m, err := a.repo.GetByBooking(ctx, bookingID)
	if err != nil {
		a.logger.Warn(ctx, "could not read finished metric", "error", err.Error())
		return
	}
	if m.TimeToMatchSeconds != nil {
		metrics.TimeToMatchSeconds.WithLabelValues(serviceName).Observe(float64(*m.TimeToMatchSeconds))
	}
}

// Snapshot returns the attempt record for the status API.
func (a *Aggregator) Snapshot(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error) {
	return a.repo.GetByBooking(ctx, bookingID)
}

package matching

import (
	"context"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/dispatch"
	"github.com/Temutjin2k/driver-match-system/internal/service/selector"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type BookingRepo interface {
	Get(ctx context.Context, bookingID uuid.UUID) (*models.Booking, error)
	ListPending(ctx context.Context) ([]models.Booking, error)
	Cancel(ctx context.Context, bookingID uuid.UUID, reason string, cancelledAt time.Time) (bool, error)
}

type CustomerRepo interface {
	Get(ctx context.Context, customerID uuid.UUID) (*models.Customer, error)
}

type DriverRepo interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
}

type NotificationRepo interface {
	Get(ctx context.Context, bookingID, driverID uuid.UUID) (*models.NotificationRecord, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error)
	ListPendingByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error)
	Resolve(ctx context.Context, bookingID, driverID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (bool, error)
	ResolveAllPending(ctx context.Context, bookingID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (int64, error)
}

type Selector interface {
	Select(ctx context.Context, booking *models.Booking, opts selector.Options) ([]models.DriverCandidate, error)
}

type Dispatcher interface {
	Broadcast(ctx context.Context, booking *models.Booking, candidates []models.DriverCandidate, offerText string, expiresAt time.Time) dispatch.Result
}

type Transactor interface {
	Assign(ctx context.Context, bookingID, driverID uuid.UUID) (*models.AssignedDriver, error)
}

type Aggregator interface {
	Open(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error)
	RecordNotified(ctx context.Context, bookingID uuid.UUID, total int) error
	RecordResponse(ctx context.Context, bookingID uuid.UUID)
	Finalize(ctx context.Context, bookingID uuid.UUID, status types.MetricStatus) (bool, error)
	ObserveMatched(ctx context.Context, bookingID uuid.UUID)
	Snapshot(ctx context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error)
}

type Timeouts interface {
	ArmDriver(bookingID, driverID uuid.UUID, d time.Duration)
	CancelDriver(bookingID, driverID uuid.UUID)
	ArmBooking(bookingID uuid.UUID, d time.Duration)
	CancelAllForBooking(bookingID uuid.UUID)
	ClearAllTimeouts()
}

type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

type AdminNotifier interface {
	Alert(ctx context.Context, alert models.AdminAlert) error
}

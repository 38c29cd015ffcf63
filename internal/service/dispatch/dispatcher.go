package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/pkg/clock"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const serviceName = "matching-service"

type NotificationRepo interface {
	Create(ctx context.Context, n *models.NotificationRecord) error
}

type Messenger interface {
	Send(ctx context.Context, msg models.OutboundMessage) error
}

// Pusher delivers an offer over an open websocket. Ok is false when the
// driver has no live connection, which is not an error.
type Pusher interface {
	PushOffer(ctx context.Context, driverID uuid.UUID, offer models.DriverOfferPush) (ok bool, err error)
}

// Result is the outcome of one broadcast. Notified holds the drivers that
// got a ledger entry; Errors holds per-driver failures. A driver whose
// message failed after the entry was written appears in both: the offer is
// open and the timers will resolve it.
type Result struct {
	Notified []uuid.UUID
	Errors   []error
}

// Dispatcher fans an offer out to every candidate concurrently. A failure
// for one driver never stops the others and never aborts the attempt.
type Dispatcher struct {
	notifications NotificationRepo
	messenger     Messenger
	pusher        Pusher // optional
	logger        logger.Logger
	clock         clock.Clock
}

func New(notifications NotificationRepo, messenger Messenger, pusher Pusher, log logger.Logger, clk clock.Clock) *Dispatcher {
	if clk == nil {
		clk = clock.Real()
	}
	return &Dispatcher{
		notifications: notifications,
		messenger:     messenger,
		pusher:        pusher,
		logger:        log,
		clock:         clk,
	}
}

func (d *Dispatcher) Broadcast(ctx context.Context, booking *models.Booking, candidates []models.DriverCandidate, offerText string, expiresAt time.Time) Result {
	type outcome struct {
		driverID uuid.UUID
		notified bool
		err      error
	}

	outcomes := make([]outcome, len(candidates))

	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &candidates[i]
			notified, err := d.sendOne(ctx, booking, c, offerText, expiresAt)
			outcomes[i] = outcome{driverID: c.ID, notified: notified, err: err}
		}(i)
	}
	wg.Wait()

	var res Result
	for _, o := range outcomes {
		if o.notified {
			res.Notified = append(res.Notified, o.driverID)
		}
		if o.err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("driver %s: %w", o.driverID, o.err))
		}
	}
	return res
}

// sendOne writes the ledger entry and then attempts delivery. The entry
// goes first: a driver whose message failed still holds a PENDING offer,
// which the per-driver timer resolves.
func (d *Dispatcher) sendOne(ctx context.Context, booking *models.Booking, c *models.DriverCandidate, offerText string, expiresAt time.Time) (bool, error) {
	ctx = wrap.WithDriverID(ctx, c.ID.String())

	method := types.MethodMessage
	if d.pusher != nil {
		ok, err := d.pusher.PushOffer(ctx, c.ID, models.DriverOfferPush{
			Type:           "ride_offer",
			BookingID:      booking.ID,
			BookingNumber:  booking.BookingNumber,
			PickupAddress:  booking.Pickup.Address,
			DropoffAddress: booking.Dropoff.Address,
			EstimatedFare:  booking.EstimatedFare,
			ExpiresAt:      expiresAt,
		})
		if err != nil {
			d.logger.Warn(ctx, "websocket offer push failed, falling back to message", "error", err.Error())
		}
		if ok && err == nil {
			method = types.MethodWebSocket
		}
	}

	err := d.notifications.Create(ctx, &models.NotificationRecord{
		BookingID: booking.ID,
		DriverID:  c.ID,
		SentAt:    d.clock.Now(),
		Outcome:   types.OutcomePending,
		Method:    method,
	})
	if err != nil {
		metrics.RecordOfferSent(serviceName, err)
		return false, fmt.Errorf("record offer: %w", err)
	}

	if method == types.MethodWebSocket {
		metrics.RecordOfferSent(serviceName, nil)
		return true, nil
	}

	err = d.messenger.Send(ctx, models.OutboundMessage{
		RecipientID: c.ID,
		Recipient:   c.Phone,
		Body:        offerText,
		SentAt:      d.clock.Now(),
	})
	metrics.RecordOfferSent(serviceName, err)
	if err != nil {
		return true, fmt.Errorf("send offer: %w", err)
	}
	return true, nil
}

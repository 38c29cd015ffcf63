package timeout

import (
	"context"
	"sync"
	"time"

	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

const serviceName = "matching-service"

// Handler receives timer expirations. Implementations must re-read
// persistent state; a fired timer only means "check now", never "it is
// still pending".
type Handler interface {
	HandleDriverTimeout(ctx context.Context, bookingID, driverID uuid.UUID)
	HandleBookingTimeout(ctx context.Context, bookingID uuid.UUID)
}

// Manager owns the two timer tiers: one short timer per outstanding driver
// offer and one long timer per matching attempt. Arm and cancel are
// idempotent; firing removes the timer before the handler runs.
type Manager struct {
	mu            sync.Mutex
	driverTimers  map[driverKey]*time.Timer
	bookingTimers map[uuid.UUID]*time.Timer

	handler Handler
	logger  logger.Logger
}

type driverKey struct {
	bookingID uuid.UUID
	driverID  uuid.UUID
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		driverTimers:  make(map[driverKey]*time.Timer),
		bookingTimers: make(map[uuid.UUID]*time.Timer),
		logger:        log,
	}
}

// SetHandler wires the expiration callbacks. Must be called before any timer
// is armed; kept separate from the constructor because the handler (the
// coordinator) holds the manager too.
func (m *Manager) SetHandler(h Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = h
}

// ArmDriver starts the per-offer timer. Arming an already-armed pair is a
// no-op, so retried broadcasts never shorten a running window.
func (m *Manager) ArmDriver(bookingID, driverID uuid.UUID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := driverKey{bookingID: bookingID, driverID: driverID}
	if _, armed := m.driverTimers[key]; armed {
		return
	}
	m.driverTimers[key] = time.AfterFunc(d, func() {
		m.fireDriver(key)
	})
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "driver").Inc()
}

// CancelDriver stops the per-offer timer. Cancelling an unarmed pair is a
// no-op.
func (m *Manager) CancelDriver(bookingID, driverID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancelDriverLocked(driverKey{bookingID: bookingID, driverID: driverID})
}

// ArmBooking starts the whole-attempt timer. Idempotent like ArmDriver.
func (m *Manager) ArmBooking(bookingID uuid.UUID, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, armed := m.bookingTimers[bookingID]; armed {
		return
	}
	m.bookingTimers[bookingID] = time.AfterFunc(d, func() {
		m.fireBooking(bookingID)
	})
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "booking").Inc()
}

// CancelBooking stops only the whole-attempt timer.
func (m *Manager) CancelBooking(bookingID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.bookingTimers[bookingID]; ok {
		t.Stop()
		delete(m.bookingTimers, bookingID)
		metrics.ArmedTimersGauge.WithLabelValues(serviceName, "booking").Dec()
	}
}

// CancelAllForBooking stops the booking timer and every driver timer of the
// booking. Used when the attempt reaches a terminal state.
func (m *Manager) CancelAllForBooking(bookingID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if t, ok := m.bookingTimers[bookingID]; ok {
		t.Stop()
		delete(m.bookingTimers, bookingID)
		metrics.ArmedTimersGauge.WithLabelValues(serviceName, "booking").Dec()
	}
	for key := range m.driverTimers {
		if key.bookingID == bookingID {
			m.cancelDriverLocked(key)
		}
	}
}

// ClearAllTimeouts stops everything. Called on shutdown.
func (m *Manager) ClearAllTimeouts() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, t := range m.driverTimers {
		t.Stop()
		delete(m.driverTimers, key)
	}
	for id, t := range m.bookingTimers {
		t.Stop()
		delete(m.bookingTimers, id)
	}
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "driver").Set(0)
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "booking").Set(0)
}

// ArmedCount reports currently armed timers per tier.
func (m *Manager) ArmedCount() (drivers, bookings int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.driverTimers), len(m.bookingTimers)
}

func (m *Manager) cancelDriverLocked(key driverKey) {
	if t, ok := m.driverTimers[key]; ok {
		t.Stop()
		delete(m.driverTimers, key)
		metrics.ArmedTimersGauge.WithLabelValues(serviceName, "driver").Dec()
	}
}

func (m *Manager) fireDriver(key driverKey) {
	m.mu.Lock()
	if _, ok := m.driverTimers[key]; !ok {
		// Cancelled between firing and acquiring the lock.
		m.mu.Unlock()
		return
	}
	delete(m.driverTimers, key)
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "driver").Dec()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h.HandleDriverTimeout(context.Background(), key.bookingID, key.driverID)
	}
}

func (m *Manager) fireBooking(bookingID uuid.UUID) {
	m.mu.Lock()
	if _, ok := m.bookingTimers[bookingID]; !ok {
		m.mu.Unlock()
		return
	}
	delete(m.bookingTimers, bookingID)
	metrics.ArmedTimersGauge.WithLabelValues(serviceName, "booking").Dec()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h.HandleBookingTimeout(context.Background(), bookingID)
	}
}

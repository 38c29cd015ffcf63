package timeout

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

type recordingHandler struct {
	mu             sync.Mutex
	driverFires    []driverKey
	bookingFires   []uuid.UUID
	driverFiredCh  chan struct{}
	bookingFiredCh chan struct{}
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		driverFiredCh:  make(chan struct{}, 16),
		bookingFiredCh: make(chan struct{}, 16),
	}
}

func (h *recordingHandler) HandleDriverTimeout(_ context.Context, bookingID, driverID uuid.UUID) {
	h.mu.Lock()
	h.driverFires = append(h.driverFires, driverKey{bookingID: bookingID, driverID: driverID})
	h.mu.Unlock()
	h.driverFiredCh <- struct{}{}
}

func (h *recordingHandler) HandleBookingTimeout(_ context.Context, bookingID uuid.UUID) {
	h.mu.Lock()
	h.bookingFires = append(h.bookingFires, bookingID)
	h.mu.Unlock()
	h.bookingFiredCh <- struct{}{}
}

func (h *recordingHandler) driverCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.driverFires)
}

func (h *recordingHandler) bookingCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.bookingFires)
}

func newTestManager(h Handler) *Manager {
	m := NewManager(logger.InitLogger("test", logger.LevelError))
	m.SetHandler(h)
	return m
}

func waitFired(t *testing.T, ch chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatalf("timer did not fire in time")
	}
}

func TestArmDriver_FiresHandlerOnce(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	bookingID, driverID := uuid.New(), uuid.New()
	m.ArmDriver(bookingID, driverID, 10*time.Millisecond)

	waitFired(t, h.driverFiredCh)

	if got := h.driverCount(); got != 1 {
		t.Fatalf("expected exactly one expiration, got %d", got)
	}
	h.mu.Lock()
	fired := h.driverFires[0]
	h.mu.Unlock()
	if fired.bookingID != bookingID || fired.driverID != driverID {
		t.Fatalf("handler got wrong pair")
	}
	if d, _ := m.ArmedCount(); d != 0 {
		t.Fatalf("fired timer must be removed, still %d armed", d)
	}
}

func TestArmDriver_Idempotent(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	bookingID, driverID := uuid.New(), uuid.New()
	m.ArmDriver(bookingID, driverID, 20*time.Millisecond)
	// Re-arming must not reset or duplicate the running timer.
	m.ArmDriver(bookingID, driverID, time.Hour)

	if d, _ := m.ArmedCount(); d != 1 {
		t.Fatalf("re-arm must be a no-op, got %d timers", d)
	}

	waitFired(t, h.driverFiredCh)
	time.Sleep(50 * time.Millisecond)
	if got := h.driverCount(); got != 1 {
		t.Fatalf("expected one expiration after double arm, got %d", got)
	}
}

func TestCancelDriver_PreventsFiring(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	bookingID, driverID := uuid.New(), uuid.New()
	m.ArmDriver(bookingID, driverID, 30*time.Millisecond)
	m.CancelDriver(bookingID, driverID)

	// Cancelling an unarmed pair must not panic.
	m.CancelDriver(uuid.New(), uuid.New())

	time.Sleep(80 * time.Millisecond)
	if got := h.driverCount(); got != 0 {
		t.Fatalf("cancelled timer fired %d times", got)
	}
	if d, _ := m.ArmedCount(); d != 0 {
		t.Fatalf("expected no armed timers, got %d", d)
	}
}

func TestArmBooking_FiresHandler(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	bookingID := uuid.New()
	m.ArmBooking(bookingID, 10*time.Millisecond)

	waitFired(t, h.bookingFiredCh)
	if got := h.bookingCount(); got != 1 {
		t.Fatalf("expected one booking expiration, got %d", got)
	}
}

func TestCancelAllForBooking_StopsEveryTimerOfTheBooking(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	target := uuid.New()
	other := uuid.New()
	otherDriver := uuid.New()

	m.ArmBooking(target, 30*time.Millisecond)
	m.ArmDriver(target, uuid.New(), 30*time.Millisecond)
	m.ArmDriver(target, uuid.New(), 30*time.Millisecond)
	m.ArmBooking(other, time.Hour)
	m.ArmDriver(other, otherDriver, time.Hour)

	m.CancelAllForBooking(target)

	drivers, bookings := m.ArmedCount()
	if drivers != 1 || bookings != 1 {
		t.Fatalf("only the other booking's timers must survive, got %d/%d", drivers, bookings)
	}

	time.Sleep(80 * time.Millisecond)
	if h.driverCount() != 0 || h.bookingCount() != 0 {
		t.Fatalf("cancelled timers fired")
	}
}

func TestClearAllTimeouts_DropsEverything(t *testing.T) {
	h := newRecordingHandler()
	m := newTestManager(h)

	for i := 0; i < 5; i++ {
		bookingID := uuid.New()
		m.ArmBooking(bookingID, time.Hour)
		m.ArmDriver(bookingID, uuid.New(), time.Hour)
	}

	m.ClearAllTimeouts()

	drivers, bookings := m.ArmedCount()
	if drivers != 0 || bookings != 0 {
		t.Fatalf("expected empty manager after clear, got %d/%d", drivers, bookings)
	}
}

func TestManager_NoHandlerDoesNotPanic(t *testing.T) {
	m := NewManager(logger.InitLogger("test", logger.LevelError))

	m.ArmDriver(uuid.New(), uuid.New(), 5*time.Millisecond)
	m.ArmBooking(uuid.New(), 5*time.Millisecond)

	time.Sleep(40 * time.Millisecond)
	drivers, bookings := m.ArmedCount()
	if drivers != 0 || bookings != 0 {
		t.Fatalf("fired timers must be removed even without a handler")
	}
}

package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/dispatch"
	"github.com/Temutjin2k/driver-match-system/internal/service/selector"
	"github.com/Temutjin2k/driver-match-system/pkg/clock"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
)

// world is an in-memory stand-in for the database and the brokers. The
// fakes reproduce the guarded updates the real repos run, so races between
// answers, timers and cancels behave like they do against postgres.
type world struct {
	mu  sync.Mutex
	clk *clock.Mock

	bookings  map[uuid.UUID]*models.Booking
	customers map[uuid.UUID]*models.Customer
	drivers   map[uuid.UUID]*models.Driver
	notifs    map[notifKey]*models.NotificationRecord
	metrics   map[uuid.UUID]*models.MatchingMetric

	candidates  []models.DriverCandidate
	selectErr   error
	deliverFail map[uuid.UUID]error

	messages []models.OutboundMessage
	alerts   []models.AdminAlert

	timers *fakeTimeouts
}

type notifKey struct {
	bookingID uuid.UUID
	driverID  uuid.UUID
}

func newWorld() *world {
	return &world{
		clk:         clock.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		bookings:    map[uuid.UUID]*models.Booking{},
		customers:   map[uuid.UUID]*models.Customer{},
		drivers:     map[uuid.UUID]*models.Driver{},
		notifs:      map[notifKey]*models.NotificationRecord{},
		metrics:     map[uuid.UUID]*models.MatchingMetric{},
		deliverFail: map[uuid.UUID]error{},
		timers:      newFakeTimeouts(),
	}
}

func (w *world) newService(cfg Config) *Service {
	return NewService(
		cfg,
		&bookingStore{w},
		&customerStore{w},
		&driverStore{w},
		&notifStore{w},
		&worldSelector{w},
		&worldDispatcher{w},
		&worldTransactor{w},
		&metricStore{w},
		w.timers,
		&messageSink{w},
		&alertSink{w},
		logger.InitLogger("test", logger.LevelError),
		w.clk,
	)
}

func (w *world) seedBooking() *models.Booking {
	customer := &models.Customer{ID: uuid.New(), Name: "Aigerim", Phone: "+77051112233"}
	b := &models.Booking{
		ID:            uuid.New(),
		BookingNumber: "BK-1001",
		CustomerID:    customer.ID,
		Status:        types.BookingPending,
		Version:       1,
		Pickup:        models.Location{Address: "Abay 10"},
		Dropoff:       models.Location{Address: "Airport"},
		EstimatedFare: 2500,
		CreatedAt:     w.clk.Now().Add(-5 * time.Second),
	}
	w.mu.Lock()
	w.customers[customer.ID] = customer
	w.bookings[b.ID] = b
	w.mu.Unlock()
	return b
}

func (w *world) seedDrivers(n int) []uuid.UUID {
	ids := make([]uuid.UUID, 0, n)
	w.mu.Lock()
	for i := 0; i < n; i++ {
		d := &models.Driver{
			ID:          uuid.New(),
			Name:        "driver",
			Phone:       "+77010000000",
			Rating:      4.8,
			IsAvailable: true, IsOnline: true, IsVerified: true, IsActive: true,
			LastSeenAt: w.clk.Now(),
		}
		w.drivers[d.ID] = d
		w.candidates = append(w.candidates, models.DriverCandidate{Driver: *d})
		ids = append(ids, d.ID)
	}
	w.mu.Unlock()
	return ids
}

func (w *world) booking(id uuid.UUID) models.Booking {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.bookings[id]
}

func (w *world) metric(bookingID uuid.UUID) models.MatchingMetric {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.metrics[bookingID]
}

func (w *world) notif(bookingID, driverID uuid.UUID) models.NotificationRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	return *w.notifs[notifKey{bookingID, driverID}]
}

func (w *world) messagesTo(recipientID uuid.UUID) []models.OutboundMessage {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []models.OutboundMessage
	for _, m := range w.messages {
		if m.RecipientID == recipientID {
			out = append(out, m)
		}
	}
	return out
}

type bookingStore struct{ w *world }

func (s *bookingStore) Get(_ context.Context, bookingID uuid.UUID) (*models.Booking, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	b, ok := s.w.bookings[bookingID]
	if !ok {
		return nil, types.ErrBookingNotFound
	}
	cp := *b
	return &cp, nil
}

func (s *bookingStore) ListPending(_ context.Context) ([]models.Booking, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.Booking
	for _, b := range s.w.bookings {
		if b.Status == types.BookingPending {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s *bookingStore) Cancel(_ context.Context, bookingID uuid.UUID, reason string, cancelledAt time.Time) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	b, ok := s.w.bookings[bookingID]
	if !ok || b.Status != types.BookingPending {
		return false, nil
	}
	b.Status = types.BookingCancelled
	b.CancellationReason = &reason
	b.CancelledAt = &cancelledAt
	b.Version++
	return true, nil
}

type customerStore struct{ w *world }

func (s *customerStore) Get(_ context.Context, customerID uuid.UUID) (*models.Customer, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	c, ok := s.w.customers[customerID]
	if !ok {
		return nil, types.ErrCustomerNotFound
	}
	cp := *c
	return &cp, nil
}

type driverStore struct{ w *world }

func (s *driverStore) Get(_ context.Context, driverID uuid.UUID) (*models.Driver, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	d, ok := s.w.drivers[driverID]
	if !ok {
		return nil, types.ErrDriverNotFound
	}
	cp := *d
	return &cp, nil
}

type notifStore struct{ w *world }

func (s *notifStore) Get(_ context.Context, bookingID, driverID uuid.UUID) (*models.NotificationRecord, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	n, ok := s.w.notifs[notifKey{bookingID, driverID}]
	if !ok {
		return nil, types.ErrOfferNotFound
	}
	cp := *n
	return &cp, nil
}

func (s *notifStore) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.NotificationRecord
	for key, n := range s.w.notifs {
		if key.bookingID == bookingID {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *notifStore) ListPendingByBooking(_ context.Context, bookingID uuid.UUID) ([]models.NotificationRecord, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var out []models.NotificationRecord
	for key, n := range s.w.notifs {
		if key.bookingID == bookingID && n.Outcome == types.OutcomePending {
			out = append(out, *n)
		}
	}
	return out, nil
}

func (s *notifStore) Resolve(_ context.Context, bookingID, driverID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	n, ok := s.w.notifs[notifKey{bookingID, driverID}]
	if !ok || n.Outcome != types.OutcomePending {
		return false, nil
	}
	n.Outcome = outcome
	n.RespondedAt = &respondedAt
	return true, nil
}

func (s *notifStore) ResolveAllPending(_ context.Context, bookingID uuid.UUID, outcome types.NotificationOutcome, respondedAt time.Time) (int64, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	var count int64
	for key, n := range s.w.notifs {
		if key.bookingID == bookingID && n.Outcome == types.OutcomePending {
			n.Outcome = outcome
			n.RespondedAt = &respondedAt
			count++
		}
	}
	return count, nil
}

type worldSelector struct{ w *world }

func (s *worldSelector) Select(_ context.Context, _ *models.Booking, _ selector.Options) ([]models.DriverCandidate, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if s.w.selectErr != nil {
		return nil, s.w.selectErr
	}
	out := make([]models.DriverCandidate, len(s.w.candidates))
	copy(out, s.w.candidates)
	return out, nil
}

type worldDispatcher struct{ w *world }

func (d *worldDispatcher) Broadcast(_ context.Context, booking *models.Booking, candidates []models.DriverCandidate, _ string, _ time.Time) dispatch.Result {
	d.w.mu.Lock()
	defer d.w.mu.Unlock()
	var res dispatch.Result
	for _, c := range candidates {
		// The ledger entry is written before the send, so a delivery
		// failure still leaves a pending offer behind.
		d.w.notifs[notifKey{booking.ID, c.ID}] = &models.NotificationRecord{
			BookingID: booking.ID,
			DriverID:  c.ID,
			SentAt:    d.w.clk.Now(),
			Outcome:   types.OutcomePending,
			Method:    types.MethodMessage,
		}
		res.Notified = append(res.Notified, c.ID)
		if err, ok := d.w.deliverFail[c.ID]; ok {
			res.Errors = append(res.Errors, err)
		}
	}
	return res
}

type worldTransactor struct{ w *world }

func (t *worldTransactor) Assign(_ context.Context, bookingID, driverID uuid.UUID) (*models.AssignedDriver, error) {
	t.w.mu.Lock()
	defer t.w.mu.Unlock()

	b, ok := t.w.bookings[bookingID]
	if !ok {
		return nil, types.ErrBookingNotFound
	}
	if b.Status != types.BookingPending || b.AssignedDriverID != nil {
		if b.Status == types.BookingAccepted {
			return nil, types.ErrBookingTaken
		}
		return nil, types.ErrBookingNotPending
	}

	now := t.w.clk.Now()
	b.Status = types.BookingAccepted
	b.AssignedDriverID = &driverID
	b.MatchedAt = &now
	b.Version++

	if d, ok := t.w.drivers[driverID]; ok {
		d.IsAvailable = false
	}

	if m, ok := t.w.metrics[bookingID]; ok && m.FinalStatus == types.MetricActive {
		ttm := int64(now.Sub(b.CreatedAt) / time.Second)
		m.FinalStatus = types.MetricMatched
		m.AcceptedDriverID = &driverID
		m.AcceptedAt = &now
		m.TimeToMatchSeconds = &ttm
	}

	d := t.w.drivers[driverID]
	return &models.AssignedDriver{ID: d.ID, Name: d.Name, Phone: d.Phone, Rating: d.Rating, Vehicle: d.Vehicle}, nil
}

type metricStore struct{ w *world }

func (s *metricStore) Open(_ context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if _, exists := s.w.metrics[bookingID]; exists {
		return nil, errors.New("matching attempt already recorded")
	}
	m := &models.MatchingMetric{
		ID:          uuid.New(),
		BookingID:   bookingID,
		FinalStatus: types.MetricActive,
		CreatedAt:   s.w.clk.Now(),
	}
	s.w.metrics[bookingID] = m
	cp := *m
	return &cp, nil
}

func (s *metricStore) RecordNotified(_ context.Context, bookingID uuid.UUID, total int) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if m, ok := s.w.metrics[bookingID]; ok && m.FinalStatus == types.MetricActive {
		m.TotalNotified = total
	}
	return nil
}

func (s *metricStore) RecordResponse(_ context.Context, bookingID uuid.UUID) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	if m, ok := s.w.metrics[bookingID]; ok && m.FinalStatus == types.MetricActive && m.TotalResponded < m.TotalNotified {
		m.TotalResponded++
	}
}

func (s *metricStore) Finalize(_ context.Context, bookingID uuid.UUID, status types.MetricStatus) (bool, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	m, ok := s.w.metrics[bookingID]
	if !ok || m.FinalStatus != types.MetricActive {
		return false, nil
	}
	m.FinalStatus = status
	return true, nil
}

func (s *metricStore) ObserveMatched(_ context.Context, _ uuid.UUID) {}

func (s *metricStore) Snapshot(_ context.Context, bookingID uuid.UUID) (*models.MatchingMetric, error) {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	m, ok := s.w.metrics[bookingID]
	if !ok {
		return nil, types.ErrMetricNotFound
	}
	cp := *m
	return &cp, nil
}

type fakeTimeouts struct {
	mu            sync.Mutex
	driverTimers  map[notifKey]time.Duration
	bookingTimers map[uuid.UUID]time.Duration
	cleared       int
}

func newFakeTimeouts() *fakeTimeouts {
	return &fakeTimeouts{
		driverTimers:  map[notifKey]time.Duration{},
		bookingTimers: map[uuid.UUID]time.Duration{},
	}
}

func (f *fakeTimeouts) ArmDriver(bookingID, driverID uuid.UUID, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := notifKey{bookingID, driverID}
	if _, armed := f.driverTimers[key]; !armed {
		f.driverTimers[key] = d
	}
}

func (f *fakeTimeouts) CancelDriver(bookingID, driverID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.driverTimers, notifKey{bookingID, driverID})
}

func (f *fakeTimeouts) ArmBooking(bookingID uuid.UUID, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, armed := f.bookingTimers[bookingID]; !armed {
		f.bookingTimers[bookingID] = d
	}
}

func (f *fakeTimeouts) CancelAllForBooking(bookingID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.bookingTimers, bookingID)
	for key := range f.driverTimers {
		if key.bookingID == bookingID {
			delete(f.driverTimers, key)
		}
	}
}

func (f *fakeTimeouts) ClearAllTimeouts() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.driverTimers = map[notifKey]time.Duration{}
	f.bookingTimers = map[uuid.UUID]time.Duration{}
	f.cleared++
}

func (f *fakeTimeouts) counts() (drivers, bookings int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.driverTimers), len(f.bookingTimers)
}

type messageSink struct{ w *world }

func (s *messageSink) Send(_ context.Context, msg models.OutboundMessage) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.messages = append(s.w.messages, msg)
	return nil
}

type alertSink struct{ w *world }

func (s *alertSink) Alert(_ context.Context, alert models.AdminAlert) error {
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	s.w.alerts = append(s.w.alerts, alert)
	return nil
}

func TestStartMatching_BroadcastsAndArmsTimers(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(3)

	res, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NotifiedCount != 3 || len(res.DriverIDs) != 3 {
		t.Fatalf("expected 3 notified drivers, got %d", res.NotifiedCount)
	}
	if res.MetricID.IsZero() {
		t.Fatalf("start must return the attempt id")
	}

	dTimers, bTimers := w.timers.counts()
	if dTimers != 3 || bTimers != 1 {
		t.Fatalf("expected 3 driver timers and 1 booking timer, got %d/%d", dTimers, bTimers)
	}

	m := w.metric(booking.ID)
	if m.TotalNotified != 3 || m.FinalStatus != types.MetricActive {
		t.Fatalf("attempt must be active with 3 notified, got %d %s", m.TotalNotified, m.FinalStatus)
	}

	for _, id := range drivers {
		if w.notif(booking.ID, id).Outcome != types.OutcomePending {
			t.Fatalf("each driver must have a pending offer")
		}
	}
	if len(w.messagesTo(booking.CustomerID)) != 1 {
		t.Fatalf("customer must hear the search started")
	}
}

func TestStartMatching_NonPendingBookingRefused(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	w.mu.Lock()
	w.bookings[booking.ID].Status = types.BookingCancelled
	w.mu.Unlock()

	_, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{})
	if !errors.Is(err, types.ErrBookingNotPending) {
		t.Fatalf("expected ErrBookingNotPending, got %v", err)
	}
}

func TestStartMatching_NoDrivers(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()

	res, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{})
	if !errors.Is(err, types.ErrNoDriversAvailable) {
		t.Fatalf("expected ErrNoDriversAvailable, got %v", err)
	}
	if res == nil || res.MetricID.IsZero() {
		t.Fatalf("the failed attempt must still expose its metric id")
	}

	m := w.metric(booking.ID)
	if m.FinalStatus != types.MetricTimeout {
		t.Fatalf("empty attempt must finish as timeout, got %s", m.FinalStatus)
	}
	if len(w.alerts) != 1 || w.alerts[0].Kind != types.AlertLowAvailability {
		t.Fatalf("admin must get a low availability alert")
	}
	if len(w.messagesTo(booking.CustomerID)) != 1 {
		t.Fatalf("customer must hear that no driver was found")
	}
	if w.booking(booking.ID).Status != types.BookingPending {
		t.Fatalf("the booking itself must stay pending")
	}
}

func TestStartMatching_FailedDeliveryKeepsOfferOpen(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)
	w.mu.Lock()
	w.deliverFail[drivers[1]] = errors.New("broker unreachable")
	w.mu.Unlock()

	res, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{})
	if err != nil {
		t.Fatalf("delivery failures must not fail the start: %v", err)
	}
	if res.NotifiedCount != 2 || len(res.Errors) != 1 {
		t.Fatalf("expected 2 notified with 1 delivery error, got %d/%d", res.NotifiedCount, len(res.Errors))
	}
	if w.notif(booking.ID, drivers[1]).Outcome != types.OutcomePending {
		t.Fatalf("failed delivery must leave the offer pending")
	}
	if w.metric(booking.ID).TotalNotified != 2 {
		t.Fatalf("the attempt counts every recorded offer")
	}
	dTimers, _ := w.timers.counts()
	if dTimers != 2 {
		t.Fatalf("a timer must guard the undelivered offer, got %d", dTimers)
	}

	// The driver whose message failed may still answer, e.g. over a
	// websocket, and their accept must be honored.
	resp, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[1], Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if resp.Action != types.MatchAssigned {
		t.Fatalf("driver with a failed message must still be able to win, got %s", resp.Action)
	}
}

func TestStartMatching_SelectorErrorClosesAttempt(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	w.mu.Lock()
	w.selectErr = errors.New("driver index unavailable")
	w.mu.Unlock()

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err == nil {
		t.Fatalf("selector failure must surface")
	}

	if got := w.metric(booking.ID).FinalStatus; got != types.MetricTimeout {
		t.Fatalf("attempt must not stay active after a failed start, got %s", got)
	}
}

func TestHandleDriverResponse_AcceptHappyPath(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(3)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	w.clk.Advance(10 * time.Second)
	res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Action != types.MatchAssigned {
		t.Fatalf("expected assigned, got %s", res.Action)
	}
	if res.AssignedDriver == nil || res.AssignedDriver.ID != drivers[0] {
		t.Fatalf("result must carry the winning driver snapshot")
	}

	b := w.booking(booking.ID)
	if b.Status != types.BookingAccepted || *b.AssignedDriverID != drivers[0] {
		t.Fatalf("booking must be accepted by the winner")
	}

	if w.notif(booking.ID, drivers[0]).Outcome != types.OutcomeAccepted {
		t.Fatalf("winner's offer must be accepted")
	}
	for _, id := range drivers[1:] {
		if w.notif(booking.ID, id).Outcome != types.OutcomeSuperseded {
			t.Fatalf("outstanding offers must be superseded")
		}
		msgs := w.messagesTo(id)
		if len(msgs) != 1 {
			t.Fatalf("losing driver must be told the offer is gone")
		}
		if msgs[0].Recipient == "" {
			t.Fatalf("driver message must carry the phone number")
		}
	}

	dTimers, bTimers := w.timers.counts()
	if dTimers != 0 || bTimers != 0 {
		t.Fatalf("all timers must be dropped after a match, got %d/%d", dTimers, bTimers)
	}

	m := w.metric(booking.ID)
	if m.FinalStatus != types.MetricMatched {
		t.Fatalf("metric must be matched, got %s", m.FinalStatus)
	}
	if m.TimeToMatchSeconds == nil || *m.TimeToMatchSeconds != 15 {
		t.Fatalf("time to match counts from booking creation, got %v", m.TimeToMatchSeconds)
	}
	// Search-started message plus the assignment message.
	if len(w.messagesTo(booking.CustomerID)) != 2 {
		t.Fatalf("customer must hear about the assignment")
	}
}

func TestHandleDriverResponse_ConcurrentAcceptsSingleWinner(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(6)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	var wg sync.WaitGroup
	actions := make([]types.MatchAction, len(drivers))
	for i, id := range drivers {
		wg.Add(1)
		go func(i int, id uuid.UUID) {
			defer wg.Done()
			res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
				BookingID: booking.ID, DriverID: id, Response: types.ResponseAccept,
			})
			if err != nil {
				t.Errorf("accept must never error in the race: %v", err)
				return
			}
			actions[i] = res.Action
		}(i, id)
	}
	wg.Wait()

	var assigned, taken int
	for _, a := range actions {
		switch a {
		case types.MatchAssigned:
			assigned++
		case types.MatchAlreadyTaken:
			taken++
		default:
			t.Fatalf("unexpected action %s", a)
		}
	}
	if assigned != 1 {
		t.Fatalf("exactly one driver must win, got %d", assigned)
	}
	if taken != len(drivers)-1 {
		t.Fatalf("the rest must be told already taken, got %d", taken)
	}

	b := w.booking(booking.ID)
	if b.Status != types.BookingAccepted || b.AssignedDriverID == nil {
		t.Fatalf("booking must end accepted with one driver")
	}
	if w.metric(booking.ID).FinalStatus != types.MetricMatched {
		t.Fatalf("metric must finish exactly once as matched")
	}
}

func TestHandleDriverResponse_RejectionsThenAccept(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(3)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, id := range drivers[:2] {
		res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
			BookingID: booking.ID, DriverID: id, Response: types.ResponseReject,
		})
		if err != nil {
			t.Fatalf("reject: %v", err)
		}
		if res.Action != types.MatchRejected {
			t.Fatalf("expected rejected, got %s", res.Action)
		}
	}

	// Two rejections do not end the attempt while one offer is open.
	if w.metric(booking.ID).FinalStatus != types.MetricActive {
		t.Fatalf("attempt must stay active while an offer is open")
	}

	res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[2], Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.Action != types.MatchAssigned {
		t.Fatalf("last driver must win, got %s", res.Action)
	}

	m := w.metric(booking.ID)
	if m.TotalResponded != 3 {
		t.Fatalf("all three answers must be counted, got %d", m.TotalResponded)
	}
}

func TestHandleDriverResponse_AllRejectExpiresEarly(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	for _, id := range drivers {
		if _, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
			BookingID: booking.ID, DriverID: id, Response: types.ResponseReject,
		}); err != nil {
			t.Fatalf("reject: %v", err)
		}
	}

	m := w.metric(booking.ID)
	if m.FinalStatus != types.MetricTimeout {
		t.Fatalf("exhausted attempt must finish as timeout, got %s", m.FinalStatus)
	}
	if w.booking(booking.ID).Status != types.BookingPending {
		t.Fatalf("booking stays pending when matching fails")
	}
	if len(w.alerts) != 1 || w.alerts[0].Kind != types.AlertBookingTimeout {
		t.Fatalf("admin must hear about the failed attempt")
	}
	if _, bTimers := w.timers.counts(); bTimers != 0 {
		t.Fatalf("booking timer must be dropped on early expiry")
	}
}

func TestHandleDriverResponse_InvalidType(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})

	_, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: uuid.New(), DriverID: uuid.New(), Response: "MAYBE",
	})
	if !errors.Is(err, types.ErrInvalidResponseType) {
		t.Fatalf("expected ErrInvalidResponseType, got %v", err)
	}
}

func TestHandleDriverResponse_NoOfferMeansBookingCancelled(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})

	res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: uuid.New(), DriverID: uuid.New(), Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("unknown offer is not an error: %v", err)
	}
	if res.Action != types.MatchBookingCancelled {
		t.Fatalf("expected booking cancelled, got %s", res.Action)
	}
}

func TestHandleDriverResponse_LateAnswerAfterTimeout(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(1)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	svc.HandleDriverTimeout(context.Background(), booking.ID, drivers[0])

	res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("late answer must not error: %v", err)
	}
	if res.Action != types.MatchAlreadyTaken {
		t.Fatalf("late answer resolves as already taken, got %s", res.Action)
	}
	if w.notif(booking.ID, drivers[0]).Outcome != types.OutcomeTimeout {
		t.Fatalf("timeout outcome must stick")
	}
}

func TestHandleDriverTimeout_AfterAnswerIsNoOp(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseReject,
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	before := w.metric(booking.ID).TotalResponded
	svc.HandleDriverTimeout(context.Background(), booking.ID, drivers[0])

	if got := w.metric(booking.ID).TotalResponded; got != before {
		t.Fatalf("a fired timer after the answer must not double count: %d -> %d", before, got)
	}
	if w.notif(booking.ID, drivers[0]).Outcome != types.OutcomeRejected {
		t.Fatalf("answer outcome must survive the late timer")
	}
}

func TestHandleBookingTimeout_ExpiresAttempt(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	w.clk.Advance(300 * time.Second)
	svc.HandleBookingTimeout(context.Background(), booking.ID)

	m := w.metric(booking.ID)
	if m.FinalStatus != types.MetricTimeout {
		t.Fatalf("attempt must finish as timeout, got %s", m.FinalStatus)
	}
	for _, id := range drivers {
		if w.notif(booking.ID, id).Outcome != types.OutcomeTimeout {
			t.Fatalf("open offers must expire with the booking")
		}
	}
	if w.booking(booking.ID).Status != types.BookingPending {
		t.Fatalf("timeout does not cancel the booking")
	}
	if len(w.alerts) != 1 || w.alerts[0].Kind != types.AlertBookingTimeout {
		t.Fatalf("admin must get one timeout alert")
	}
	dTimers, bTimers := w.timers.counts()
	if dTimers != 0 || bTimers != 0 {
		t.Fatalf("timers must be gone after expiry")
	}

	// A second fire must be a no-op.
	svc.HandleBookingTimeout(context.Background(), booking.ID)
	if len(w.alerts) != 1 {
		t.Fatalf("repeated timeout must not alert twice")
	}
}

func TestCancelMatching_WithdrawsOffersAndTimers(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.CancelMatching(context.Background(), booking.ID, "customer changed plans"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	b := w.booking(booking.ID)
	if b.Status != types.BookingCancelled {
		t.Fatalf("booking must be cancelled, got %s", b.Status)
	}
	if b.CancellationReason == nil || *b.CancellationReason != "customer changed plans" {
		t.Fatalf("cancellation reason must be stored")
	}
	if w.metric(booking.ID).FinalStatus != types.MetricCancelled {
		t.Fatalf("metric must finish as cancelled")
	}
	for _, id := range drivers {
		if w.notif(booking.ID, id).Outcome != types.OutcomeTimeout {
			t.Fatalf("open offers must expire on cancel, got %s", w.notif(booking.ID, id).Outcome)
		}
		msgs := w.messagesTo(id)
		if len(msgs) != 1 {
			t.Fatalf("each notified driver must hear the cancellation")
		}
		if msgs[0].Recipient == "" {
			t.Fatalf("cancellation message must carry the phone number")
		}
	}
	if len(w.alerts) != 0 {
		t.Fatalf("a customer cancel must not alert the admin")
	}
	dTimers, bTimers := w.timers.counts()
	if dTimers != 0 || bTimers != 0 {
		t.Fatalf("timers must be dropped on cancel")
	}

	// Cancelling again is a clean no-op.
	if err := svc.CancelMatching(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("repeated cancel must succeed: %v", err)
	}
	if w.metric(booking.ID).FinalStatus != types.MetricCancelled {
		t.Fatalf("repeated cancel must not touch the metric")
	}
}

func TestCancelMatching_ThenAcceptReturnsBookingCancelled(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	w.clk.Advance(10 * time.Second)
	if err := svc.CancelMatching(context.Background(), booking.ID, "changed plans"); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseAccept,
	})
	if err != nil {
		t.Fatalf("late accept must not error: %v", err)
	}
	if res.Action != types.MatchBookingCancelled {
		t.Fatalf("accept after cancel must report the cancellation, got %s", res.Action)
	}
	if w.booking(booking.ID).Status != types.BookingCancelled {
		t.Fatalf("the booking must stay cancelled")
	}
}

func TestCancelMatching_AfterMatchIsNoOp(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(1)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseAccept,
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	if err := svc.CancelMatching(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("cancel after match must succeed: %v", err)
	}
	if w.booking(booking.ID).Status != types.BookingAccepted {
		t.Fatalf("matched booking must not be cancelled by the matching API")
	}
	if w.metric(booking.ID).FinalStatus != types.MetricMatched {
		t.Fatalf("matched metric must not be overwritten")
	}
}

func TestRecoverPending_RearmsRemainingWindows(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Simulate a restart: in-memory timers are gone, records survive.
	w.timers.ClearAllTimeouts()
	w.clk.Advance(10 * time.Second)

	if err := svc.RecoverPending(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	dTimers, bTimers := w.timers.counts()
	if dTimers != 2 || bTimers != 1 {
		t.Fatalf("recovery must re-arm every open window, got %d/%d", dTimers, bTimers)
	}

	w.timers.mu.Lock()
	remaining := w.timers.driverTimers[notifKey{booking.ID, drivers[0]}]
	bookingRemaining := w.timers.bookingTimers[booking.ID]
	w.timers.mu.Unlock()
	if remaining != 20*time.Second {
		t.Fatalf("driver window must shrink by the downtime, got %s", remaining)
	}
	if bookingRemaining != 290*time.Second {
		t.Fatalf("booking window must shrink by the downtime, got %s", bookingRemaining)
	}
}

func TestRecoverPending_ExpiresPassedWindows(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	w.timers.ClearAllTimeouts()
	w.clk.Advance(400 * time.Second)

	if err := svc.RecoverPending(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	if w.metric(booking.ID).FinalStatus != types.MetricTimeout {
		t.Fatalf("attempt whose window passed during downtime must expire")
	}
	dTimers, bTimers := w.timers.counts()
	if dTimers != 0 || bTimers != 0 {
		t.Fatalf("nothing must stay armed for an expired attempt")
	}
}

func TestRecoverPending_SkipsFinishedAttempts(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	w.seedDrivers(1)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.CancelMatching(context.Background(), booking.ID, ""); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	w.timers.ClearAllTimeouts()
	if err := svc.RecoverPending(context.Background()); err != nil {
		t.Fatalf("recover: %v", err)
	}

	dTimers, bTimers := w.timers.counts()
	if dTimers != 0 || bTimers != 0 {
		t.Fatalf("finished attempts must not be re-armed")
	}
}

func TestStatus_ReturnsSnapshot(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()
	drivers := w.seedDrivers(2)

	if _, err := svc.StartMatching(context.Background(), booking.ID, StartOptions{}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.HandleDriverResponse(context.Background(), models.DriverResponse{
		BookingID: booking.ID, DriverID: drivers[0], Response: types.ResponseAccept,
	}); err != nil {
		t.Fatalf("accept: %v", err)
	}

	status, err := svc.Status(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.BookingStatus != types.BookingAccepted {
		t.Fatalf("status must reflect the booking, got %s", status.BookingStatus)
	}
	if status.AssignedDriver == nil || *status.AssignedDriver != drivers[0] {
		t.Fatalf("status must name the winner")
	}
	if len(status.Notifications) != 2 {
		t.Fatalf("status must list every offer, got %d", len(status.Notifications))
	}
	if status.Metric == nil || status.Metric.FinalStatus != types.MetricMatched {
		t.Fatalf("status must carry the attempt record")
	}
}

func TestStatus_BeforeMatchingStarted(t *testing.T) {
	w := newWorld()
	svc := w.newService(Config{})
	booking := w.seedBooking()

	status, err := svc.Status(context.Background(), booking.ID)
	if err != nil {
		t.Fatalf("status without an attempt must work: %v", err)
	}
	if status.Metric != nil {
		t.Fatalf("no attempt means no metric in the snapshot")
	}
}

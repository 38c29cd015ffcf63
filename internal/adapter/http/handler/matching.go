package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/auth"
	"github.com/Temutjin2k/driver-match-system/internal/service/matching"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
	"github.com/Temutjin2k/driver-match-system/pkg/validator"
)

type MatchingService interface {
	StartMatching(ctx context.Context, bookingID uuid.UUID, opts matching.StartOptions) (*models.StartResult, error)
	HandleDriverResponse(ctx context.Context, resp models.DriverResponse) (*models.ResponseResult, error)
	CancelMatching(ctx context.Context, bookingID uuid.UUID, reason string) error
	Status(ctx context.Context, bookingID uuid.UUID) (*models.MatchingStatus, error)
}

type Matching struct {
	service MatchingService
	l       logger.Logger
}

func NewMatching(service MatchingService, l logger.Logger) *Matching {
	return &Matching{
		service: service,
		l:       l,
	}
}

// Start godoc
// @Summary      Start matching
// @Description  Broadcasts ride offers to every eligible driver for a pending booking
// @Tags         Matching
// @Accept       json
// @Produce      json
// @Param        request body dto.StartMatchingRequest true "Booking to match"
// @Success      201  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      409  {object}  map[string]any
// @Router       /matching/start [post]
func (h *Matching) Start(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "start_matching")

	var req dto.StartMatchingRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	bookingID, _ := uuid.Parse(req.BookingID)

	result, err := h.service.StartMatching(ctx, bookingID, req.ToOptions())
	if err != nil {
		if errors.Is(err, types.ErrNoDriversAvailable) {
			response := envelope{
				"success":             false,
				"drivers_notified":    0,
				"driver_ids":          []string{},
				"errors":              []string{},
				"matching_metrics_id": result.MetricID,
				"message":             "no eligible drivers available",
			}
			if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
				internalErrorResponse(w, err.Error())
			}
			return
		}
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to start matching", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	driverIDs := make([]string, 0, len(result.DriverIDs))
	for _, id := range result.DriverIDs {
		driverIDs = append(driverIDs, id.String())
	}
	deliveryErrors := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		deliveryErrors = append(deliveryErrors, e.Error())
	}

	response := envelope{
		"success":             true,
		"drivers_notified":    result.NotifiedCount,
		"driver_ids":          driverIDs,
		"errors":              deliveryErrors,
		"matching_metrics_id": result.MetricID,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "matching started", "booking_id", bookingID, "drivers_notified", result.NotifiedCount)
}

// Respond godoc
// @Summary      Driver response
// @Description  Resolves a driver's ACCEPT or REJECT answer to an outstanding offer
// @Tags         Matching
// @Accept       json
// @Produce      json
// @Param        request body dto.DriverResponseRequest true "Driver answer"
// @Success      200  {object}  map[string]any
// @Failure      400  {object}  map[string]any
// @Failure      401  {object}  map[string]any
// @Router       /matching/response [post]
func (h *Matching) Respond(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_response")

	var req dto.DriverResponseRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	resp := req.ToModel()

	// The bearer token must belong to the responding driver.
	if claims := auth.ClaimsFromContext(ctx); claims != nil && claims.DriverID != resp.DriverID {
		h.l.Warn(ctx, "driver id does not match token")
		errorResponse(w, http.StatusForbidden, "token does not belong to this driver")
		return
	}

	result, err := h.service.HandleDriverResponse(ctx, resp)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to handle driver response", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	response := envelope{
		"success": true,
		"action":  result.Action,
		"message": actionMessage(result.Action),
	}
	if result.AssignedDriver != nil {
		response["driver"] = result.AssignedDriver
	}

	if err := writeJSON(w, http.StatusOK, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver response handled", "action", result.Action)
}

// Cancel godoc
// @Summary      Cancel matching
// @Description  Stops an active matching attempt and withdraws outstanding offers
// @Tags         Matching
// @Accept       json
// @Produce      json
// @Param        request body dto.CancelMatchingRequest true "Booking to cancel"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /matching/cancel [post]
func (h *Matching) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_matching")

	var req dto.CancelMatchingRequest
	if err := readJSON(w, r, &req); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to read request JSON data", err)
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	v := validator.New()
	req.Validate(v)
	if !v.Valid() {
		h.l.Warn(ctx, "invalid request data")
		failedValidationResponse(w, v.Errors)
		return
	}

	bookingID, _ := uuid.Parse(req.BookingID)

	if err := h.service.CancelMatching(ctx, bookingID, req.Reason); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to cancel matching", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"success": true}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "matching cancelled", "booking_id", bookingID)
}

// Status godoc
// @Summary      Matching status
// @Description  Returns the booking snapshot with its offers and attempt metrics
// @Tags         Matching
// @Produce      json
// @Param        booking_id path string true "Booking ID"
// @Success      200  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /matching/status/{booking_id} [get]
func (h *Matching) Status(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "matching_status")

	bookingID, err := uuid.Parse(r.PathValue("booking_id"))
	if err != nil {
		h.l.Warn(ctx, "invalid booking uuid format")
		errorResponse(w, http.StatusBadRequest, "invalid booking uuid format")
		return
	}

	status, err := h.service.Status(ctx, bookingID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to get matching status", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	if err := writeJSON(w, http.StatusOK, envelope{"status": status}, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}
}

func actionMessage(action types.MatchAction) string {
	switch action {
	case types.MatchAssigned:
		return "You have been assigned to this ride"
	case types.MatchRejected:
		return "Your rejection has been recorded"
	case types.MatchAlreadyTaken:
		return "This ride has already been taken"
	case types.MatchBookingCancelled:
		return "This booking is no longer active"
	default:
		return ""
	}
}

package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/handler/dto"
	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
	"github.com/Temutjin2k/driver-match-system/pkg/validator"
)

type TokenService interface {
	IssueDriverToken(ctx context.Context, driverID uuid.UUID) (string, time.Time, error)
}

type DriverChecker interface {
	Get(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
}

type Auth struct {
	tokens  TokenService
	drivers DriverChecker
	l       logger.Logger
}

func NewAuth(tokens TokenService, drivers DriverChecker, l logger.Logger) *Auth {
	return &Auth{
		tokens:  tokens,
		drivers: drivers,
		l:       l,
	}
}

// DriverToken godoc
// @Summary      Issue driver token
// @Description  Issues a bearer token a driver uses on the response endpoint and the websocket channel
// @Tags         Auth
// @Accept       json
// @Produce      json
// @Param        request body dto.DriverTokenRequest true "Driver"
// @Success      201  {object}  map[string]any
// @Failure      404  {object}  map[string]any
// @Router       /auth/driver/token [post]
func (h *Auth) DriverToken(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "issue_driver_token")

	var req dto.DriverTokenRequest
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

	driverID, _ := uuid.Parse(req.DriverID)

	if _, err := h.drivers.Get(ctx, driverID); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "unknown driver", err)
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	token, expiresAt, err := h.tokens.IssueDriverToken(ctx, driverID)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to issue token", err)
		internalErrorResponse(w, err.Error())
		return
	}

	response := envelope{
		"token":      token,
		"expires_at": expiresAt,
	}

	if err := writeJSON(w, http.StatusCreated, response, nil); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to write response", err)
		internalErrorResponse(w, err.Error())
		return
	}

	h.l.Info(ctx, "driver token issued", "driver_id", driverID)
}

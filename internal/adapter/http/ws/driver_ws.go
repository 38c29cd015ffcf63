package wshandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Temutjin2k/driver-match-system/internal/domain/models"
	"github.com/Temutjin2k/driver-match-system/internal/domain/types"
	"github.com/Temutjin2k/driver-match-system/internal/service/auth"
	"github.com/Temutjin2k/driver-match-system/pkg/logger"
	wrap "github.com/Temutjin2k/driver-match-system/pkg/logger/wrapper"
	"github.com/Temutjin2k/driver-match-system/pkg/metrics"
	"github.com/Temutjin2k/driver-match-system/pkg/uuid"
	ws "github.com/Temutjin2k/driver-match-system/pkg/wsHub"
)

const serviceName = "matching-service"

type ResponseHandler interface {
	HandleDriverResponse(ctx context.Context, resp models.DriverResponse) (*models.ResponseResult, error)
}

// DriverHub is the websocket side of the driver channel: offers go out over
// open connections and ACCEPT/REJECT answers come back in.
type DriverHub struct {
	connections *ws.ConnectionHub
	responses   ResponseHandler
	upgrader    websocket.Upgrader
	l           logger.Logger
}

// NewDriverHub builds the hub. The response handler may be nil at
// construction time and wired later with SetResponseHandler, because the
// coordinator and the hub depend on each other.
func NewDriverHub(connHub *ws.ConnectionHub, responses ResponseHandler, l logger.Logger) *DriverHub {
	return &DriverHub{
		connections: connHub,
		responses:   responses,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		l: l,
	}
}

// SetResponseHandler wires the coordinator. Must be called before the
// server starts accepting websocket connections.
func (h *DriverHub) SetResponseHandler(responses ResponseHandler) {
	h.responses = responses
}

// PushOffer delivers an offer to a connected driver. Ok is false when the
// driver has no live connection; the dispatcher then falls back to the
// message queue.
func (h *DriverHub) PushOffer(ctx context.Context, driverID uuid.UUID, offer models.DriverOfferPush) (bool, error) {
	const op = "DriverHub.PushOffer"

	var msg map[string]any
	data, err := json.Marshal(offer)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	if err := h.connections.SendTo(driverID, msg); err != nil {
		if errors.Is(err, ws.ErrConnIsNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// HandleWS upgrades GET /ws/drivers/{driver_id} and listens for answers
// until the driver disconnects.
func (h *DriverHub) HandleWS(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "driver_ws_connect")

	driverID, err := uuid.Parse(r.PathValue("driver_id"))
	if err != nil {
		http.Error(w, "invalid driver uuid format", http.StatusBadRequest)
		return
	}
	ctx = wrap.WithDriverID(ctx, driverID.String())

	if claims := auth.ClaimsFromContext(ctx); claims == nil || claims.DriverID != driverID {
		http.Error(w, "token does not belong to this driver", http.StatusForbidden)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "websocket upgrade failed", err)
		return
	}

	conn := ws.NewConn(context.Background(), driverID, wsConn)
	if err := h.connections.Add(conn); err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to register connection", err)
		conn.Close()
		return
	}
	metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Inc()
	h.l.Info(ctx, "driver connected over websocket")

	defer func() {
		h.connections.Delete(driverID)
		metrics.WebSocketConnectionsGauge.WithLabelValues(serviceName).Dec()
		h.l.Info(ctx, "driver websocket closed")
	}()

	err = conn.Listen(func(msg map[string]any) error {
		h.handleInbound(ctx, conn, driverID, msg)
		return nil
	})
	if err != nil {
		h.l.Debug(ctx, "websocket listen finished", "reason", err.Error())
	}
}

// handleInbound processes one message from a driver. Malformed messages get
// an error frame back; the connection stays open.
func (h *DriverHub) handleInbound(ctx context.Context, conn *ws.Conn, driverID uuid.UUID, msg map[string]any) {
	msgType, _ := msg["type"].(string)
	if msgType != "ride_response" {
		h.sendError(conn, "unknown message type")
		return
	}

	bookingIDStr, _ := msg["booking_id"].(string)
	bookingID, err := uuid.Parse(bookingIDStr)
	if err != nil {
		h.sendError(conn, "invalid booking_id")
		return
	}

	respType, _ := msg["response"].(string)
	if respType != string(types.ResponseAccept) && respType != string(types.ResponseReject) {
		h.sendError(conn, "response must be ACCEPT or REJECT")
		return
	}

	if h.responses == nil {
		h.sendError(conn, "service unavailable")
		return
	}

	result, err := h.responses.HandleDriverResponse(ctx, models.DriverResponse{
		BookingID: bookingID,
		DriverID:  driverID,
		Response:  types.DriverResponseType(respType),
	})
	if err != nil {
		h.l.Error(wrap.ErrorCtx(ctx, err), "failed to handle websocket response", err)
		h.sendError(conn, "could not process response")
		return
	}

	ack := map[string]any{
		"type":       "ride_response_ack",
		"booking_id": bookingID.String(),
		"action":     result.Action.String(),
	}
	if result.AssignedDriver != nil {
		ack["driver"] = result.AssignedDriver
	}
	if err := conn.Send(ack); err != nil {
		h.l.Warn(ctx, "failed to send ack", "error", err.Error())
	}
}

func (h *DriverHub) sendError(conn *ws.Conn, message string) {
	_ = conn.Send(map[string]any{
		"type":  "error",
		"error": message,
	})
}

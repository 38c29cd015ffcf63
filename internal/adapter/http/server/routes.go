package server

import (
	"net/http"

	"github.com/Temutjin2k/driver-match-system/internal/adapter/http/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
)

// setupRoutes - setups http routes
func setupRoutes(mux *http.ServeMux, routes *handlers, m *middleware.Middleware, serviceName string) {
	// System Health
	mux.HandleFunc("/health", routes.health.HealthCheck)

	// Swagger UI endpoint
	mux.HandleFunc("/swagger/", httpSwagger.Handler(httpSwagger.InstanceName("matching")))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	// Matching flow. Start and cancel come from trusted internal callers;
	// the response endpoint and the websocket channel require a driver token.
	mux.HandleFunc("POST /matching/start", routes.matching.Start)                       // Broadcast offers for a booking
	mux.Handle("POST /matching/response", m.RequireDriver(routes.matching.Respond))     // Driver accepts or rejects
	mux.HandleFunc("POST /matching/cancel", routes.matching.Cancel)                     // Cancel an active attempt
	mux.HandleFunc("GET /matching/status/{booking_id}", routes.matching.Status)         // Attempt snapshot
	mux.Handle("GET /ws/drivers/{driver_id}", m.RequireDriver(routes.driverWS.HandleWS)) // WebSocket connection for drivers

	// Driver token issuance
	mux.HandleFunc("POST /auth/driver/token", routes.auth.DriverToken)
}

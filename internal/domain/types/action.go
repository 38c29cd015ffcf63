package types

// Log context action tags.
const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionDatabaseTransactionFailed = "database_transaction_failed"

	ActionStartMatching  = "start_matching"
	ActionDriverResponse = "driver_response"
	ActionCancelMatching = "cancel_matching"
	ActionDriverTimeout  = "driver_timeout"
	ActionBookingTimeout = "booking_timeout"
	ActionRecoverPending = "recover_pending"
)

package errors

// Common error codes
const (
	// System errors
	ErrInternal        ErrorCode = "internal_error"
	ErrInvalidArgument ErrorCode = "invalid_argument"
	ErrUnavailable     ErrorCode = "service_unavailable"
	ErrAlreadyRunning  ErrorCode = "already_running"

	// Configuration errors
	ErrInvalidConfig   ErrorCode = "invalid_configuration"
	ErrMissingConfig   ErrorCode = "missing_configuration"
	ErrReadConfig      ErrorCode = "read_config_failed"
	ErrInvalidInterval ErrorCode = "invalid_interval"

	// Logging errors
	ErrInvalidLogLevel ErrorCode = "invalid_log_level"

	// Initialization errors
	ErrInitFailed     ErrorCode = "initialization_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Resource errors
	ErrResourceExhausted ErrorCode = "resource_exhausted"

	// Operation errors
	ErrOperationFailed  ErrorCode = "operation_failed"
	ErrTimeout          ErrorCode = "operation_timeout"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Sampling errors
	ErrSensorRead      ErrorCode = "sensor_read_failed"
	ErrChannelDegraded ErrorCode = "sensor_channel_degraded"

	// Storage errors
	ErrStorageWrite    ErrorCode = "storage_write_failed"
	ErrStorageFlush    ErrorCode = "storage_flush_failed"
	ErrStorageDegraded ErrorCode = "storage_degraded"

	// Telemetry errors
	ErrNotConnected  ErrorCode = "publish_not_connected"
	ErrConnectFailed ErrorCode = "connect_failed"
	ErrPublishFailed ErrorCode = "publish_failed"
	ErrRetryExceeded ErrorCode = "publish_retry_exceeded"

	// Application errors
	ErrInitApp  ErrorCode = "init_app_failed"
	ErrMainLoop ErrorCode = "main_loop_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrUnavailable:       "Service unavailable",
	ErrAlreadyRunning:    "Another instance is already running",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrReadConfig:        "Failed to read configuration",
	ErrInvalidInterval:   "Invalid interval value",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrInitFailed:        "Initialization failed",
	ErrShutdownFailed:    "Shutdown failed",
	ErrResourceExhausted: "Resource exhausted",
	ErrOperationFailed:   "Operation failed",
	ErrTimeout:           "Operation timed out",
	ErrInvalidOperation:  "Invalid operation",
	ErrSensorRead:        "Failed to read sensor channel",
	ErrChannelDegraded:   "Sensor channel degraded",
	ErrStorageWrite:      "Failed to write record to storage",
	ErrStorageFlush:      "Failed to flush storage buffer",
	ErrStorageDegraded:   "Storage degraded to memory-only buffering",
	ErrNotConnected:      "Publisher is not connected",
	ErrConnectFailed:     "Failed to connect to broker",
	ErrPublishFailed:     "Failed to publish message",
	ErrRetryExceeded:     "Publish retries exhausted for this interval",
	ErrInitApp:           "Failed to initialize application",
	ErrMainLoop:          "Error in main loop",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}

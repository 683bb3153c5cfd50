package apperror

// Code represents a unique error code for the application
type Code string

// General error codes
const (
	CodeRequiredField   Code = "REQUIRED_FIELD"
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeNotFound        Code = "NOT_FOUND"
	CodeValidationError Code = "VALIDATION_ERROR"

	// Configuration
	CodeConfigurationError Code = "CONFIGURATION_ERROR"

	// External service errors
	CodeServiceTimeout    Code = "SERVICE_TIMEOUT"
	CodeRateLimitExceeded Code = "RATE_LIMIT_EXCEEDED"

	// System errors
	CodeInternalError      Code = "INTERNAL_ERROR"
	CodeUnknownError       Code = "UNKNOWN_ERROR"
	CodeInvariantViolation Code = "INVARIANT_VIOLATION"
)

// Venue errors
const (
	CodeVenueUnavailable    Code = "VENUE_UNAVAILABLE"
	CodeInvalidResponse     Code = "INVALID_RESPONSE"
	CodeInvalidQuote        Code = "INVALID_QUOTE"
	CodeOrderRejected       Code = "ORDER_REJECTED"
	CodeInsufficientBalance Code = "INSUFFICIENT_BALANCE"
	CodeUnparsableMarket    Code = "UNPARSABLE_MARKET"
)

// Execution errors
const (
	CodeAlreadyInFlight  Code = "ALREADY_IN_FLIGHT"
	CodeStaleOpportunity Code = "STALE_OPPORTUNITY"
	CodeInvalidTradeSize Code = "INVALID_TRADE_SIZE"
	CodeGuardUnavailable Code = "GUARD_UNAVAILABLE"
	CodeLockLost         Code = "LOCK_LOST"
	CodeLegTimeout       Code = "LEG_TIMEOUT"
	CodeCancelled        Code = "CANCELLED"
)

// Reporting errors
const (
	CodeNotificationFailed Code = "NOTIFICATION_FAILED"
	CodePublishFailed      Code = "PUBLISH_FAILED"
)

// Circuit breaker errors
const (
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
)

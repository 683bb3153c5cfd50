package apperror

// messages maps error codes to human-readable messages
var messages = map[Code]string{
	CodeRequiredField:   "Required field is missing",
	CodeInvalidInput:    "Invalid input provided",
	CodeInvalidState:    "Invalid state for this operation",
	CodeNotFound:        "Resource not found",
	CodeValidationError: "Validation error",

	CodeConfigurationError: "Configuration error",

	CodeServiceTimeout:    "Venue request timed out",
	CodeRateLimitExceeded: "Venue rate limit exceeded",

	CodeInternalError:      "Internal error",
	CodeUnknownError:       "An unknown error occurred",
	CodeInvariantViolation: "Internal invariant violated",

	CodeVenueUnavailable:    "Venue unreachable",
	CodeInvalidResponse:     "Venue returned an invalid response",
	CodeInvalidQuote:        "Invalid quote data",
	CodeOrderRejected:       "Order rejected by venue",
	CodeInsufficientBalance: "Insufficient balance on venue",
	CodeUnparsableMarket:    "Market title could not be parsed",

	CodeAlreadyInFlight:  "Opportunity already being executed",
	CodeStaleOpportunity: "Opportunity no longer admissible",
	CodeInvalidTradeSize: "Invalid trade size",
	CodeGuardUnavailable: "In-flight guard backend unavailable",
	CodeLockLost:         "In-flight lock expired before release",
	CodeLegTimeout:       "Order leg did not resolve before the join timeout",
	CodeCancelled:        "Execution cancelled before orders were sent",

	CodeNotificationFailed: "Failed to deliver notification",
	CodePublishFailed:      "Failed to publish event",

	CodeCircuitOpen: "Circuit breaker is open",
}

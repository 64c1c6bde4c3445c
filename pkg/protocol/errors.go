package protocol

// ErrorCategory is the `category` field of a system.error frame (spec §7).
type ErrorCategory string

// Error categories.
const (
	CategoryValidation     ErrorCategory = "validation"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryAuthorization  ErrorCategory = "authorization"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryBusiness       ErrorCategory = "business"
	CategoryServer         ErrorCategory = "server"
	CategoryUpstream       ErrorCategory = "upstream"
)

// Well-known error codes referenced throughout the spec.
const (
	CodeUnknownMessageType   = "UNKNOWN_MESSAGE_TYPE"
	CodeInvalidPayload       = "INVALID_PAYLOAD"
	CodeInvalidState         = "INVALID_STATE"
	CodeMessageError         = "MESSAGE_ERROR"
	CodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	CodeHandlerError         = "HANDLER_ERROR"
	CodeItemLoadFailed       = "ITEM_LOAD_FAILED"
	CodeUpstreamUnavailable  = "UPSTREAM_UNAVAILABLE"
	CodeUnauthenticatedSig   = "UNAUTHENTICATED_SIGNATURE"
	CodeUnauthenticatedExp   = "UNAUTHENTICATED_EXPIRED"
	CodeUnauthenticatedIss   = "UNAUTHENTICATED_ISSUER"
	CodeUnauthenticatedAud   = "UNAUTHENTICATED_AUDIENCE"
	CodeUnauthenticatedMal   = "UNAUTHENTICATED_MALFORMED"
)

// ErrorPayload is the payload of a system.error message.
type ErrorPayload struct {
	Category      ErrorCategory `json:"category"`
	Code          string        `json:"code"`
	Message       string        `json:"message,omitempty"`
	IsRetryable   bool          `json:"isRetryable"`
	ValidationErrors []string   `json:"validationErrors,omitempty"`
	RetryAfterMs  int64         `json:"retryAfterMs,omitempty"`
}

// NewError builds a system.error Message.
func NewError(conversationID string, category ErrorCategory, code string, retryable bool, detail string) (Message, error) {
	return New(TypeSystemError, conversationID, ErrorPayload{
		Category:    category,
		Code:        code,
		Message:     detail,
		IsRetryable: retryable,
	})
}

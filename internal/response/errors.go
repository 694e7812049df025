package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"
	ErrTokenRevoked       ErrCode = "TOKEN_REVOKED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrNotQuizOwner ErrCode = "NOT_QUIZ_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"
	ErrEmailTaken     ErrCode = "EMAIL_TAKEN"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrGenerationFailed   ErrCode = "GENERATION_FAILED"
	ErrShareCodeExhausted ErrCode = "SHARE_CODE_EXHAUSTED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Invalid email or password"
	case ErrTokenRequired:
		return "Authentication token missing"
	case ErrTokenInvalid:
		return "Authentication token is invalid"
	case ErrTokenExpired:
		return "Authentication token has expired"
	case ErrTokenRevoked:
		return "Authentication token has been revoked"

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrNotQuizOwner:
		return "Only the quiz creator can modify this quiz"

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed, please check your input"
	case ErrInvalidID:
		return "Invalid ID format"
	case ErrInvalidPayload:
		return "Invalid request payload"
	case ErrEmailTaken:
		return "User already exists"

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrGenerationFailed:
		return "Failed to generate quiz"
	case ErrShareCodeExhausted:
		return "Could not allocate a unique share code, please retry"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests, please try again later"

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Internal server error"
	default:
		return "An unexpected error occurred"
	}
}

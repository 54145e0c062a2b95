package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
	ErrCodeMessagingError     ErrorCode = "COMMON_017"
)

// Aliases
const (
	CodeInternal       = ErrCodeInternal
	CodeInvalidParam   = ErrCodeBadRequest
	CodeUnauthorized   = ErrCodeUnauthorized
	CodeForbidden      = ErrCodeForbidden
	CodeNotFound       = ErrCodeNotFound
	CodeConflict       = ErrCodeConflict
	CodeRateLimit      = ErrCodeTooManyRequests
	CodeNotImplemented = ErrCodeNotImplemented
	CodeCacheError     = ErrCodeCacheError
	CodeOK             = ErrorCode("OK")
	CodeUnknown        = ErrorCode("UNKNOWN")
)

// Fleet (entity store) Error Codes
const (
	ErrCodeTrackerNotFound    ErrorCode = "FLT_001"
	ErrCodeFacilityNotFound   ErrorCode = "FLT_002"
	ErrCodeAlertNotFound      ErrorCode = "FLT_003"
	ErrCodeAlertAlreadyClosed ErrorCode = "FLT_004"
	ErrCodeInvalidEntityKind  ErrorCode = "FLT_005"
)

// Map (clustering, selection, highlight) Error Codes
const (
	ErrCodeViewportInvalid   ErrorCode = "MAP_001"
	ErrCodeCameraUnavailable ErrorCode = "MAP_002"
	ErrCodeSelectionStale    ErrorCode = "MAP_003"
	ErrCodeHighlightEmpty    ErrorCode = "MAP_004"
)

// Query Engine Error Codes
const (
	ErrCodeQueryEmpty           ErrorCode = "QRY_001"
	ErrCodeQueryRemoteFailed    ErrorCode = "QRY_002"
	ErrCodeQueryRemoteMalformed ErrorCode = "QRY_003"
	ErrCodeQueryRemoteNoSignal  ErrorCode = "QRY_004"
	ErrCodeQueryContextFailed   ErrorCode = "QRY_005"
	ErrCodeQueryTimeout         ErrorCode = "QRY_006"
)

// Ingestion Error Codes
const (
	ErrCodeIngestDecodeFailed  ErrorCode = "ING_001"
	ErrCodeIngestSourceFailed  ErrorCode = "ING_002"
	ErrCodeIngestUnknownTarget ErrorCode = "ING_003"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeNotImplemented:     http.StatusNotImplemented,
	ErrCodeMessagingError:     http.StatusInternalServerError,

	ErrCodeTrackerNotFound:    http.StatusNotFound,
	ErrCodeFacilityNotFound:   http.StatusNotFound,
	ErrCodeAlertNotFound:      http.StatusNotFound,
	ErrCodeAlertAlreadyClosed: http.StatusConflict,
	ErrCodeInvalidEntityKind:  http.StatusBadRequest,

	ErrCodeViewportInvalid:   http.StatusBadRequest,
	ErrCodeCameraUnavailable: http.StatusServiceUnavailable,
	ErrCodeSelectionStale:    http.StatusNotFound,
	ErrCodeHighlightEmpty:    http.StatusBadRequest,

	ErrCodeQueryEmpty:           http.StatusBadRequest,
	ErrCodeQueryRemoteFailed:    http.StatusBadGateway,
	ErrCodeQueryRemoteMalformed: http.StatusBadGateway,
	ErrCodeQueryRemoteNoSignal:  http.StatusBadGateway,
	ErrCodeQueryContextFailed:   http.StatusBadGateway,
	ErrCodeQueryTimeout:         http.StatusGatewayTimeout,

	ErrCodeIngestDecodeFailed:  http.StatusBadRequest,
	ErrCodeIngestSourceFailed:  http.StatusServiceUnavailable,
	ErrCodeIngestUnknownTarget: http.StatusNotFound,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeNotImplemented:     "not implemented",
	ErrCodeMessagingError:     "messaging error",

	ErrCodeTrackerNotFound:    "tracker not found",
	ErrCodeFacilityNotFound:   "facility not found",
	ErrCodeAlertNotFound:      "alert not found",
	ErrCodeAlertAlreadyClosed: "alert already resolved",
	ErrCodeInvalidEntityKind:  "unknown entity kind",

	ErrCodeViewportInvalid:   "invalid viewport",
	ErrCodeCameraUnavailable: "map camera unavailable",
	ErrCodeSelectionStale:    "selection target no longer exists",
	ErrCodeHighlightEmpty:    "highlight requires at least one id",

	ErrCodeQueryEmpty:           "question must not be empty",
	ErrCodeQueryRemoteFailed:    "remote reasoning call failed",
	ErrCodeQueryRemoteMalformed: "remote reasoning payload malformed",
	ErrCodeQueryRemoteNoSignal:  "remote reasoning returned no answer",
	ErrCodeQueryContextFailed:   "context enrichment failed",
	ErrCodeQueryTimeout:         "remote reasoning timed out",

	ErrCodeIngestDecodeFailed:  "failed to decode ingestion record",
	ErrCodeIngestSourceFailed:  "ingestion source unavailable",
	ErrCodeIngestUnknownTarget: "ingestion record references unknown entity",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 1 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

//Personal.AI order the ending

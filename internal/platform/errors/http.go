package errors

import (
	"errors"
	"net/http"
)

// HTTPStatus maps a domain error to an HTTP status code for handler
// responses. Semantic purchase rejections stay 200 at the transport layer;
// this mapping covers the errors that do surface to callers.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	switch GetCode(err) {
	case CodePayloadInvalidJSON:
		return http.StatusBadRequest
	case CodeTriggerGrantInvalid, CodeTriggerGrantExpired:
		return http.StatusUnauthorized
	case CodeStorageUnavailable, CodeInternal, CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetMetadata extracts metadata from an error if present.
// Returns nil if the error is not a domain error or has no metadata.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}

package errcodes

import (
	"fmt"
	"net/http"
)

type Error struct {
	HTTPCode int
	Message  string
	Code     string
}

func (err *Error) Error() string {
	return err.Message
}

func (err *Error) As(target interface{}) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	te.HTTPCode = err.HTTPCode
	te.Message = err.Message
	te.Code = err.Code
	return true
}

func (err *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return te.HTTPCode == err.HTTPCode &&
		te.Message == err.Message &&
		te.Code == err.Code
}

// Unauthorized returns a 401 error.
func Unauthorized(msg string) error {
	return &Error{
		http.StatusUnauthorized,
		msg,
		"unauthorized",
	}
}

// Forbidden returns a 403 error with a message indicating the action is
// forbidden.
func Forbidden(action string) error {
	return &Error{
		http.StatusForbidden,
		action + " is not allowed.",
		"forbidden",
	}
}

// NotFound returns a 404 error with a message indicating the given resource.
func NotFound(resource string) error {
	return &Error{
		http.StatusNotFound,
		resource + " not found.",
		"not_found",
	}
}

func UnknownParameter(param string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Unknown Parameter %q", param),
		"unknown_parameter",
	}
}

func ValidationTypeError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_type_error",
	}
}

func ValidationError(msg string) error {
	return &Error{
		http.StatusUnprocessableEntity,
		msg,
		"validation_error",
	}
}

func MalformedPayload() error {
	return &Error{
		http.StatusBadRequest,
		"Malformed Payload",
		"malformed_payload",
	}
}

func EmptyRequestBody() error {
	return &Error{
		http.StatusBadRequest,
		"Request body can't be empty.",
		"empty_request_body",
	}
}

// VersionConflict returns a 409 error for a versioned update whose base
// version no longer matches the stored row.
func VersionConflict(resource string) error {
	return &Error{
		http.StatusConflict,
		resource + " was modified by someone else. Refresh and retry.",
		"version_conflict",
	}
}

// BatchTooLarge returns a 422 error for sync requests whose change list
// exceeds the configured ceiling. Oversized batches are rejected up front
// rather than aborted mid-apply.
func BatchTooLarge(limit int) error {
	return &Error{
		http.StatusUnprocessableEntity,
		fmt.Sprintf("Sync batch exceeds the maximum of %d changes.", limit),
		"batch_too_large",
	}
}

// TransientStorage returns a 503 error for an unexpected storage failure
// during a sync apply. The whole batch was rolled back and it is safe for the
// client to retry the identical request.
func TransientStorage() error {
	return &Error{
		http.StatusServiceUnavailable,
		"Temporary storage failure. Retry the same request.",
		"transient_storage_error",
	}
}

package usecase

import (
	"errors"
	"fmt"
)

// エラー種別（machine-readable）。handlerはこのcodeをそのままJSONで返す。
const (
	CodeInvalidInput      = "invalid_input"
	CodeNotFound          = "not_found"
	CodeInsufficientStock = "insufficient_stock"
	CodeConflict          = "conflict"
	CodeBackendFailure    = "backend_failure"
	CodeUnauthorized      = "unauthorized"
	CodeForbidden         = "forbidden"
)

type HTTPError struct {
	Status  int
	Code    string
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
}

func NewHTTPError(status int, code string, message string) error {
	return &HTTPError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

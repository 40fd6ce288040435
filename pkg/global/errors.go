package global

import (
	"errors"
	"net/http"
)

// Error taxonomy shared by every component. Classify with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNetwork    = errors.New("network error")
	ErrAuth       = errors.New("authentication required")
	ErrStorage    = errors.New("storage error")
	ErrNotFound   = errors.New("not found")
)

// ServiceError wraps a taxonomy sentinel with the message shown to the shopper.
type ServiceError struct {
	Err     error
	Message string
	Code    string
	// Status overrides the HTTP status HTTPStatus would pick.
	Status int
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func NewServiceError(err error, message, code string) *ServiceError {
	return &ServiceError{Err: err, Message: message, Code: code}
}

// UserMessage returns the text a shopper should see for err.
func UserMessage(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	var ve ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	switch {
	case errors.Is(err, ErrAuth):
		return "Tu sesión ha expirado. Inicia sesión nuevamente."
	case errors.Is(err, ErrNetwork):
		return "No se pudo conectar con el servidor."
	case errors.Is(err, ErrNotFound):
		return "No encontrado."
	}
	return err.Error()
}

// HTTPStatus maps err onto the status used by the router.
func HTTPStatus(err error) int {
	var se *ServiceError
	if errors.As(err, &se) && se.Status != 0 {
		return se.Status
	}
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrNetwork):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// Package errors define los errores OAuth que el proxy sintetiza localmente.
// Los errores de las regiones nunca pasan por aquí: se relayan verbatim.
package errors

import (
	"fmt"
	"net/http"
)

// OAuthError es un error de protocolo RFC 6749 §5.2.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	HTTPStatus  int    `json:"-"` // No se serializa, usado para el header
	Err         error  `json:"-"` // Causa original, solo para logs
}

// Error implementa la interfaz error
func (e *OAuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Description, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Description)
}

// Unwrap permite acceder al error original
func (e *OAuthError) Unwrap() error {
	return e.Err
}

// New crea un nuevo OAuthError
func New(status int, code, description string) *OAuthError {
	return &OAuthError{Code: code, Description: description, HTTPStatus: status}
}

// WithDescription devuelve una COPIA con otra descripción.
func (e *OAuthError) WithDescription(desc string) *OAuthError {
	newErr := *e
	newErr.Description = desc
	return &newErr
}

// WithCause devuelve una COPIA con la causa adjunta.
func (e *OAuthError) WithCause(err error) *OAuthError {
	newErr := *e
	newErr.Err = err
	return &newErr
}

// =================================================================================
// ERRORES PREDEFINIDOS
// =================================================================================

var (
	ErrInvalidRequest = &OAuthError{
		Code:       "invalid_request",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrRequestTooLarge = &OAuthError{
		Code:        "invalid_request",
		Description: "request body too large",
		HTTPStatus:  http.StatusRequestEntityTooLarge,
	}

	ErrTemporarilyUnavailable = &OAuthError{
		Code:        "temporarily_unavailable",
		Description: "too many requests",
		HTTPStatus:  http.StatusTooManyRequests,
	}

	// ErrServerError nunca lleva descripción: no filtramos detalles internos.
	ErrServerError = &OAuthError{
		Code:       "server_error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

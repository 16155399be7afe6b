package errors

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
)

// FromError convierte cualquier error en un OAuthError.
// Lo que no sea *OAuthError se vuelve server_error conservando la causa.
func FromError(err error) *OAuthError {
	var oe *OAuthError
	if stderrors.As(err, &oe) {
		return oe
	}
	return ErrServerError.WithCause(err)
}

// WriteError escribe la respuesta JSON del error.
// Las respuestas de error nunca se cachean.
func WriteError(w http.ResponseWriter, err error) {
	oe := FromError(err)

	resp := struct {
		Code        string `json:"error"`
		Description string `json:"error_description,omitempty"`
	}{Code: oe.Code}
	// server_error es siempre genérico
	if oe.HTTPStatus < http.StatusInternalServerError {
		resp.Description = oe.Description
	}

	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("Cache-Control", "no-store")
	h.Set("Pragma", "no-cache")
	w.WriteHeader(oe.HTTPStatus)
	_ = json.NewEncoder(w).Encode(resp)
}

package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/spigell/nls-advisor/internal/analysis"
	"github.com/spigell/nls-advisor/internal/taxonomy"
)

var (
	errInvalidArgument  = errors.New("invalid argument")
	errNotFound         = errors.New("not found")
	errUnsupportedMedia = errors.New("unsupported media type")
	errTooLarge         = errors.New("request body too large")
	errUnreadable       = errors.New("document could not be read")
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error, details any) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, errInvalidArgument),
		errors.Is(err, taxonomy.ErrUnknownSubject),
		errors.Is(err, taxonomy.ErrUnknownTier):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, errNotFound), errors.Is(err, taxonomy.ErrUnknownCode):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, errUnsupportedMedia):
		code = http.StatusUnsupportedMediaType
		codeStr = "UNSUPPORTED_MEDIA_TYPE"
	case errors.Is(err, errTooLarge):
		code = http.StatusRequestEntityTooLarge
		codeStr = "PAYLOAD_TOO_LARGE"
	case errors.Is(err, errUnreadable):
		code = http.StatusUnprocessableEntity
		codeStr = "UNREADABLE_DOCUMENT"
	case errors.Is(err, analysis.ErrInsufficientInput):
		code = http.StatusUnprocessableEntity
		codeStr = "INSUFFICIENT_INPUT"
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"finanzas/internal/core"
	"finanzas/internal/log"
)

// User-facing messages.
const (
	msgInternal        = "Error interno del servidor"
	msgNotFound        = "Transacción no encontrada"
	msgOwnerRequired   = "Identificador de usuario requerido"
	msgRateLimited     = "Demasiadas solicitudes, inténtalo más tarde"
	msgBodyTooLarge    = "El cuerpo de la solicitud es demasiado grande"
	msgInvalidBody     = "Cuerpo de la solicitud no válido"
	msgInvalidID       = "Identificador no válido"
	msgCreated         = "Transacción creada exitosamente"
	msgUpdated         = "Transacción actualizada exitosamente"
	msgDeleted         = "Transacción eliminada exitosamente"
	msgImportCompleted = "Importación completada"
)

// JSONResponseBuilder collects status, headers and payload and writes them
// in one go, so an encoding failure can still become a clean 500.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

func (b *JSONResponseBuilder) Body(payload any) *JSONResponseBuilder {
	b.payload = payload
	return b
}

func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	var buf bytes.Buffer
	if b.payload != nil {
		if err := json.NewEncoder(&buf).Encode(b.payload); err != nil {
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"` + msgInternal + `"}` + "\n"))
			return
		}
	}
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
	}
	w.WriteHeader(b.statusCode)
	if buf.Len() > 0 {
		_, _ = w.Write(buf.Bytes())
	}
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Body(errorBody{Error: message})
}

func BadRequestError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, message)
}

func UnauthorizedError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, message)
}

func NotFoundError(message string) *JSONResponseBuilder {
	return ErrorResponse(http.StatusNotFound, message)
}

// UnprocessableEntityError names the offending field when there is one.
func UnprocessableEntityError(message, field string) *JSONResponseBuilder {
	return NewJSONResponse().Status(http.StatusUnprocessableEntity).Body(errorBody{Error: message, Field: field})
}

func TooManyRequestsError(retryAfter time.Duration) *JSONResponseBuilder {
	seconds := int(retryAfter.Round(time.Second) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return ErrorResponse(http.StatusTooManyRequests, msgRateLimited).
		Header("Retry-After", strconv.Itoa(seconds))
}

func InternalServerError() *JSONResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, msgInternal)
}

// errorFor maps service errors onto responses. It reports whether err was
// unexpected and so worth logging as an error.
func errorFor(err error) (*JSONResponseBuilder, bool) {
	var (
		formatErr     *core.FormatError
		validationErr *core.ValidationError
		maxBytesErr   *http.MaxBytesError
	)
	switch {
	case errors.As(err, &formatErr):
		return BadRequestError(formatErr.Error()), false
	case errors.As(err, &validationErr):
		return UnprocessableEntityError(validationErr.Error(), validationErr.Field), false
	case errors.As(err, &maxBytesErr):
		return ErrorResponse(http.StatusRequestEntityTooLarge, msgBodyTooLarge), false
	case errors.Is(err, core.ErrNotFound):
		return NotFoundError(msgNotFound), false
	default:
		return InternalServerError(), true
	}
}

// writeError answers with the mapped status and logs what the client does
// not get to see.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp, unexpected := errorFor(err)
	logger := log.FromContext(r.Context())
	if unexpected {
		logger.ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldPath, r.URL.Path,
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeInternal)
	} else {
		logger.DebugContext(r.Context(), "Request rejected",
			log.FieldOperation, op,
			log.FieldError, err)
	}
	resp.Write(w)
}

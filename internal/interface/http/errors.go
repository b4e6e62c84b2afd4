package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/application/batch"
	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/internal/interface/http/handlers"
	"github.com/polos-ead/academic-records/pkg/logger"
)

// statusFor maps a use case error kind to an HTTP status and code.
func statusFor(err error) (int, string) {
	switch {
	case shared.IsNotAllowed(err):
		return http.StatusForbidden, "not_allowed"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case shared.IsAlreadyExists(err):
		return http.StatusConflict, "already_exists"
	case shared.IsConflict(err):
		return http.StatusConflict, "conflict"
	case shared.IsInvalidField(err):
		return http.StatusBadRequest, "invalid_field"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

// writeUseCaseError renders err. Infrastructure failures are logged and
// hidden behind a generic message.
func (s *Server) writeUseCaseError(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		s.requestLogger(c).Error().Err(err).
			Str("path", c.FullPath()).
			Msg("use case failed")
		handlers.WriteError(c, status, handlers.APIError{Code: code, Message: "An unexpected error occurred"})
		return
	}

	apiErr := handlers.APIError{Code: code, Message: err.Error()}

	var rowErr *batch.RowError
	if errors.As(err, &rowErr) {
		apiErr.Row = rowErr.Row
		err = rowErr.Err
	}
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		apiErr.Message = domainErr.Message
		apiErr.Details = domainErr.Domain + "." + domainErr.Op
	}
	handlers.WriteError(c, status, apiErr)
}

// requestLogger returns the request-scoped logger stored by RequestLogger,
// falling back to the server logger tagged with the request ID.
func (s *Server) requestLogger(c *gin.Context) *zerolog.Logger {
	if l := logger.FromContext(c.Request.Context()); l.GetLevel() != zerolog.Disabled {
		return l
	}
	l := s.logger.With().Str("request_id", handlers.RequestIDFrom(c)).Logger()
	return &l
}

// writeBindError renders a malformed request body.
func writeBindError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		handlers.WriteError(c, http.StatusRequestEntityTooLarge, handlers.APIError{
			Code:    "request_too_large",
			Message: "Request body too large",
		})
		return
	}
	handlers.WriteError(c, http.StatusBadRequest, handlers.APIError{
		Code:    "invalid_request",
		Message: "Invalid request body",
		Details: describeBindError(err),
	})
}

package handlers

import (
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polos-ead/academic-records/internal/domain/shared"
	"github.com/polos-ead/academic-records/pkg/logger"
)

// Context keys set by the middleware.
const (
	ContextKeyRequestID = "request_id"
	ContextKeyActor     = "actor"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST ID
// ══════════════════════════════════════════════════════════════════════════════

// RequestID propagates X-Request-ID, generating one when absent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

// RequestIDFrom returns the id set by RequestID.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(ContextKeyRequestID)
}

// ══════════════════════════════════════════════════════════════════════════════
// LOGGING & RECOVERY
// ══════════════════════════════════════════════════════════════════════════════

// RequestLogger logs one line per request and stores a request-scoped logger
// in the request context.
func RequestLogger(base zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqLog := base.With().Str("request_id", RequestIDFrom(c)).Logger()
		c.Request = c.Request.WithContext(logger.WithContext(c.Request.Context(), reqLog))

		c.Next()

		status := c.Writer.Status()
		entry := reqLog.Info()
		if status >= http.StatusInternalServerError {
			entry = reqLog.Error()
		}
		entry.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Dur("took", time.Since(start)).
			Str("ip", c.ClientIP()).
			Str("user_agent", c.Request.UserAgent()).
			Msg("http request")
	}
}

// Recovery turns a panic into a 500 envelope.
func Recovery(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error().
					Interface("panic", rec).
					Str("stack", string(debug.Stack())).
					Str("path", c.Request.URL.Path).
					Str("request_id", RequestIDFrom(c)).
					Msg("panic recovered")
				WriteError(c, http.StatusInternalServerError, APIError{
					Code:    "internal_server_error",
					Message: "An unexpected error occurred",
				})
			}
		}()
		c.Next()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// AUTHENTICATION
// ══════════════════════════════════════════════════════════════════════════════

// Authenticate requires a valid bearer token and stores the actor.
func Authenticate(tokens *TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			WriteError(c, http.StatusUnauthorized, APIError{
				Code:    "unauthorized",
				Message: "Authorization header required",
			})
			return
		}

		actor, err := tokens.Verify(raw)
		if err != nil {
			WriteError(c, http.StatusUnauthorized, APIError{
				Code:    "unauthorized",
				Message: "Invalid token",
			})
			return
		}
		actor.IP = c.ClientIP()

		c.Set(ContextKeyActor, actor)
		c.Next()
	}
}

// ActorFrom returns the authenticated actor. Outside Authenticate it is the
// zero actor, which every guard rejects.
func ActorFrom(c *gin.Context) shared.Actor {
	v, ok := c.Get(ContextKeyActor)
	if !ok {
		return shared.Actor{}
	}
	actor, _ := v.(shared.Actor)
	return actor
}

// RequireRoles rejects actors outside guard before the handler reads the
// body. Use cases check again; this only keeps uploads from unauthorized
// callers out of storage.
func RequireRoles(guard shared.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.Allows(ActorFrom(c)) {
			WriteError(c, http.StatusForbidden, APIError{
				Code:    "not_allowed",
				Message: "Not allowed",
			})
			return
		}
		c.Next()
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ══════════════════════════════════════════════════════════════════════════════
// LIMITS & HEADERS
// ══════════════════════════════════════════════════════════════════════════════

// BodyLimit caps the request body. Reads past the limit fail, which the
// binders report as a bad request.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			WriteError(c, http.StatusRequestEntityTooLarge, APIError{
				Code:    "request_too_large",
				Message: "Request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// SecurityHeaders sets conservative headers on every response.
func SecurityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

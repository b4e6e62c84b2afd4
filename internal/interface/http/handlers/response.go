package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// JSONResponse is the envelope of every JSON body.
type JSONResponse struct {
	Success   bool          `json:"success"`
	Data      any           `json:"data,omitempty"`
	Error     *APIError     `json:"error,omitempty"`
	Meta      *ResponseMeta `json:"meta,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// APIError describes a failed request.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Row     int    `json:"row,omitempty"`
}

// ResponseMeta carries response metadata.
type ResponseMeta struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version,omitempty"`
}

// WriteJSON writes a successful envelope.
func WriteJSON(c *gin.Context, status int, data any) {
	c.JSON(status, JSONResponse{
		Success:   status >= 200 && status < 300,
		Data:      data,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC(), Version: "v1"},
		RequestID: RequestIDFrom(c),
	})
}

// WriteError writes a failed envelope and aborts the chain.
func WriteError(c *gin.Context, status int, apiErr APIError) {
	c.AbortWithStatusJSON(status, JSONResponse{
		Success:   false,
		Error:     &apiErr,
		Meta:      &ResponseMeta{Timestamp: time.Now().UTC()},
		RequestID: RequestIDFrom(c),
	})
}

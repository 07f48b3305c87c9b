package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/timmy/threatforge/internal/logger"
	"github.com/timmy/threatforge/internal/service"
)

// errorResponse is the body of every non-2xx reply.
type errorResponse struct {
	Error string `json:"error"`
}

func abortWithError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrProviderUnavailable), errors.Is(err, service.ErrInvalidFile):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrFileNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrServiceClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes it with the mapped status.
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()

	switch {
	case errors.Is(err, service.ErrFileNotFound):
		msg = "File not found"
	case errors.Is(err, service.ErrInvalidFile):
		msg = strings.TrimPrefix(msg, service.ErrInvalidFile.Error()+": ")
	}

	ctx := c.Request.Context()
	if status >= http.StatusInternalServerError {
		logger.FromContext(ctx).WithError(err).Error("Request failed")
	} else {
		logger.CtxWarn(ctx, "Request rejected: status=%d, error=%v", status, err)
	}
	abortWithError(c, status, msg)
}

// bindError reports a binding or validation failure.
func bindError(c *gin.Context, err error) {
	logger.CtxWarn(c.Request.Context(), "Invalid request: client_ip=%s, error=%v", c.ClientIP(), err)
	abortWithError(c, http.StatusBadRequest, "Invalid request: "+err.Error())
}

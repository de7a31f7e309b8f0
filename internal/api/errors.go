package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/north-cloud/autotagger/internal/domain"
	"github.com/jonesrussell/north-cloud/autotagger/internal/logger"
)

// kindInvalidRequest labels bodies or parameters that failed binding.
const kindInvalidRequest = "invalid_request"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotEnabled):
		return http.StatusConflict
	case errors.Is(err, domain.ErrCredentialsMissing):
		return http.StatusPreconditionFailed
	case errors.Is(err, domain.ErrTransport):
		return http.StatusGatewayTimeout
	case errors.Is(err, domain.ErrProvider), errors.Is(err, domain.ErrInvalidResponse):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrContentNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidSettings):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status and attaches it to the
// gin context so the request log carries it.
func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	} else {
		logger.FromContext(c.Request.Context()).Debug("Request rejected",
			logger.String("kind", domain.Kind(err)),
			logger.Error(err),
		)
	}
	c.JSON(status, ErrorResponse{Kind: domain.Kind(err), Message: err.Error()})
}

// respondBadRequest is for malformed input that never reached a component.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Kind: kindInvalidRequest, Message: message})
}

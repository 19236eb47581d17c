// Package handlers implements the gin handlers of the read-only tree API.
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/xas-miner/pkg/errors"
)

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps an error to its HTTP status.  Server-side failures are
// masked; client errors carry their message and detail.
func writeAppError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)

	resp := ErrorResponse{Code: code.String(), Message: errors.DefaultMessageForCode(code)}
	var appErr *errors.AppError
	if status < http.StatusInternalServerError && stderrors.As(err, &appErr) {
		resp.Message = appErr.Message
		resp.Detail = appErr.Detail
	}
	if code == errors.CodeUnknown {
		resp.Code = errors.ErrCodeInternal.String()
		resp.Message = errors.DefaultMessageForCode(errors.ErrCodeInternal)
	}
	c.AbortWithStatusJSON(status, resp)
}

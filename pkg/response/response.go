package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-cantina-online/pkg/apperror"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Success   bool      `json:"success"`
	Reason    string    `json:"reason"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
}

// JSON writes a success body as-is; resources are not wrapped in an envelope.
func JSON(ctx *gin.Context, status int, body any) {
	if status == 0 {
		status = http.StatusOK
	}
	ctx.JSON(status, body)
}

// Build converts err into the error body without writing it.
func Build(ctx *gin.Context, err error) ErrorResponse {
	ae := apperror.From(err)
	return ErrorResponse{
		Status:    ae.HTTPStatus(),
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Reason:    ae.Reason,
		Message:   ae.Message,
		Details:   ae.Details,
	}
}

// Fail writes err as an error body and aborts the handler chain.
// Internal errors are logged with their cause when a logger is attached to the context.
func Fail(ctx *gin.Context, err error) {
	resp := Build(ctx, err)
	if resp.Status >= http.StatusInternalServerError {
		if l, ok := ctx.Get("logger"); ok {
			if logger, ok := l.(*logrus.Logger); ok {
				logger.WithError(err).WithFields(logrus.Fields{
					"request_id": resp.RequestID,
					"path":       ctx.Request.URL.Path,
				}).Error("request failed")
			}
		}
	}
	ctx.AbortWithStatusJSON(resp.Status, resp)
}

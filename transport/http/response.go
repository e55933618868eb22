package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/fluxauth/core"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusWarning = "warning"
)

// envelope is the body of every response, success or failure.
type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// message is the data of a plain status message.
type message struct {
	Code    int    `json:"code,omitempty"`
	Name    string `json:"name,omitempty"`
	Message string `json:"message"`
}

func respondData(c *gin.Context, data any) {
	c.JSON(http.StatusOK, envelope{Status: statusSuccess, Data: data})
}

func respondMessage(c *gin.Context, status, text string) {
	c.JSON(http.StatusOK, envelope{Status: status, Data: message{Message: text}})
}

// respondError converts err into the error envelope. Failures caused by
// the server side are logged with their cause.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	c.JSON(http.StatusOK, errorEnvelope(c, logger, err))
}

func errorEnvelope(c *gin.Context, logger *slog.Logger, err error) envelope {
	e := core.AsError(err)
	switch e.Kind {
	case core.KindStorage, core.KindDependency:
		logger.ErrorContext(c.Request.Context(), "request failed",
			"path", c.FullPath(), "kind", e.Kind.String(), "error", err)
	default:
		logger.DebugContext(c.Request.Context(), "request rejected",
			"path", c.FullPath(), "kind", e.Kind.String(), "reason", e.Reason)
	}
	return envelope{
		Status: statusError,
		Data:   message{Code: e.Code, Name: e.Tag(), Message: e.Reason},
	}
}

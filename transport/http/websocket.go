package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/layer-3/fluxauth/core"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WaitLogin holds a websocket open until the phrase in the path becomes a
// session or stops being valid.
func (h *Handlers) WaitLogin(c *gin.Context) {
	phrase := c.Param("loginphrase")
	h.serveWait(c, func(ctx context.Context) (any, error) {
		return h.waiter.WaitForSession(ctx, phrase)
	})
}

// WaitSignature holds a websocket open until a signature for the
// identifier in the path is provided.
func (h *Handlers) WaitSignature(c *gin.Context) {
	identifier := c.Param("identifier")
	h.serveWait(c, func(ctx context.Context) (any, error) {
		return h.waiter.WaitForSignature(ctx, identifier)
	})
}

func (h *Handlers) serveWait(c *gin.Context, wait func(ctx context.Context) (any, error)) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.DebugContext(c.Request.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// The client never sends anything; a read error means it went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	result, err := wait(ctx)
	if err != nil && ctx.Err() != nil {
		return
	}

	var (
		payload envelope
		code    = websocket.CloseNormalClosure
	)
	switch {
	case err == nil:
		payload = envelope{Status: statusSuccess, Data: result}
	case errors.Is(err, core.ErrStorage):
		payload = errorEnvelope(c, h.logger, err)
		code = websocket.CloseInternalServerErr
	default:
		payload = errorEnvelope(c, h.logger, err)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(payload); err != nil {
		h.logger.DebugContext(ctx, "websocket write failed", "error", err)
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, ""), time.Now().Add(writeWait))
}

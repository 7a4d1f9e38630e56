package api

import (
	"errors"
	"net/http"
	"time"

	"CryptoSouq/internal/domain/models"
	"CryptoSouq/internal/relay"
	xlogger "CryptoSouq/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// RelayHandler upgrades client connections and bridges them onto the
// hub's per-symbol fan-out.
type RelayHandler struct {
	logger *xlogger.Logger
	hub    *relay.Hub
}

func NewRelayHandler(logger *xlogger.Logger, hub *relay.Hub) *RelayHandler {
	return &RelayHandler{logger: logger, hub: hub}
}

func (h *RelayHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/ws/price/:symbol", h.Stream)
}

// Stream upgrades the connection first and only then validates, so a
// bad symbol can be answered with a proper close frame instead of a
// failed handshake.
func (h *RelayHandler) Stream(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	symbol := c.Param("symbol")
	sub, err := h.hub.Subscribe(c.Request().Context(), symbol)
	if err != nil {
		code := websocket.CloseInternalServerErr
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			code = websocket.ClosePolicyViolation
		}
		h.logger.Warn("ws subscribe rejected",
			xlogger.String("symbol", symbol),
			xlogger.Error(err),
		)
		msg := websocket.FormatCloseMessage(code, err.Error())
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
		return nil
	}
	defer h.hub.Unsubscribe(sub)

	// reader: surfaces the client's close
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-clientGone:
			return nil
		case <-ping.C:
			deadline := time.Now().Add(wsWriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return nil
			}
		case frame, ok := <-sub.C:
			if !ok {
				// upstream died or we were dropped as a slow consumer
				msg := websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "stream closed")
				_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
				return nil
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return nil
			}
		}
	}
}

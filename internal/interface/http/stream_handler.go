package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/sessionbus"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// SessionSubscriber opens a per-principal event subscription.
type SessionSubscriber interface {
	Subscribe(ctx context.Context, userID string) (*sessionbus.Subscription, error)
}

// StreamHandler pushes the caller's session events over a websocket until the
// session ends or the peer goes away.
type StreamHandler struct {
	Bus      SessionSubscriber
	Logger   *logrus.Logger
	upgrader websocket.Upgrader
}

func NewStreamHandler(bus SessionSubscriber, logger *logrus.Logger, allowedOrigins []string) *StreamHandler {
	h := &StreamHandler{Bus: bus, Logger: logger}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// originChecker accepts requests without an Origin header (CLI clients) and
// browser requests from the configured CORS origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// Stream GET /api/auth/session/stream
func (h *StreamHandler) Stream(c *gin.Context) {
	p := middleware.Principal(c)
	if p == nil {
		response.Error[any](c, http.StatusUnauthorized, "unauthorized", nil)
		return
	}
	sub, err := h.Bus.Subscribe(c.Request.Context(), p.ID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("user_id", p.ID).Warn("session subscribe failed")
		}
		response.Error[any](c, http.StatusServiceUnavailable, "session stream unavailable", nil)
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		_ = sub.Close()
		return
	}

	done := make(chan struct{})
	go readPump(conn, done)
	writePump(conn, sub, done)
	_ = sub.Close()
	_ = conn.Close()
}

// readPump discards client frames and keeps the read deadline fresh on pong.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writePump(conn *websocket.Conn, sub *sessionbus.Subscription, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case ev, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Type == entity.SessionSignedOut {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "signed out"))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

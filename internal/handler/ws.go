package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/devaloi/chatrelay/internal/client"
	"github.com/devaloi/chatrelay/internal/protocol"
	"github.com/devaloi/chatrelay/internal/router"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSOptions tune websocket connections.
type WSOptions struct {
	SendBuffer     int
	MaxMessageSize int64
	WriteTimeout   time.Duration
}

// ServeWS handles WebSocket upgrade requests. An optional ?user= query
// parameter subscribes the connection as that (already registered) user.
// Connections end when ctx is cancelled.
func ServeWS(ctx context.Context, r *router.Router, log *slog.Logger, opts WSOptions) httprouter.Handle {
	return func(w http.ResponseWriter, req *http.Request, _ httprouter.Params) {
		user := req.URL.Query().Get("user")

		conn, err := upgrader.Upgrade(w, req, nil)
		if err != nil {
			log.Warn("ws upgrade failed", "error", err)
			return
		}

		c := client.New(r, client.NewWSConn(conn, opts.MaxMessageSize, opts.WriteTimeout), log, opts.SendBuffer)
		if user != "" {
			resp := c.Session().Handle(ctx, protocol.Request{Action: protocol.ActionSubscribe, Username: user})
			if data, err := protocol.Encode(resp); err == nil {
				_ = conn.WriteMessage(websocket.TextMessage, data)
			}
		}
		go c.Run(ctx)
	}
}

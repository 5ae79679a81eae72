package websocket

import (
	"net/http"

	"github.com/ark7/a7router/pkg/web/middleware"
	"github.com/ark7/a7router/pkg/web/router"
	"github.com/gorilla/websocket"
)

// ErrUpgradeRequired is returned by Upgrade for plain HTTP requests
var ErrUpgradeRequired = router.NewHTTPError(http.StatusUpgradeRequired, "UPGRADE_REQUIRED", "Websocket upgrade required")

// Config configures Upgrade
type Config struct {
	// CheckOrigin defaults to the same-origin check of gorilla/websocket
	CheckOrigin func(r *http.Request) bool
	// UserID names the user behind a connection for logging
	UserID func(c *middleware.Context) string
}

// IsUpgrade holds for websocket handshake requests
func IsUpgrade(c *middleware.Context) (bool, error) {
	return c.Request != nil && websocket.IsWebSocketUpgrade(c.Request), nil
}

// Upgrade is a terminal step turning the request into a hub client. It
// blocks until the connection closes.
func Upgrade(hub *Hub, cfg Config) middleware.Step {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     cfg.CheckOrigin,
	}

	return func(c *middleware.Context, _ middleware.Next) error {
		if ok, _ := IsUpgrade(c); !ok {
			c.Writer.Header().Set("Upgrade", "websocket")
			return ErrUpgradeRequired
		}

		var userID string
		if cfg.UserID != nil {
			userID = cfg.UserID(c)
		}

		// Upgrade replies to failed handshakes itself
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return nil
		}

		client := newClient(hub, conn, userID)
		if !hub.add(client) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			conn.Close()
			return nil
		}

		go client.writePump()
		client.readPump()
		return nil
	}
}

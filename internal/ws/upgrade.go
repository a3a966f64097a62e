package ws

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"mzunguko/config"
	"mzunguko/internal/auth"
	"mzunguko/internal/domain"
	"mzunguko/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// UpgradeCircleWS upgrades GET /ws/circles/:id. The token comes in the query
// string (browsers cannot set headers on WebSocket dials), and only circle
// members may subscribe.
func UpgradeCircleWS(cfg *config.JWTConfig, store storage.Store, hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		circleID64, err := strconv.ParseUint(c.Param("id"), 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid circle id"})
			return
		}
		circleID := uint(circleID64)

		token := c.Query("token")
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "token required"})
			return
		}
		claims, err := auth.ParseAccessToken(cfg, token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != domain.RoleAdmin {
			m, err := store.GetMembership(c.Request.Context(), circleID, claims.UserID)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				c.JSON(http.StatusForbidden, gin.H{"error": "not a circle member"})
				return
			case err != nil:
				c.JSON(http.StatusInternalServerError, gin.H{"error": "membership lookup failed"})
				return
			case m.JoinStatus != domain.JoinApproved:
				c.JSON(http.StatusForbidden, gin.H{"error": "not a circle member"})
				return
			}
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		client := &Client{
			UserID:   claims.UserID,
			CircleID: circleID,
			Send:     make(chan []byte, 256),
		}
		hub.Register(client)
		defer client.Close()

		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

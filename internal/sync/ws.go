package sync

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// WSHandler streams round events over a websocket. ?round=<id> limits the
// stream to one round.
func WSHandler(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("[ws] upgrade: %v", err)
			return
		}

		sub := wsSubscriber(ws, c.Query("round"))
		if err := hub.subscribe(sub); err != nil {
			_ = ws.Close()
			return
		}
		defer hub.unsubscribe(sub)
		log.Printf("[ws] %s subscribed", c.ClientIP())

		// Reads only detect the peer going away.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				log.Printf("[ws] %s gone: %v", c.ClientIP(), err)
				return
			}
		}
	}
}

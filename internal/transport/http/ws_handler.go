package http

import (
	"encoding/json"
	"log"
	"net/http"

	"quizcast/internal/domain"
	"quizcast/internal/gateway"
	"quizcast/internal/router"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSHandler upgrades HTTP requests to websockets and bridges them to the
// event router: inbound frames become dispatched events, and the hub's send
// channel feeds a single writer goroutine per connection.
type WSHandler struct {
	router   *router.Router
	hub      *gateway.Hub
	upgrader websocket.Upgrader
}

func NewWSHandler(r *router.Router, hub *gateway.Hub) *WSHandler {
	return &WSHandler{
		router: r,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	// The id is stable for this connection's lifetime and doubles as the
	// participant id once the client joins.
	connID := uuid.NewString()
	send := make(chan []byte, 256)
	h.hub.Register(connID, send)

	// The send channel is never closed: the hub may still hold a delivery
	// snapshot taken just before Unregister, and a close would turn that
	// late send into a panic. The writer exits on quit instead and the
	// channel is left for the collector.
	quit := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case msg := <-send:
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					log.Printf("ws write error for %s: %v", connID, err)
					return
				}
			case <-quit:
				return
			}
		}
	}()

	h.router.Dispatch(domain.InboundEvent{ConnID: connID, Type: domain.EventConnect})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws read error for %s: %v", connID, err)
			}
			break
		}
		var inbound inboundMessage
		if err := json.Unmarshal(raw, &inbound); err != nil {
			log.Printf("invalid message from %s: %v", connID, err)
			continue
		}
		h.router.Dispatch(domain.InboundEvent{ConnID: connID, Type: inbound.Type, Payload: inbound.Payload})
	}

	// Disconnection reaches the router as its own event; the participant
	// record survives with connected=false.
	h.hub.Unregister(connID)
	h.router.Dispatch(domain.InboundEvent{ConnID: connID, Type: domain.EventDisconnect})
	close(quit)
	<-writerDone
}

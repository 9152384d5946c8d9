package sync

import (
	"encoding/json"
	"log"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	transportTCP = "tcp"
	transportWS  = "websocket"

	writeTimeout = 2 * time.Second
)

// subscriber is one connected client on either transport. An empty roundID
// follows every round.
type subscriber struct {
	transport string
	roundID   string
	send      func([]byte) error
	close     func() error
}

func tcpSubscriber(conn net.Conn) *subscriber {
	return &subscriber{
		transport: transportTCP,
		send: func(b []byte) error {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			_, err := conn.Write(b)
			return err
		},
		close: conn.Close,
	}
}

func wsSubscriber(ws *websocket.Conn, roundID string) *subscriber {
	return &subscriber{
		transport: transportWS,
		roundID:   roundID,
		send: func(b []byte) error {
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))
			return ws.WriteMessage(websocket.TextMessage, b)
		},
		close: ws.Close,
	}
}

// Hub fans round events out to subscribers. A subscriber whose write fails
// is closed and dropped.
type Hub struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

type Stats struct {
	TCPClients int `json:"tcp_clients"`
	WSClients  int `json:"ws_clients"`
}

func NewHub() *Hub {
	return &Hub{subs: make(map[*subscriber]struct{})}
}

// subscribe sends the welcome line and registers s. Both happen under the
// lock so the welcome always precedes any event.
func (h *Hub) subscribe(s *subscriber) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	b, _ := json.Marshal(welcome{
		Type:      "welcome",
		Transport: s.transport,
		Round:     s.roundID,
		Clients:   len(h.subs) + 1,
	})
	if err := s.send(append(b, '\n')); err != nil {
		return err
	}
	h.subs[s] = struct{}{}
	return nil
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	h.mu.Unlock()
	_ = s.close()
}

// follow narrows s to one round; "" follows all of them again. The client
// gets a "following" line once the change is in effect.
func (h *Hub) follow(s *subscriber, roundID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	s.roundID = roundID
	b, _ := json.Marshal(welcome{Type: "following", Transport: s.transport, Round: roundID, Clients: len(h.subs)})
	return s.send(append(b, '\n'))
}

// Publish stamps ev if needed and delivers it to every subscriber following
// its round.
func (h *Hub) Publish(ev RoundEvent) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[sync] marshal %s: %v", ev.Type, err)
		return
	}
	b = append(b, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		if s.roundID != "" && s.roundID != ev.RoundID {
			continue
		}
		if err := s.send(b); err != nil {
			log.Printf("[sync] drop %s client: %v", s.transport, err)
			_ = s.close()
			delete(h.subs, s)
		}
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	var st Stats
	for s := range h.subs {
		if s.transport == transportWS {
			st.WSClients++
		} else {
			st.TCPClients++
		}
	}
	return st
}

type welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Round     string `json:"round_id,omitempty"`
	Clients   int    `json:"clients"`
}

package websocket

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"autobidder/internal/domain"
	"autobidder/pkg/logger"
)

// DecisionFeed fans decision events out to connected dashboard clients.
// There is one operator and one feed, so no per-user or per-auction routing.
type DecisionFeed struct {
	clients map[*websocket.Conn]struct{}
	mutex   sync.RWMutex
	log     logger.Logger
}

func NewDecisionFeed(log logger.Logger) *DecisionFeed {
	return &DecisionFeed{
		clients: make(map[*websocket.Conn]struct{}),
		log:     log.Named("decision_feed"),
	}
}

func (f *DecisionFeed) Register(conn *websocket.Conn) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	f.clients[conn] = struct{}{}
	f.log.Info("Feed client connected", "clients", len(f.clients))
}

func (f *DecisionFeed) Unregister(conn *websocket.Conn) {
	f.mutex.Lock()
	defer f.mutex.Unlock()

	if _, ok := f.clients[conn]; ok {
		delete(f.clients, conn)
		conn.Close()
	}
	f.log.Info("Feed client disconnected", "clients", len(f.clients))
}

// Broadcast sends one event to every client; clients that fail to accept
// the write are dropped.
func (f *DecisionFeed) Broadcast(event *domain.DecisionEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	for conn := range f.clients {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.log.Warn("Dropping unresponsive feed client", "error", err)
			delete(f.clients, conn)
			conn.Close()
		}
	}

	return nil
}

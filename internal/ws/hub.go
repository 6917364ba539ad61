package ws

import (
	"sync"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/quizparty/party-backend/internal/types"
)

// Hub implements the session.Broadcaster contract: it maps party codes to
// the outboxes of their member connections and fans events out to them.
// Sessions emit serially, so per-party ordering falls out of the caller.
type Hub struct {
	mu      sync.Mutex
	parties map[string]map[string]chan []byte // code -> connID -> outbox
	log     *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		parties: make(map[string]map[string]chan []byte),
		log:     log,
	}
}

// Join adds a connection's outbox to a party channel. The hub never
// closes an outbox; the connection handler's own context ends its writer.
func (h *Hub) Join(code, connID string, out chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.parties[code]
	if !ok {
		members = make(map[string]chan []byte)
		h.parties[code] = members
	}
	members[connID] = out
}

// Leave removes a connection from its party channel.
func (h *Hub) Leave(code, connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.parties[code]
	if !ok {
		return
	}
	delete(members, connID)
	if len(members) == 0 {
		delete(h.parties, code)
	}
}

// Broadcast delivers the event to every current member of the party,
// at most once each. A member whose outbox is full is dropped rather than
// letting one slow reader stall the party.
func (h *Hub) Broadcast(code, event string, payload any) {
	msg, err := json.Marshal(types.ServerEvent{Event: event, Data: payload})
	if err != nil {
		h.log.Error("marshal broadcast", zap.String("event", event), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for connID, out := range h.parties[code] {
		select {
		case out <- msg:
		default:
			h.log.Warn("dropping slow client", zap.String("party", code), zap.String("conn", connID))
			delete(h.parties[code], connID)
		}
	}
}

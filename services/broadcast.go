// services/broadcast.go
package services

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"score-sync-system/models"
)

const (
	EventGameStarted        = "game_started"
	EventGameUpdated        = "game_updated"
	EventScoreUpdate        = "score_update"
	EventPlayerOrderUpdated = "player_order_updated"
)

// Event is one state-change notification delivered to every subscriber of
// the owning environment's channel. Score events carry the originating
// player id and signed delta so clients can render a tally indicator
// without re-deriving it from absolute totals.
type Event struct {
	Type          string    `json:"type"`
	EnvironmentID string    `json:"environment_id"`
	GameID        string    `json:"game_id,omitempty"`
	PlayerID      string    `json:"player_id,omitempty"`
	Delta         *int      `json:"delta,omitempty"`
	WinnerID      string    `json:"winner_id,omitempty"`
	Finalized     bool      `json:"finalized,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	Scores []models.PlayerGameScore `json:"scores,omitempty"`
}

// Subscriber is one live connection joined to an environment's channel.
type Subscriber struct {
	EnvironmentID string
	send          chan []byte
}

// Events returns the channel the hub pushes marshaled events on. It is
// closed when the subscriber is removed from the hub.
func (s *Subscriber) Events() <-chan []byte {
	return s.send
}

// BroadcastHub fans committed-mutation events out to the subscribers of
// each environment channel. Delivery is at-most-once per publish: there is
// no replay queue, and a subscriber whose buffer is full is dropped —
// clients reconcile through a full-state REST fetch.
type BroadcastHub struct {
	mu          sync.Mutex
	subscribers map[string]map[*Subscriber]struct{}
}

func NewBroadcastHub() *BroadcastHub {
	return &BroadcastHub{
		subscribers: make(map[string]map[*Subscriber]struct{}),
	}
}

// Subscribe joins a new connection to the environment's channel. One
// subscriber belongs to exactly one environment for its whole lifetime.
func (h *BroadcastHub) Subscribe(environmentID string) *Subscriber {
	sub := &Subscriber{
		EnvironmentID: environmentID,
		send:          make(chan []byte, 32),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	group, ok := h.subscribers[environmentID]
	if !ok {
		group = make(map[*Subscriber]struct{})
		h.subscribers[environmentID] = group
	}
	group[sub] = struct{}{}
	return sub
}

// Unsubscribe drops the connection from its channel. Safe to call more
// than once.
func (h *BroadcastHub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

func (h *BroadcastHub) remove(sub *Subscriber) {
	group, ok := h.subscribers[sub.EnvironmentID]
	if !ok {
		return
	}
	if _, ok := group[sub]; !ok {
		return
	}
	delete(group, sub)
	close(sub.send)
	if len(group) == 0 {
		delete(h.subscribers, sub.EnvironmentID)
	}
}

// Publish delivers one event to every subscriber of the event's
// environment. Callers must invoke it only after the owning transaction
// has committed. Failures never propagate to the mutating request.
func (h *BroadcastHub) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("[Broadcast] marshal failed for %s event: %v", event.Type, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subscribers[event.EnvironmentID] {
		select {
		case sub.send <- payload:
		default:
			// Buffer full: the client is too slow, drop it.
			log.Printf("[Broadcast] dropping slow subscriber on env %s", event.EnvironmentID)
			h.remove(sub)
		}
	}
}

// SubscriberCount reports how many live connections an environment has.
func (h *BroadcastHub) SubscriberCount(environmentID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers[environmentID])
}

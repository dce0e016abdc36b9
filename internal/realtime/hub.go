package realtime

import (
	"encoding/json"
	"log/slog"
	"sync"

	"mintix/internal/locking"
	"mintix/pkg/logger"
)

// SeatUpdate is the message pushed to everyone watching a concert's seat map.
type SeatUpdate struct {
	Type        string `json:"type"`
	ConcertID   string `json:"concert_id"`
	SectionName string `json:"section_name"`
	SeatNumber  string `json:"seat_number"`
	Status      string `json:"status"`
}

// HubStats summarizes connections for the system status endpoint.
type HubStats struct {
	ConnectedClients int            `json:"connected_clients"`
	ConcertRooms     int            `json:"concert_rooms"`
	RoomCounts       map[string]int `json:"room_counts"`
}

// Hub fans seat updates out to per-concert rooms. A client that cannot keep
// up with its send buffer is dropped rather than allowed to stall the rest.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[*client]struct{}
	logger *logger.Logger
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*client]struct{}),
		logger: logger.GetDefault(),
	}
}

// BroadcastSeatUpdate implements the lock coordinator's Broadcaster.
func (h *Hub) BroadcastSeatUpdate(concertID string, seat locking.SeatKey, state locking.SeatState) {
	update := SeatUpdate{
		Type:        "seat_update",
		ConcertID:   concertID,
		SectionName: seat.SectionName,
		SeatNumber:  seat.SeatNumber,
		Status:      string(state),
	}

	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("failed to marshal seat update", slog.Any("error", err))
		return
	}

	h.mu.RLock()
	room := h.rooms[concertID]
	clients := make([]*client, 0, len(room))
	for c := range room {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; evict it.
			h.unregister(c)
		}
	}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[c.concertID]
	if !ok {
		room = make(map[*client]struct{})
		h.rooms[c.concertID] = room
	}
	room[c] = struct{}{}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	room, ok := h.rooms[c.concertID]
	if ok {
		if _, present := room[c]; present {
			delete(room, c)
			close(c.send)
			if len(room) == 0 {
				delete(h.rooms, c.concertID)
			}
		}
	}
	h.mu.Unlock()
}

// Stats reports connected clients per concert room.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := HubStats{
		ConcertRooms: len(h.rooms),
		RoomCounts:   make(map[string]int, len(h.rooms)),
	}
	for concertID, room := range h.rooms {
		stats.RoomCounts[concertID] = len(room)
		stats.ConnectedClients += len(room)
	}
	return stats
}

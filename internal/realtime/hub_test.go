package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mintix/internal/locking"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

func newTestServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/ws/concerts/:concertId", hub.ServeWS)
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)
	return srv
}

func dialConcert(t *testing.T, srv *httptest.Server, concertID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/concerts/" + concertID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUpdate(t *testing.T, conn *websocket.Conn) SeatUpdate {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var update SeatUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		t.Fatalf("unmarshal %q: %v", payload, err)
	}
	return update
}

// waitForClients blocks until the hub sees the expected number of
// connections; registration happens after the HTTP upgrade returns.
func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if hub.Stats().ConnectedClients == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients, stats: %+v", want, hub.Stats())
}

func TestHubBroadcastReachesRoom(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)
	concertID := uuid.NewString()

	conn := dialConcert(t, srv, concertID)
	waitForClients(t, hub, 1)

	seat := locking.SeatKey{ConcertID: concertID, SectionName: "VIP", SeatNumber: "7"}
	hub.BroadcastSeatUpdate(concertID, seat, locking.SeatStateLocked)

	update := readUpdate(t, conn)
	if update.Type != "seat_update" {
		t.Fatalf("unexpected message type %q", update.Type)
	}
	if update.ConcertID != concertID || update.SectionName != "VIP" || update.SeatNumber != "7" {
		t.Fatalf("unexpected seat fields: %+v", update)
	}
	if update.Status != "locked" {
		t.Fatalf("unexpected status %q", update.Status)
	}
}

func TestHubRoomIsolation(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)
	concertA := uuid.NewString()
	concertB := uuid.NewString()

	connA := dialConcert(t, srv, concertA)
	connB := dialConcert(t, srv, concertB)
	waitForClients(t, hub, 2)

	seat := locking.SeatKey{ConcertID: concertA, SectionName: "A", SeatNumber: "1"}
	hub.BroadcastSeatUpdate(concertA, seat, locking.SeatStateSold)

	update := readUpdate(t, connA)
	if update.Status != "sold" {
		t.Fatalf("unexpected status %q", update.Status)
	}

	// The other room must stay silent.
	connB.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if _, _, err := connB.ReadMessage(); err == nil {
		t.Fatal("update leaked into an unrelated concert room")
	}
}

func TestHubStatsAndDisconnect(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)
	concertID := uuid.NewString()

	conn := dialConcert(t, srv, concertID)
	waitForClients(t, hub, 1)

	stats := hub.Stats()
	if stats.ConcertRooms != 1 || stats.RoomCounts[concertID] != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	conn.Close()
	waitForClients(t, hub, 0)

	stats = hub.Stats()
	if stats.ConcertRooms != 0 {
		t.Fatalf("empty room not removed: %+v", stats)
	}
}

func TestHubRejectsInvalidConcertID(t *testing.T) {
	hub := NewHub()
	srv := newTestServer(t, hub)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/concerts/not-a-uuid"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("expected handshake failure for invalid concert ID")
	}
	if resp == nil || resp.StatusCode != 400 {
		t.Fatalf("expected 400 response, got %+v", resp)
	}
}

package realtime

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userID uuid.UUID) *Client {
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Send:   make(chan []byte, 16),
	}
}

// registerAndWait registers the client and blocks until the hub goroutine
// has actually stored it.
func registerAndWait(t *testing.T, h *Hub, c *Client) {
	t.Helper()
	h.RegisterClient(c)
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[c.ID]
		return ok
	}, time.Second, time.Millisecond)
}

func drain(c *Client) [][]byte {
	var out [][]byte
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		case <-time.After(50 * time.Millisecond):
			return out
		}
	}
}

func TestSendToRoomReachesSubscribersOnly(t *testing.T) {
	h := NewHub()
	go h.Run()

	roomID := uuid.New()

	sub := newTestClient(uuid.New())
	nonSub := newTestClient(uuid.New())
	registerAndWait(t, h, sub)
	registerAndWait(t, h, nonSub)

	h.Subscribe(sub, roomID)
	h.SendToRoom(roomID, map[string]string{"type": "new_message"})

	assert.Len(t, drain(sub), 1)
	assert.Empty(t, drain(nonSub))
}

func TestDuplicateSubscribeDeliversOnce(t *testing.T) {
	h := NewHub()
	go h.Run()

	roomID := uuid.New()
	c := newTestClient(uuid.New())
	registerAndWait(t, h, c)

	h.Subscribe(c, roomID)
	h.Subscribe(c, roomID)
	h.Subscribe(c, roomID)

	h.SendToRoom(roomID, map[string]string{"type": "new_message"})

	assert.Len(t, drain(c), 1, "re-subscribing must not duplicate delivery")
}

func TestTwoTabsEachGetOneCopy(t *testing.T) {
	h := NewHub()
	go h.Run()

	userID := uuid.New()
	roomID := uuid.New()

	tab1 := newTestClient(userID)
	tab2 := newTestClient(userID)
	registerAndWait(t, h, tab1)
	registerAndWait(t, h, tab2)

	h.Subscribe(tab1, roomID)
	h.Subscribe(tab2, roomID)

	h.SendToRoom(roomID, map[string]string{"type": "new_message"})

	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	go h.Run()

	roomID := uuid.New()
	c := newTestClient(uuid.New())
	registerAndWait(t, h, c)

	h.Subscribe(c, roomID)
	h.SendToRoom(roomID, map[string]string{"seq": "1"})
	require.Len(t, drain(c), 1)

	h.Unsubscribe(c, roomID)
	h.SendToRoom(roomID, map[string]string{"seq": "2"})
	assert.Empty(t, drain(c), "no events after teardown")
}

func TestUnregisterCleansUpSubscriptions(t *testing.T) {
	h := NewHub()
	go h.Run()

	roomID := uuid.New()
	c := newTestClient(uuid.New())
	registerAndWait(t, h, c)
	h.Subscribe(c, roomID)

	h.UnregisterClient(c)
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.clients[c.ID]
		return !ok
	}, time.Second, time.Millisecond)

	h.mu.RLock()
	_, roomAlive := h.rooms[roomID]
	h.mu.RUnlock()
	assert.False(t, roomAlive, "empty rooms are dropped on unregister")

	// Send channel is closed, the writer goroutine would exit
	_, open := <-c.Send
	assert.False(t, open)
}

func TestSendToUserFansOutToAllConnections(t *testing.T) {
	h := NewHub()
	go h.Run()

	userID := uuid.New()
	other := newTestClient(uuid.New())
	tab1 := newTestClient(userID)
	tab2 := newTestClient(userID)
	registerAndWait(t, h, other)
	registerAndWait(t, h, tab1)
	registerAndWait(t, h, tab2)

	h.SendToUser(userID, map[string]string{"type": "notification"})

	assert.Len(t, drain(tab1), 1)
	assert.Len(t, drain(tab2), 1)
	assert.Empty(t, drain(other))
}

func TestSubscribeUnknownClientIgnored(t *testing.T) {
	h := NewHub()
	go h.Run()

	ghost := newTestClient(uuid.New())
	roomID := uuid.New()

	h.Subscribe(ghost, roomID)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Empty(t, h.rooms, "unregistered clients cannot subscribe")
}

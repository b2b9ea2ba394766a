package realtime

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Client is one WebSocket connection. A user with two tabs open has two
// clients, each with its own Send channel.
type Client struct {
	ID     string
	UserID uuid.UUID
	Conn   *WebSocketConn
	Send   chan []byte
}

type Hub struct {
	clients    map[string]*Client
	rooms      map[uuid.UUID]map[string]*Client
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex

	relayOn bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[uuid.UUID]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

func (h *Hub) RegisterClient(client *Client) {
	h.register <- client
}

func (h *Hub) UnregisterClient(client *Client) {
	h.unregister <- client
}

// Subscribe attaches a client to a room's event stream. Subscribing the
// same client to the same room twice is a no-op, so rapid re-subscribes
// never produce duplicate delivery.
func (h *Hub) Subscribe(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[client.ID] = client
}

// Unsubscribe detaches a client from a room. After it returns no further
// room events reach that client.
func (h *Hub) Unsubscribe(client *Client, roomID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.dropFromRoom(client.ID, roomID)
}

func (h *Hub) dropFromRoom(clientID string, roomID uuid.UUID) {
	members, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(members, clientID)
	if len(members) == 0 {
		delete(h.rooms, roomID)
	}
}

// SendToRoom delivers a payload to every client subscribed to the room.
func (h *Hub) SendToRoom(roomID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling room payload: %v", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[roomID] {
		select {
		case client.Send <- payload:
		default:
			// slow client, skip rather than block the hub
		}
	}
}

// SendToUser delivers a payload to every connection of a user, so each
// open tab gets exactly one copy.
func (h *Hub) SendToUser(userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling user payload: %v", err)
		return
	}
	h.sendToUserRaw(userID, payload)
}

func (h *Hub) sendToUserRaw(userID uuid.UUID, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		if client.UserID == userID {
			select {
			case client.Send <- payload:
			default:
			}
		}
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.Printf("Client registered: %s (UserID: %s)", client.ID, client.UserID)

		case client := <-h.unregister:
			h.mu.Lock()
			if old, ok := h.clients[client.ID]; ok {
				delete(h.clients, client.ID)
				for roomID := range h.rooms {
					h.dropFromRoom(client.ID, roomID)
				}
				close(old.Send)
				log.Printf("Client unregistered: %s", client.ID)
			}
			h.mu.Unlock()
		}
	}
}

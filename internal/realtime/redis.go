package realtime

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const notificationChannelPrefix = "notifications:"

// NewRedis creates the Redis client used for cross-instance notification
// fanout.
func NewRedis(addr, password string) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	log.Printf("Redis client created (addr: %s)\n", addr)
	return rdb
}

// NotificationChannel is the per-user pub/sub channel name.
func NotificationChannel(userID uuid.UUID) string {
	return notificationChannelPrefix + userID.String()
}

// PublishNotification pushes a notification payload onto the user's
// channel. Every instance relays it to its own local connections.
func PublishNotification(ctx context.Context, rdb *redis.Client, userID uuid.UUID, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error marshaling notification: %v", err)
		return
	}
	if err := rdb.Publish(ctx, NotificationChannel(userID), payload).Err(); err != nil {
		log.Printf("Error publishing notification for %s: %v", userID, err)
	}
}

// RunNotificationRelay subscribes to all notification channels and relays
// each message to the local connections of the addressed user. The relayOn
// flag keeps a second call from opening a duplicate subscription.
func (h *Hub) RunNotificationRelay(ctx context.Context, rdb *redis.Client) {
	h.mu.Lock()
	if h.relayOn {
		h.mu.Unlock()
		log.Println("Notification relay already running, skipping")
		return
	}
	h.relayOn = true
	h.mu.Unlock()

	sub := rdb.PSubscribe(ctx, notificationChannelPrefix+"*")
	defer func() {
		sub.Close()
		h.mu.Lock()
		h.relayOn = false
		h.mu.Unlock()
	}()

	log.Println("Notification relay started")

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			userStr := strings.TrimPrefix(msg.Channel, notificationChannelPrefix)
			userID, err := uuid.Parse(userStr)
			if err != nil {
				log.Printf("Relay: bad channel %s: %v", msg.Channel, err)
				continue
			}
			h.sendToUserRaw(userID, []byte(msg.Payload))
		}
	}
}

package handlers

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

func getUserUUID(c *fiber.Ctx) (uuid.UUID, error) {
	v := c.Locals("userId")
	if v == nil {
		return uuid.Nil, fmt.Errorf("unauthorized")
	}

	switch t := v.(type) {
	case uuid.UUID:
		return t, nil
	case string:
		return uuid.Parse(t)
	case []byte:
		return uuid.ParseBytes(t)
	default:
		return uuid.Nil, fmt.Errorf("invalid userId type: %T", v)
	}
}

// MergeRooms unions the customer-side and provider-side room lists by room
// id and sorts the result by last activity, newest first. A room where the
// caller is on both contact paths collapses to one entry.
func MergeRooms(asCustomer, asProvider []models.ChatRoom) []models.ChatRoom {
	seen := make(map[uuid.UUID]bool, len(asCustomer)+len(asProvider))
	merged := make([]models.ChatRoom, 0, len(asCustomer)+len(asProvider))

	for _, list := range [][]models.ChatRoom{asCustomer, asProvider} {
		for _, room := range list {
			if seen[room.ID] {
				continue
			}
			seen[room.ID] = true
			merged = append(merged, room)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].LastMessageAt.After(merged[j].LastMessageAt)
	})

	return merged
}

// ValidateQuote checks a price quote before anything touches the database.
// Amount is in minor units (paise for INR) and defaults to INR when the
// currency is blank.
func ValidateQuote(q *models.PriceQuote) error {
	q.Service = strings.TrimSpace(q.Service)
	if q.Service == "" {
		return errors.New("service is required")
	}
	if q.Amount <= 0 {
		return errors.New("amount must be a positive integer in minor units")
	}
	if q.Currency == "" {
		q.Currency = "INR"
	}
	return nil
}

// QuoteSummary renders the human-readable text stored alongside the
// structured payload, e.g. "1 PT session for ₹500.00".
func QuoteSummary(q models.PriceQuote) string {
	amount := float64(q.Amount) / 100
	if q.Currency == "INR" {
		return fmt.Sprintf("%s for ₹%.2f", q.Service, amount)
	}
	return fmt.Sprintf("%s for %s %.2f", q.Service, q.Currency, amount)
}

// isParticipant reports whether userID is the customer or the owner of the
// provider profile on the room. Business/Trainer must be preloaded.
func isParticipant(room *models.ChatRoom, userID uuid.UUID) bool {
	if room.CustomerID == userID {
		return true
	}
	return room.ProviderUserID() == userID
}

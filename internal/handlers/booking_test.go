package handlers

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

func (e *testEnv) createQuoteMessage(t *testing.T, room *models.ChatRoom, sender *models.User, quote models.PriceQuote) *models.ChatMessage {
	t.Helper()
	payload, err := json.Marshal(quote)
	require.NoError(t, err)

	msg := models.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   sender.ID,
		Message:    QuoteSummary(quote),
		Type:       models.MessageTypeText,
		Subtype:    models.SubtypePriceQuote,
		PriceQuote: payload,
	}
	require.NoError(t, e.DB.Create(&msg).Error)
	return &msg
}

func TestConvertQuoteCreatesBooking(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "bookingcustomer")
	owner := env.createUser(t, "bookingowner")
	biz := env.createBusiness(t, owner, "Booking Gym")
	room := env.createRoom(t, customer, biz, nil)

	quote := models.PriceQuote{Service: "1 PT session", Amount: 50000, Currency: "INR"}
	msg := env.createQuoteMessage(t, room, owner, quote)

	resp, out := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID), customer.ID,
		map[string]interface{}{"message_id": msg.ID.String()})
	require.Equal(t, 201, resp.StatusCode)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, room.ID.String(), data["chat_room_id"])
	assert.Equal(t, msg.ID.String(), data["message_id"])
	assert.EqualValues(t, 50000, data["price_amount"])
	assert.Equal(t, "INR", data["currency"])
	assert.Equal(t, "confirmed", data["status"])
	assert.Equal(t, "1 PT session", data["service_details"].(map[string]interface{})["service"])

	var bk models.Booking
	require.NoError(t, env.DB.First(&bk, "message_id = ?", msg.ID).Error)
	assert.Equal(t, customer.ID, bk.CustomerID)
	require.NotNil(t, bk.BusinessID)
	assert.Equal(t, biz.ID, *bk.BusinessID)

	// the conversion leaves a system message behind
	var sys models.ChatMessage
	require.NoError(t, env.DB.
		First(&sys, "chat_room_id = ? AND message_subtype = ?", room.ID, models.SubtypeSystem).Error)
	assert.Contains(t, sys.Message, "1 PT session")
}

func TestConvertQuoteIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "idemcustomer")
	owner := env.createUser(t, "idemowner")
	biz := env.createBusiness(t, owner, "Idem Gym")
	room := env.createRoom(t, customer, biz, nil)

	quote := models.PriceQuote{Service: "spa day", Amount: 150000, Currency: "INR"}
	msg := env.createQuoteMessage(t, room, owner, quote)

	path := fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID)
	body := map[string]interface{}{"message_id": msg.ID.String()}

	resp, out := env.request(t, "POST", path, customer.ID, body)
	require.Equal(t, 201, resp.StatusCode)
	firstID := out["booking_id"].(string)

	resp, out = env.request(t, "POST", path, customer.ID, body)
	require.Equal(t, 200, resp.StatusCode, "replay must not fail")
	assert.Equal(t, firstID, out["booking_id"].(string), "replay returns the same booking")

	var count int64
	env.DB.Model(&models.Booking{}).Where("message_id = ?", msg.ID).Count(&count)
	assert.EqualValues(t, 1, count, "exactly one booking per quote message")

	var sysCount int64
	env.DB.Model(&models.ChatMessage{}).
		Where("chat_room_id = ? AND message_subtype = ?", room.ID, models.SubtypeSystem).
		Count(&sysCount)
	assert.EqualValues(t, 1, sysCount, "replay adds no second system message")
}

func TestConvertQuoteOnlyCustomer(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "realcustomer")
	owner := env.createUser(t, "sneakyowner")
	biz := env.createBusiness(t, owner, "Sneaky Gym")
	room := env.createRoom(t, customer, biz, nil)

	quote := models.PriceQuote{Service: "yoga class", Amount: 30000, Currency: "INR"}
	msg := env.createQuoteMessage(t, room, owner, quote)

	resp, _ := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID), owner.ID,
		map[string]interface{}{"message_id": msg.ID.String()})
	assert.Equal(t, 403, resp.StatusCode)

	var count int64
	env.DB.Model(&models.Booking{}).Count(&count)
	assert.Zero(t, count)
}

func TestConvertRejectsNonQuoteMessage(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "plaincustomer")
	owner := env.createUser(t, "plainowner")
	biz := env.createBusiness(t, owner, "Plain Gym")
	room := env.createRoom(t, customer, biz, nil)

	plain := models.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   owner.ID,
		Message:    "just chatting",
		Type:       models.MessageTypeText,
		Subtype:    models.SubtypeNormal,
	}
	require.NoError(t, env.DB.Create(&plain).Error)

	resp, _ := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID), customer.ID,
		map[string]interface{}{"message_id": plain.ID.String()})
	assert.Equal(t, 400, resp.StatusCode)
}

func TestConvertRejectsMessageFromOtherRoom(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "crosscustomer")
	owner := env.createUser(t, "crossowner")
	biz := env.createBusiness(t, owner, "Cross Gym")
	roomA := env.createRoom(t, customer, biz, nil)

	otherOwner := env.createUser(t, "crossother")
	trainer := env.createTrainer(t, otherOwner, "Cross Trainer")
	roomB := env.createRoom(t, customer, nil, trainer)

	quote := models.PriceQuote{Service: "session", Amount: 10000, Currency: "INR"}
	msgInB := env.createQuoteMessage(t, roomB, otherOwner, quote)

	resp, _ := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", roomA.ID), customer.ID,
		map[string]interface{}{"message_id": msgInB.ID.String()})
	assert.Equal(t, 404, resp.StatusCode)
}

func TestChatToBookingScenario(t *testing.T) {
	// full flow: customer says hi, provider quotes ₹500 for
	// "1 PT session", customer converts, exactly one booking for 50000
	// paise results.
	env := newTestEnv(t)
	customer := env.createUser(t, "scenarioa")
	owner := env.createUser(t, "scenariob")
	biz := env.createBusiness(t, owner, "Scenario Fitness")
	room := env.createRoom(t, customer, biz, nil)

	resp, _ := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/messages", room.ID), customer.ID,
		map[string]interface{}{"message": "Hi"})
	require.Equal(t, 200, resp.StatusCode)

	resp, out := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/quotes", room.ID), owner.ID,
		map[string]interface{}{"service": "1 PT session", "amount": 50000})
	require.Equal(t, 201, resp.StatusCode)
	quoteMsgID := out["data"].(map[string]interface{})["id"].(string)

	resp, out = env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID), customer.ID,
		map[string]interface{}{"message_id": quoteMsgID})
	require.Equal(t, 201, resp.StatusCode)

	data := out["data"].(map[string]interface{})
	assert.Equal(t, room.ID.String(), data["chat_room_id"])
	assert.Equal(t, quoteMsgID, data["message_id"])
	assert.EqualValues(t, 50000, data["price_amount"])

	var count int64
	env.DB.Model(&models.Booking{}).Count(&count)
	assert.EqualValues(t, 1, count)

	// provider got a booking notification
	var notifCount int64
	env.DB.Model(&models.Notification{}).
		Where("user_id = ? AND type = ?", owner.ID, models.NotifBookingConfirmed).
		Count(&notifCount)
	assert.EqualValues(t, 1, notifCount)
}

func TestGetBookingVisibility(t *testing.T) {
	env := newTestEnv(t)
	customer := env.createUser(t, "viscustomer")
	owner := env.createUser(t, "visowner")
	outsider := env.createUser(t, "visoutsider")
	biz := env.createBusiness(t, owner, "Visible Gym")
	room := env.createRoom(t, customer, biz, nil)

	quote := models.PriceQuote{Service: "sauna", Amount: 20000, Currency: "INR"}
	msg := env.createQuoteMessage(t, room, owner, quote)

	_, out := env.request(t, "POST",
		fmt.Sprintf("/api/chat/rooms/%s/bookings", room.ID), customer.ID,
		map[string]interface{}{"message_id": msg.ID.String()})
	bookingID := out["booking_id"].(string)

	resp, _ := env.request(t, "GET", "/api/bookings/"+bookingID, customer.ID, nil)
	assert.Equal(t, 200, resp.StatusCode)

	resp, _ = env.request(t, "GET", "/api/bookings/"+bookingID, owner.ID, nil)
	assert.Equal(t, 200, resp.StatusCode, "provider owner can see the booking")

	resp, _ = env.request(t, "GET", "/api/bookings/"+bookingID, outsider.ID, nil)
	assert.Equal(t, 404, resp.StatusCode)
}

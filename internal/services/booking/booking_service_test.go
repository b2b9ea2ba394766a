package booking

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fitlink-in/fitlink_backend/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.BusinessProfile{},
		&models.TrainerProfile{},
		&models.ChatRoom{},
		&models.ChatMessage{},
		&models.Booking{},
	))
	return gdb
}

func seedQuote(t *testing.T, gdb *gorm.DB) (*models.ChatRoom, *models.ChatMessage, models.PriceQuote) {
	t.Helper()

	customer := models.User{Name: "c", Email: "c@example.com", Password: "x", Role: models.RoleCustomer, IsActive: true}
	owner := models.User{Name: "o", Email: "o@example.com", Password: "x", Role: models.RoleBusiness, IsActive: true}
	require.NoError(t, gdb.Create(&customer).Error)
	require.NoError(t, gdb.Create(&owner).Error)

	biz := models.BusinessProfile{UserID: owner.ID, Name: "Gym", Category: models.CategoryGym}
	require.NoError(t, gdb.Create(&biz).Error)

	room := models.ChatRoom{
		CustomerID: customer.ID,
		BusinessID: &biz.ID,
		RoomType:   models.RoomTypeBusiness,
		Status:     models.RoomStatusActive,
	}
	require.NoError(t, gdb.Create(&room).Error)

	quote := models.PriceQuote{Service: "1 PT session", Amount: 50000, Currency: "INR"}
	payload, err := json.Marshal(quote)
	require.NoError(t, err)

	msg := models.ChatMessage{
		ChatRoomID: room.ID,
		SenderID:   owner.ID,
		Message:    "1 PT session for ₹500.00",
		Type:       models.MessageTypeText,
		Subtype:    models.SubtypePriceQuote,
		PriceQuote: payload,
	}
	require.NoError(t, gdb.Create(&msg).Error)

	return &room, &msg, quote
}

func TestCreateFromQuote(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewService(gdb)
	room, msg, quote := seedQuote(t, gdb)

	var bk *models.Booking
	var created bool
	err := gdb.Transaction(func(tx *gorm.DB) error {
		var err error
		bk, created, err = svc.CreateFromQuote(tx, room, msg, quote)
		return err
	})
	require.NoError(t, err)
	require.True(t, created)
	assert.Equal(t, msg.ID, bk.MessageID)
	assert.Equal(t, room.CustomerID, bk.CustomerID)
	assert.EqualValues(t, 50000, bk.PriceAmount)
	assert.Equal(t, models.BookingStatusConfirmed, bk.Status)
}

func TestCreateFromQuoteReplayReturnsExisting(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewService(gdb)
	room, msg, quote := seedQuote(t, gdb)

	first, created, err := svc.CreateFromQuote(gdb, room, msg, quote)
	require.NoError(t, err)
	require.True(t, created)

	second, created, err := svc.CreateFromQuote(gdb, room, msg, quote)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	gdb.Model(&models.Booking{}).Where("message_id = ?", msg.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestCreateFromQuoteRejectsNonQuote(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewService(gdb)
	room, msg, quote := seedQuote(t, gdb)

	msg.Subtype = models.SubtypeNormal
	msg.PriceQuote = nil
	_, _, err := svc.CreateFromQuote(gdb, room, msg, quote)
	assert.Error(t, err)
}

func TestCreateFromQuoteRejectsNonPositiveAmount(t *testing.T) {
	gdb := openTestDB(t)
	svc := NewService(gdb)
	room, msg, quote := seedQuote(t, gdb)

	quote.Amount = 0
	_, _, err := svc.CreateFromQuote(gdb, room, msg, quote)
	assert.Error(t, err)
}

func TestUniqueIndexBlocksRawDuplicate(t *testing.T) {
	// the schema itself guards double conversion even if application
	// checks are bypassed
	gdb := openTestDB(t)
	room, msg, _ := seedQuote(t, gdb)

	mk := func() *models.Booking {
		return &models.Booking{
			ChatRoomID:  room.ID,
			CustomerID:  room.CustomerID,
			BusinessID:  room.BusinessID,
			MessageID:   msg.ID,
			PriceAmount: 50000,
			Currency:    "INR",
			Status:      models.BookingStatusConfirmed,
		}
	}

	require.NoError(t, gdb.Create(mk()).Error)
	err := gdb.Create(mk()).Error
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err), "duplicate must trip the unique index, got: %v", err)
}

package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
)

const testSecret = "wh-secret"

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.PaymentEvent{},
		&models.UsageTracking{},
		&models.AppraisalCredit{},
	))

	ent := entitlements.NewRepository(db)
	return NewService(db, ent, "checkout", testSecret), db
}

func sign(t *testing.T, payload []byte) string {
	t.Helper()
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func eventPayload(t *testing.T, event WebhookEvent) []byte {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return payload
}

func TestHandleWebhook_RejectsBadSignature(t *testing.T) {
	svc, db := newTestService(t)

	payload := eventPayload(t, WebhookEvent{EventID: "evt-1", EventType: EventCreditsPurchased, UserID: 1, Credits: 5})
	err := svc.HandleWebhook(payload, "deadbeef")
	assert.ErrorIs(t, err, ErrInvalidSignature)

	var count int64
	db.Model(&models.PaymentEvent{}).Count(&count)
	assert.Zero(t, count, "rejected deliveries are not recorded")
}

func TestHandleWebhook_CreditsPurchase(t *testing.T) {
	svc, db := newTestService(t)

	payload := eventPayload(t, WebhookEvent{
		EventID:    "evt-2",
		EventType:  EventCreditsPurchased,
		UserID:     7,
		Credits:    10,
		PaymentRef: "ch_123",
	})
	require.NoError(t, svc.HandleWebhook(payload, sign(t, payload)))

	var credit models.AppraisalCredit
	require.NoError(t, db.Where("user_id = ?", 7).First(&credit).Error)
	assert.Equal(t, 10, credit.CreditsRemaining)
	assert.Equal(t, models.CreditSourcePurchase, credit.Source)
	assert.Equal(t, "ch_123", credit.PaymentRef)
}

func TestHandleWebhook_ReplayIsDropped(t *testing.T) {
	svc, db := newTestService(t)

	payload := eventPayload(t, WebhookEvent{EventID: "evt-3", EventType: EventCreditsPurchased, UserID: 3, Credits: 5})
	require.NoError(t, svc.HandleWebhook(payload, sign(t, payload)))

	err := svc.HandleWebhook(payload, sign(t, payload))
	assert.ErrorIs(t, err, ErrDuplicateEvent)

	total, err := models.SumCreditsRemaining(db, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, total, "replay must not grant twice")
}

func TestHandleWebhook_SubscriptionLifecycle(t *testing.T) {
	svc, db := newTestService(t)

	payload := eventPayload(t, WebhookEvent{EventID: "evt-4", EventType: EventSubscriptionUpdated, UserID: 4, Plan: "premium"})
	require.NoError(t, svc.HandleWebhook(payload, sign(t, payload)))

	var usage models.UsageTracking
	require.NoError(t, db.Where("user_id = ?", 4).First(&usage).Error)
	assert.Equal(t, string(entitlements.PlanPremium), usage.Plan)

	payload = eventPayload(t, WebhookEvent{EventID: "evt-5", EventType: EventSubscriptionCanceled, UserID: 4})
	require.NoError(t, svc.HandleWebhook(payload, sign(t, payload)))

	require.NoError(t, db.Where("user_id = ?", 4).First(&usage).Error)
	assert.Equal(t, string(entitlements.PlanFree), usage.Plan)
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"event_id":"evt-6"}`)

	assert.True(t, VerifyWebhookSignature(payload, sign(t, payload), testSecret))
	assert.False(t, VerifyWebhookSignature(payload, sign(t, payload), "other-secret"))
	assert.False(t, VerifyWebhookSignature(payload, "", testSecret))
	assert.False(t, VerifyWebhookSignature(payload, "zz-not-hex", testSecret))
}

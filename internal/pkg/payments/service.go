package payments

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/vkarlsson/vardera/app/models"
	"github.com/vkarlsson/vardera/internal/pkg/entitlements"
)

// Event types accepted from the payment provider.
const (
	EventSubscriptionUpdated  = "subscription.updated"
	EventSubscriptionCanceled = "subscription.canceled"
	EventCreditsPurchased     = "credits.purchased"
)

var (
	ErrInvalidSignature = errors.New("webhook signature invalid")
	ErrDuplicateEvent   = errors.New("webhook event already processed")
)

// WebhookEvent is the normalized provider payload.
type WebhookEvent struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	UserID     uint   `json:"user_id"`
	Plan       string `json:"plan"`
	Credits    int    `json:"credits"`
	PaymentRef string `json:"payment_ref"`
}

// Service applies provider webhook events to local entitlement state.
type Service struct {
	db       *gorm.DB
	ent      entitlements.Repository
	provider string
	secret   string
}

func NewService(db *gorm.DB, ent entitlements.Repository, provider, secret string) *Service {
	return &Service{db: db, ent: ent, provider: provider, secret: secret}
}

// HandleWebhook verifies, records and applies one webhook delivery. Replayed
// deliveries of the same provider event are acknowledged without re-applying.
func (s *Service) HandleWebhook(payload []byte, signatureHeader string) error {
	if !VerifyWebhookSignature(payload, signatureHeader, s.secret) {
		return ErrInvalidSignature
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("decode webhook payload: %w", err)
	}
	if event.EventID == "" || event.UserID == 0 {
		return errors.New("webhook payload missing event_id or user_id")
	}

	record := &models.PaymentEvent{
		Provider:        s.provider,
		ProviderEventID: event.EventID,
		EventType:       event.EventType,
		Payload:         models.JSON(payload),
		SignatureValid:  true,
	}
	if err := s.db.Create(record).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("record webhook event: %w", err)
	}

	return s.apply(event)
}

func (s *Service) apply(event WebhookEvent) error {
	switch event.EventType {
	case EventSubscriptionUpdated:
		plan := entitlements.NormalizePlan(event.Plan)
		return s.ent.SetPlan(event.UserID, plan)
	case EventSubscriptionCanceled:
		return s.ent.SetPlan(event.UserID, entitlements.PlanFree)
	case EventCreditsPurchased:
		if event.Credits <= 0 {
			return fmt.Errorf("credits purchase with non-positive count %d", event.Credits)
		}
		_, err := s.ent.GrantCredits(event.UserID, event.Credits, models.CreditSourcePurchase, event.PaymentRef)
		return err
	default:
		return fmt.Errorf("unsupported event type %q", event.EventType)
	}
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

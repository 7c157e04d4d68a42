package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatusKind is the closed set of subscription states the application acts on.
type StatusKind int

const (
	StatusUnknown StatusKind = iota
	StatusActive
	StatusCanceled
	StatusPastDue
)

func (k StatusKind) String() string {
	switch k {
	case StatusActive:
		return "active"
	case StatusCanceled:
		return "canceled"
	case StatusPastDue:
		return "past_due"
	case StatusUnknown:
		return "unknown"
	}
	return "unknown"
}

// SubscriptionStatus pairs the parsed kind with the provider's raw string.
// Raw is what gets stored and serialized, so unrecognised provider values
// (trialing, incomplete, ...) survive a round trip as StatusUnknown.
type SubscriptionStatus struct {
	Kind StatusKind
	Raw  string
}

// ParseSubscriptionStatus matches the provider strings exactly; no case folding.
func ParseSubscriptionStatus(raw string) SubscriptionStatus {
	switch raw {
	case "active":
		return SubscriptionStatus{Kind: StatusActive, Raw: raw}
	case "canceled":
		return SubscriptionStatus{Kind: StatusCanceled, Raw: raw}
	case "past_due":
		return SubscriptionStatus{Kind: StatusPastDue, Raw: raw}
	default:
		return SubscriptionStatus{Kind: StatusUnknown, Raw: raw}
	}
}

func (s SubscriptionStatus) String() string {
	return s.Raw
}

func (s SubscriptionStatus) Value() (driver.Value, error) {
	return s.Raw, nil
}

func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = ParseSubscriptionStatus("")
	case string:
		*s = ParseSubscriptionStatus(v)
	case []byte:
		*s = ParseSubscriptionStatus(string(v))
	default:
		return fmt.Errorf("unsupported subscription status type %T", src)
	}
	return nil
}

func (s SubscriptionStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Raw)
}

func (s *SubscriptionStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = ParseSubscriptionStatus(raw)
	return nil
}

// Subscription is one point-in-time billing state for a user. Rows are only
// appended by the webhook; the row with the newest CreatedAt is authoritative.
// For webhook rows CreatedAt is the provider's event time, not the insert time.
type Subscription struct {
	ID                   uuid.UUID          `gorm:"type:uuid;primaryKey" json:"id"`
	UserID               uuid.UUID          `gorm:"type:uuid;not null;index:idx_subscriptions_user_created,priority:1" json:"user_id"`
	Status               SubscriptionStatus `gorm:"type:varchar(50);not null" json:"status"`
	PlanID               string             `gorm:"size:255" json:"plan_id"`
	StripeCustomerID     string             `gorm:"size:255;index" json:"stripe_customer_id"`
	StripeSubscriptionID string             `gorm:"size:255;index" json:"-"`
	StripeEventID        *string            `gorm:"size:255;uniqueIndex" json:"-"`
	CurrentPeriodEnd     *time.Time         `json:"current_period_end"`
	CreatedAt            time.Time          `gorm:"index:idx_subscriptions_user_created,priority:2" json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

func (s *Subscription) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

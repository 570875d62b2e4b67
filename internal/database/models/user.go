package models

import (
	"time"

	"gorm.io/gorm"

	"github.com/trayyy/trayyy/backend-go/internal/config"
)

// User represents the user domain entity
type User struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Username  string         `gorm:"uniqueIndex;not null" json:"username"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	FullName  string         `gorm:"not null" json:"full_name"`
	Password  string         `gorm:"not null" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Billing fields. The payments provider is out of scope; the tier is a
	// stored attribute updated by whatever owns billing.
	PlanTier         config.PlanTier      `gorm:"not null;default:FREE" json:"plan_tier"`
	BillingStatus    config.BillingStatus `gorm:"not null;default:active" json:"billing_status"`
	CurrentPeriodEnd *time.Time           `json:"current_period_end,omitempty"`
}

// TableName overrides the table name
func (User) TableName() string {
	return "users"
}

// GetPlanLimits returns the plan limits for this user's tier
func (u *User) GetPlanLimits() config.PlanLimits {
	return config.GetPlanLimits(u.PlanTier)
}

package models

import (
	"gorm.io/gorm"
)

// User represents an account in the system: a business owner created through
// the claim flow or signup, or a platform admin.
type User struct {
	gorm.Model

	// Authentication fields
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`

	// Profile information
	Name  *string `json:"name,omitempty"`
	Phone *string `json:"phone,omitempty"`

	// Account status
	IsActive bool `gorm:"default:true" json:"is_active"`
	IsAdmin  bool `gorm:"default:false" json:"is_admin"`

	// Bumped on password change to invalidate outstanding tokens
	TokenVersion int `gorm:"default:0" json:"-"`

	// Stripe integration
	StripeCustomerID *string `gorm:"index" json:"stripe_customer_id,omitempty"`

	// Relations
	Businesses   []Business          `gorm:"foreignKey:OwnerID" json:"businesses,omitempty"`
	Transactions []CreditTransaction `gorm:"foreignKey:UserID" json:"transactions,omitempty"`
}

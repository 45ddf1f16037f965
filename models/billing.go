package models

import "gorm.io/gorm"

// Plan represents a purchasable lead-credit pack
type Plan struct {
	gorm.Model
	Name        string `gorm:"not null;uniqueIndex" json:"name"` // starter, pro, scale
	Description string `json:"description"`

	LeadCredits int `gorm:"not null" json:"lead_credits"`
	Price       int `gorm:"not null" json:"price"` // in cents

	// For display purposes
	DisplayPrice string `gorm:"-" json:"display_price"` // e.g. "$49"
	IsPopular    bool   `gorm:"default:false" json:"is_popular"`

	StripePriceID   string `json:"stripe_price_id"`
	BillingInterval string `json:"billing_interval" gorm:"default:'one_time'"` // one_time, monthly
}

// CreditTransaction records lead-credit purchases for a business
type CreditTransaction struct {
	gorm.Model
	BusinessID uint  `gorm:"not null;index" json:"business_id"`
	UserID     uint  `gorm:"not null;index" json:"user_id"`
	PlanID     *uint `json:"plan_id,omitempty"`

	LeadCredits int `gorm:"not null" json:"lead_credits"`

	// Financial information
	Amount        int    `json:"amount"` // in cents
	Currency      string `gorm:"default:'USD'" json:"currency"`
	PaymentMethod string `json:"payment_method"`
	PaymentStatus string `gorm:"default:'pending'" json:"payment_status"` // pending, succeeded, failed, refunded

	Description string `json:"description"`

	StripePaymentIntentID string `gorm:"index" json:"stripe_payment_intent_id"`
	StripeChargeID        string `json:"stripe_charge_id"`
	ReceiptURL            string `json:"receipt_url,omitempty"`

	// Relations
	Business Business `json:"-"`
	User     User     `json:"-"`
	Plan     *Plan    `json:"plan,omitempty"`
}

package models

import (
	"gorm.io/gorm"
)

// Lead lifecycle statuses. A quote carries a global status; each assignment
// carries its own per-business status so the same lead can be "new" for one
// business and "won" for another.
const (
	LeadStatusNew       = "new"
	LeadStatusViewed    = "viewed"
	LeadStatusContacted = "contacted"
	LeadStatusQuoted    = "quoted"
	LeadStatusWon       = "won"
	LeadStatusLost      = "lost"
	LeadStatusArchived  = "archived"
)

// ValidLeadStatus reports whether s is a recognized lead status.
func ValidLeadStatus(s string) bool {
	switch s {
	case LeadStatusNew, LeadStatusViewed, LeadStatusContacted,
		LeadStatusQuoted, LeadStatusWon, LeadStatusLost, LeadStatusArchived:
		return true
	}
	return false
}

// Quote is a customer project quote request (a lead). Immutable once created
// except for status changes and administrative archival.
type Quote struct {
	gorm.Model

	// Public reference handed back to the customer
	ReferenceID string `gorm:"uniqueIndex;not null" json:"reference_id"`

	// Customer identity and contact
	CustomerName  string `gorm:"not null" json:"customer_name"`
	CustomerEmail string `gorm:"not null" json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`

	// Request
	ServiceType string `gorm:"not null;index" json:"service_type"`
	Details     string `json:"details"`

	// Target location
	City    string   `json:"city"`
	State   string   `json:"state"`
	Zipcode string   `gorm:"index" json:"zipcode"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`

	// Set when the customer requested a quote from a specific listing
	BusinessID *uint `gorm:"index" json:"business_id,omitempty"`

	Status string `gorm:"default:'new';index" json:"status"`

	// Relations
	Assignments []LeadAssignment `gorm:"foreignKey:QuoteID" json:"assignments,omitempty"`
	Reveals     []LeadReveal     `gorm:"foreignKey:QuoteID" json:"reveals,omitempty"`
}

// LeadAssignment records that a business is eligible to see a quote. One row
// per (quote, business) pair; the owning business updates Status over time.
type LeadAssignment struct {
	gorm.Model

	QuoteID    uint `gorm:"not null;uniqueIndex:idx_assignment_quote_business" json:"quote_id"`
	BusinessID uint `gorm:"not null;uniqueIndex:idx_assignment_quote_business;index" json:"business_id"`

	Status string `gorm:"default:'new'" json:"status"`

	// Relations
	Quote    Quote    `json:"quote,omitempty"`
	Business Business `json:"-"`
}

// LeadReveal records that a business spent one credit to unmask a quote's
// contact details. At most one row per (quote, business) pair; the uniqueness
// constraint is what enforces the at-most-once credit debit.
type LeadReveal struct {
	gorm.Model

	QuoteID    uint `gorm:"not null;uniqueIndex:idx_reveal_quote_business" json:"quote_id"`
	BusinessID uint `gorm:"not null;uniqueIndex:idx_reveal_quote_business;index" json:"business_id"`

	CreditsSpent int `gorm:"default:1" json:"credits_spent"`

	// Relations
	Quote    Quote    `json:"-"`
	Business Business `json:"-"`
}

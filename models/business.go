package models

import (
	"strings"
	"time"

	"gorm.io/gorm"
)

// ServiceArea is a normalized named service area. Historically these were
// free-form "City" or "City, State" strings; they are stored as typed tuples
// now, but membership checks remain exact-match on the city (no fuzzy or
// case-insensitive matching).
type ServiceArea struct {
	City  string `json:"city"`
	State string `json:"state"`
}

// ParseServiceArea converts a raw "City" or "City, State" string into a
// ServiceArea. Malformed or empty entries return ok=false and are ignored.
func ParseServiceArea(raw string) (ServiceArea, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ServiceArea{}, false
	}
	if idx := strings.LastIndex(raw, ","); idx >= 0 {
		city := strings.TrimSpace(raw[:idx])
		state := strings.TrimSpace(raw[idx+1:])
		if city == "" {
			return ServiceArea{}, false
		}
		return ServiceArea{City: city, State: state}, true
	}
	return ServiceArea{City: raw}, true
}

// Business represents a listed local-services provider
type Business struct {
	gorm.Model

	// Identity
	Name    string   `gorm:"not null;index" json:"name"`
	Address string   `json:"address"`
	City    string   `gorm:"index" json:"city"`
	State   string   `gorm:"index" json:"state"`
	Zipcode string   `gorm:"index" json:"zipcode"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`

	// Contact. Email is the legacy single-value field imported from
	// heterogeneous sources; it may contain concatenated or array-like junk
	// and is superseded by ClaimContact rows once consolidated.
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Website string `json:"website"`

	// Reputation
	Rating      float64 `gorm:"default:0" json:"rating"`
	ReviewCount int     `gorm:"default:0" json:"review_count"`

	// Claim state
	IsClaimed  bool  `gorm:"default:false;index" json:"is_claimed"`
	IsVerified bool  `gorm:"default:false" json:"is_verified"`
	OwnerID    *uint `gorm:"index" json:"owner_id,omitempty"`

	// Featured listing window
	IsFeatured    bool       `gorm:"default:false" json:"is_featured"`
	FeaturedUntil *time.Time `json:"featured_until,omitempty"`

	// Service-area descriptors
	ServiceRadiusMiles int           `gorm:"default:25" json:"service_radius_miles"`
	ServiceZipcodes    []string      `gorm:"type:jsonb;serializer:json" json:"service_zipcodes"`
	ServiceAreas       []ServiceArea `gorm:"type:jsonb;serializer:json" json:"service_areas"`

	// Lead credits consumed by reveals, topped up by purchases
	LeadCredits int `gorm:"default:0" json:"lead_credits"`

	// Relations
	Assignments []LeadAssignment `gorm:"foreignKey:BusinessID" json:"assignments,omitempty"`
	Reveals     []LeadReveal     `gorm:"foreignKey:BusinessID" json:"reveals,omitempty"`
	Campaigns   []ClaimCampaign  `gorm:"foreignKey:BusinessID" json:"campaigns,omitempty"`
}

// FeaturedActive reports whether the business currently has an unexpired
// featured-listing window.
func (b *Business) FeaturedActive(now time.Time) bool {
	if !b.IsFeatured {
		return false
	}
	if b.FeaturedUntil == nil {
		return true
	}
	return now.Before(*b.FeaturedUntil)
}

// BusinessRef names a relation that carries a business_id foreign key. Every
// model referencing Business must be registered in BusinessRefs so the
// duplicate-merge re-pointing and the delete cascade cover it.
type BusinessRef struct {
	Table string
	Model interface{}
}

// BusinessRefs enumerates the dependent relations in the order they are
// re-pointed on merge and deleted on business removal.
func BusinessRefs() []BusinessRef {
	return []BusinessRef{
		{Table: "claim_campaigns", Model: &ClaimCampaign{}},
		{Table: "quotes", Model: &Quote{}},
		{Table: "lead_reveals", Model: &LeadReveal{}},
		{Table: "lead_assignments", Model: &LeadAssignment{}},
		{Table: "credit_transactions", Model: &CreditTransaction{}},
	}
}

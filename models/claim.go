package models

import (
	"time"

	"gorm.io/gorm"
)

// Claim funnel event types. Sent through recordEvent and appended to the
// ClaimEvent log; the matching campaign timestamp is written once.
const (
	ClaimEventSent           = "sent"
	ClaimEventOpened         = "opened"
	ClaimEventClicked        = "clicked"
	ClaimEventAccountCreated = "account_created"
	ClaimEventClaimed        = "claimed"
	ClaimEventBounced        = "bounced"
	ClaimEventUnsubscribed   = "unsubscribed"
)

// Claim campaign sources determine the token validity window.
const (
	CampaignSourceAuto  = "auto"  // issued on business insert, valid 365 days
	CampaignSourceAdmin = "admin" // issued by bulk admin action, valid 30 days
)

// Derived campaign statuses, ordered by funnel depth.
const (
	CampaignStatusCreated        = "created"
	CampaignStatusSent           = "sent"
	CampaignStatusOpened         = "opened"
	CampaignStatusClicked        = "clicked"
	CampaignStatusAccountCreated = "account_created"
	CampaignStatusClaimed        = "claimed"
	CampaignStatusExpired        = "expired"
	CampaignStatusBounced        = "bounced"
	CampaignStatusUnsubscribed   = "unsubscribed"
)

// ClaimCampaign is one outreach attempt at getting a business to claim its
// listing. The funnel timestamps are write-once caches; the authoritative
// history lives in the ClaimEvent log.
type ClaimCampaign struct {
	gorm.Model

	BusinessID uint      `gorm:"not null;index" json:"business_id"`
	ClaimToken string    `gorm:"uniqueIndex;not null" json:"claim_token"`
	Source     string    `gorm:"default:'auto'" json:"source"`
	ExpiresAt  time.Time `gorm:"not null" json:"expires_at"`

	// Funnel timestamps, each set at most once
	EmailSentAt      *time.Time `json:"email_sent_at,omitempty"`
	EmailOpenedAt    *time.Time `json:"email_opened_at,omitempty"`
	LinkClickedAt    *time.Time `json:"link_clicked_at,omitempty"`
	AccountCreatedAt *time.Time `json:"account_created_at,omitempty"`
	ClaimedAt        *time.Time `json:"claimed_at,omitempty"`

	// Orthogonal terminal states, reachable from any non-claimed state
	BouncedAt      *time.Time `json:"bounced_at,omitempty"`
	UnsubscribedAt *time.Time `json:"unsubscribed_at,omitempty"`

	ClaimedByUserID *uint `json:"claimed_by_user_id,omitempty"`

	// Relations
	Business Business       `json:"business,omitempty"`
	Contacts []ClaimContact `gorm:"foreignKey:CampaignID" json:"contacts,omitempty"`
	Events   []ClaimEvent   `gorm:"foreignKey:CampaignID" json:"events,omitempty"`
}

// IsExpired reports whether the token is past its validity window.
func (cc *ClaimCampaign) IsExpired(now time.Time) bool {
	return !now.Before(cc.ExpiresAt)
}

// IsActive reports whether the token can still be used: unclaimed and
// unexpired.
func (cc *ClaimCampaign) IsActive(now time.Time) bool {
	return cc.ClaimedAt == nil && !cc.IsExpired(now)
}

// Status derives the campaign state from the cached funnel timestamps.
// Claimed is terminal and wins over everything; bounce/unsubscribe and
// expiry are terminal for unclaimed campaigns.
func (cc *ClaimCampaign) Status(now time.Time) string {
	if cc.ClaimedAt != nil {
		return CampaignStatusClaimed
	}
	if cc.UnsubscribedAt != nil {
		return CampaignStatusUnsubscribed
	}
	if cc.BouncedAt != nil {
		return CampaignStatusBounced
	}
	if cc.IsExpired(now) {
		return CampaignStatusExpired
	}
	switch {
	case cc.AccountCreatedAt != nil:
		return CampaignStatusAccountCreated
	case cc.LinkClickedAt != nil:
		return CampaignStatusClicked
	case cc.EmailOpenedAt != nil:
		return CampaignStatusOpened
	case cc.EmailSentAt != nil:
		return CampaignStatusSent
	}
	return CampaignStatusCreated
}

// ClaimContact is a normalized outreach recipient attached to a campaign,
// the replacement for the legacy free-text multi-email business field.
type ClaimContact struct {
	gorm.Model

	CampaignID uint   `gorm:"not null;uniqueIndex:idx_contact_campaign_email" json:"campaign_id"`
	Email      string `gorm:"not null;uniqueIndex:idx_contact_campaign_email" json:"email"`

	IsPrimary  bool `gorm:"default:false" json:"is_primary"`
	IsSelected bool `gorm:"default:true" json:"is_selected"`

	// Per-recipient funnel timestamps
	SentAt    *time.Time `json:"sent_at,omitempty"`
	OpenedAt  *time.Time `json:"opened_at,omitempty"`
	ClickedAt *time.Time `json:"clicked_at,omitempty"`
	BouncedAt *time.Time `json:"bounced_at,omitempty"`

	// Relations
	Campaign ClaimCampaign `json:"-"`
}

// ClaimEvent is an append-only log of funnel milestones. Each milestone is
// appended at most once per campaign.
type ClaimEvent struct {
	gorm.Model

	CampaignID uint      `gorm:"not null;index" json:"campaign_id"`
	EventType  string    `gorm:"not null" json:"event_type"`
	OccurredAt time.Time `gorm:"not null" json:"occurred_at"`

	// Relations
	Campaign ClaimCampaign `json:"-"`
}

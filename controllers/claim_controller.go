package controller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

const (
	// AdminCampaignValidity is the token window for manually issued campaigns.
	AdminCampaignValidity = 30 * 24 * time.Hour
	// AutoCampaignValidity is the token window for campaigns auto-issued on
	// business creation.
	AutoCampaignValidity = 365 * 24 * time.Hour

	maxTokenAttempts = 5
	maxIssueAttempts = 3
)

type ClaimController struct {
	DB     *gorm.DB
	Mailer *utils.Mailer
	Logger *log.Logger
}

func NewClaimController(db *gorm.DB, mailer *utils.Mailer, logger *log.Logger) *ClaimController {
	return &ClaimController{
		DB:     db,
		Mailer: mailer,
		Logger: logger,
	}
}

// IssueClaimToken creates a claim campaign for an unclaimed business. If an
// active campaign already exists this is a benign skip: the existing campaign
// is returned with created=false. Token generation retries on collision a
// bounded number of times and then fails loudly with ErrTokenEntropy.
func (cc *ClaimController) IssueClaimToken(businessID uint, source string) (*models.ClaimCampaign, bool, error) {
	validity := AutoCampaignValidity
	if source == models.CampaignSourceAdmin {
		validity = AdminCampaignValidity
	}

	var campaign *models.ClaimCampaign
	var created bool
	var err error

	// The active-campaign existence check races with itself across the
	// auto-trigger, the worker backfill and admin bulk issuance; serializable
	// isolation turns the losing writer into a retry that then sees the
	// winner's campaign and takes the benign-skip path.
	for attempt := 0; attempt < maxIssueAttempts; attempt++ {
		campaign, created = nil, false
		err = cc.issueOnce(businessID, source, validity, &campaign, &created)
		if err == nil || !isSerializationFailure(err) {
			break
		}
		cc.Logger.Printf("Retrying campaign issuance for business %d after serialization conflict", businessID)
	}

	if err != nil {
		if errors.Is(err, ErrTokenEntropy) {
			// Entropy exhaustion is a fatal configuration fault, not a
			// retryable business error.
			sentry.CaptureException(err)
			cc.Logger.Printf("FATAL: claim token generation exhausted for business %d", businessID)
		}
		return nil, false, err
	}
	return campaign, created, nil
}

func (cc *ClaimController) issueOnce(businessID uint, source string, validity time.Duration, campaign **models.ClaimCampaign, created *bool) error {
	return cc.DB.Transaction(func(tx *gorm.DB) error {
		var business models.Business
		if err := tx.First(&business, businessID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrBusinessNotFound
			}
			return err
		}
		if business.IsClaimed {
			return ErrAlreadyClaimed
		}

		// At most one active (unexpired, unclaimed) campaign per business.
		var existing models.ClaimCampaign
		err := tx.Where("business_id = ? AND claimed_at IS NULL AND expires_at > ?", businessID, time.Now()).
			First(&existing).Error
		if err == nil {
			*campaign = &existing
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		for attempt := 0; attempt < maxTokenAttempts; attempt++ {
			token, err := utils.GenerateClaimToken()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrTokenEntropy, err)
			}
			fresh := models.ClaimCampaign{
				BusinessID: businessID,
				ClaimToken: token,
				Source:     source,
				ExpiresAt:  time.Now().Add(validity),
			}
			if err := tx.Create(&fresh).Error; err != nil {
				if errors.Is(err, gorm.ErrDuplicatedKey) {
					continue // token collision, retry with a new one
				}
				return err
			}
			*campaign = &fresh
			*created = true
			return nil
		}
		return ErrTokenEntropy
	}, &sql.TxOptions{Isolation: sql.LevelSerializable})
}

// isSerializationFailure matches the retryable conflict Postgres reports for
// serializable transactions (SQLSTATE 40001).
func isSerializationFailure(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLSTATE 40001") || strings.Contains(msg, "could not serialize")
}

// EnsureCampaignForBusiness is the auto-trigger that runs on business insert:
// any unclaimed business with an email gets a campaign, its contacts
// consolidated, and the invitation sent. Concurrent issuance for the same
// business resolves to a benign skip.
func (cc *ClaimController) EnsureCampaignForBusiness(business *models.Business) (*models.ClaimCampaign, error) {
	if business.IsClaimed || business.Email == "" {
		return nil, nil
	}

	campaign, created, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAuto)
	if err != nil {
		if errors.Is(err, ErrAlreadyClaimed) {
			return nil, nil
		}
		return nil, err
	}

	if _, err := cc.ConsolidateContacts(campaign, business.Email); err != nil {
		cc.Logger.Printf("Failed to consolidate contacts for campaign %d: %v", campaign.ID, err)
	}

	if created {
		cc.SendOutreach(campaign, business)
	}
	return campaign, nil
}

// ConsolidateContacts normalizes a legacy multi-email field into ClaimContact
// rows for a campaign. The first surviving address is flagged primary;
// duplicates against the (campaign, email) constraint are silently skipped.
func (cc *ClaimController) ConsolidateContacts(campaign *models.ClaimCampaign, rawEmailField string) (int, error) {
	emails := utils.NormalizeEmailField(rawEmailField)
	inserted := 0
	for i, email := range emails {
		contact := models.ClaimContact{
			CampaignID: campaign.ID,
			Email:      email,
			IsPrimary:  i == 0,
			IsSelected: true,
		}
		if err := cc.DB.Create(&contact).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue
			}
			return inserted, fmt.Errorf("failed to insert contact %q: %w", email, err)
		}
		inserted++
	}
	return inserted, nil
}

// SendOutreach delivers the claim invitation to the campaign's selected
// contacts and records the sent milestone. Delivery problems are logged, not
// propagated; the campaign stays issuable for a later sweep.
func (cc *ClaimController) SendOutreach(campaign *models.ClaimCampaign, business *models.Business) {
	if !cc.Mailer.Configured() {
		cc.Logger.Printf("SMTP not configured, skipping outreach for campaign %d", campaign.ID)
		return
	}

	var contacts []models.ClaimContact
	if err := cc.DB.Where("campaign_id = ? AND is_selected = ?", campaign.ID, true).
		Order("is_primary DESC, id ASC").
		Find(&contacts).Error; err != nil {
		cc.Logger.Printf("Failed to load contacts for campaign %d: %v", campaign.ID, err)
		return
	}

	ctx := context.Background()
	sent := 0
	for _, contact := range contacts {
		if contact.SentAt != nil {
			continue
		}
		if !utils.Deliverable(contact.Email) {
			cc.Logger.Printf("Skipping undeliverable contact %s on campaign %d", contact.Email, campaign.ID)
			continue
		}
		if !utils.DomainAcceptsMail(ctx, contact.Email) {
			cc.Logger.Printf("Skipping contact %s on campaign %d, domain accepts no mail", contact.Email, campaign.ID)
			continue
		}
		if err := cc.Mailer.SendClaimInvitation(
			contact.Email, business.Name, business.City,
			campaign.ClaimToken, campaign.ExpiresAt,
		); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"campaign_id": campaign.ID,
				"email":       contact.Email,
			}).Warn("claim outreach delivery failed")
			continue
		}
		now := time.Now()
		cc.DB.Model(&contact).Update("sent_at", &now)
		sent++
	}

	if sent > 0 {
		if err := cc.RecordFunnelEvent(campaign.ClaimToken, models.ClaimEventSent); err != nil {
			cc.Logger.Printf("Failed to record sent event for campaign %d: %v", campaign.ID, err)
		}
	}
}

// LookupToken resolves a claim token for the public claim page. The three
// failure shapes are distinct outcomes: not found, expired, already claimed.
func (cc *ClaimController) LookupToken(token string) (*models.ClaimCampaign, error) {
	var campaign models.ClaimCampaign
	if err := cc.DB.Preload("Business").Where("claim_token = ?", token).First(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if campaign.ClaimedAt != nil {
		return nil, ErrAlreadyClaimed
	}
	if campaign.IsExpired(time.Now()) {
		return nil, ErrTokenExpired
	}
	return &campaign, nil
}

// RecordFunnelEvent applies a funnel milestone to the campaign identified by
// token. Timestamps are write-once: re-applying an event that already
// happened is a no-op. Claimed campaigns accept no further events; bounce and
// unsubscribe may arrive from any non-claimed state.
func (cc *ClaimController) RecordFunnelEvent(token, eventType string) error {
	var column string
	switch eventType {
	case models.ClaimEventSent:
		column = "email_sent_at"
	case models.ClaimEventOpened:
		column = "email_opened_at"
	case models.ClaimEventClicked:
		column = "link_clicked_at"
	case models.ClaimEventAccountCreated:
		column = "account_created_at"
	case models.ClaimEventBounced:
		column = "bounced_at"
	case models.ClaimEventUnsubscribed:
		column = "unsubscribed_at"
	default:
		return fmt.Errorf("unknown funnel event %q", eventType)
	}

	return cc.DB.Transaction(func(tx *gorm.DB) error {
		var campaign models.ClaimCampaign
		if err := tx.Where("claim_token = ?", token).First(&campaign).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}

		// Single guarded column write. A campaign claimed since the read, or
		// a milestone already recorded, leaves the row untouched; never write
		// the whole struct back.
		now := time.Now()
		res := tx.Model(&models.ClaimCampaign{}).
			Where("id = ? AND claimed_at IS NULL AND "+column+" IS NULL", campaign.ID).
			Update(column, now)
		if res.Error != nil {
			return fmt.Errorf("failed to update campaign funnel: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil // terminal or already recorded, idempotent
		}

		event := models.ClaimEvent{
			CampaignID: campaign.ID,
			EventType:  eventType,
			OccurredAt: now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to append funnel event: %w", err)
		}
		return nil
	})
}

// CompleteClaim finalizes a campaign: sets ClaimedAt exactly once, flips the
// business to claimed, links the owner, and invalidates any other active
// campaign for the business.
func (cc *ClaimController) CompleteClaim(token string, userID uint) (*models.ClaimCampaign, error) {
	var claimed *models.ClaimCampaign
	err := cc.DB.Transaction(func(tx *gorm.DB) error {
		var campaign models.ClaimCampaign
		if err := tx.Where("claim_token = ?", token).First(&campaign).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrTokenNotFound
			}
			return err
		}
		if campaign.ClaimedAt != nil {
			return ErrAlreadyClaimed
		}
		if campaign.IsExpired(time.Now()) {
			return ErrTokenExpired
		}

		// Guarded write: only the first completion lands. A winner that
		// committed after our read turns this into AlreadyClaimed instead of
		// a stale overwrite of its ClaimedAt.
		now := time.Now()
		res := tx.Model(&models.ClaimCampaign{}).
			Where("id = ? AND claimed_at IS NULL", campaign.ID).
			Updates(map[string]interface{}{
				"claimed_at":         now,
				"claimed_by_user_id": userID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to complete campaign: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrAlreadyClaimed
		}
		campaign.ClaimedAt = &now
		campaign.ClaimedByUserID = &userID

		event := models.ClaimEvent{
			CampaignID: campaign.ID,
			EventType:  models.ClaimEventClaimed,
			OccurredAt: now,
		}
		if err := tx.Create(&event).Error; err != nil {
			return fmt.Errorf("failed to append claimed event: %w", err)
		}

		if err := tx.Model(&models.Business{}).
			Where("id = ?", campaign.BusinessID).
			Updates(map[string]interface{}{
				"is_claimed": true,
				"owner_id":   userID,
			}).Error; err != nil {
			return fmt.Errorf("failed to mark business claimed: %w", err)
		}

		// A claimed business keeps no active token; retire the others.
		if err := tx.Model(&models.ClaimCampaign{}).
			Where("business_id = ? AND id != ? AND claimed_at IS NULL AND expires_at > ?",
				campaign.BusinessID, campaign.ID, now).
			Update("expires_at", now).Error; err != nil {
			return fmt.Errorf("failed to retire sibling campaigns: %w", err)
		}

		claimed = &campaign
		return nil
	})
	if err != nil {
		return nil, err
	}

	cc.Logger.Printf("Business %d claimed via campaign %d", claimed.BusinessID, claimed.ID)
	return claimed, nil
}

// GetClaimPage serves the public claim landing page lookup. Reaching it
// counts as a link click. The three token failures map to distinct messages.
func (cc *ClaimController) GetClaimPage(c *fiber.Ctx) error {
	token := c.Params("token")

	campaign, err := cc.LookupToken(token)
	if err != nil {
		return cc.claimErrorResponse(c, err)
	}

	if err := cc.RecordFunnelEvent(token, models.ClaimEventClicked); err != nil {
		cc.Logger.Printf("Failed to record click for token %s: %v", token, err)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"business": fiber.Map{
			"name":    campaign.Business.Name,
			"city":    campaign.Business.City,
			"state":   campaign.Business.State,
			"address": campaign.Business.Address,
		},
		"expires_at": campaign.ExpiresAt,
	}))
}

type CompleteClaimRequest struct {
	Name     string `json:"name" validate:"required,max=200"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// HandleCompleteClaim creates (or authenticates) the owner account and
// finalizes the claim in one flow, recording the account-created milestone on
// the way.
func (cc *ClaimController) HandleCompleteClaim(c *fiber.Ctx) error {
	token := c.Params("token")

	var input CompleteClaimRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	if _, err := cc.LookupToken(token); err != nil {
		return cc.claimErrorResponse(c, err)
	}

	user, isNew, err := cc.findOrCreateUser(input)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusUnauthorized, "Invalid credentials for existing account", nil)
	}
	if isNew {
		if err := cc.RecordFunnelEvent(token, models.ClaimEventAccountCreated); err != nil {
			cc.Logger.Printf("Failed to record account creation for token %s: %v", token, err)
		}
	}

	campaign, err := cc.CompleteClaim(token, user.ID)
	if err != nil {
		return cc.claimErrorResponse(c, err)
	}

	access, refresh, err := utils.GenerateJWTToken(user)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to issue session", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"business_id":   campaign.BusinessID,
		"claimed_at":    campaign.ClaimedAt,
		"access_token":  access,
		"refresh_token": refresh,
	}))
}

func (cc *ClaimController) findOrCreateUser(input CompleteClaimRequest) (*models.User, bool, error) {
	var user models.User
	err := cc.DB.Where("email = ?", input.Email).First(&user).Error
	if err == nil {
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
			return nil, false, errors.New("password mismatch")
		}
		return &user, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, err
	}
	user = models.User{
		Email:        input.Email,
		PasswordHash: string(hash),
		Name:         utils.Pointer(input.Name),
	}
	if err := cc.DB.Create(&user).Error; err != nil {
		return nil, false, err
	}
	return &user, true, nil
}

// claimErrorResponse maps the token error taxonomy to user-facing outcomes.
// Expired, claimed, and invalid links must stay distinguishable.
func (cc *ClaimController) claimErrorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrTokenExpired):
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"success": false,
			"error":   "This claim link has expired. Contact support to request a new invitation.",
			"code":    "expired",
		})
	case errors.Is(err, ErrAlreadyClaimed):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"success": false,
			"error":   "This business has already been claimed.",
			"code":    "already_claimed",
		})
	case errors.Is(err, ErrTokenNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"success": false,
			"error":   "This claim link is invalid.",
			"code":    "not_found",
		})
	default:
		cc.Logger.Printf("Claim lookup failed: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process claim link", nil)
	}
}

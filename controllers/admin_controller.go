package controller

import (
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

// DuplicateKey selects the identity used to group duplicate listings.
type DuplicateKey string

const (
	DuplicateKeyNameLocation  DuplicateKey = "name_location"
	DuplicateKeyEmailLocation DuplicateKey = "email_location"
)

type AdminController struct {
	DB     *gorm.DB
	Claims *ClaimController
	Logger *log.Logger
}

func NewAdminController(db *gorm.DB, claims *ClaimController, logger *log.Logger) *AdminController {
	return &AdminController{
		DB:     db,
		Claims: claims,
		Logger: logger,
	}
}

// DuplicateGroup is one set of listings sharing an identity key, ordered
// survivor-first.
type DuplicateGroup struct {
	Key        string            `json:"key"`
	Businesses []models.Business `json:"businesses"`
}

// MergeSummary reports the outcome of a duplicate merge run.
type MergeSummary struct {
	GroupsMerged int      `json:"groups_merged"`
	Removed      int      `json:"removed"`
	SurvivorIDs  []uint   `json:"survivor_ids"`
	Errors       []string `json:"errors,omitempty"`
}

// PreviewDuplicates groups businesses by the chosen identity key and reports
// every group of two or more. It never mutates state.
func (ac *AdminController) PreviewDuplicates(key DuplicateKey) ([]DuplicateGroup, error) {
	var businesses []models.Business
	if err := ac.DB.Find(&businesses).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch businesses: %w", err)
	}

	grouped := make(map[string][]models.Business)
	for _, b := range businesses {
		k, ok := identityKey(key, &b)
		if !ok {
			continue
		}
		grouped[k] = append(grouped[k], b)
	}

	var groups []DuplicateGroup
	for k, members := range grouped {
		if len(members) < 2 {
			continue
		}
		sortSurvivorFirst(members)
		groups = append(groups, DuplicateGroup{Key: k, Businesses: members})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups, nil
}

// MergeDuplicates merges every duplicate group: the survivor absorbs
// best-available fields, every dependent relation is re-pointed, and only
// then are the duplicates removed. Each group is one transaction, so a crash
// mid-merge never leaves a half-updated survivor. Running it again right
// away finds no groups.
func (ac *AdminController) MergeDuplicates(key DuplicateKey) (*MergeSummary, error) {
	groups, err := ac.PreviewDuplicates(key)
	if err != nil {
		return nil, err
	}

	summary := &MergeSummary{}
	for _, group := range groups {
		if err := ac.mergeGroup(group); err != nil {
			sentry.CaptureException(err)
			ac.Logger.Printf("Failed to merge group %q: %v", group.Key, err)
			summary.Errors = append(summary.Errors, fmt.Sprintf("%s: %v", group.Key, err))
			continue
		}
		summary.GroupsMerged++
		summary.Removed += len(group.Businesses) - 1
		summary.SurvivorIDs = append(summary.SurvivorIDs, group.Businesses[0].ID)
	}
	return summary, nil
}

func (ac *AdminController) mergeGroup(group DuplicateGroup) error {
	survivor := group.Businesses[0]
	duplicates := group.Businesses[1:]

	dupIDs := make([]uint, 0, len(duplicates))
	for _, d := range duplicates {
		dupIDs = append(dupIDs, d.ID)
	}

	merged := mergeFields(group.Businesses)

	return ac.DB.Transaction(func(tx *gorm.DB) error {
		// Re-point every registered relation before anything is deleted.
		for _, ref := range models.BusinessRefs() {
			if err := repointRef(tx, ref, dupIDs, survivor.ID); err != nil {
				return fmt.Errorf("re-pointing %s: %w", ref.Table, err)
			}
		}

		if err := tx.Unscoped().Delete(&models.Business{}, dupIDs).Error; err != nil {
			return fmt.Errorf("deleting duplicates: %w", err)
		}

		if err := tx.Model(&models.Business{}).
			Where("id = ?", survivor.ID).
			Updates(merged).Error; err != nil {
			return fmt.Errorf("updating survivor: %w", err)
		}
		return nil
	})
}

// repointRef moves a relation's rows from the duplicate IDs to the survivor,
// row by row so a (quote, business) pair the survivor already holds is
// dropped rather than duplicated.
func repointRef(tx *gorm.DB, ref models.BusinessRef, dupIDs []uint, survivorID uint) error {
	var rowIDs []uint
	if err := tx.Table(ref.Table).
		Where("business_id IN ?", dupIDs).
		Pluck("id", &rowIDs).Error; err != nil {
		return err
	}

	for _, rowID := range rowIDs {
		err := tx.Table(ref.Table).
			Where("id = ?", rowID).
			Update("business_id", survivorID).Error
		if err == nil {
			continue
		}
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// The survivor already has this row's unique pair; the duplicate
			// row is redundant.
			if err := tx.Exec("DELETE FROM "+ref.Table+" WHERE id = ?", rowID).Error; err != nil {
				return err
			}
			continue
		}
		return err
	}
	return nil
}

// identityKey derives the grouping key for a business, or ok=false when the
// key's components are missing (an empty email never groups anything).
func identityKey(key DuplicateKey, b *models.Business) (string, bool) {
	location := strings.ToLower(strings.TrimSpace(b.City)) + "|" +
		strings.ToLower(utils.NormalizeState(b.State)) + "|" +
		strings.TrimSpace(b.Zipcode)

	switch key {
	case DuplicateKeyEmailLocation:
		emails := utils.NormalizeEmailField(b.Email)
		if len(emails) == 0 {
			return "", false
		}
		return emails[0] + "|" + location, true
	default:
		name := strings.ToLower(strings.TrimSpace(b.Name))
		if name == "" {
			return "", false
		}
		return name + "|" + location, true
	}
}

// sortSurvivorFirst orders a group by the survivor-selection total order:
// claimed first, then featured, then review count descending, then oldest.
func sortSurvivorFirst(members []models.Business) {
	sort.SliceStable(members, func(i, j int) bool {
		a, b := members[i], members[j]
		if a.IsClaimed != b.IsClaimed {
			return a.IsClaimed
		}
		if a.IsFeatured != b.IsFeatured {
			return a.IsFeatured
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// mergeFields computes the survivor's merged column values: first non-empty
// in group order for contact fields, max for reputation, OR for flags.
func mergeFields(group []models.Business) map[string]interface{} {
	merged := map[string]interface{}{}

	email, phone, website := "", "", ""
	rating, reviews := 0.0, 0
	claimed, featured := false, false
	for _, b := range group {
		if email == "" {
			email = b.Email
		}
		if phone == "" {
			phone = b.Phone
		}
		if website == "" {
			website = b.Website
		}
		if b.Rating > rating {
			rating = b.Rating
		}
		if b.ReviewCount > reviews {
			reviews = b.ReviewCount
		}
		claimed = claimed || b.IsClaimed
		featured = featured || b.IsFeatured
	}

	merged["email"] = email
	merged["phone"] = phone
	merged["website"] = website
	merged["rating"] = rating
	merged["review_count"] = reviews
	merged["is_claimed"] = claimed
	merged["is_featured"] = featured
	return merged
}

// BulkIssueSummary reports a bulk token-issuance run. One bad business never
// aborts the batch.
type BulkIssueSummary struct {
	Issued  int      `json:"issued"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// BulkIssueCampaigns issues admin claim campaigns for a list of businesses,
// consolidating contacts and sending outreach for each new campaign.
func (ac *AdminController) BulkIssueCampaigns(businessIDs []uint) *BulkIssueSummary {
	summary := &BulkIssueSummary{}
	for _, id := range businessIDs {
		campaign, created, err := ac.Claims.IssueClaimToken(id, models.CampaignSourceAdmin)
		if err != nil {
			if errors.Is(err, ErrAlreadyClaimed) {
				summary.Skipped++
				continue
			}
			summary.Errors = append(summary.Errors, fmt.Sprintf("business %d: %v", id, err))
			continue
		}
		if !created {
			summary.Skipped++
			continue
		}

		var business models.Business
		if err := ac.DB.First(&business, id).Error; err == nil {
			if _, err := ac.Claims.ConsolidateContacts(campaign, business.Email); err != nil {
				ac.Logger.Printf("Failed to consolidate contacts for business %d: %v", id, err)
			}
			ac.Claims.SendOutreach(campaign, &business)
		}
		summary.Issued++
	}
	return summary
}

// ConsolidateSummary reports the legacy-email migration run.
type ConsolidateSummary struct {
	CampaignsProcessed int      `json:"campaigns_processed"`
	ContactsCreated    int      `json:"contacts_created"`
	Errors             []string `json:"errors,omitempty"`
}

// ConsolidateLegacyContacts is the one-time (and re-runnable) migration that
// parses every campaign business's legacy email field into normalized
// ClaimContact rows. Existing rows are left untouched, so a second run is a
// no-op.
func (ac *AdminController) ConsolidateLegacyContacts() (*ConsolidateSummary, error) {
	var campaigns []models.ClaimCampaign
	if err := ac.DB.Preload("Business").Find(&campaigns).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch campaigns: %w", err)
	}

	summary := &ConsolidateSummary{}
	for i := range campaigns {
		campaign := &campaigns[i]
		if campaign.Business.Email == "" {
			continue
		}
		created, err := ac.Claims.ConsolidateContacts(campaign, campaign.Business.Email)
		if err != nil {
			// A malformed record skips, the batch continues.
			summary.Errors = append(summary.Errors, fmt.Sprintf("campaign %d: %v", campaign.ID, err))
			continue
		}
		summary.CampaignsProcessed++
		summary.ContactsCreated += created
	}
	return summary, nil
}

// DeleteBusiness removes a listing and every dependent row in one
// transaction.
func (ac *AdminController) DeleteBusiness(businessID uint) error {
	return ac.DB.Transaction(func(tx *gorm.DB) error {
		// Campaign children first, then the registered relations.
		if err := tx.Exec(`DELETE FROM claim_contacts WHERE campaign_id IN
			(SELECT id FROM claim_campaigns WHERE business_id = ?)`, businessID).Error; err != nil {
			return err
		}
		if err := tx.Exec(`DELETE FROM claim_events WHERE campaign_id IN
			(SELECT id FROM claim_campaigns WHERE business_id = ?)`, businessID).Error; err != nil {
			return err
		}
		for _, ref := range models.BusinessRefs() {
			if ref.Table == "quotes" {
				// Quotes are never hard-deleted; detach them instead.
				if err := tx.Table(ref.Table).
					Where("business_id = ?", businessID).
					Update("business_id", nil).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Exec("DELETE FROM "+ref.Table+" WHERE business_id = ?", businessID).Error; err != nil {
				return err
			}
		}
		return tx.Unscoped().Delete(&models.Business{}, businessID).Error
	})
}

// --- fiber handlers ---

func (ac *AdminController) HandlePreviewDuplicates(c *fiber.Ctx) error {
	groups, err := ac.PreviewDuplicates(parseDuplicateKey(c.Query("key")))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to find duplicates", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{
		"groups": groups,
		"count":  len(groups),
	}))
}

func (ac *AdminController) HandleMergeDuplicates(c *fiber.Ctx) error {
	summary, err := ac.MergeDuplicates(parseDuplicateKey(c.Query("key")))
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to merge duplicates", nil)
	}
	return c.JSON(utils.SuccessResponse(summary))
}

type BulkIssueRequest struct {
	BusinessIDs []uint `json:"business_ids" validate:"required,min=1"`
}

func (ac *AdminController) HandleBulkIssue(c *fiber.Ctx) error {
	var input BulkIssueRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	return c.JSON(utils.SuccessResponse(ac.BulkIssueCampaigns(input.BusinessIDs)))
}

func (ac *AdminController) HandleConsolidate(c *fiber.Ctx) error {
	summary, err := ac.ConsolidateLegacyContacts()
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Consolidation failed", nil)
	}
	return c.JSON(utils.SuccessResponse(summary))
}

func (ac *AdminController) HandleDeleteBusiness(c *fiber.Ctx) error {
	businessID := utils.ParseUint(c.Params("businessID"))

	var business models.Business
	if err := ac.DB.First(&business, businessID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Business not found", nil)
	}
	if err := ac.DeleteBusiness(businessID); err != nil {
		sentry.CaptureException(err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to delete business", nil)
	}
	return c.JSON(utils.SuccessResponse(fiber.Map{"deleted": businessID}))
}

func parseDuplicateKey(raw string) DuplicateKey {
	if DuplicateKey(raw) == DuplicateKeyEmailLocation {
		return DuplicateKeyEmailLocation
	}
	return DuplicateKeyNameLocation
}

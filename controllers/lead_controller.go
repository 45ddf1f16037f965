package controller

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

// Fixed mask tokens returned in place of contact details before a reveal.
// Never partially redacted so real values cannot be derived.
const maskedEmail = "*****@*****"

type LeadController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewLeadController(db *gorm.DB, logger *log.Logger) *LeadController {
	return &LeadController{
		DB:     db,
		Logger: logger,
	}
}

// RevealResult carries the unmasked contact details and the remaining
// balance after a reveal.
type RevealResult struct {
	QuoteID          uint   `json:"quote_id"`
	CustomerName     string `json:"customer_name"`
	CustomerEmail    string `json:"customer_email"`
	CustomerPhone    string `json:"customer_phone"`
	CreditsRemaining int    `json:"credits_remaining"`
	AlreadyRevealed  bool   `json:"already_revealed"`
}

// errRevealExists signals inside the transaction that the pair already has a
// reveal, so the debit must be skipped.
var errRevealExists = errors.New("reveal already exists")

// RevealLead unmasks a lead's contact details for a business, spending one
// credit at most once per (quote, business) pair. The reveal insert and the
// credit decrement share one transaction; the uniqueness constraint on the
// pair is what makes concurrent calls debit exactly once. Re-revealing is
// free and idempotent.
func (lc *LeadController) RevealLead(quoteID, businessID uint) (*RevealResult, error) {
	var quote models.Quote
	if err := lc.DB.First(&quote, quoteID).Error; err != nil {
		return nil, fmt.Errorf("quote not found: %w", err)
	}

	alreadyRevealed := false
	err := lc.DB.Transaction(func(tx *gorm.DB) error {
		reveal := models.LeadReveal{
			QuoteID:      quoteID,
			BusinessID:   businessID,
			CreditsSpent: 1,
		}
		if err := tx.Create(&reveal).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errRevealExists
			}
			return fmt.Errorf("failed to create reveal: %w", err)
		}

		// Guarded decrement: zero rows means the balance is already empty,
		// which rolls back the reveal insert as well.
		res := tx.Model(&models.Business{}).
			Where("id = ? AND lead_credits > 0", businessID).
			UpdateColumn("lead_credits", gorm.Expr("lead_credits - 1"))
		if res.Error != nil {
			return fmt.Errorf("failed to decrement credits: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrInsufficientCredits
		}
		return nil
	})

	switch {
	case err == nil:
		// fresh reveal, credit spent
	case errors.Is(err, errRevealExists):
		alreadyRevealed = true
	case errors.Is(err, ErrInsufficientCredits):
		return nil, ErrInsufficientCredits
	default:
		return nil, err
	}

	var business models.Business
	if err := lc.DB.First(&business, businessID).Error; err != nil {
		return nil, fmt.Errorf("business not found: %w", err)
	}

	return &RevealResult{
		QuoteID:          quote.ID,
		CustomerName:     quote.CustomerName,
		CustomerEmail:    quote.CustomerEmail,
		CustomerPhone:    quote.CustomerPhone,
		CreditsRemaining: business.LeadCredits,
		AlreadyRevealed:  alreadyRevealed,
	}, nil
}

// MaskPhone replaces every digit with '*'.
func MaskPhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return '*'
		}
		return r
	}, phone)
}

// MaskEmail returns the fixed email mask token.
func MaskEmail(string) string {
	return maskedEmail
}

// leadView is one dashboard row: the assignment plus the quote with contact
// fields masked unless this business has revealed them.
type leadView struct {
	AssignmentID  uint   `json:"assignment_id"`
	QuoteID       uint   `json:"quote_id"`
	Status        string `json:"status"`
	ServiceType   string `json:"service_type"`
	Details       string `json:"details"`
	City          string `json:"city"`
	State         string `json:"state"`
	Zipcode       string `json:"zipcode"`
	CustomerName  string `json:"customer_name"`
	CustomerEmail string `json:"customer_email"`
	CustomerPhone string `json:"customer_phone"`
	Revealed      bool   `json:"revealed"`
	ReceivedAt    string `json:"received_at"`
}

// ListLeads returns the assignments for one of the caller's businesses with
// contact details masked until revealed.
func (lc *LeadController) ListLeads(c *fiber.Ctx) error {
	business, err := lc.requireOwnedBusiness(c)
	if err != nil {
		return err
	}

	var assignments []models.LeadAssignment
	if err := lc.DB.Preload("Quote").
		Where("business_id = ?", business.ID).
		Order("created_at DESC").
		Find(&assignments).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch leads", nil)
	}

	var reveals []models.LeadReveal
	if err := lc.DB.Where("business_id = ?", business.ID).Find(&reveals).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch reveals", nil)
	}
	revealed := make(map[uint]bool, len(reveals))
	for _, r := range reveals {
		revealed[r.QuoteID] = true
	}

	views := make([]leadView, 0, len(assignments))
	for _, a := range assignments {
		v := leadView{
			AssignmentID: a.ID,
			QuoteID:      a.QuoteID,
			Status:       a.Status,
			ServiceType:  a.Quote.ServiceType,
			Details:      a.Quote.Details,
			City:         a.Quote.City,
			State:        a.Quote.State,
			Zipcode:      a.Quote.Zipcode,
			CustomerName: a.Quote.CustomerName,
			Revealed:     revealed[a.QuoteID],
			ReceivedAt:   a.CreatedAt.Format("2006-01-02 15:04"),
		}
		if v.Revealed {
			v.CustomerEmail = a.Quote.CustomerEmail
			v.CustomerPhone = a.Quote.CustomerPhone
		} else {
			v.CustomerEmail = MaskEmail(a.Quote.CustomerEmail)
			v.CustomerPhone = MaskPhone(a.Quote.CustomerPhone)
		}
		views = append(views, v)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"leads":        views,
		"lead_credits": business.LeadCredits,
	}))
}

// HandleReveal is the dashboard action that spends a credit to unmask a lead.
func (lc *LeadController) HandleReveal(c *fiber.Ctx) error {
	business, err := lc.requireOwnedBusiness(c)
	if err != nil {
		return err
	}
	quoteID := utils.ParseUint(c.Params("quoteID"))

	// Only assigned leads can be revealed by this business.
	var assignment models.LeadAssignment
	if err := lc.DB.Where("quote_id = ? AND business_id = ?", quoteID, business.ID).
		First(&assignment).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	result, err := lc.RevealLead(quoteID, business.ID)
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			return c.Status(fiber.StatusPaymentRequired).JSON(fiber.Map{
				"success": false,
				"error":   "Not enough lead credits. Purchase a credit pack to reveal this lead.",
				"code":    "insufficient_credits",
			})
		}
		lc.Logger.Printf("Failed to reveal quote %d for business %d: %v", quoteID, business.ID, err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to reveal lead", nil)
	}

	return c.JSON(utils.SuccessResponse(result))
}

type UpdateLeadStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// UpdateLeadStatus sets the per-business tracking status on an assignment.
// It never touches the quote's own global status.
func (lc *LeadController) UpdateLeadStatus(c *fiber.Ctx) error {
	business, err := lc.requireOwnedBusiness(c)
	if err != nil {
		return err
	}
	quoteID := utils.ParseUint(c.Params("quoteID"))

	var input UpdateLeadStatusRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if !models.ValidLeadStatus(input.Status) {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead status", nil)
	}

	res := lc.DB.Model(&models.LeadAssignment{}).
		Where("quote_id = ? AND business_id = ?", quoteID, business.ID).
		Update("status", input.Status)
	if res.Error != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update lead", nil)
	}
	if res.RowsAffected == 0 {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{"status": input.Status}))
}

// requireOwnedBusiness resolves the :businessID param and checks the caller
// owns it (admins bypass the ownership check).
func (lc *LeadController) requireOwnedBusiness(c *fiber.Ctx) (*models.Business, error) {
	user := c.Locals("user").(*models.User)
	businessID := utils.ParseUint(c.Params("businessID"))

	var business models.Business
	if err := lc.DB.First(&business, businessID).Error; err != nil {
		return nil, utils.ErrorResponse(c, fiber.StatusNotFound, "Business not found", nil)
	}
	if !user.IsAdmin && (business.OwnerID == nil || *business.OwnerID != user.ID) {
		return nil, utils.ErrorResponse(c, fiber.StatusForbidden, "You do not own this business", nil)
	}
	return &business, nil
}

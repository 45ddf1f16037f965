package controller

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

// Geocoder converts an address string to coordinates. Implementations are
// external, rate-limited and unreliable; returning no coordinates is not an
// error.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (lat, lng *float64, err error)
}

type QuoteController struct {
	DB       *gorm.DB
	Logger   *log.Logger
	Geocoder Geocoder // optional
}

func NewQuoteController(db *gorm.DB, logger *log.Logger) *QuoteController {
	return &QuoteController{
		DB:     db,
		Logger: logger,
	}
}

// RouteResult is the outcome of distributing one quote.
type RouteResult struct {
	Assignments []models.LeadAssignment `json:"assignments"`
	Considered  int                     `json:"considered"`
	Matched     int                     `json:"matched"`
}

// RouteQuote matches a quote against every eligible business and creates one
// assignment per match. Unclaimed and unverified businesses never receive
// leads. Re-routing the same quote is a no-op for pairs that already exist,
// and zero matches is a successful outcome.
func (qc *QuoteController) RouteQuote(quote *models.Quote) (*RouteResult, error) {
	var candidates []models.Business
	if err := qc.DB.
		Where("is_claimed = ? OR is_verified = ?", true, true).
		Find(&candidates).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch candidate businesses: %w", err)
	}

	loc := utils.Location{
		City:    quote.City,
		State:   quote.State,
		Zipcode: quote.Zipcode,
		Lat:     quote.Lat,
		Lng:     quote.Lng,
	}

	result := &RouteResult{Considered: len(candidates)}
	for _, business := range candidates {
		if !utils.Matches(&business, loc) {
			continue
		}
		result.Matched++

		assignment := models.LeadAssignment{
			QuoteID:    quote.ID,
			BusinessID: business.ID,
			Status:     models.LeadStatusNew,
		}
		if err := qc.DB.Create(&assignment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				continue // already assigned, benign
			}
			return nil, fmt.Errorf("failed to create assignment for business %d: %w", business.ID, err)
		}
		result.Assignments = append(result.Assignments, assignment)
	}

	qc.Logger.Printf("Routed quote %d: %d considered, %d matched, %d new assignments",
		quote.ID, result.Considered, result.Matched, len(result.Assignments))

	return result, nil
}

type SubmitQuoteRequest struct {
	CustomerName  string `json:"customer_name" validate:"required,max=200"`
	CustomerEmail string `json:"customer_email" validate:"required,email"`
	CustomerPhone string `json:"customer_phone" validate:"omitempty,max=30"`
	ServiceType   string `json:"service_type" validate:"required,max=100"`
	Details       string `json:"details" validate:"omitempty,max=5000"`
	City          string `json:"city" validate:"omitempty,max=100"`
	State         string `json:"state" validate:"omitempty,max=50"`
	Zipcode       string `json:"zipcode" validate:"omitempty,max=10"`
	BusinessID    *uint  `json:"business_id"`
}

// SubmitQuote accepts a public quote request, geocodes it on a best-effort
// basis and routes it to eligible businesses.
func (qc *QuoteController) SubmitQuote(c *fiber.Ctx) error {
	var input SubmitQuoteRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}
	if input.City == "" && input.State == "" && input.Zipcode == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "A target location is required", nil)
	}

	quote := models.Quote{
		ReferenceID:   utils.NewReferenceID(),
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		ServiceType:   input.ServiceType,
		Details:       input.Details,
		City:          input.City,
		State:         input.State,
		Zipcode:       input.Zipcode,
		BusinessID:    input.BusinessID,
		Status:        models.LeadStatusNew,
	}

	qc.geocodeQuote(&quote)

	if err := qc.DB.Create(&quote).Error; err != nil {
		qc.Logger.Printf("Failed to create quote: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create quote request", nil)
	}

	result, err := qc.RouteQuote(&quote)
	if err != nil {
		// The quote is saved; routing can be retried by the worker sweep.
		qc.Logger.Printf("Failed to route quote %d: %v", quote.ID, err)
		return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
			"reference_id": quote.ReferenceID,
			"matched":      0,
		}))
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(fiber.Map{
		"reference_id": quote.ReferenceID,
		"matched":      result.Matched,
	}))
}

// geocodeQuote fills in coordinates when absent. The oracle may be down or
// rate-limited; failures are tolerated and must not block the submission.
func (qc *QuoteController) geocodeQuote(quote *models.Quote) {
	if qc.Geocoder == nil || (quote.Lat != nil && quote.Lng != nil) {
		return
	}
	address := fmt.Sprintf("%s, %s %s", quote.City, quote.State, quote.Zipcode)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	lat, lng, err := qc.Geocoder.Geocode(ctx, address)
	if err != nil {
		qc.Logger.Printf("Geocoding failed for quote location %q: %v", address, err)
		return
	}
	quote.Lat = lat
	quote.Lng = lng
}

// GetQuoteStatus lets a customer look up their submission by reference.
func (qc *QuoteController) GetQuoteStatus(c *fiber.Ctx) error {
	var quote models.Quote
	if err := qc.DB.Where("reference_id = ?", c.Params("reference")).First(&quote).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Quote request not found", nil)
	}

	var matched int64
	qc.DB.Model(&models.LeadAssignment{}).Where("quote_id = ?", quote.ID).Count(&matched)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"reference_id": quote.ReferenceID,
		"status":       quote.Status,
		"submitted_at": quote.CreatedAt,
		"matched":      matched,
	}))
}

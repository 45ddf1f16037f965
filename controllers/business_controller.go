package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

type BusinessController struct {
	DB     *gorm.DB
	Claims *ClaimController
	Logger *log.Logger
}

func NewBusinessController(db *gorm.DB, claims *ClaimController, logger *log.Logger) *BusinessController {
	return &BusinessController{
		DB:     db,
		Claims: claims,
		Logger: logger,
	}
}

type CreateBusinessRequest struct {
	Name    string   `json:"name" validate:"required,max=200"`
	Address string   `json:"address" validate:"omitempty,max=300"`
	City    string   `json:"city" validate:"omitempty,max=100"`
	State   string   `json:"state" validate:"omitempty,max=50"`
	Zipcode string   `json:"zipcode" validate:"omitempty,max=10"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`

	Phone   string `json:"phone" validate:"omitempty,max=30"`
	Email   string `json:"email" validate:"omitempty,max=500"`
	Website string `json:"website" validate:"omitempty,max=300"`

	Rating      float64 `json:"rating" validate:"omitempty,min=0,max=5"`
	ReviewCount int     `json:"review_count" validate:"omitempty,min=0"`

	IsVerified bool `json:"is_verified"`

	ServiceRadiusMiles int      `json:"service_radius_miles" validate:"omitempty,min=1,max=500"`
	ServiceZipcodes    []string `json:"service_zipcodes"`
	ServiceAreas       []string `json:"service_areas"`
}

// CreateBusiness inserts a listing (admin/import path). Inserting an
// unclaimed business with an email auto-issues a claim campaign.
func (bc *BusinessController) CreateBusiness(c *fiber.Ctx) error {
	var input CreateBusinessRequest
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	areas := make([]models.ServiceArea, 0, len(input.ServiceAreas))
	for _, raw := range input.ServiceAreas {
		if area, ok := models.ParseServiceArea(raw); ok {
			areas = append(areas, area)
		}
	}

	radius := input.ServiceRadiusMiles
	if radius <= 0 {
		radius = utils.DefaultServiceRadiusMiles
	}

	business := models.Business{
		Name:               input.Name,
		Address:            input.Address,
		City:               input.City,
		State:              input.State,
		Zipcode:            input.Zipcode,
		Lat:                input.Lat,
		Lng:                input.Lng,
		Phone:              input.Phone,
		Email:              input.Email,
		Website:            input.Website,
		Rating:             input.Rating,
		ReviewCount:        input.ReviewCount,
		IsVerified:         input.IsVerified,
		ServiceRadiusMiles: radius,
		ServiceZipcodes:    input.ServiceZipcodes,
		ServiceAreas:       areas,
	}

	if err := bc.DB.Create(&business).Error; err != nil {
		bc.Logger.Printf("Failed to create business: %v", err)
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create business", nil)
	}

	if _, err := bc.Claims.EnsureCampaignForBusiness(&business); err != nil {
		// The listing exists; the worker sweep retries campaign issuance.
		bc.Logger.Printf("Auto-issue failed for business %d: %v", business.ID, err)
	}

	return c.Status(fiber.StatusCreated).JSON(utils.SuccessResponse(business))
}

// SearchDirectory lists businesses matching a location, featured listings
// first. The sort query param selects the ordering strategy.
func (bc *BusinessController) SearchDirectory(c *fiber.Ctx) error {
	loc := utils.Location{
		City:    c.Query("city"),
		State:   c.Query("state"),
		Zipcode: c.Query("zipcode"),
	}

	var businesses []models.Business
	if err := bc.DB.Find(&businesses).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to search directory", nil)
	}

	// A request with no location filters browses the whole directory.
	filtered := loc.City != "" || loc.State != "" || loc.Zipcode != ""

	matched := businesses[:0]
	for _, b := range businesses {
		if !filtered || utils.Matches(&b, loc) {
			matched = append(matched, b)
		}
	}

	strategy := utils.SortFeaturedNewest
	if c.Query("sort") == string(utils.SortFeaturedMostReviewed) {
		strategy = utils.SortFeaturedMostReviewed
	}
	utils.SortBusinesses(matched, strategy)

	// Directory listings never expose the legacy contact field.
	type directoryEntry struct {
		ID          uint    `json:"id"`
		Name        string  `json:"name"`
		City        string  `json:"city"`
		State       string  `json:"state"`
		Rating      float64 `json:"rating"`
		ReviewCount int     `json:"review_count"`
		IsClaimed   bool    `json:"is_claimed"`
		IsFeatured  bool    `json:"is_featured"`
	}
	entries := make([]directoryEntry, 0, len(matched))
	for _, b := range matched {
		entries = append(entries, directoryEntry{
			ID:          b.ID,
			Name:        b.Name,
			City:        b.City,
			State:       b.State,
			Rating:      b.Rating,
			ReviewCount: b.ReviewCount,
			IsClaimed:   b.IsClaimed,
			IsFeatured:  b.IsFeatured,
		})
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"businesses": entries,
		"count":      len(entries),
	}))
}

// GetBusiness returns one listing's public profile.
func (bc *BusinessController) GetBusiness(c *fiber.Ctx) error {
	var business models.Business
	if err := bc.DB.First(&business, utils.ParseUint(c.Params("businessID"))).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Business not found", nil)
	}
	return c.JSON(utils.SuccessResponse(business))
}

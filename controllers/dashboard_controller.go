package controller

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

type DashboardController struct {
	DB     *gorm.DB
	Logger *log.Logger
}

func NewDashboardController(db *gorm.DB, logger *log.Logger) *DashboardController {
	return &DashboardController{
		DB:     db,
		Logger: logger,
	}
}

// GetDashboardStats summarizes lead activity across all of the caller's
// businesses.
func (dc *DashboardController) GetDashboardStats(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var businesses []models.Business
	if err := dc.DB.Where("owner_id = ?", user.ID).Find(&businesses).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch businesses", nil)
	}
	if len(businesses) == 0 {
		return c.JSON(utils.SuccessResponse(fiber.Map{
			"businesses":   0,
			"lead_credits": 0,
		}))
	}

	ids := make([]uint, 0, len(businesses))
	credits := 0
	for _, b := range businesses {
		ids = append(ids, b.ID)
		credits += b.LeadCredits
	}

	var totalLeads, newLeads, revealed, won int64
	dc.DB.Model(&models.LeadAssignment{}).Where("business_id IN ?", ids).Count(&totalLeads)
	dc.DB.Model(&models.LeadAssignment{}).
		Where("business_id IN ? AND status = ?", ids, models.LeadStatusNew).Count(&newLeads)
	dc.DB.Model(&models.LeadReveal{}).Where("business_id IN ?", ids).Count(&revealed)
	dc.DB.Model(&models.LeadAssignment{}).
		Where("business_id IN ? AND status = ?", ids, models.LeadStatusWon).Count(&won)

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"businesses":   len(businesses),
		"lead_credits": credits,
		"total_leads":  totalLeads,
		"new_leads":    newLeads,
		"revealed":     revealed,
		"won":          won,
	}))
}

package controller

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

// FunnelStats is a snapshot of the claim-outreach funnel.
type FunnelStats struct {
	Total          int64 `json:"total"`
	Sent           int64 `json:"sent"`
	Opened         int64 `json:"opened"`
	Clicked        int64 `json:"clicked"`
	AccountCreated int64 `json:"account_created"`
	Claimed        int64 `json:"claimed"`
	Expired        int64 `json:"expired"`
	Bounced        int64 `json:"bounced"`
	Unsubscribed   int64 `json:"unsubscribed"`
}

// CollectFunnelStats counts campaigns at each funnel depth. Counts are
// cumulative: every claimed campaign was also sent.
func CollectFunnelStats(db *gorm.DB) (*FunnelStats, error) {
	stats := &FunnelStats{}
	campaigns := db.Model(&models.ClaimCampaign{})

	if err := campaigns.Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	db.Model(&models.ClaimCampaign{}).Where("email_sent_at IS NOT NULL").Count(&stats.Sent)
	db.Model(&models.ClaimCampaign{}).Where("email_opened_at IS NOT NULL").Count(&stats.Opened)
	db.Model(&models.ClaimCampaign{}).Where("link_clicked_at IS NOT NULL").Count(&stats.Clicked)
	db.Model(&models.ClaimCampaign{}).Where("account_created_at IS NOT NULL").Count(&stats.AccountCreated)
	db.Model(&models.ClaimCampaign{}).Where("claimed_at IS NOT NULL").Count(&stats.Claimed)
	db.Model(&models.ClaimCampaign{}).
		Where("claimed_at IS NULL AND expires_at <= ?", time.Now()).Count(&stats.Expired)
	db.Model(&models.ClaimCampaign{}).Where("bounced_at IS NOT NULL").Count(&stats.Bounced)
	db.Model(&models.ClaimCampaign{}).Where("unsubscribed_at IS NOT NULL").Count(&stats.Unsubscribed)

	return stats, nil
}

// HandleFunnelStats returns a one-shot funnel snapshot for the admin
// dashboard.
func (ac *AdminController) HandleFunnelStats(c *fiber.Ctx) error {
	stats, err := CollectFunnelStats(ac.DB)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to collect funnel stats", nil)
	}
	return c.JSON(utils.SuccessResponse(stats))
}

// HandleFunnelStatsWS streams funnel snapshots to the admin dashboard until
// the client disconnects.
func (ac *AdminController) HandleFunnelStatsWS(c *websocket.Conn) {
	defer c.Close()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		stats, err := CollectFunnelStats(ac.DB)
		if err != nil {
			ac.Logger.Printf("Failed to collect funnel stats: %v", err)
			return
		}
		if err := c.WriteJSON(stats); err != nil {
			return
		}
		<-ticker.C
	}
}

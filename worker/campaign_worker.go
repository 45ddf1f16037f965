package worker

import (
	"context"
	"log"
	"time"

	"gorm.io/gorm"

	controller "proquote/controllers"
	"proquote/models"
)

type CampaignWorker struct {
	DB     *gorm.DB
	Claims *controller.ClaimController
	Logger *log.Logger
}

func NewCampaignWorker(db *gorm.DB, claims *controller.ClaimController, logger *log.Logger) *CampaignWorker {
	return &CampaignWorker{
		DB:     db,
		Claims: claims,
		Logger: logger,
	}
}

func (cw *CampaignWorker) Start(ctx context.Context) {
	// Initial delay to let the server start up
	time.Sleep(10 * time.Second)

	cw.Logger.Println("Campaign worker started")

	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			cw.Logger.Println("Campaign worker shutting down...")
			return
		case <-ticker.C:
			cw.backfillMissingCampaigns()
			cw.retryUnsentOutreach()
			cw.sweepExpired()
		}
	}
}

// backfillMissingCampaigns issues campaigns for unclaimed businesses that have
// a contact email but never got an invitation, for example rows imported
// before auto-issuance existed.
func (cw *CampaignWorker) backfillMissingCampaigns() {
	var businesses []models.Business
	err := cw.DB.
		Where("is_claimed = ? AND email != ''", false).
		Where("id NOT IN (?)", cw.DB.Model(&models.ClaimCampaign{}).Distinct("business_id")).
		Limit(100).
		Find(&businesses).Error
	if err != nil {
		cw.Logger.Printf("Error fetching businesses without campaigns: %v", err)
		return
	}

	for i := range businesses {
		if _, err := cw.Claims.EnsureCampaignForBusiness(&businesses[i]); err != nil {
			cw.Logger.Printf("Error issuing campaign for business %d: %v", businesses[i].ID, err)
		}
	}
	if len(businesses) > 0 {
		cw.Logger.Printf("Backfilled campaigns for %d businesses", len(businesses))
	}
}

// retryUnsentOutreach re-attempts delivery for active campaigns whose sent
// milestone never landed, typically because SMTP was down when they were
// issued.
func (cw *CampaignWorker) retryUnsentOutreach() {
	var campaigns []models.ClaimCampaign
	err := cw.DB.Preload("Business").
		Where("claimed_at IS NULL AND email_sent_at IS NULL AND expires_at > ?", time.Now()).
		Limit(100).
		Find(&campaigns).Error
	if err != nil {
		cw.Logger.Printf("Error fetching unsent campaigns: %v", err)
		return
	}

	for i := range campaigns {
		cw.Claims.SendOutreach(&campaigns[i], &campaigns[i].Business)
	}
}

// sweepExpired reports campaigns that lapsed since the previous tick. Expiry
// itself is derived from expires_at, so the sweep only observes.
func (cw *CampaignWorker) sweepExpired() {
	var expired int64
	err := cw.DB.Model(&models.ClaimCampaign{}).
		Where("claimed_at IS NULL AND expires_at <= ? AND expires_at > ?",
			time.Now(), time.Now().Add(-10*time.Minute)).
		Count(&expired).Error
	if err != nil {
		cw.Logger.Printf("Error counting expired campaigns: %v", err)
		return
	}
	if expired > 0 {
		cw.Logger.Printf("%d claim campaigns expired without being claimed", expired)
	}
}

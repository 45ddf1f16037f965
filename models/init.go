package models

import "gorm.io/gorm"

// Migrate runs the schema migrations for every entity.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&Business{},
		&Quote{},
		&LeadAssignment{},
		&LeadReveal{},
		&ClaimCampaign{},
		&ClaimContact{},
		&ClaimEvent{},
		&Plan{},
		&CreditTransaction{},
	)
}

// CreateDefaultPlans seeds the lead-credit packs.
func CreateDefaultPlans(db *gorm.DB) error {
	defaultPlans := []Plan{
		{
			Name:        "starter",
			Description: "10 lead credits for new businesses",
			LeadCredits: 10,
			Price:       4900, // $49
		},
		{
			Name:        "pro",
			Description: "50 lead credits",
			LeadCredits: 50,
			Price:       19900, // $199
			IsPopular:   true,
		},
		{
			Name:        "scale",
			Description: "200 lead credits for high-volume businesses",
			LeadCredits: 200,
			Price:       59900, // $599
		},
	}
	for _, plan := range defaultPlans {
		if err := db.FirstOrCreate(&plan, "name = ?", plan.Name).Error; err != nil {
			return err
		}
	}
	return nil
}

package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"proquote/models"
)

func newTestAdminController(t *testing.T) (*AdminController, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	claims := NewClaimController(db, testMailer(), testLogger())
	return NewAdminController(db, claims, testLogger()), db
}

func TestPreviewDuplicatesByNameLocation(t *testing.T) {
	ac, db := newTestAdminController(t)

	// Same name and place in different spellings group together.
	seedBusiness(t, db, models.Business{Name: "Ace Roofing", City: "Reston", State: "VA", Zipcode: "20190"})
	seedBusiness(t, db, models.Business{Name: "ACE ROOFING", City: "reston", State: "Virginia", Zipcode: "20190", IsClaimed: true})
	seedBusiness(t, db, models.Business{Name: "Ace Roofing", City: "Herndon", State: "VA", Zipcode: "20170"})
	seedBusiness(t, db, models.Business{Name: "Solo Plumbing", City: "Reston", State: "VA", Zipcode: "20190"})

	groups, err := ac.PreviewDuplicates(DuplicateKeyNameLocation)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Businesses, 2)

	// The claimed listing is ordered first as the survivor.
	assert.True(t, groups[0].Businesses[0].IsClaimed)
}

func TestPreviewDuplicatesByEmailLocation(t *testing.T) {
	ac, db := newTestAdminController(t)

	// The key uses the first normalized address, so format noise still groups.
	seedBusiness(t, db, models.Business{Name: "Ace Roofing", Email: "Info@ace.com", City: "Reston", State: "VA"})
	seedBusiness(t, db, models.Business{Name: "Ace Roofing LLC", Email: "info@ace.com; sales@ace.com", City: "Reston", State: "VA"})
	// No parseable email never groups.
	seedBusiness(t, db, models.Business{Name: "Mystery 1", Email: "", City: "Reston", State: "VA"})
	seedBusiness(t, db, models.Business{Name: "Mystery 2", Email: "", City: "Reston", State: "VA"})

	groups, err := ac.PreviewDuplicates(DuplicateKeyEmailLocation)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Businesses, 2)
}

func TestSortSurvivorFirst(t *testing.T) {
	now := time.Now()
	members := []models.Business{
		{Name: "newest"},
		{Name: "reviewed", ReviewCount: 50},
		{Name: "featured", IsFeatured: true},
		{Name: "claimed", IsClaimed: true},
	}
	for i := range members {
		members[i].CreatedAt = now.Add(time.Duration(-i) * time.Hour)
	}

	sortSurvivorFirst(members)

	assert.Equal(t, "claimed", members[0].Name)
	assert.Equal(t, "featured", members[1].Name)
	assert.Equal(t, "reviewed", members[2].Name)
	assert.Equal(t, "newest", members[3].Name)
}

func TestMergeDuplicates(t *testing.T) {
	ac, db := newTestAdminController(t)

	survivor := seedBusiness(t, db, models.Business{
		Name: "Ace Roofing", City: "Reston", State: "VA", Zipcode: "20190",
		IsClaimed: true, Rating: 4.2, ReviewCount: 10,
	})
	duplicate := seedBusiness(t, db, models.Business{
		Name: "ace roofing", City: "Reston", State: "VA", Zipcode: "20190",
		Email: "info@ace.com", Phone: "555-0100", Rating: 4.8, ReviewCount: 40,
	})

	quote := seedQuote(t, db, models.Quote{City: "Reston", State: "VA"})
	assignment := models.LeadAssignment{QuoteID: quote.ID, BusinessID: duplicate.ID, Status: models.LeadStatusNew}
	require.NoError(t, db.Create(&assignment).Error)

	summary, err := ac.MergeDuplicates(DuplicateKeyNameLocation)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.GroupsMerged)
	assert.Equal(t, 1, summary.Removed)
	require.Equal(t, []uint{survivor.ID}, summary.SurvivorIDs)
	assert.Empty(t, summary.Errors)

	// The duplicate is gone and its assignment now points at the survivor.
	var gone int64
	db.Unscoped().Model(&models.Business{}).Where("id = ?", duplicate.ID).Count(&gone)
	assert.EqualValues(t, 0, gone)

	var moved models.LeadAssignment
	require.NoError(t, db.First(&moved, assignment.ID).Error)
	assert.Equal(t, survivor.ID, moved.BusinessID)

	// The survivor absorbed the best available fields.
	var merged models.Business
	require.NoError(t, db.First(&merged, survivor.ID).Error)
	assert.Equal(t, "info@ace.com", merged.Email)
	assert.Equal(t, "555-0100", merged.Phone)
	assert.Equal(t, 4.8, merged.Rating)
	assert.Equal(t, 40, merged.ReviewCount)
	assert.True(t, merged.IsClaimed)

	// Immediately re-running finds nothing left to merge.
	again, err := ac.MergeDuplicates(DuplicateKeyNameLocation)
	require.NoError(t, err)
	assert.Equal(t, 0, again.GroupsMerged)
}

func TestMergeDuplicatesDropsRedundantPairs(t *testing.T) {
	ac, db := newTestAdminController(t)

	survivor := seedBusiness(t, db, models.Business{
		Name: "Ace Roofing", City: "Reston", State: "VA", IsClaimed: true, LeadCredits: 5,
	})
	duplicate := seedBusiness(t, db, models.Business{
		Name: "Ace Roofing", City: "Reston", State: "VA",
	})

	// Both listings hold a reveal for the same quote; re-pointing must not
	// produce a second (quote, business) row.
	quote := seedQuote(t, db, models.Quote{})
	require.NoError(t, db.Create(&models.LeadReveal{QuoteID: quote.ID, BusinessID: survivor.ID, CreditsSpent: 1}).Error)
	require.NoError(t, db.Create(&models.LeadReveal{QuoteID: quote.ID, BusinessID: duplicate.ID, CreditsSpent: 1}).Error)

	summary, err := ac.MergeDuplicates(DuplicateKeyNameLocation)
	require.NoError(t, err)
	require.Equal(t, 1, summary.GroupsMerged)
	assert.Empty(t, summary.Errors)

	var reveals []models.LeadReveal
	require.NoError(t, db.Find(&reveals).Error)
	require.Len(t, reveals, 1)
	assert.Equal(t, survivor.ID, reveals[0].BusinessID)
}

func TestDeleteBusiness(t *testing.T) {
	ac, db := newTestAdminController(t)

	business := seedBusiness(t, db, models.Business{Name: "Doomed Roofing", Email: "x@doomed.com"})
	campaign, _, err := ac.Claims.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)
	_, err = ac.Claims.ConsolidateContacts(campaign, business.Email)
	require.NoError(t, err)

	quote := seedQuote(t, db, models.Quote{BusinessID: &business.ID})
	require.NoError(t, db.Create(&models.LeadAssignment{QuoteID: quote.ID, BusinessID: business.ID}).Error)

	require.NoError(t, ac.DeleteBusiness(business.ID))

	var businesses, campaigns, contacts, assignments int64
	db.Unscoped().Model(&models.Business{}).Where("id = ?", business.ID).Count(&businesses)
	db.Model(&models.ClaimCampaign{}).Where("business_id = ?", business.ID).Count(&campaigns)
	db.Model(&models.ClaimContact{}).Where("campaign_id = ?", campaign.ID).Count(&contacts)
	db.Model(&models.LeadAssignment{}).Where("business_id = ?", business.ID).Count(&assignments)
	assert.EqualValues(t, 0, businesses)
	assert.EqualValues(t, 0, campaigns)
	assert.EqualValues(t, 0, contacts)
	assert.EqualValues(t, 0, assignments)

	// Quotes survive, detached from the deleted listing.
	var kept models.Quote
	require.NoError(t, db.First(&kept, quote.ID).Error)
	assert.Nil(t, kept.BusinessID)
}

func TestBulkIssueCampaigns(t *testing.T) {
	ac, db := newTestAdminController(t)

	fresh := seedBusiness(t, db, models.Business{Name: "Fresh", Email: "a@fresh.com"})
	claimed := seedBusiness(t, db, models.Business{Name: "Taken", IsClaimed: true})
	covered := seedBusiness(t, db, models.Business{Name: "Covered"})
	_, _, err := ac.Claims.IssueClaimToken(covered.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	summary := ac.BulkIssueCampaigns([]uint{fresh.ID, claimed.ID, covered.ID, 9999})
	assert.Equal(t, 1, summary.Issued)
	assert.Equal(t, 2, summary.Skipped)
	require.Len(t, summary.Errors, 1)
	assert.Contains(t, summary.Errors[0], "9999")

	var contacts int64
	db.Model(&models.ClaimContact{}).Count(&contacts)
	assert.EqualValues(t, 1, contacts)
}

func TestConsolidateLegacyContacts(t *testing.T) {
	ac, db := newTestAdminController(t)

	business := seedBusiness(t, db, models.Business{
		Name: "Legacy Roofing", Email: `["john@legacy.com", "JOHN@legacy.com", "jane@legacy.com"]`,
	})
	campaign, _, err := ac.Claims.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	summary, err := ac.ConsolidateLegacyContacts()
	require.NoError(t, err)
	assert.Equal(t, 1, summary.CampaignsProcessed)
	assert.Equal(t, 2, summary.ContactsCreated)

	// The migration is re-runnable without duplicating rows.
	summary, err = ac.ConsolidateLegacyContacts()
	require.NoError(t, err)
	assert.Equal(t, 0, summary.ContactsCreated)

	var contacts int64
	db.Model(&models.ClaimContact{}).Where("campaign_id = ?", campaign.ID).Count(&contacts)
	assert.EqualValues(t, 2, contacts)
}

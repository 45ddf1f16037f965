package controller

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proquote/models"
	"proquote/utils"
)

func TestIssueClaimToken(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})

	campaign, created, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Len(t, campaign.ClaimToken, utils.ClaimTokenLength)
	assert.Equal(t, models.CampaignSourceAdmin, campaign.Source)
	assert.WithinDuration(t, time.Now().Add(AdminCampaignValidity), campaign.ExpiresAt, time.Minute)
}

func TestIssueClaimTokenAutoValidity(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})

	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAuto)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(AutoCampaignValidity), campaign.ExpiresAt, time.Minute)
}

func TestIssueClaimTokenBenignSkip(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})

	first, created, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)
	require.True(t, created)

	// An active campaign already exists, so issuance does nothing new.
	second, created, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	cc.DB.Model(&models.ClaimCampaign{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestIssueClaimTokenFailures(t *testing.T) {
	cc := newTestClaimController(t)

	_, _, err := cc.IssueClaimToken(9999, models.CampaignSourceAdmin)
	require.ErrorIs(t, err, ErrBusinessNotFound)

	claimed := seedBusiness(t, cc.DB, models.Business{Name: "Taken", IsClaimed: true})
	_, _, err = cc.IssueClaimToken(claimed.ID, models.CampaignSourceAdmin)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestLookupTokenOutcomes(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	found, err := cc.LookupToken(campaign.ClaimToken)
	require.NoError(t, err)
	assert.Equal(t, business.ID, found.BusinessID)
	assert.Equal(t, "Roofers Inc", found.Business.Name)

	_, err = cc.LookupToken("nosuchtk")
	require.ErrorIs(t, err, ErrTokenNotFound)

	// Past the validity window the same token reports expired, not missing.
	require.NoError(t, cc.DB.Model(campaign).
		UpdateColumn("expires_at", time.Now().Add(-time.Hour)).Error)
	_, err = cc.LookupToken(campaign.ClaimToken)
	require.ErrorIs(t, err, ErrTokenExpired)

	// A completed campaign reports already claimed even when also expired.
	now := time.Now()
	require.NoError(t, cc.DB.Model(campaign).
		UpdateColumn("claimed_at", &now).Error)
	_, err = cc.LookupToken(campaign.ClaimToken)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestRecordFunnelEventWriteOnce(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	require.NoError(t, cc.RecordFunnelEvent(campaign.ClaimToken, models.ClaimEventOpened))

	var after models.ClaimCampaign
	require.NoError(t, cc.DB.First(&after, campaign.ID).Error)
	require.NotNil(t, after.EmailOpenedAt)
	firstOpen := *after.EmailOpenedAt

	// Replays neither move the timestamp nor append a second event.
	require.NoError(t, cc.RecordFunnelEvent(campaign.ClaimToken, models.ClaimEventOpened))
	require.NoError(t, cc.DB.First(&after, campaign.ID).Error)
	assert.True(t, after.EmailOpenedAt.Equal(firstOpen))

	var events int64
	cc.DB.Model(&models.ClaimEvent{}).
		Where("campaign_id = ? AND event_type = ?", campaign.ID, models.ClaimEventOpened).
		Count(&events)
	assert.EqualValues(t, 1, events)
}

func TestRecordFunnelEventUnknownType(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	require.Error(t, cc.RecordFunnelEvent(campaign.ClaimToken, "forwarded"))
	require.ErrorIs(t, cc.RecordFunnelEvent("nosuchtk", models.ClaimEventOpened), ErrTokenNotFound)
}

func TestRecordFunnelEventAfterClaimIsNoop(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	_, err = cc.CompleteClaim(campaign.ClaimToken, 1)
	require.NoError(t, err)

	require.NoError(t, cc.RecordFunnelEvent(campaign.ClaimToken, models.ClaimEventBounced))

	var after models.ClaimCampaign
	require.NoError(t, cc.DB.First(&after, campaign.ID).Error)
	assert.Nil(t, after.BouncedAt)
}

func TestCompleteClaim(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	const userID = 42
	claimed, err := cc.CompleteClaim(campaign.ClaimToken, userID)
	require.NoError(t, err)
	require.NotNil(t, claimed.ClaimedAt)
	require.NotNil(t, claimed.ClaimedByUserID)
	assert.EqualValues(t, userID, *claimed.ClaimedByUserID)

	var after models.Business
	require.NoError(t, cc.DB.First(&after, business.ID).Error)
	assert.True(t, after.IsClaimed)
	require.NotNil(t, after.OwnerID)
	assert.EqualValues(t, userID, *after.OwnerID)

	var events int64
	cc.DB.Model(&models.ClaimEvent{}).
		Where("campaign_id = ? AND event_type = ?", campaign.ID, models.ClaimEventClaimed).
		Count(&events)
	assert.EqualValues(t, 1, events)

	// Completion is single-use.
	_, err = cc.CompleteClaim(campaign.ClaimToken, userID)
	require.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestCompleteClaimExpired(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	require.NoError(t, cc.DB.Model(campaign).
		UpdateColumn("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err = cc.CompleteClaim(campaign.ClaimToken, 1)
	require.ErrorIs(t, err, ErrTokenExpired)

	var after models.Business
	require.NoError(t, cc.DB.First(&after, business.ID).Error)
	assert.False(t, after.IsClaimed)
}

func TestCompleteClaimRetiresSiblings(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	// A second live token for the same business, as left behind by older
	// issuance paths.
	sibling := models.ClaimCampaign{
		BusinessID: business.ID,
		ClaimToken: "sibling1",
		Source:     models.CampaignSourceAuto,
		ExpiresAt:  time.Now().Add(24 * time.Hour),
	}
	require.NoError(t, cc.DB.Create(&sibling).Error)

	_, err = cc.CompleteClaim(campaign.ClaimToken, 1)
	require.NoError(t, err)

	_, err = cc.LookupToken("sibling1")
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestConsolidateContacts(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	inserted, err := cc.ConsolidateContacts(campaign, "Owner@roofers.com; info@roofers.com;owner@roofers.com")
	require.NoError(t, err)
	assert.Equal(t, 2, inserted)

	var contacts []models.ClaimContact
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).Order("id ASC").Find(&contacts).Error)
	require.Len(t, contacts, 2)
	assert.Equal(t, "owner@roofers.com", contacts[0].Email)
	assert.True(t, contacts[0].IsPrimary)
	assert.Equal(t, "info@roofers.com", contacts[1].Email)
	assert.False(t, contacts[1].IsPrimary)

	// Re-running the consolidation inserts nothing new.
	inserted, err = cc.ConsolidateContacts(campaign, "owner@roofers.com;info@roofers.com")
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestEnsureCampaignForBusiness(t *testing.T) {
	cc := newTestClaimController(t)

	// Claimed or email-less businesses get no campaign.
	claimed := seedBusiness(t, cc.DB, models.Business{Name: "Taken", IsClaimed: true, Email: "x@y.com"})
	campaign, err := cc.EnsureCampaignForBusiness(claimed)
	require.NoError(t, err)
	assert.Nil(t, campaign)

	silent := seedBusiness(t, cc.DB, models.Business{Name: "No Email"})
	campaign, err = cc.EnsureCampaignForBusiness(silent)
	require.NoError(t, err)
	assert.Nil(t, campaign)

	// An unclaimed business with an email gets a campaign with consolidated
	// contacts and the long auto validity window.
	fresh := seedBusiness(t, cc.DB, models.Business{Name: "Fresh", Email: "a@fresh.com;b@fresh.com"})
	campaign, err = cc.EnsureCampaignForBusiness(fresh)
	require.NoError(t, err)
	require.NotNil(t, campaign)
	assert.Equal(t, models.CampaignSourceAuto, campaign.Source)

	var contacts int64
	cc.DB.Model(&models.ClaimContact{}).Where("campaign_id = ?", campaign.ID).Count(&contacts)
	assert.EqualValues(t, 2, contacts)
}

func TestIssueClaimTokenConcurrent(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})

	const callers = 8
	var wg sync.WaitGroup
	createdFlags := make([]bool, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, createdFlags[i], errs[i] = cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if createdFlags[i] {
			created++
		}
	}
	assert.Equal(t, 1, created, "exactly one caller should create the campaign")

	var campaigns int64
	cc.DB.Model(&models.ClaimCampaign{}).
		Where("business_id = ? AND claimed_at IS NULL AND expires_at > ?", business.ID, time.Now()).
		Count(&campaigns)
	assert.EqualValues(t, 1, campaigns)
}

func TestCompleteClaimConcurrent(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cc.CompleteClaim(campaign.ClaimToken, uint(i+1))
		}(i)
	}
	wg.Wait()

	won := 0
	for i := 0; i < callers; i++ {
		if errs[i] == nil {
			won++
			continue
		}
		require.ErrorIs(t, errs[i], ErrAlreadyClaimed)
	}
	assert.Equal(t, 1, won, "exactly one caller should land the claim")

	var events int64
	cc.DB.Model(&models.ClaimEvent{}).
		Where("campaign_id = ? AND event_type = ?", campaign.ID, models.ClaimEventClaimed).
		Count(&events)
	assert.EqualValues(t, 1, events)
}

func TestCompleteClaimSurvivesConcurrentFunnelEvents(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	// Open-pixel webhooks arriving around the completion must never null out
	// a committed ClaimedAt.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cc.RecordFunnelEvent(campaign.ClaimToken, models.ClaimEventOpened)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = cc.CompleteClaim(campaign.ClaimToken, 7)
	}()
	wg.Wait()

	var after models.ClaimCampaign
	require.NoError(t, cc.DB.First(&after, campaign.ID).Error)
	require.NotNil(t, after.ClaimedAt)
	require.NotNil(t, after.ClaimedByUserID)
	assert.EqualValues(t, 7, *after.ClaimedByUserID)

	_, err = cc.LookupToken(campaign.ClaimToken)
	require.ErrorIs(t, err, ErrAlreadyClaimed)

	var events int64
	cc.DB.Model(&models.ClaimEvent{}).
		Where("campaign_id = ? AND event_type = ?", campaign.ID, models.ClaimEventOpened).
		Count(&events)
	assert.LessOrEqual(t, events, int64(1))
}

func TestSendOutreachScreensContacts(t *testing.T) {
	db := newTestDB(t)
	mailer := utils.NewMailer("127.0.0.1", 1, "", "", "noreply@test.local", "Test", "http://localhost:5000")
	cc := NewClaimController(db, mailer, testLogger())

	business := seedBusiness(t, db, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)

	contact := models.ClaimContact{
		CampaignID: campaign.ID,
		Email:      "owner@mailinator.com",
		IsPrimary:  true,
		IsSelected: true,
	}
	require.NoError(t, db.Create(&contact).Error)

	cc.SendOutreach(campaign, business)

	var after models.ClaimContact
	require.NoError(t, db.First(&after, contact.ID).Error)
	assert.Nil(t, after.SentAt, "disposable addresses are never sent to")

	var fresh models.ClaimCampaign
	require.NoError(t, db.First(&fresh, campaign.ID).Error)
	assert.Nil(t, fresh.EmailSentAt)
}

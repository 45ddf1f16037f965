package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proquote/models"
)

func TestMapProviderEvent(t *testing.T) {
	cases := map[string]string{
		"delivered":    models.ClaimEventSent,
		"sent":         models.ClaimEventSent,
		"open":         models.ClaimEventOpened,
		"opened":       models.ClaimEventOpened,
		"click":        models.ClaimEventClicked,
		"clicked":      models.ClaimEventClicked,
		"bounce":       models.ClaimEventBounced,
		"dropped":      models.ClaimEventBounced,
		"unsubscribe":  models.ClaimEventUnsubscribed,
		"spamreport":   models.ClaimEventUnsubscribed,
	}
	for provider, want := range cases {
		got, ok := mapProviderEvent(provider)
		require.True(t, ok, provider)
		assert.Equal(t, want, got, provider)
	}

	_, ok := mapProviderEvent("processed")
	assert.False(t, ok)
}

func TestTouchContact(t *testing.T) {
	cc := newTestClaimController(t)
	business := seedBusiness(t, cc.DB, models.Business{Name: "Roofers Inc"})
	campaign, _, err := cc.IssueClaimToken(business.ID, models.CampaignSourceAdmin)
	require.NoError(t, err)
	_, err = cc.ConsolidateContacts(campaign, "owner@roofers.com")
	require.NoError(t, err)

	cc.touchContact(campaign.ClaimToken, "owner@roofers.com", models.ClaimEventOpened)

	var contact models.ClaimContact
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).First(&contact).Error)
	require.NotNil(t, contact.OpenedAt)
	first := *contact.OpenedAt

	// Write-once per recipient as well.
	cc.touchContact(campaign.ClaimToken, "owner@roofers.com", models.ClaimEventOpened)
	require.NoError(t, cc.DB.Where("campaign_id = ?", campaign.ID).First(&contact).Error)
	assert.True(t, contact.OpenedAt.Equal(first))

	// Unknown recipients and tokens are ignored without error.
	cc.touchContact(campaign.ClaimToken, "stranger@roofers.com", models.ClaimEventOpened)
	cc.touchContact("nosuchtk", "owner@roofers.com", models.ClaimEventOpened)
}

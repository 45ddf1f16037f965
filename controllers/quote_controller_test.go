package controller

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proquote/models"
)

func TestRouteQuoteMatchesEligibleBusinesses(t *testing.T) {
	db := newTestDB(t)
	qc := NewQuoteController(db, testLogger())

	claimed := seedBusiness(t, db, models.Business{
		Name: "Claimed Plumbing", City: "Herndon", State: "VA", IsClaimed: true,
	})
	verified := seedBusiness(t, db, models.Business{
		Name: "Verified Plumbing", City: "Herndon", State: "VA", IsVerified: true,
	})
	// Neither claimed nor verified: never receives leads even when it matches.
	seedBusiness(t, db, models.Business{
		Name: "Ghost Plumbing", City: "Herndon", State: "VA",
	})
	// Eligible but out of area.
	seedBusiness(t, db, models.Business{
		Name: "Far Plumbing", City: "Norfolk", State: "VA", IsClaimed: true,
	})

	quote := seedQuote(t, db, models.Quote{City: "Herndon", State: "VA"})

	result, err := qc.RouteQuote(quote)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Considered)
	assert.Equal(t, 2, result.Matched)
	require.Len(t, result.Assignments, 2)

	assigned := map[uint]bool{}
	for _, a := range result.Assignments {
		assigned[a.BusinessID] = true
		assert.Equal(t, models.LeadStatusNew, a.Status)
	}
	assert.True(t, assigned[claimed.ID])
	assert.True(t, assigned[verified.ID])
}

func TestRouteQuoteIdempotent(t *testing.T) {
	db := newTestDB(t)
	qc := NewQuoteController(db, testLogger())

	seedBusiness(t, db, models.Business{
		Name: "Claimed Plumbing", City: "Herndon", State: "VA", IsClaimed: true,
	})
	quote := seedQuote(t, db, models.Quote{City: "Herndon", State: "VA"})

	first, err := qc.RouteQuote(quote)
	require.NoError(t, err)
	require.Len(t, first.Assignments, 1)

	// Re-routing finds the same match but creates no second assignment.
	second, err := qc.RouteQuote(quote)
	require.NoError(t, err)
	assert.Equal(t, 1, second.Matched)
	assert.Empty(t, second.Assignments)

	var count int64
	db.Model(&models.LeadAssignment{}).Where("quote_id = ?", quote.ID).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestRouteQuoteZeroMatchesIsSuccess(t *testing.T) {
	db := newTestDB(t)
	qc := NewQuoteController(db, testLogger())

	seedBusiness(t, db, models.Business{
		Name: "Claimed Plumbing", City: "Herndon", State: "VA", IsClaimed: true,
	})
	quote := seedQuote(t, db, models.Quote{City: "Tulsa", State: "OK"})

	result, err := qc.RouteQuote(quote)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Matched)
	assert.Empty(t, result.Assignments)
}

func TestRouteQuoteByZipcode(t *testing.T) {
	db := newTestDB(t)
	qc := NewQuoteController(db, testLogger())

	zip := seedBusiness(t, db, models.Business{
		Name: "Zip Plumbing", City: "Reston", State: "VA", IsClaimed: true,
		ServiceZipcodes: []string{"20170"},
	})
	quote := seedQuote(t, db, models.Quote{Zipcode: "20170"})

	result, err := qc.RouteQuote(quote)
	require.NoError(t, err)
	require.Len(t, result.Assignments, 1)
	assert.Equal(t, zip.ID, result.Assignments[0].BusinessID)
}

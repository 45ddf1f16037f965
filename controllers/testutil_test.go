package controller

import (
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"proquote/models"
	"proquote/utils"
)

// newTestDB opens an isolated in-memory database with the production schema.
// A single connection keeps the in-memory store alive for the test's duration.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.Migrate(db))
	return db
}

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func testMailer() *utils.Mailer {
	// No SMTP host, so outreach delivery is skipped in tests.
	return utils.NewMailer("", 0, "", "", "noreply@test.local", "Test", "http://localhost:5000")
}

func newTestClaimController(t *testing.T) *ClaimController {
	t.Helper()
	return NewClaimController(newTestDB(t), testMailer(), testLogger())
}

func seedBusiness(t *testing.T, db *gorm.DB, b models.Business) *models.Business {
	t.Helper()
	require.NoError(t, db.Create(&b).Error)
	return &b
}

func seedQuote(t *testing.T, db *gorm.DB, q models.Quote) *models.Quote {
	t.Helper()
	if q.ReferenceID == "" {
		q.ReferenceID = utils.NewReferenceID()
	}
	if q.CustomerName == "" {
		q.CustomerName = "Pat Customer"
	}
	if q.CustomerEmail == "" {
		q.CustomerEmail = "pat@example.com"
	}
	if q.ServiceType == "" {
		q.ServiceType = "plumbing"
	}
	require.NoError(t, db.Create(&q).Error)
	return &q
}

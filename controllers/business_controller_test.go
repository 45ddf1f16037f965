package controller

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proquote/models"
)

func newTestBusinessController(t *testing.T) *BusinessController {
	t.Helper()
	db := newTestDB(t)
	claims := NewClaimController(db, testMailer(), testLogger())
	return NewBusinessController(db, claims, testLogger())
}

type directoryResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Count      int `json:"count"`
		Businesses []struct {
			Name string `json:"name"`
		} `json:"businesses"`
	} `json:"data"`
}

func searchDirectory(t *testing.T, bc *BusinessController, target string) directoryResponse {
	t.Helper()
	app := fiber.New()
	app.Get("/businesses", bc.SearchDirectory)

	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body directoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSearchDirectoryUnfiltered(t *testing.T) {
	bc := newTestBusinessController(t)
	seedBusiness(t, bc.DB, models.Business{Name: "Reston Roofers", City: "Reston", State: "VA"})
	seedBusiness(t, bc.DB, models.Business{Name: "Austin Plumbing", City: "Austin", State: "TX"})

	body := searchDirectory(t, bc, "/businesses")
	assert.Equal(t, 2, body.Data.Count, "no filters means the whole directory")
}

func TestSearchDirectoryFiltered(t *testing.T) {
	bc := newTestBusinessController(t)
	seedBusiness(t, bc.DB, models.Business{Name: "Reston Roofers", City: "Reston", State: "VA"})
	seedBusiness(t, bc.DB, models.Business{Name: "Austin Plumbing", City: "Austin", State: "TX"})

	body := searchDirectory(t, bc, "/businesses?city=Reston&state=VA")
	require.Equal(t, 1, body.Data.Count)
	assert.Equal(t, "Reston Roofers", body.Data.Businesses[0].Name)
}

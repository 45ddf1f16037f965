package controller

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"proquote/models"
	"proquote/utils"
)

// HandleOutreachWebhook processes asynchronous delivery events from the email
// provider (delivered, open, click, bounce, unsubscribe). The claim token
// comes from event metadata, or as a fallback is extracted from an embedded
// URL.
func (cc *ClaimController) HandleOutreachWebhook(c *fiber.Ctx) error {
	var input struct {
		EventType  string `json:"event_type"`
		ClaimToken string `json:"claim_token"`
		Email      string `json:"email"`
		URL        string `json:"url"`
		Timestamp  int64  `json:"timestamp"`
	}
	if err := c.BodyParser(&input); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}

	token := input.ClaimToken
	if token == "" {
		token = utils.ExtractClaimToken(input.URL)
	}
	if token == "" {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "No claim token in event", nil)
	}

	eventType, ok := mapProviderEvent(input.EventType)
	if !ok {
		// Unknown provider events are acknowledged and dropped.
		return c.SendStatus(fiber.StatusOK)
	}

	if err := cc.RecordFunnelEvent(token, eventType); err != nil {
		if errors.Is(err, ErrTokenNotFound) {
			return utils.ErrorResponse(c, fiber.StatusNotFound, "Unknown claim token", nil)
		}
		logrus.WithError(err).WithField("token", token).Error("failed to record outreach event")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record event", nil)
	}

	if input.Email != "" {
		cc.touchContact(token, input.Email, eventType)
	}

	return c.JSON(fiber.Map{"message": "Event recorded"})
}

// mapProviderEvent translates provider event names onto the claim funnel.
func mapProviderEvent(providerEvent string) (string, bool) {
	switch providerEvent {
	case "delivered", "sent":
		return models.ClaimEventSent, true
	case "open", "opened":
		return models.ClaimEventOpened, true
	case "click", "clicked":
		return models.ClaimEventClicked, true
	case "bounce", "bounced", "dropped":
		return models.ClaimEventBounced, true
	case "unsubscribe", "unsubscribed", "spamreport":
		return models.ClaimEventUnsubscribed, true
	}
	return "", false
}

// touchContact mirrors a funnel event onto the matching per-recipient row.
func (cc *ClaimController) touchContact(token, email, eventType string) {
	var campaign models.ClaimCampaign
	if err := cc.DB.Where("claim_token = ?", token).First(&campaign).Error; err != nil {
		return
	}

	column := ""
	switch eventType {
	case models.ClaimEventSent:
		column = "sent_at"
	case models.ClaimEventOpened:
		column = "opened_at"
	case models.ClaimEventClicked:
		column = "clicked_at"
	case models.ClaimEventBounced:
		column = "bounced_at"
	default:
		return
	}

	now := time.Now()
	if err := cc.DB.Model(&models.ClaimContact{}).
		Where("campaign_id = ? AND email = ? AND "+column+" IS NULL", campaign.ID, email).
		Update(column, &now).Error; err != nil {
		cc.Logger.Printf("Failed to update contact %s on campaign %d: %v", email, campaign.ID, err)
	}
}

// HandleOpenTracking serves the 1x1 pixel embedded in claim emails and
// records the open.
func (cc *ClaimController) HandleOpenTracking(c *fiber.Ctx) error {
	token := c.Params("token")
	signature := c.Params("signature")

	if !utils.ValidTrackingToken(token, signature) {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid tracking token")
	}

	if err := cc.RecordFunnelEvent(token, models.ClaimEventOpened); err != nil && !errors.Is(err, ErrTokenNotFound) {
		cc.Logger.Printf("Failed to record open for token %s: %v", token, err)
	}

	return c.Type("gif").Send(transparentPixel())
}

// HandleClickTracking records the click and redirects to the wrapped URL.
func (cc *ClaimController) HandleClickTracking(c *fiber.Ctx) error {
	token := c.Params("token")
	signature := c.Params("signature")
	originalURL := c.Query("url")

	if !utils.ValidTrackingToken(token, signature) {
		return c.Status(fiber.StatusBadRequest).SendString("Invalid tracking token")
	}

	if err := cc.RecordFunnelEvent(token, models.ClaimEventClicked); err != nil && !errors.Is(err, ErrTokenNotFound) {
		cc.Logger.Printf("Failed to record click for token %s: %v", token, err)
	}

	if originalURL == "" {
		originalURL = utils.GenerateClaimURL(c.BaseURL(), token)
	}
	return c.Redirect(originalURL, fiber.StatusFound)
}

func transparentPixel() []byte {
	// 1x1 transparent GIF
	return []byte{
		0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00,
		0x80, 0x00, 0x00, 0xff, 0xff, 0xff, 0x00, 0x00, 0x00, 0x21,
		0xf9, 0x04, 0x01, 0x00, 0x00, 0x00, 0x00, 0x2c, 0x00, 0x00,
		0x00, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0x02, 0x02, 0x44,
		0x01, 0x00, 0x3b,
	}
}

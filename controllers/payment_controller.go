package controller

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/customer"
	"github.com/stripe/stripe-go/v76/paymentintent"
	"gorm.io/gorm"

	"proquote/config"
	"proquote/models"
	"proquote/utils"
)

func InitStripe() {
	stripe.Key = config.AppConfig.StripeSecretKey
}

// ListPlans returns the purchasable lead-credit packs.
func ListPlans(c *fiber.Ctx) error {
	var plans []models.Plan
	if err := config.DB.Order("price ASC").Find(&plans).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to fetch plans", nil)
	}
	for i := range plans {
		plans[i].DisplayPrice = "$" + strconv.Itoa(plans[i].Price/100)
	}
	return c.JSON(utils.SuccessResponse(plans))
}

type PurchaseRequest struct {
	PlanID     uint `json:"plan_id" validate:"required"`
	BusinessID uint `json:"business_id" validate:"required"`
}

// CreatePaymentIntent starts a lead-credit purchase for one of the caller's
// businesses. Credits land on the business once the webhook confirms payment.
func CreatePaymentIntent(c *fiber.Ctx) error {
	user := c.Locals("user").(*models.User)

	var req PurchaseRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", err)
	}
	if err := utils.ValidateStruct(req); err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", err)
	}

	var plan models.Plan
	if err := config.DB.First(&plan, req.PlanID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Plan not found", nil)
	}

	var business models.Business
	if err := config.DB.First(&business, req.BusinessID).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Business not found", nil)
	}
	if !user.IsAdmin && (business.OwnerID == nil || *business.OwnerID != user.ID) {
		return utils.ErrorResponse(c, fiber.StatusForbidden, "You do not own this business", nil)
	}

	customerID, err := getOrCreateStripeCustomer(user)
	if err != nil {
		logrus.WithError(err).Error("failed to create stripe customer")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process payment", nil)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(plan.Price)),
		Currency: stripe.String(string(stripe.CurrencyUSD)),
		Customer: stripe.String(customerID),
		Metadata: map[string]string{
			"user_id":     strconv.Itoa(int(user.ID)),
			"business_id": strconv.Itoa(int(business.ID)),
			"plan_id":     strconv.Itoa(int(plan.ID)),
		},
		Description: stripe.String("Purchase of " + plan.Name + " lead credit pack"),
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		logrus.WithError(err).Error("failed to create payment intent")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to process payment", nil)
	}

	transaction := models.CreditTransaction{
		BusinessID:            business.ID,
		UserID:                user.ID,
		PlanID:                &plan.ID,
		LeadCredits:           plan.LeadCredits,
		Amount:                plan.Price,
		Currency:              "usd",
		PaymentStatus:         "pending",
		StripePaymentIntentID: pi.ID,
		Description:           "Purchase of " + plan.Name + " lead credit pack",
	}
	if err := config.DB.Create(&transaction).Error; err != nil {
		logrus.WithError(err).Error("failed to create credit transaction")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to record transaction", nil)
	}

	return c.JSON(utils.SuccessResponse(fiber.Map{
		"client_secret":  pi.ClientSecret,
		"transaction_id": transaction.ID,
		"amount":         plan.Price,
		"currency":       "usd",
	}))
}

// HandlePaymentWebhook handles Stripe webhook events
func HandlePaymentWebhook(c *fiber.Ctx) error {
	event, err := utils.ConstructStripeEvent(c)
	if err != nil {
		return utils.ErrorResponse(c, fiber.StatusBadRequest, "Invalid webhook payload", nil)
	}

	switch event.Type {
	case "payment_intent.succeeded":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Error parsing payment intent", nil)
		}
		return handlePaymentIntentSucceeded(c, &pi)

	case "payment_intent.payment_failed":
		var pi stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
			return utils.ErrorResponse(c, fiber.StatusBadRequest, "Error parsing payment intent", nil)
		}
		return handlePaymentIntentFailed(c, &pi)

	default:
		return c.SendStatus(fiber.StatusOK)
	}
}

// handlePaymentIntentSucceeded credits the business exactly once per
// transaction: the status flip from pending guards against webhook replays.
func handlePaymentIntentSucceeded(c *fiber.Ctx, pi *stripe.PaymentIntent) error {
	err := config.DB.Transaction(func(tx *gorm.DB) error {
		var transaction models.CreditTransaction
		if err := tx.Where("stripe_payment_intent_id = ?", pi.ID).First(&transaction).Error; err != nil {
			return err
		}
		if transaction.PaymentStatus == "succeeded" {
			return nil // replayed webhook, already credited
		}

		updates := map[string]interface{}{"payment_status": "succeeded"}
		if pi.PaymentMethod != nil {
			updates["payment_method"] = string(pi.PaymentMethod.Type)
		}
		if pi.LatestCharge != nil {
			updates["stripe_charge_id"] = pi.LatestCharge.ID
		}
		if err := tx.Model(&transaction).Updates(updates).Error; err != nil {
			return err
		}

		return tx.Model(&models.Business{}).
			Where("id = ?", transaction.BusinessID).
			UpdateColumn("lead_credits", gorm.Expr("lead_credits + ?", transaction.LeadCredits)).Error
	})
	if err != nil {
		logrus.WithError(err).WithField("payment_intent", pi.ID).Error("failed to apply successful payment")
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to apply payment", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}

func handlePaymentIntentFailed(c *fiber.Ctx, pi *stripe.PaymentIntent) error {
	var transaction models.CreditTransaction
	if err := config.DB.Where("stripe_payment_intent_id = ?", pi.ID).First(&transaction).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusNotFound, "Transaction not found", nil)
	}

	description := transaction.Description
	if pi.LastPaymentError != nil && pi.LastPaymentError.Msg != "" {
		description = "Payment failed: " + pi.LastPaymentError.Msg
	}
	if err := config.DB.Model(&transaction).Updates(map[string]interface{}{
		"payment_status": "failed",
		"description":    description,
	}).Error; err != nil {
		return utils.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to update transaction", nil)
	}
	return c.SendStatus(fiber.StatusOK)
}

// getOrCreateStripeCustomer gets or creates a Stripe customer
func getOrCreateStripeCustomer(user *models.User) (string, error) {
	if user.StripeCustomerID != nil {
		return *user.StripeCustomerID, nil
	}

	var name string
	if user.Name != nil {
		name = *user.Name
	}

	params := &stripe.CustomerParams{
		Email: stripe.String(user.Email),
		Name:  stripe.String(name),
		Metadata: map[string]string{
			"user_id": strconv.Itoa(int(user.ID)),
		},
	}

	cust, err := customer.New(params)
	if err != nil {
		return "", err
	}

	user.StripeCustomerID = &cust.ID
	if err := config.DB.Save(user).Error; err != nil {
		return "", err
	}
	return cust.ID, nil
}

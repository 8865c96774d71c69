package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// PaymentHandler serves /api/payments.
type PaymentHandler struct {
	paymentService services.IPaymentService
}

func NewPaymentHandler(paymentService services.IPaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

type paymentRequest struct {
	TripID          string `json:"tripId"`
	BidID           string `json:"bidId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// bindPayment decodes the body and its trip and bid ids.
func bindPayment(c *gin.Context) (req paymentRequest, tripID, bidID primitive.ObjectID, ok bool) {
	if !bindJSON(c, &req) {
		return req, tripID, bidID, false
	}
	if tripID, ok = parseObjectID(c, "tripId", req.TripID); !ok {
		return req, tripID, bidID, false
	}
	bidID, ok = parseObjectID(c, "bidId", req.BidID)
	return req, tripID, bidID, ok
}

// CreateIntent handles POST /api/payments/create-intent.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	_, tripID, bidID, ok := bindPayment(c)
	if !ok {
		return
	}
	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), tripID, bidID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
		"amount":          intent.Amount,
		"currency":        intent.Currency,
	})
}

// HandleSuccess handles POST /api/payments/success.
func (h *PaymentHandler) HandleSuccess(c *gin.Context) {
	req, tripID, bidID, ok := bindPayment(c)
	if !ok {
		return
	}
	bid, err := h.paymentService.HandleSuccessfulPayment(c.Request.Context(), tripID, bidID, middleware.CurrentUserID(c), req.PaymentIntentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment successful and bid accepted", "bid": bid})
}

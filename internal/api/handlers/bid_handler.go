package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// BidHandler serves /api/bids.
type BidHandler struct {
	bidService services.IBidService
}

func NewBidHandler(bidService services.IBidService) *BidHandler {
	return &BidHandler{bidService: bidService}
}

type submitBidRequest struct {
	Trip     string  `json:"trip"`
	Price    float64 `json:"price"`
	Services string  `json:"services"`
}

type rateBidRequest struct {
	Rating int `json:"rating"`
}

// SubmitBid handles POST /api/bids.
func (h *BidHandler) SubmitBid(c *gin.Context) {
	var req submitBidRequest
	if !bindJSON(c, &req) {
		return
	}
	tripID, ok := parseObjectID(c, "trip", req.Trip)
	if !ok {
		return
	}
	bid, err := h.bidService.SubmitBid(c.Request.Context(), middleware.CurrentUserID(c), tripID, req.Price, req.Services)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// GetBidsByTrip handles GET /api/bids/:tripId.
func (h *BidHandler) GetBidsByTrip(c *gin.Context) {
	tripID, ok := objectIDParam(c, "tripId")
	if !ok {
		return
	}
	bids, err := h.bidService.GetBidsByTrip(c.Request.Context(), tripID, middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bids)
}

// GetTravelerBookings handles GET /api/bids/bookings/traveler.
func (h *BidHandler) GetTravelerBookings(c *gin.Context) {
	bookings, err := h.bidService.GetTravelerBookings(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// AcceptBid handles PUT /api/bids/accept/:id.
func (h *BidHandler) AcceptBid(c *gin.Context) {
	bidID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	bid, err := h.bidService.AcceptBid(c.Request.Context(), bidID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bid accepted", "bid": bid})
}

// RejectBid handles PUT /api/bids/reject/:id.
func (h *BidHandler) RejectBid(c *gin.Context) {
	bidID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	bid, err := h.bidService.RejectBid(c.Request.Context(), bidID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bid rejected", "bid": bid})
}

// ConfirmPayment handles PUT /api/bids/pay/:id.
func (h *BidHandler) ConfirmPayment(c *gin.Context) {
	bidID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	bid, err := h.bidService.ConfirmPayment(c.Request.Context(), bidID, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Payment confirmed and booking completed.", "bid": bid})
}

// RateBid handles PUT /api/bids/rate/:id.
func (h *BidHandler) RateBid(c *gin.Context) {
	bidID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req rateBidRequest
	if !bindJSON(c, &req) {
		return
	}
	bid, err := h.bidService.RateBid(c.Request.Context(), bidID, middleware.CurrentUserID(c), req.Rating)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Rating submitted successfully", "bid": bid})
}

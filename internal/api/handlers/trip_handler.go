package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
	"github.com/Meekal-Jamil/travelbid/internal/tasks"
)

// TripHandler serves /api/trips, including the embedded bid routes.
type TripHandler struct {
	tripService services.ITripService
	bidService  services.IBidService
	taskClient  tasks.Enqueuer
}

func NewTripHandler(tripService services.ITripService, bidService services.IBidService, taskClient tasks.Enqueuer) *TripHandler {
	return &TripHandler{tripService: tripService, bidService: bidService, taskClient: taskClient}
}

type createTripRequest struct {
	Title       string  `json:"title"`
	Destination string  `json:"destination"`
	StartDate   string  `json:"startDate"`
	EndDate     string  `json:"endDate"`
	Budget      float64 `json:"budget"`
	Preferences string  `json:"preferences"`
	Description string  `json:"description"`
}

type placeBidRequest struct {
	Price    float64 `json:"price"`
	Services string  `json:"services"`
}

type bidActionRequest struct {
	Action string `json:"action"`
}

type tripStatusRequest struct {
	Status models.TripStatus `json:"status"`
}

type uploadURLRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
}

type confirmImageRequest struct {
	Key string `json:"key"`
}

// CreateTrip handles POST /api/trips.
func (h *TripHandler) CreateTrip(c *gin.Context) {
	var req createTripRequest
	if !bindJSON(c, &req) {
		return
	}
	input := services.TripInput{
		Title:       req.Title,
		Destination: req.Destination,
		Budget:      req.Budget,
		Preferences: req.Preferences,
		Description: req.Description,
	}
	if req.StartDate != "" {
		start, err := parseDate(req.StartDate)
		if err != nil {
			badRequest(c, "Invalid startDate")
			return
		}
		input.StartDate = start
	}
	if req.EndDate != "" {
		end, err := parseDate(req.EndDate)
		if err != nil {
			badRequest(c, "Invalid endDate")
			return
		}
		input.EndDate = end
	}

	trip, err := h.tripService.CreateTrip(c.Request.Context(), middleware.CurrentUserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, trip)
}

// ListTrips handles GET /api/trips.
func (h *TripHandler) ListTrips(c *gin.Context) {
	trips, err := h.tripService.ListTrips(c.Request.Context(), middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// SearchTrips handles GET /api/trips/search?destination=&minBudget=&maxBudget=&status=&from=&to=
func (h *TripHandler) SearchTrips(c *gin.Context) {
	search := models.TripSearch{
		Destination: c.Query("destination"),
		Status:      models.TripStatus(c.Query("status")),
	}
	for _, f := range []struct {
		name string
		dst  **float64
	}{{"minBudget", &search.MinBudget}, {"maxBudget", &search.MaxBudget}} {
		if raw := c.Query(f.name); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				badRequest(c, "Invalid "+f.name)
				return
			}
			*f.dst = &v
		}
	}
	for _, f := range []struct {
		name string
		dst  **time.Time
	}{{"from", &search.From}, {"to", &search.To}} {
		if raw := c.Query(f.name); raw != "" {
			v, err := parseDate(raw)
			if err != nil {
				badRequest(c, "Invalid "+f.name)
				return
			}
			*f.dst = &v
		}
	}

	trips, err := h.tripService.SearchTrips(c.Request.Context(), search, middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// GetTrip handles GET /api/trips/:id.
func (h *TripHandler) GetTrip(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	trip, err := h.tripService.GetTrip(c.Request.Context(), tripID, middleware.CurrentUserID(c), middleware.CurrentRole(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// PlaceBid handles POST /api/trips/:id/bid.
func (h *TripHandler) PlaceBid(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req placeBidRequest
	if !bindJSON(c, &req) {
		return
	}
	bid, err := h.bidService.SubmitBid(c.Request.Context(), middleware.CurrentUserID(c), tripID, req.Price, req.Services)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bid)
}

// HandleBidAction handles PUT /api/trips/:id/bid/:bidId with {"action": "accept"|"reject"}.
func (h *TripHandler) HandleBidAction(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	bidID, ok := objectIDParam(c, "bidId")
	if !ok {
		return
	}
	var req bidActionRequest
	if !bindJSON(c, &req) {
		return
	}
	bid, err := h.bidService.HandleBidAction(c.Request.Context(), tripID, bidID, middleware.CurrentUserID(c), req.Action)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Bid " + string(bid.Status), "bid": bid})
}

// UpdateStatus handles PUT /api/trips/:id/status.
func (h *TripHandler) UpdateStatus(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req tripStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	trip, err := h.tripService.UpdateStatus(c.Request.Context(), tripID, middleware.CurrentUserID(c), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trip)
}

// RequestImageUpload handles POST /api/trips/:id/images/upload-url.
func (h *TripHandler) RequestImageUpload(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req uploadURLRequest
	if !bindJSON(c, &req) {
		return
	}
	url, key, err := h.tripService.RequestImageUpload(c.Request.Context(), tripID, middleware.CurrentUserID(c), req.Filename, req.ContentType)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"uploadUrl": url, "key": key})
}

// ConfirmImageUpload handles POST /api/trips/:id/images. The image is
// resized and attached to the trip by the bg worker.
func (h *TripHandler) ConfirmImageUpload(c *gin.Context) {
	tripID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	var req confirmImageRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()
	if err := h.tripService.ConfirmImageUpload(ctx, tripID, middleware.CurrentUserID(c), req.Key); err != nil {
		respondError(c, err)
		return
	}

	task, err := tasks.NewImageProcessTask(tripID.Hex(), req.Key)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := h.taskClient.EnqueueContext(ctx, task); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Image queued for processing", "key": req.Key})
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Meekal-Jamil/travelbid/internal/api/handlers"
	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/cache"
	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/payments"
	"github.com/Meekal-Jamil/travelbid/internal/services"
	"github.com/Meekal-Jamil/travelbid/internal/storage"
	"github.com/Meekal-Jamil/travelbid/internal/tasks"
)

// SetupRouter configures and returns the main Gin engine. store may be nil
// when S3 is not configured; the image routes then answer 500. The returned
// stop func ends the rate limiter's cleanup loop.
func SetupRouter(cfg *config.Config, db *mongo.Database, taskClient tasks.Enqueuer, settings services.ISettingsService, store storage.IS3Storage) (*gin.Engine, func()) {
	notifier := tasks.NewEmailNotifier(taskClient)
	userService := services.NewUserService(db, cfg)
	tripService := services.NewTripService(db, notifier, store)
	bidService := services.NewBidService(db, notifier)
	messageService := services.NewMessageService(db)
	paymentService := services.NewPaymentService(db, cfg, bidService, payments.NewLedgerGateway(db))

	r := gin.New()
	r.Use(gin.Logger(), middleware.Recovery())

	rateLimiter := middleware.NewRateLimiterMiddleware(cfg, settings)
	r.Use(rateLimiter.Limit())

	authHandler := handlers.NewAuthHandler(userService)
	tripHandler := handlers.NewTripHandler(tripService, bidService, taskClient)
	bidHandler := handlers.NewBidHandler(bidService)
	messageHandler := handlers.NewMessageHandler(messageService)
	agentHandler := handlers.NewAgentHandler(userService)
	adminHandler := handlers.NewAdminHandler(userService, tripService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	configHandler := handlers.NewConfigHandler(settings)

	requireAuth := middleware.AuthMiddleware(cfg.JwtSecret)
	traveler := middleware.RequireRole(models.RoleTraveler)
	agent := middleware.RequireRole(models.RoleAgent)

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "API is running")
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})
		apiGroup.GET("/config", configHandler.GetPublicConfig)

		authGroup := apiGroup.Group("/auth")
		authGroup.POST("/register", authHandler.Register)
		authGroup.POST("/login", authHandler.Login)
		authGroup.GET("/profile", requireAuth, authHandler.GetProfile)
		authGroup.PUT("/profile", requireAuth, authHandler.UpdateProfile)
		authGroup.GET("/verify", requireAuth, authHandler.Verify)

		trips := apiGroup.Group("/trips", requireAuth)
		trips.POST("", traveler, tripHandler.CreateTrip)
		trips.GET("", tripHandler.ListTrips)
		trips.GET("/search", tripHandler.SearchTrips)
		trips.GET("/:id", tripHandler.GetTrip)
		trips.POST("/:id/bid", agent, tripHandler.PlaceBid)
		trips.PUT("/:id/bid/:bidId", traveler, tripHandler.HandleBidAction)
		trips.PUT("/:id/status", traveler, tripHandler.UpdateStatus)
		trips.POST("/:id/images/upload-url", traveler, tripHandler.RequestImageUpload)
		trips.POST("/:id/images", traveler, tripHandler.ConfirmImageUpload)

		bids := apiGroup.Group("/bids", requireAuth)
		bids.POST("", agent, bidHandler.SubmitBid)
		bids.GET("/:tripId", bidHandler.GetBidsByTrip)
		bids.GET("/bookings/traveler", traveler, bidHandler.GetTravelerBookings)
		bids.PUT("/accept/:id", traveler, bidHandler.AcceptBid)
		bids.PUT("/reject/:id", traveler, bidHandler.RejectBid)
		bids.PUT("/pay/:id", traveler, bidHandler.ConfirmPayment)
		bids.PUT("/rate/:id", traveler, bidHandler.RateBid)

		messages := apiGroup.Group("/messages", requireAuth)
		messages.POST("", messageHandler.SendMessage)
		messages.GET("", messageHandler.GetMessages)
		messages.GET("/chats", messageHandler.GetChatPartners)
		messages.GET("/conversation/:userId", messageHandler.GetConversation)

		apiGroup.GET("/agent/stats", requireAuth, agent, agentHandler.GetStats)

		admin := apiGroup.Group("/admin", requireAuth, middleware.RequireRole(models.RoleAdmin))
		admin.GET("/users", adminHandler.GetAllUsers)
		admin.GET("/trips", adminHandler.GetAllTrips)
		admin.POST("/agents/:id/reconcile-stats", adminHandler.ReconcileAgentStats)

		paymentsGroup := apiGroup.Group("/payments", requireAuth, traveler)
		paymentsGroup.POST("/create-intent", paymentHandler.CreateIntent)
		paymentsGroup.POST("/success", paymentHandler.HandleSuccess)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"message": "Route not found"})
	})
	return r, rateLimiter.Stop
}

// serviceRequest is the body of every service API call.
type serviceRequest struct {
	Method    string          `json:"method"`
	Arguments json.RawMessage `json:"arguments"`
}

// SetupServiceRouter configures the internal service API used by operators
// and end-to-end tests.
func SetupServiceRouter(cfg *config.Config, rdb *redis.Client, shutdownChan chan<- struct{}) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.POST("/api", func(c *gin.Context) {
		var req serviceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request format"})
			return
		}

		switch req.Method {
		case "shutdown":
			log.Println("Received shutdown command via Service API")
			c.JSON(http.StatusOK, gin.H{"success": true, "result": "Shutdown initiated"})
			select {
			case shutdownChan <- struct{}{}:
			default:
				log.Println("Shutdown channel already signaled.")
			}
		case "getTestEmail":
			getTestEmail(c, rdb, req.Arguments)
		default:
			c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Unknown service method: %s", req.Method)})
		}
	})
	return r
}

// getTestEmail polls Redis briefly for the mock email of a template sent to
// an address, then deletes and returns it. Arguments: [template, email].
func getTestEmail(c *gin.Context, rdb *redis.Client, rawArgs json.RawMessage) {
	var args []string
	if err := json.Unmarshal(rawArgs, &args); err != nil || len(args) != 2 {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid arguments: expected JSON array [template, email]"})
		return
	}
	if rdb == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "error": "Redis is not configured"})
		return
	}
	key := cache.MockEmailKey(args[1], args[0])

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	var data string
	var err error
	for i := 0; i < 10; i++ {
		data, err = rdb.GetDel(ctx, key).Result()
		if err == nil {
			break
		}
		if !errors.Is(err, redis.Nil) {
			log.Printf("Service API: Error getting key %s from Redis: %v", key, err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Redis error"})
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": fmt.Sprintf("Test email not found in Redis for key %s", key)})
		return
	}

	var mockEmail map[string]interface{}
	if err := json.Unmarshal([]byte(data), &mockEmail); err != nil {
		log.Printf("Service API: Error unmarshalling email data from key %s: %v", key, err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to parse stored email data"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": mockEmail})
}

package handlers_test

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/api/handlers"
	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

func TestMessageHandler(t *testing.T) {
	msgs := new(MockMessageService)
	h := handlers.NewMessageHandler(msgs)
	r := newEngine()
	g := r.Group("/api/messages", middleware.AuthMiddleware(testSecret))
	g.POST("", h.SendMessage)
	g.GET("", h.GetMessages)
	g.GET("/chats", h.GetChatPartners)
	g.GET("/conversation/:userId", h.GetConversation)

	me := newCaller(t, models.RoleTraveler)
	other := primitive.NewObjectID()

	msgs.On("Send", mock.Anything, me.id, other, "Hello").
		Return(&models.Message{Base: models.NewBase(), Sender: me.id, Receiver: other, Content: "Hello"}, nil).Once()
	w := me.do(r, http.MethodPost, "/api/messages", gin.H{"receiverId": other.Hex(), "content": "Hello"})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Hello", decode(t, w)["content"])

	msgs.On("Send", mock.Anything, me.id, other, "Hello").Return(nil, services.ErrUserNotFound).Once()
	w = me.do(r, http.MethodPost, "/api/messages", gin.H{"receiverId": other.Hex(), "content": "Hello"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = me.do(r, http.MethodPost, "/api/messages", gin.H{"receiverId": "bob", "content": "Hello"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid receiverId", decode(t, w)["message"])

	msgs.On("GetChatPartners", mock.Anything, me.id).Return([]models.ChatPartner{{LastMessage: "Hello"}}, nil)
	w = me.do(r, http.MethodGet, "/api/messages/chats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"lastMessage":"Hello"`)

	msgs.On("GetConversation", mock.Anything, me.id, other).Return([]models.MessageView{}, nil)
	assert.Equal(t, http.StatusOK, me.do(r, http.MethodGet, "/api/messages/conversation/"+other.Hex(), nil).Code)

	msgs.On("GetMessages", mock.Anything, me.id).Return([]models.MessageView{}, nil)
	assert.Equal(t, http.StatusOK, me.do(r, http.MethodGet, "/api/messages", nil).Code)
	msgs.AssertExpectations(t)
}

func TestAgentHandler_GetStats(t *testing.T) {
	users := new(MockUserService)
	h := handlers.NewAgentHandler(users)
	r := newEngine()
	r.GET("/api/agent/stats", middleware.AuthMiddleware(testSecret), middleware.RequireRole(models.RoleAgent), h.GetStats)

	agent := newCaller(t, models.RoleAgent)
	users.On("GetAgentStats", mock.Anything, agent.id).Return(&models.AgentStats{
		TotalBids: 4, PendingBids: 1, AcceptedBids: 2, RejectedBids: 1, TotalEarnings: 3100,
	}, nil)

	w := agent.do(r, http.MethodGet, "/api/agent/stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"totalBids":4,"acceptedBids":2,"rejectedBids":1,"pendingBids":1,"earnings":3100}`, w.Body.String())

	assert.Equal(t, http.StatusForbidden, newCaller(t, models.RoleTraveler).do(r, http.MethodGet, "/api/agent/stats", nil).Code)
}

func TestAdminHandler(t *testing.T) {
	users := new(MockUserService)
	trips := new(MockTripService)
	h := handlers.NewAdminHandler(users, trips)
	r := newEngine()
	g := r.Group("/api/admin", middleware.AuthMiddleware(testSecret), middleware.RequireRole(models.RoleAdmin))
	g.GET("/users", h.GetAllUsers)
	g.GET("/trips", h.GetAllTrips)
	g.POST("/agents/:id/reconcile-stats", h.ReconcileAgentStats)

	admin := newCaller(t, models.RoleAdmin)
	assert.Equal(t, http.StatusForbidden, newCaller(t, models.RoleAgent).do(r, http.MethodGet, "/api/admin/users", nil).Code)

	users.On("ListUsers", mock.Anything).Return([]models.User{{Name: "Tia", PasswordHash: "secret-hash"}}, nil)
	w := admin.do(r, http.MethodGet, "/api/admin/users", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "secret-hash")

	trips.On("ListTrips", mock.Anything, admin.id, models.RoleAdmin).Return([]models.TripListing{}, nil)
	assert.Equal(t, http.StatusOK, admin.do(r, http.MethodGet, "/api/admin/trips", nil).Code)

	agentID := primitive.NewObjectID()
	users.On("ReconcileAgentStats", mock.Anything, agentID).Return(&models.AgentStats{TotalBids: 2, PendingBids: 2}, nil)
	w = admin.do(r, http.MethodPost, "/api/admin/agents/"+agentID.Hex()+"/reconcile-stats", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["totalBids"])

	missing := primitive.NewObjectID()
	users.On("ReconcileAgentStats", mock.Anything, missing).Return(nil, services.ErrUserNotFound)
	assert.Equal(t, http.StatusNotFound, admin.do(r, http.MethodPost, "/api/admin/agents/"+missing.Hex()+"/reconcile-stats", nil).Code)
}

func TestPaymentHandler(t *testing.T) {
	payments := new(MockPaymentService)
	h := handlers.NewPaymentHandler(payments)
	r := newEngine()
	g := r.Group("/api/payments", middleware.AuthMiddleware(testSecret), middleware.RequireRole(models.RoleTraveler))
	g.POST("/create-intent", h.CreateIntent)
	g.POST("/success", h.HandleSuccess)

	tia := newCaller(t, models.RoleTraveler)
	tripID, bidID := primitive.NewObjectID(), primitive.NewObjectID()

	payments.On("CreatePaymentIntent", mock.Anything, tripID, bidID, tia.id).Return(&models.PaymentIntent{
		ID: "pi_1", ClientSecret: "pi_1_secret_x", Amount: 150000, Currency: "usd",
	}, nil)
	w := tia.do(r, http.MethodPost, "/api/payments/create-intent", gin.H{"tripId": tripID.Hex(), "bidId": bidID.Hex()})
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "pi_1_secret_x", body["clientSecret"])
	assert.Equal(t, float64(150000), body["amount"])

	payments.On("HandleSuccessfulPayment", mock.Anything, tripID, bidID, tia.id, "pi_1").
		Return(&models.Bid{Status: models.BidAccepted, PaymentStatus: models.PaymentPaid}, nil)
	w = tia.do(r, http.MethodPost, "/api/payments/success", gin.H{"tripId": tripID.Hex(), "bidId": bidID.Hex(), "paymentIntentId": "pi_1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Payment successful and bid accepted", decode(t, w)["message"])

	payments.On("HandleSuccessfulPayment", mock.Anything, tripID, bidID, tia.id, "pi_other").Return(nil, services.ErrIntentMismatch)
	w = tia.do(r, http.MethodPost, "/api/payments/success", gin.H{"tripId": tripID.Hex(), "bidId": bidID.Hex(), "paymentIntentId": "pi_other"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = tia.do(r, http.MethodPost, "/api/payments/create-intent", gin.H{"tripId": tripID.Hex()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid bidId", decode(t, w)["message"])
	payments.AssertExpectations(t)
}

func TestConfigHandler_GetPublicConfig(t *testing.T) {
	settings := new(MockSettingsService)
	h := handlers.NewConfigHandler(settings)
	r := newEngine()
	r.GET("/api/config", h.GetPublicConfig)

	expected := map[string]interface{}{"APP_NAME": "TravelBid", "PASSWORD_MIN_LENGTH": float64(6)}
	settings.On("GetAllPublic", mock.Anything).Return(expected, nil).Once()
	w := anonymous.do(r, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, expected, decode(t, w))

	settings.On("GetAllPublic", mock.Anything).Return(nil, assert.AnError).Once()
	w = anonymous.do(r, http.MethodGet, "/api/config", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to retrieve configuration", decode(t, w)["message"])
}

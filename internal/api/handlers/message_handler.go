package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// MessageHandler serves /api/messages.
type MessageHandler struct {
	messageService services.IMessageService
}

func NewMessageHandler(messageService services.IMessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

type sendMessageRequest struct {
	ReceiverID string `json:"receiverId"`
	Content    string `json:"content"`
}

// SendMessage handles POST /api/messages.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	receiverID, ok := parseObjectID(c, "receiverId", req.ReceiverID)
	if !ok {
		return
	}
	msg, err := h.messageService.Send(c.Request.Context(), middleware.CurrentUserID(c), receiverID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// GetMessages handles GET /api/messages.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	msgs, err := h.messageService.GetMessages(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

// GetChatPartners handles GET /api/messages/chats.
func (h *MessageHandler) GetChatPartners(c *gin.Context) {
	partners, err := h.messageService.GetChatPartners(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, partners)
}

// GetConversation handles GET /api/messages/conversation/:userId.
func (h *MessageHandler) GetConversation(c *gin.Context) {
	otherID, ok := objectIDParam(c, "userId")
	if !ok {
		return
	}
	msgs, err := h.messageService.GetConversation(c.Request.Context(), middleware.CurrentUserID(c), otherID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

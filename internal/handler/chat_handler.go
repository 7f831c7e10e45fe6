package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"chatteta/internal/auth"
	"chatteta/internal/event"
	"chatteta/internal/hub"
	"chatteta/internal/repo"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ChatHandler interface {
	GetConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	PushMessage(c *gin.Context)
}

type chatHandler struct {
	router        *hub.ChatHandler
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	verifier      *auth.Verifier
	logger        *zap.Logger
}

func NewChatHandler(router *hub.ChatHandler, conversations repo.ConversationRepository, messages repo.MessageRepository, verifier *auth.Verifier, logger *zap.Logger) ChatHandler {
	return &chatHandler{
		router:        router,
		conversations: conversations,
		messages:      messages,
		verifier:      verifier,
		logger:        logger,
	}
}

// GetConversations returns the caller's active conversations, most recently
// updated first.
func (h *chatHandler) GetConversations(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	conversations, err := h.conversations.GetUserConversations(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get conversations",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
	})
}

// GetMessages returns one page of a conversation's history, newest first.
func (h *chatHandler) GetMessages(c *gin.Context) {
	if _, ok := h.authenticate(c); !ok {
		return
	}

	conversationID := c.Param("conversationId")
	page := c.DefaultQuery("page", "1")
	pageNumber, err := strconv.ParseInt(page, 10, 64)
	if err != nil || pageNumber < 1 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid page number",
		})
		return
	}

	result, err := h.messages.FilterMessages(c.Request.Context(), conversationID, pageNumber)
	if err != nil {
		h.logger.Error("failed to get messages",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get messages",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages":   result.Data,
		"page":       result.Page,
		"totalPages": result.TotalPages,
		"total":      result.Total,
	})
}

// PushMessage accepts a message over HTTP and delivers it through the same
// path as socket-sent messages. Upload flows post here after storing a file.
func (h *chatHandler) PushMessage(c *gin.Context) {
	userID, ok := h.authenticate(c)
	if !ok {
		return
	}

	var p event.SendMessagePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid message payload",
		})
		return
	}
	p.ConversationID = c.Param("conversationId")

	msg, err := h.router.PushMessage(c.Request.Context(), userID, p)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, hub.ErrUnauthorized):
			status = http.StatusForbidden
		case errors.Is(err, repo.ErrConversationNotFound):
			status = http.StatusNotFound
		case errors.Is(err, repo.ErrInvalidMessage), errors.Is(err, repo.ErrInvalidID):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
	})
}

func (h *chatHandler) authenticate(c *gin.Context) (string, bool) {
	credential := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	userID, err := h.verifier.Verify(credential)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": err.Error(),
		})
		return "", false
	}
	return userID, true
}

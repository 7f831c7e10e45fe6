package approuters

import (
	"chatteta/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/ct/api")
	{
		chatRoute.GET("/conversations", container.ChatHandler.GetConversations)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.GetMessages)
		chatRoute.POST("/conversations/:conversationId/messages", container.ChatHandler.PushMessage)
	}
}

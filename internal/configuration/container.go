package configuration

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"chatteta/internal/auth"
	"chatteta/internal/db"
	"chatteta/internal/handler"
	"chatteta/internal/hub"
	"chatteta/internal/model"
	"chatteta/internal/repo"

	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const defaultConfigPath = "config.json"

type Container struct {
	ChatHandler handler.ChatHandler
	Hub         *hub.Hub
	Config      Config
	Logger      *zap.Logger

	// private - for cleanup
	mongoClient *mongo.Database
}

func BuildContainer() (*Container, error) {
	configPath := os.Getenv("CHATTETA_CONFIG")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	con, err := db.OpenConnection(config.ChatDatabase.Uri, config.ChatDatabase.Database)
	if err != nil {
		return nil, err
	}

	logger, _ := zap.NewProduction()

	messageRepo := repo.NewMessageRepository(db.NewRepository[model.Message](con, config.ChatDatabase.MessagesCollection), logger)
	conversationRepo := repo.NewConversationRepository(db.NewRepository[model.Conversation](con, config.ChatDatabase.ConversationsCollection), logger)
	friendRepo := repo.NewFriendRepository(db.NewRepository[model.FriendRequest](con, config.ChatDatabase.FriendsCollection), logger)
	userRepo := repo.NewUserRepository(db.NewRepository[model.User](con, config.ChatDatabase.UsersCollection))

	verifier := auth.NewVerifier(config.Auth.Secret)

	h := hub.NewHub(hub.Deps{
		Verifier:       verifier,
		Messages:       messageRepo,
		Conversations:  conversationRepo,
		Friends:        friendRepo,
		Users:          userRepo,
		AllowedOrigins: config.Server.AllowedOrigins,
		Logger:         logger,
	})

	chatHandler := handler.NewChatHandler(h.Chat(), conversationRepo, messageRepo, verifier, logger)

	return &Container{
		ChatHandler: chatHandler,
		Hub:         h,
		Config:      *config,
		Logger:      logger,
		mongoClient: con,
	}, nil
}

// Close gracefully shuts down all connections
func (c *Container) Close() error {
	// Stop the hub first (closes all WebSocket connections)
	if c.Hub != nil {
		c.Hub.Stop()
	}

	// Sync logger
	if c.Logger != nil {
		_ = c.Logger.Sync()
	}

	// Close MongoDB connection pool
	if c.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := c.mongoClient.Client().Disconnect(ctx); err != nil {
			return fmt.Errorf("failed to close MongoDB connection: %w", err)
		}
	}

	return nil
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chatline/internal/app/policies"
	authsvc "chatline/internal/app/services/auth"
	chatsvc "chatline/internal/app/services/chat"
	domainauth "chatline/internal/domain/auth"
	domainchat "chatline/internal/domain/chat"
	domainmsg "chatline/internal/domain/message"
	domainuser "chatline/internal/domain/user"
	"chatline/internal/infra/broker/kafka"
	"chatline/internal/infra/config"
	mongodb "chatline/internal/infra/db/mongo"
	ginserver "chatline/internal/infra/http/gin"
	"chatline/internal/infra/obs"
	"chatline/internal/infra/security"
	"chatline/internal/infra/storage/memory"
	"chatline/internal/infra/storage/s3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := getenv("APP_ENV", "dev")
	logger := obs.NewLogger(env)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration invalid", "error", err)
		os.Exit(1)
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	stores, err := buildStores(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "error", err)
		os.Exit(1)
	}

	publisher, closePublisher := buildPublisher(cfg, logger)
	defer closePublisher()

	startMessageIngest(ctx, cfg, stores.chats, logger)

	avatars := buildAvatarUploader(cfg, logger)

	authService := &authsvc.Service{
		Users:      stores.users,
		Sessions:   stores.sessions,
		Passwords:  security.BcryptHasher{},
		Tokens:     security.RandomTokenGenerator{},
		SessionTTL: cfg.SessionTTL,
		Logger:     logger,
	}
	chatService := &chatsvc.Service{
		Chats:    stores.chats,
		Users:    stores.users,
		Messages: stores.messages,
		Events:   publisher,
		Logger:   logger,
	}

	authMW := ginserver.AuthMiddleware{Service: authService, Logger: logger}
	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{
		Ready: stores.ready,
	}, ginserver.Handlers{
		Auth:           ginserver.AuthHandler{Service: authService, Avatars: avatars, Logger: logger},
		Chat:           ginserver.ChatHandler{Service: chatService, Logger: logger},
		AuthMiddleware: authMW.Handle,
	})

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("http server failed", "error", err)
		os.Exit(1)
	}
	logger.Info("HTTP server stopped")
}

type stores struct {
	chats    domainchat.Repository
	users    domainuser.Repository
	sessions domainauth.SessionStore
	messages domainmsg.ReadStore
	ready    func() error
}

// buildStores wires Mongo-backed repositories when MONGO_URI is set and
// falls back to in-memory stores for local runs.
func buildStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.MongoURI == "" {
		logger.Warn("MONGO_URI not set, using in-memory stores")
		return stores{
			chats:    memory.NewChatRepository(),
			users:    memory.NewUserRepository(),
			sessions: memory.NewSessionStore(),
			messages: memory.NewMessageStore(),
			ready:    func() error { return nil },
		}, nil
	}

	client, err := mongodb.New(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return stores{}, err
	}
	chats := mongodb.NewChatRepository(client.DB)
	users := mongodb.NewUserRepository(client.DB)
	indexCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := chats.EnsureIndexes(indexCtx); err != nil {
		return stores{}, err
	}
	if err := users.EnsureIndexes(indexCtx); err != nil {
		return stores{}, err
	}
	logger.Info("mongo connected", "db", cfg.MongoDB)
	return stores{
		chats:    chats,
		users:    users,
		sessions: memory.NewSessionStore(),
		messages: mongodb.NewMessageReadStore(client.DB),
		ready: func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return client.Ping(pingCtx)
		},
	}, nil
}

func buildPublisher(cfg config.Config, logger *slog.Logger) (policies.EventPublisher, func()) {
	if len(cfg.KafkaBrokers) == 0 {
		logger.Warn("KAFKA_BROKERS not set, chat events will only be logged")
		return obs.EventLogger{Logger: logger}, func() {}
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, nil)
	if err != nil {
		logger.Error("kafka producer init failed, chat events will only be logged", "error", err)
		return obs.EventLogger{Logger: logger}, func() {}
	}
	logger.Info("kafka producer ready", "brokers", cfg.KafkaBrokers)
	publisher := &kafka.EventPublisher{
		Producer:    producer,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Logger:      logger,
	}
	return publisher, func() {
		if err := producer.Close(); err != nil {
			logger.Warn("kafka producer close failed", "error", err)
		}
	}
}

// startMessageIngest consumes message lifecycle events so chat listings
// stay ordered by real activity. Optional: without brokers the listing
// still works, it just never sees message traffic.
func startMessageIngest(ctx context.Context, cfg config.Config, chats domainchat.Repository, logger *slog.Logger) {
	if len(cfg.KafkaBrokers) == 0 || cfg.MessageTopic == "" {
		return
	}
	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, nil, kafka.MessageIngest{
		Chats:  chats,
		Logger: logger,
	})
	if err != nil {
		logger.Error("message ingest init failed", "error", err)
		return
	}
	topic := cfg.KafkaTopicPrefix + cfg.MessageTopic
	logger.Info("message ingest started", "topic", topic, "group", cfg.KafkaGroupID)
	go func() {
		defer consumer.Close()
		if err := consumer.Run(ctx, []string{topic}); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("message ingest stopped", "error", err)
		}
	}()
}

func buildAvatarUploader(cfg config.Config, logger *slog.Logger) s3.Uploader {
	if cfg.S3Endpoint == "" {
		logger.Warn("S3_ENDPOINT not set, avatar uploads disabled")
		return s3.NoopUploader{}
	}
	client, err := s3.NewClient(cfg.S3Endpoint, cfg.S3UseSSL, cfg.S3AccessKey, cfg.S3SecretKey, cfg.S3Bucket, cfg.S3PublicEndpoint, logger)
	if err != nil {
		logger.Error("s3 client init failed, avatar uploads disabled", "error", err)
		return s3.NoopUploader{}
	}
	return client
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"chat-sync-service/internal/chatsync"
	"chat-sync-service/internal/config"
	"chat-sync-service/internal/db"
	"chat-sync-service/internal/handlers"
	"chat-sync-service/internal/listener"
	"chat-sync-service/internal/live"
	"chat-sync-service/internal/middleware"
	"chat-sync-service/internal/observability"
	"chat-sync-service/internal/push"
	"chat-sync-service/internal/rabbitmq"
	"chat-sync-service/internal/relay"
	"chat-sync-service/internal/repositories"
	"chat-sync-service/internal/telemetry"
	"chat-sync-service/internal/ws"
)

const serviceName = "chat-sync-service"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}
	logger := config.NewLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer := observability.InitTracer(ctx, serviceName, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.Environment, logger)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logger.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	database, err := db.Connect(cfg.Database.DSN, logger)
	if err != nil {
		logger.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer publisher.Close()
	logger.WithField("mode", rabbitmq.PublisherMode(publisher)).Info("event publisher ready")

	auditEmitter := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRouting, serviceName, cfg.Telemetry.Environment, logger)

	userRepo := repositories.NewUserRepo(database)
	roomRepo := repositories.NewChatRoomRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	requestRepo := repositories.NewFriendRequestRepo(database)

	hub := live.NewHub()
	syncService := chatsync.NewService(roomRepo, messageRepo, userRepo, requestRepo, hub, publisher, logger)

	gateway := push.NewFCMGateway(cfg.Push.Endpoint, cfg.Push.ServerKey, logger)
	dispatcher := relay.NewDispatcher(userRepo, gateway, logger)

	chatHandler := handlers.NewChatHandler(syncService)
	relayHandler := handlers.NewRelayHandler(dispatcher, userRepo, *cfg)
	wsHandler := ws.NewHandler(syncService, publisher, []byte(cfg.Auth.JWTSecret), logger)

	triggerListener := listener.New(cfg.AMQP.URL, cfg.AMQP.Exchange, cfg.AMQP.ListenerQueue, userRepo, dispatcher, logger)
	go func() {
		if err := triggerListener.Run(ctx); err != nil {
			logger.WithError(err).Error("trigger listener stopped")
		}
	}()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware([]byte(cfg.Auth.JWTSecret))

	router.GET("/chats", authMiddleware, chatHandler.ListChatRooms)
	router.POST("/messages", authMiddleware, chatHandler.SendMessage)
	router.GET("/chats/:chat_id/messages", authMiddleware, chatHandler.GetMessages)
	router.POST("/chats/:chat_id/read", authMiddleware, chatHandler.MarkAllRead)
	router.DELETE("/chats/:chat_id", authMiddleware, chatHandler.DeleteChatRoom)
	router.POST("/messages/:message_id/read", authMiddleware, chatHandler.MarkMessageRead)
	router.DELETE("/messages/:message_id", authMiddleware, chatHandler.DeleteMessage)
	router.POST("/presence", authMiddleware, chatHandler.UpdatePresence)

	router.POST("/friend-requests", authMiddleware, chatHandler.SendFriendRequest)
	router.GET("/friend-requests", authMiddleware, chatHandler.ListFriendRequests)
	router.POST("/friend-requests/:request_id/accept", authMiddleware, chatHandler.AcceptFriendRequest)
	router.POST("/friend-requests/:request_id/decline", authMiddleware, chatHandler.DeclineFriendRequest)

	router.GET("/ws/chats", wsHandler.HandleRooms)
	router.GET("/ws/chats/:chat_id", wsHandler.HandleMessages)

	// Relay surface: CORS-permissive, unauthenticated by design.
	api := router.Group("/", middleware.CORS())
	api.POST("/api/send-notification", relayHandler.SendNotification)
	api.GET("/api/user/:user_id/token", relayHandler.GetToken)
	api.POST("/api/user/:user_id/token", relayHandler.SetToken)
	api.GET("/api/app/version", relayHandler.AppVersion)
	api.GET("/", relayHandler.Liveness)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDebugRoutes(router, auditEmitter, cfg.Server.DebugRoutes)

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		logger.WithField("port", cfg.Server.Port).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("server shutdown timeout")
	}
	logger.Info("server exited")
}

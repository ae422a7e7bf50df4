package bootstrap

import (
	"context"
	"log"

	"realtime-collab-be/internal/collab/lock"
	"realtime-collab-be/internal/collab/session"
	"realtime-collab-be/internal/config"
	"realtime-collab-be/internal/controller"
	"realtime-collab-be/internal/handler"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"
	"realtime-collab-be/internal/repository"
	"realtime-collab-be/internal/repository/implementation"
	"realtime-collab-be/internal/repository/memory"
	"realtime-collab-be/internal/repository/unitofwork"
	"realtime-collab-be/internal/service"
	"realtime-collab-be/internal/websocket"

	pktNats "realtime-collab-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	SessionController controller.ISessionController
	CommentController controller.ICommentController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService
	CollabService   service.ICollabService

	// WebSockets
	CollabHandler *handler.CollabHandler
	WebSocketHub  *websocket.Hub
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 2.5 Infrastructure
	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}
	natsSub, err := pktNats.NewSubscriber(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Subscriber: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/collab.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 3. Services
	publisherService := service.NewPublisherService(cfg.Collab.EventTopic, pubSub)
	consumerService := service.NewConsumerService(pubSub, cfg.Collab.EventTopic)

	snapshotCache := memory.NewSnapshotCache()
	snapshotStore := service.NewSnapshotStoreService(uowFactory, snapshotCache, sysLogger)

	var notifRepo repository.NotificationRepository = implementation.NewNotificationRepository(db)
	notifService := service.NewNotificationService(notifRepo, natsPub, natsSub, wsHub, wsLogger)

	// Session Coordination
	sessionCfg := session.Config{
		QueueDepth:              cfg.Collab.QueueDepth,
		Strategy:                model.ResolutionStrategy(cfg.Collab.ResolutionStrategy),
		ManualResolutionTimeout: cfg.Collab.ManualResolutionTimeout,
		InactivityTimeout:       cfg.Collab.InactivityTimeout,
		Lock: lock.Config{
			SweepInterval: cfg.Collab.LockSweepInterval,
			MinDuration:   cfg.Collab.LockMinDuration,
			MaxDuration:   cfg.Collab.LockMaxDuration,
		},
	}
	registry := session.NewRegistry(snapshotStore, wsHub, notifService, publisherService, sysLogger, sessionCfg)

	collabService := service.NewCollabService(registry, snapshotStore, sysLogger)
	commentService := service.NewCommentService(uowFactory)

	// Start notification worker
	if natsSub != nil {
		go notifService.Start()
	}

	// 4. Controllers & Handlers
	collabHandler := handler.NewCollabHandler(collabService, wsHub, wsLogger)

	return &Container{
		SessionController: controller.NewSessionController(collabService, consumerService, notifRepo),
		CommentController: controller.NewCommentController(commentService),

		ConsumerService: consumerService,
		CollabService:   collabService,

		CollabHandler: collabHandler,
		WebSocketHub:  wsHub,
	}
}

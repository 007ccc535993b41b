package bootstrap

import (
	"context"
	"log"

	"codecollab-be/internal/config"
	"codecollab-be/internal/constant"
	"codecollab-be/internal/controller"
	"codecollab-be/internal/pkg/logger"
	"codecollab-be/internal/repository/implementation"
	"codecollab-be/internal/repository/memory"
	"codecollab-be/internal/service"
	"codecollab-be/internal/websocket"
	"codecollab-be/pkg/executor"
	pktNats "codecollab-be/pkg/nats"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// HTTP surface
	AiController controller.IAiController

	// WebSocket surface
	WebSocketHub *websocket.Hub
	Gateway      *websocket.Gateway

	// Background services (exposed for main.go to run)
	DeliveryService  service.IDeliveryService
	ExecutionService service.IExecutionService

	Logger logger.ILogger
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")
	wsLogger := logger.NewIsolatedLogger("logs/websocket.log")

	// 2. Event bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// 3. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		var err error
		natsPub, err = pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
			natsPub = nil
		}
	}

	var rdb *redis.Client
	if cfg.App.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.App.RedisURL)
		if err != nil {
			log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
			opt = &redis.Options{Addr: cfg.App.RedisURL}
		}
		rdb = redis.NewClient(opt)
		if _, err := rdb.Ping(context.Background()).Result(); err != nil {
			log.Printf("[WARN] Failed to connect to Redis: %v", err)
		}
	}

	// 4. WebSocket hub
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	// 5. Services
	roomRepo := implementation.NewRoomRepository(db)
	connRegistry := memory.NewConnectionRegistry()

	roomService := service.NewRoomService(roomRepo, natsPub, sysLogger)
	broadcastService := service.NewBroadcastService(pubSub, constant.DeliveryTopic)
	deliveryService := service.NewDeliveryService(pubSub, constant.DeliveryTopic, roomService, wsHub, wsLogger)

	runner, err := executor.NewRunner(cfg.Exec.TempDir, cfg.Exec.CppCompiler, cfg.Exec.PythonInterpreter)
	if err != nil {
		log.Fatalf("[FATAL] Failed to initialize execution sandbox: %v", err)
	}
	executionService := service.NewExecutionService(
		runner,
		cfg.Exec.Workers,
		cfg.Exec.Timeout,
		wsHub,
		natsPub,
		sysLogger,
	)

	aiService := service.NewAiService(cfg.Keys.OpenRouter)

	// 6. Gateway
	gateway := websocket.NewGateway(roomService, broadcastService, executionService, connRegistry, wsLogger)

	return &Container{
		AiController:     controller.NewAiController(aiService),
		WebSocketHub:     wsHub,
		Gateway:          gateway,
		DeliveryService:  deliveryService,
		ExecutionService: executionService,
		Logger:           sysLogger,
	}
}

package main

import (
	"log"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Gopher0727/StudyHive/config"
	"github.com/Gopher0727/StudyHive/internal/consumer"
	"github.com/Gopher0727/StudyHive/internal/handlers"
	redisclient "github.com/Gopher0727/StudyHive/internal/pkg/redis"
	"github.com/Gopher0727/StudyHive/internal/repositories"
	"github.com/Gopher0727/StudyHive/internal/routers"
	"github.com/Gopher0727/StudyHive/internal/services"
	"github.com/Gopher0727/StudyHive/internal/storage"
	internalutils "github.com/Gopher0727/StudyHive/internal/utils"
	"github.com/Gopher0727/StudyHive/pkg/logger"
	pkgmiddlewares "github.com/Gopher0727/StudyHive/pkg/middlewares"
	"github.com/Gopher0727/StudyHive/pkg/mq"
	pkgutils "github.com/Gopher0727/StudyHive/pkg/utils"
	"github.com/Gopher0727/StudyHive/pkg/ws"
	"github.com/Gopher0727/StudyHive/utils/consistenthash"
	"github.com/Gopher0727/StudyHive/utils/ratelimit"
	"github.com/Gopher0727/StudyHive/utils/snowflake"
)

func main() {
	cfg, err := config.LoadConfig("./config.toml")
	if err != nil {
		log.Fatalf("配置初始化失败: %v", err)
	}

	// 初始化结构化日志
	appLog, err := logger.NewLogger(&cfg.Logging)
	if err != nil {
		log.Fatalf("日志初始化失败: %v", err)
	}
	defer appLog.Sync()

	// 初始化全局限流器
	pkgmiddlewares.InitGlobalLimiter(cfg.RateLimit.Burst, cfg.RateLimit.QPS)

	// 初始化全局 Worker Pool (协程池)
	// 用于异步处理请求，防止高并发下 Goroutine 暴涨
	internalutils.InitGlobalWorkerPool(cfg.WorkerPool.Size, cfg.WorkerPool.QueueSize)

	// JWT 密钥来自配置
	pkgutils.SetJWTSecret(cfg.JWT.Secret)

	// 初始化 PostgreSQL
	dsn := storage.BuildDSN(cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName)
	postgres, err := storage.InitPostgres(dsn, cfg.Postgres.MaxIdleConns, cfg.Postgres.MaxOpenConns)
	if err != nil {
		appLog.Fatal("postgres 初始化失败", zap.Error(err))
	}

	// 初始化 Redis
	redisClient, err := storage.InitRedis(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.PoolSize, cfg.Redis.MinIdleConns)
	if err != nil {
		appLog.Fatal("redis 初始化失败", zap.Error(err))
	}
	cache := redisclient.NewClient(redisClient)

	// 初始化 Snowflake ID 生成器 (消息主键需要趋势递增)
	snowflakeGen, err := snowflake.NewGenerator(snowflake.Config{
		DatacenterID: cfg.Snowflake.DatacenterID,
		WorkerID:     cfg.Snowflake.WorkerID,
	})
	if err != nil {
		appLog.Fatal("snowflake 初始化失败", zap.Error(err))
	}

	// 初始化仓储层
	userRepo := repositories.NewUserRepository(postgres)
	friendRepo := repositories.NewFriendshipRepository(postgres)
	convRepo := repositories.NewConversationRepository(postgres)
	messageRepo := repositories.NewMessageRepository(postgres)
	roomRepo := repositories.NewRoomRepository(postgres)
	notifRepo := repositories.NewNotificationRepository(postgres)
	badgeRepo := repositories.NewBadgeRepository(postgres)
	subRepo := repositories.NewSubscriptionRepository(postgres)

	// 初始化服务层 (通知与激励服务先行，供其他服务注入)
	notificationService := services.NewNotificationService(notifRepo, userRepo, friendRepo, convRepo, roomRepo)
	gamificationService := services.NewGamificationService(userRepo, badgeRepo)
	subscriptionService := services.NewSubscriptionService(subRepo)

	authService := services.NewAuthService(userRepo)
	userService := services.NewUserService(userRepo, badgeRepo, subRepo)
	friendshipService := services.NewFriendshipService(friendRepo, userRepo, notificationService)
	conversationService := services.NewConversationService(convRepo, userRepo, messageRepo, friendshipService)
	messageService := services.NewMessageService(messageRepo, convRepo, userRepo, friendshipService, cache, snowflakeGen, notificationService, gamificationService)
	roomService := services.NewRoomService(roomRepo, convRepo, subscriptionService, notificationService)
	presenceService := services.NewPresenceService(cache, convRepo)

	// 跨节点的每用户消息限流 (Redis 计数，故障时放行)
	messageLimiter := ratelimit.NewSlidingWindowLimiter(redisClient, appLog.Logger, true)

	// 初始化 Kafka Producer
	kafkaProducer, err := mq.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	if err != nil {
		appLog.Warn("Kafka 生产者初始化失败，系统将以降级模式运行（直接写入数据库）", zap.Error(err))
		kafkaProducer = nil
	} else {
		defer kafkaProducer.Close()
	}

	// 初始化一致性哈希环（用于分布式路由）
	ring := consistenthash.New(128, nil)
	for node := range cfg.Gateway.Nodes {
		ring.Add(node)
	}

	// 初始化 WebSocket Hub（注入哈希环与当前节点ID）
	hub := ws.NewHub(redisClient, ring, cfg.Gateway.NodeID)
	go hub.Run()

	// 初始化 Kafka Consumer (如果 Kafka 可用)
	if kafkaProducer != nil {
		msgConsumer := consumer.NewMessageConsumer(messageService, hub)
		consumer.StartConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.Topic, msgConsumer)
	}

	// 初始化处理器
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	friendshipHandler := handlers.NewFriendshipHandler(friendshipService)
	conversationHandler := handlers.NewConversationHandler(conversationService, hub)
	messageHandler := handlers.NewMessageHandler(messageService, presenceService, hub, messageLimiter)
	roomHandler := handlers.NewRoomHandler(roomService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	subscriptionHandler := handlers.NewSubscriptionHandler(subscriptionService)

	// 配置并创建 Gin 引擎
	gin.SetMode(cfg.Server.Mode)

	r := gin.Default()

	// 设置路由
	routers.SetupRoutes(r,
		cfg,
		authHandler,
		userHandler,
		friendshipHandler,
		conversationHandler,
		messageHandler,
		roomHandler,
		notificationHandler,
		subscriptionHandler,
		hub,
		messageService,
		presenceService,
		convRepo,
		kafkaProducer,
	)

	// 启动服务器
	appLog.Info("正在启动服务器", zap.Int("port", cfg.Server.Port), zap.String("node_id", cfg.Gateway.NodeID))
	if err := r.Run(":" + strconv.Itoa(cfg.Server.Port)); err != nil {
		appLog.Fatal("启动服务器失败", zap.Error(err))
	}
}

package routers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Gopher0727/StudyHive/config"
	"github.com/Gopher0727/StudyHive/internal/handlers"
	"github.com/Gopher0727/StudyHive/internal/middlewares"
	"github.com/Gopher0727/StudyHive/internal/services"
	pkgmiddlewares "github.com/Gopher0727/StudyHive/pkg/middlewares"
	"github.com/Gopher0727/StudyHive/pkg/mq"
	"github.com/Gopher0727/StudyHive/pkg/ws"
)

// SetupRoutes 设置所有路由
func SetupRoutes(r *gin.Engine, cfg *config.Config,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	friendshipHandler *handlers.FriendshipHandler,
	conversationHandler *handlers.ConversationHandler,
	messageHandler *handlers.MessageHandler,
	roomHandler *handlers.RoomHandler,
	notificationHandler *handlers.NotificationHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	hub *ws.Hub,
	messageService *services.MessageService,
	presenceService *services.PresenceService,
	convLister ws.ConversationLister,
	kafkaProducer *mq.KafkaProducer,
) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	r.Use(cors.New(corsConfig))

	// 全局限流中间件 (防止 QPS 过高)，超出令牌桶容量的请求最多等待 500ms
	r.Use(pkgmiddlewares.RateLimitMiddleware(500 * time.Millisecond))
	if cfg.RateLimit.MaxConcurrency > 0 {
		r.Use(pkgmiddlewares.MaxConcurrencyMiddleware(cfg.RateLimit.MaxConcurrency))
	}

	// WebSocket 路由 (必须在 AsyncMiddleware 之前注册，避免握手请求被放入 Worker Pool)
	r.GET("/ws", middlewares.AuthMiddleware(), func(c *gin.Context) {
		ws.ServeWs(hub, messageService, presenceService, convLister, kafkaProducer, c)
	})

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"Status": "OK",
		})
	})

	// 异步处理中间件：将请求放入 Worker Pool 中排队执行
	r.Use(middlewares.AsyncMiddleware())

	RegisterAuthRoutes(r, authHandler)
	RegisterUserRoutes(r, userHandler, friendshipHandler, subscriptionHandler)
	RegisterConversationRoutes(r, conversationHandler, messageHandler)
	RegisterRoomRoutes(r, roomHandler)
	RegisterNotificationRoutes(r, notificationHandler)
}

func RegisterAuthRoutes(r *gin.Engine, authHandler *handlers.AuthHandler) {
	authGroup := r.Group("/api/v1/auth")
	{
		authGroup.POST("/register", authHandler.Register) // 注册
		authGroup.POST("/login", authHandler.Login)       // 登录
	}
	authGroup.Use(middlewares.AuthMiddleware())
	{
		authGroup.POST("/logout", authHandler.Logout) // 登出
	}
}

func RegisterUserRoutes(r *gin.Engine,
	userHandler *handlers.UserHandler,
	friendshipHandler *handlers.FriendshipHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
) {
	userGroup := r.Group("/api/v1/users")
	userGroup.Use(middlewares.AuthMiddleware())
	{
		userGroup.GET("/me", userHandler.GetMe)                        // 获取当前用户资料
		userGroup.PUT("/me", userHandler.UpdateMe)                     // 更新资料
		userGroup.GET("/by-name/:username", userHandler.GetByUsername) // 按用户名查找
	}

	friendGroup := r.Group("/api/v1/friends")
	friendGroup.Use(middlewares.AuthMiddleware())
	{
		friendGroup.GET("", friendshipHandler.ListFriends)                              // 好友列表
		friendGroup.GET("/requests", friendshipHandler.ListPending)                     // 待处理请求
		friendGroup.POST("/requests", friendshipHandler.SendRequest)                    // 发起请求
		friendGroup.POST("/requests/:friendship_id/accept", friendshipHandler.Accept)   // 接受
		friendGroup.POST("/requests/:friendship_id/decline", friendshipHandler.Decline) // 拒绝
		friendGroup.DELETE("/:user_id", friendshipHandler.Unfriend)                     // 解除好友
		friendGroup.POST("/:user_id/block", friendshipHandler.Block)                    // 屏蔽
	}

	subGroup := r.Group("/api/v1/subscription")
	subGroup.Use(middlewares.AuthMiddleware())
	{
		subGroup.GET("", subscriptionHandler.Status)             // 订阅状态
		subGroup.POST("/checkout", subscriptionHandler.Checkout) // 模拟购买
		subGroup.POST("/cancel", subscriptionHandler.Cancel)     // 取消
	}
}

func RegisterConversationRoutes(r *gin.Engine,
	conversationHandler *handlers.ConversationHandler,
	messageHandler *handlers.MessageHandler,
) {
	convGroup := r.Group("/api/v1/conversations")
	convGroup.Use(middlewares.AuthMiddleware())
	{
		convGroup.GET("", conversationHandler.List)                // 会话列表
		convGroup.POST("/dm", conversationHandler.ResolveDM)       // 解析/创建 DM
		convGroup.POST("/groups", conversationHandler.CreateGroup) // 创建群聊

		convGroup.POST("/:conversation_id/read", conversationHandler.MarkRead)      // 标记已读
		convGroup.GET("/:conversation_id/unread", conversationHandler.UnreadCount)  // 未读数
		convGroup.POST("/:conversation_id/members", conversationHandler.AddMember)  // 添加成员
		convGroup.DELETE("/:conversation_id/members/me", conversationHandler.Leave) // 退出会话

		// 消息相关
		convGroup.POST("/:conversation_id/messages", messageHandler.Send) // 发送消息
		convGroup.GET("/:conversation_id/messages", messageHandler.List)  // 获取消息列表

		// 输入状态
		convGroup.POST("/:conversation_id/typing", messageHandler.SetTyping)  // 设置输入状态
		convGroup.GET("/:conversation_id/typing", messageHandler.TypingPeers) // 正在输入的成员
	}
}

func RegisterRoomRoutes(r *gin.Engine, roomHandler *handlers.RoomHandler) {
	roomGroup := r.Group("/api/v1/rooms")
	roomGroup.Use(middlewares.AuthMiddleware())
	{
		roomGroup.POST("", roomHandler.Create)                      // 创建自习室
		roomGroup.GET("", roomHandler.ListPublic)                   // 公开自习室列表
		roomGroup.GET("/mine", roomHandler.ListMine)                // 我加入的自习室
		roomGroup.POST("/join", roomHandler.Join)                   // 加入 (加入码或公开房间)
		roomGroup.DELETE("/:room_id/members/me", roomHandler.Leave) // 退出
		roomGroup.POST("/:room_id/invites", roomHandler.Invite)     // 邀请
	}
}

func RegisterNotificationRoutes(r *gin.Engine, notificationHandler *handlers.NotificationHandler) {
	notifGroup := r.Group("/api/v1/notifications")
	notifGroup.Use(middlewares.AuthMiddleware())
	{
		notifGroup.GET("", notificationHandler.List)                            // 通知列表
		notifGroup.GET("/unread", notificationHandler.UnreadCount)              // 未读数
		notifGroup.POST("/:notification_id/read", notificationHandler.MarkRead) // 标记已读
		notifGroup.POST("/read-all", notificationHandler.MarkAllRead)           // 全部已读
	}
}

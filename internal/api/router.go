package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/story-game/internal/middleware"
	"github.com/wfunc/story-game/internal/service"
	ws "github.com/wfunc/story-game/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Router API路由器
type Router struct {
	engine         *gin.Engine
	db             *gorm.DB
	services       *service.Services
	authHandler    *AuthHandler
	roomHandler    *RoomHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(db *gorm.DB, services *service.Services, hub *ws.Hub, log *zap.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:         engine,
		db:             db,
		services:       services,
		authHandler:    NewAuthHandler(services.Auth),
		roomHandler:    NewRoomHandler(services.Room),
		wsHandler:      NewWebSocketHandler(hub, log),
		authMiddleware: middleware.NewAuthMiddleware(services.Auth),
		log:            log,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由
		auth := v1.Group("/auth")
		{
			auth.POST("/register", r.authHandler.Register)
			auth.POST("/login", r.authHandler.Login)
			auth.POST("/refresh", r.authHandler.RefreshToken)

			authRequired := auth.Group("")
			authRequired.Use(r.authMiddleware.RequireAuth())
			{
				authRequired.POST("/logout", r.authHandler.Logout)
			}
		}

		// 房间与游戏路由（需要认证）
		rooms := v1.Group("/rooms")
		rooms.Use(r.authMiddleware.RequireAuth())
		{
			rooms.GET("", r.roomHandler.ListRooms)
			rooms.POST("", r.roomHandler.CreateRoom)
			rooms.POST("/:code/join", r.roomHandler.JoinRoom)
			rooms.POST("/:code/leave", r.roomHandler.LeaveRoom)
			rooms.POST("/:code/start", r.roomHandler.StartGame)
			rooms.POST("/:code/act", r.roomHandler.SubmitAction)
			rooms.GET("/:code/state", r.roomHandler.GetState)
			rooms.GET("/:code/transcript", r.roomHandler.GetTranscript)
		}
	}

	// WebSocket路由
	wsGroup := r.engine.Group("/ws")
	wsGroup.Use(r.authMiddleware.RequireAuth())
	{
		wsGroup.GET("/rooms/:code", r.wsHandler.RoomWebSocket)
	}

	// 404处理
	r.engine.NoRoute(func(c *gin.Context) {
		c.JSON(404, gin.H{
			"code":    "NOT_FOUND",
			"message": "接口不存在",
		})
	})
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	sqlDB, err := r.db.DB()
	if err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库连接失败",
		})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		c.JSON(500, gin.H{
			"status":  "unhealthy",
			"message": "数据库ping失败",
		})
		return
	}

	c.JSON(200, gin.H{
		"status":  "healthy",
		"message": "服务运行正常",
	})
}

// Run 运行服务器
func (r *Router) Run(addr string) error {
	r.log.Info("Starting API server", zap.String("address", addr))
	return r.engine.Run(addr)
}

// GetEngine 获取Gin引擎（用于测试）
func (r *Router) GetEngine() *gin.Engine {
	return r.engine
}

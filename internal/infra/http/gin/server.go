package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"chatline/internal/infra/config"
	"chatline/internal/infra/obs"
)

type AuthHTTP interface {
	Register(c *gin.Context)
	Login(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
	UploadAvatar(c *gin.Context)
}

type ChatHTTP interface {
	AccessDirectChat(c *gin.Context)
	ListChats(c *gin.Context)
	CreateGroup(c *gin.Context)
	RenameGroup(c *gin.Context)
	AddMember(c *gin.Context)
	RemoveMember(c *gin.Context)
	LeaveGroup(c *gin.Context)
	DeleteGroup(c *gin.Context)
}

type Handlers struct {
	Auth           AuthHTTP
	Chat           ChatHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	registerSwaggerRoutes(router)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.GET("/auth/me", h.Auth.Me)
		api.PUT("/me/avatar", h.Auth.UploadAvatar)
	}
	if h.Chat != nil {
		api.POST("/chats", h.Chat.AccessDirectChat)
		api.GET("/chats", h.Chat.ListChats)
		groups := api.Group("/chats/group")
		groups.POST("", h.Chat.CreateGroup)
		groups.PUT("/:id/name", h.Chat.RenameGroup)
		groups.PUT("/:id/members/:memberId", h.Chat.AddMember)
		groups.DELETE("/:id/members/:memberId", h.Chat.RemoveMember)
		groups.POST("/:id/leave", h.Chat.LeaveGroup)
		groups.DELETE("/:id", h.Chat.DeleteGroup)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}

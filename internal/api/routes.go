package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"resumeBuilder/internal/api/middleware"
	"resumeBuilder/internal/auth"
	"resumeBuilder/internal/database"
	"resumeBuilder/internal/resume"
)

// Dependencies 汇总路由所需的服务实例。Redis 为空时登录限流关闭，Events 为空时不注册 /ws。
type Dependencies struct {
	Resumes        *resume.Service
	Users          *database.UserRepository
	Auth           *auth.AuthService
	Redis          *redis.Client
	Events         EventSubscriber
	Logger         *slog.Logger
	AllowedOrigins []string
	MaxUploadBytes int64
	LoginLimits    LoginLimits
}

// RegisterRoutes 在 /api 下注册业务路由。
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	var limiter redis.UniversalClient
	if deps.Redis != nil {
		limiter = deps.Redis
	}

	resumeHandler := NewResumeHandler(deps.Resumes, deps.Logger, deps.MaxUploadBytes)
	userHandler := NewUserHandler(deps.Users, deps.Resumes, deps.Auth, limiter, deps.Logger, deps.LoginLimits)
	authMiddleware := middleware.AuthMiddleware(deps.Auth)

	apiGroup := router.Group("/api")
	{
		if deps.Events != nil {
			wsHandler := NewWsHandler(deps.Auth, deps.Events, deps.Logger, deps.AllowedOrigins)
			apiGroup.GET("/ws", wsHandler.HandleConnection)
		}

		userGroup := apiGroup.Group("/users")
		{
			userGroup.POST("/register", userHandler.Register)
			userGroup.POST("/login", userHandler.Login)
			userGroup.GET("/data", authMiddleware, userHandler.GetUserData)
			userGroup.GET("/resumes", authMiddleware, userHandler.GetUserResumes)
		}

		resumeGroup := apiGroup.Group("/resumes")
		{
			resumeGroup.GET("/public/:resumeId", resumeHandler.GetPublicResume)

			owned := resumeGroup.Group("")
			owned.Use(authMiddleware)
			owned.POST("/create", resumeHandler.CreateResume)
			owned.PUT("/update", resumeHandler.UpdateResume)
			owned.DELETE("/delete/:resumeId", resumeHandler.DeleteResume)
			owned.GET("/get/:resumeId", resumeHandler.GetResume)
		}
	}
}

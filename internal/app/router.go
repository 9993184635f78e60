package app

import (
	"interview_pilot_backend/docs"
	"interview_pilot_backend/internal/config"
	"interview_pilot_backend/internal/middleware"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/health", c.health.HealthCheck)

	api := router.Group("/api")
	{
		// 认证
		api.POST("/register", c.auth.Register)
		api.POST("/login", c.auth.Login)

		// 候选人侧，无需登录
		api.GET("/welcome-back", c.dashboard.WelcomeBack)
		api.POST("/candidates", c.candidate.Create)
		candidates := api.Group("/candidates/:id")
		{
			candidates.GET("/chat", c.candidate.Greet)
			candidates.POST("/chat", c.candidate.Chat)
			candidates.POST("/resume", c.candidate.UploadResume)
			candidates.GET("/state", c.interview.GetState)
			candidates.GET("/events", c.interview.Events)

			interview := candidates.Group("/interview")
			{
				interview.POST("/start", c.interview.Start)
				interview.POST("/pause", c.interview.Pause)
				interview.POST("/resume", c.interview.Resume)
				interview.POST("/reset", c.interview.Reset)
				interview.POST("/submit", c.interview.Submit)
			}
		}

		// 面试官控制台，需登录
		authorized := api.Group("")
		authorized.Use(middleware.AuthMiddleware(cfg))
		{
			authorized.GET("/me", c.auth.Me)

			dashboard := authorized.Group("/dashboard")
			dashboard.Use(middleware.RoleMiddleware(model.Interviewer))
			{
				dashboard.GET("/candidates", c.dashboard.ListCandidates)
				dashboard.GET("/candidates/:id", c.dashboard.GetCandidate)
				dashboard.DELETE("/candidates/:id", c.dashboard.DeleteCandidate)
			}
		}
	}
}

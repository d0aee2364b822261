package app

import (
	"school_quiz_backend/internal/config"
	"school_quiz_backend/internal/middleware"
	"school_quiz_backend/internal/model"
	"school_quiz_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	router.GET("/metrics", monitoring.PrometheusHandler())

	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	group.GET("/quizzes", c.quiz.ListAvailable)
	group.POST("/quizzes/:id/attempts/start", c.attempt.Start)

	attempts := group.Group("/attempts")
	{
		attempts.POST("/:id/answers", c.attempt.RecordAnswer)
		attempts.POST("/:id/answers/upload", c.attempt.UploadAnswer)
		attempts.POST("/:id/flag", c.attempt.ToggleFlag)
		attempts.POST("/:id/submit", c.attempt.Submit)
		attempts.GET("/:id/results", c.attempt.Results)
	}
}

func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/quizzes/:id/stats", c.quiz.Stats)
	}
}

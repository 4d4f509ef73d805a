package api

import (
	"github.com/aspirant2018/niqatech-backend/internal/auth"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(router *gin.Engine, handler *Handler, tokens *auth.TokenManager) {
	// Health check
	router.GET("/health", handler.HealthCheck)
	router.GET("/status", handler.Status)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		authGroup.POST("/signup", handler.Signup)
		authGroup.POST("/login", handler.Login)
		authGroup.POST("/google/signup", handler.GoogleSignup)
		authGroup.POST("/google/login", handler.GoogleLogin)

		me := v1.Group("/me", AuthMiddleware(tokens))
		me.GET("/profile", handler.GetProfile)
		me.PUT("/profile", handler.UpdateProfile)
		me.POST("/logout", handler.Logout)

		me.POST("/file", handler.UploadFile)
		me.GET("/file", handler.GetFile)
		me.DELETE("/file", handler.DeleteFile)
		me.GET("/file/download", handler.DownloadFile)

		me.GET("/classrooms", handler.ListClassrooms)
		me.GET("/classrooms/:classroom_id", handler.GetClassroom)
		me.GET("/classrooms/:classroom_id/students", handler.ListStudents)
		me.PUT("/classrooms/:classroom_id/grades", handler.UpdateClassroomGrades)
		me.GET("/students/:student_id", handler.GetStudent)
		me.PUT("/students/:student_id/grades", handler.UpdateStudentGrades)
	}
}

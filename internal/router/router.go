package router

import (
	"github.com/gin-gonic/gin"

	"github.com/autoecole-dz/platform-api/internal/handler"
	"github.com/autoecole-dz/platform-api/internal/middleware"
	"github.com/autoecole-dz/platform-api/internal/models"
	"github.com/autoecole-dz/platform-api/internal/repository"
	"github.com/autoecole-dz/platform-api/internal/service"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Auth          *handler.AuthHandler
	Schools       *handler.SchoolHandler
	Enrollments   *handler.EnrollmentHandler
	Manager       *handler.ManagerHandler
	Sessions      *handler.SessionHandler
	Quizzes       *handler.QuizHandler
	Notifications *handler.NotificationHandler
	Documents     *handler.DocumentHandler
	Metrics       *handler.MetricsHandler
}

// Register mounts all API routes under the given prefix.
func Register(r *gin.Engine, prefix string, h Handlers, auth *service.AuthService, users *repository.UserRepository) {
	if prefix == "" {
		prefix = "/api/v1"
	}

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Health)
	r.GET("/metrics", h.Metrics.Prometheus)

	api := r.Group(prefix)

	authGroup := api.Group("/auth")
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
		authGroup.POST("/logout", middleware.JWT(auth), h.Auth.Logout)
		authGroup.POST("/change-password", middleware.JWT(auth), h.Auth.ChangePassword)
		authGroup.GET("/me", middleware.JWT(auth), h.Auth.Me)
	}

	// Catalog is public; a valid token only enriches the view.
	schools := api.Group("/schools")
	schools.Use(middleware.OptionalJWT(auth))
	{
		schools.GET("", h.Schools.List)
		schools.GET("/states", h.Schools.States)
		schools.GET("/:id", h.Schools.Get)
	}
	api.GET("/schools/:id/quizzes", middleware.JWT(auth),
		middleware.RequireRoles(models.RoleStudent), h.Quizzes.ListForStudent)

	student := api.Group("")
	student.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleGuest, models.RoleStudent))
	{
		student.POST("/enrollments", h.Enrollments.Enroll)
		student.GET("/enrollments", h.Enrollments.List)
		student.GET("/enrollments/:id/documents", h.Enrollments.DocumentsStatus)
		student.POST("/enrollments/:id/documents", h.Enrollments.UploadDocument)
	}
	api.GET("/sessions", middleware.JWT(auth),
		middleware.RequireRoles(models.RoleStudent), h.Enrollments.Sessions)
	api.GET("/quizzes/:id", middleware.JWT(auth), h.Quizzes.Get)

	manager := api.Group("/manager")
	manager.Use(middleware.JWT(auth), middleware.RequireRoles(models.RoleManager, models.RoleAdmin))
	{
		manager.POST("/school", h.Schools.Create)
		manager.GET("/school", h.Schools.MySchool)
		manager.POST("/school/photo", h.Schools.UploadPhoto)

		manager.GET("/enrollments", h.Manager.Enrollments)
		manager.GET("/enrollments/export",
			middleware.Audit(users, models.AuditActionExport, "enrollment"), h.Manager.ExportEnrollments)
		manager.POST("/enrollments/:id/accept", h.Manager.Accept)
		manager.POST("/enrollments/:id/refuse", h.Manager.Refuse)
		manager.GET("/enrollments/:id/documents", h.Manager.EnrollmentDocuments)
		manager.POST("/documents/:id/review", h.Manager.ReviewDocument)

		manager.GET("/analytics/overview", h.Manager.Overview)
		manager.GET("/analytics/progress", h.Manager.StudentProgress)
		manager.GET("/analytics/system", h.Metrics.Snapshot)

		manager.GET("/teachers", h.Manager.Teachers)
		manager.POST("/teachers", h.Manager.CreateTeacher)
		manager.DELETE("/teachers/:id", h.Manager.DeleteTeacher)

		manager.POST("/sessions", h.Sessions.Create)
		manager.GET("/sessions", h.Sessions.List)
		manager.DELETE("/sessions/:id", h.Sessions.Delete)

		manager.POST("/quizzes", h.Quizzes.Create)
		manager.GET("/quizzes", h.Quizzes.ListForManager)
		manager.DELETE("/quizzes/:id", h.Quizzes.Delete)
	}

	notifications := api.Group("/notifications")
	notifications.Use(middleware.JWT(auth))
	{
		notifications.GET("", h.Notifications.List)
		notifications.POST("/:id/read", h.Notifications.MarkRead)
	}

	// Signed links carry their own auth.
	api.GET("/documents/download", h.Documents.Download)
}

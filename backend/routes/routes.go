package routes

import (
	"github.com/NarimanMilanfar/exam-generation-system/backend/config"
	"github.com/NarimanMilanfar/exam-generation-system/backend/controllers"
	"github.com/NarimanMilanfar/exam-generation-system/backend/middleware"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, db *gorm.DB, cfg *config.Config) {
	// Auth routes
	authController := controllers.NewAuthController(db, cfg)
	app.Post("/api/auth/register", authController.Register)
	app.Post("/api/auth/login", authController.Login)

	// Middleware
	authMiddleware := middleware.AuthMiddleware(cfg)
	adminMiddleware := middleware.AdminMiddleware(db, cfg)

	// User routes
	userController := controllers.NewUserController(db, cfg)
	app.Get("/api/user/profile", authMiddleware, userController.GetProfile)
	app.Put("/api/user/profile", authMiddleware, userController.UpdateProfile)

	// Activity routes
	activityController := controllers.NewActivityController(db, cfg)
	app.Get("/api/activity", authMiddleware, activityController.GetRecentActivity)
	app.Get("/api/admin/activity", authMiddleware, adminMiddleware, activityController.GetPlatformActivity)

	// Exam routes
	examsController := controllers.NewExamsController(db, cfg)
	exams := app.Group("/api/exams", authMiddleware)
	exams.Get("/", examsController.GetUserExams)
	exams.Post("/", examsController.CreateExam)
	exams.Get("/:id", examsController.GetExamDetails)
	exams.Put("/:id", examsController.UpdateExam)
	exams.Post("/:id/questions", examsController.AddQuestion)
	exams.Put("/:id/questions/:questionId", examsController.UpdateQuestion)
	exams.Delete("/:id/questions/:questionId", examsController.DeleteQuestion)

	// Generation and analysis routes
	generationsController := controllers.NewGenerationsController(db, cfg)
	exams.Post("/:id/generations", generationsController.CreateGeneration)
	exams.Get("/:id/generations", generationsController.ListGenerations)
	exams.Get("/:id/generations/:generationId", generationsController.GetGeneration)
	exams.Get("/:id/analysis", generationsController.AnalyzeGeneration)

	// Export routes
	exportController := controllers.NewExportController(db, cfg)
	exams.Get("/:id/generations/:generationId/export", exportController.ExportGeneration)
}

package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupCourseRoutes sets up all learner-facing routes
func SetupCourseRoutes(app *fiber.App) {
	// Enrollment
	app.Post("/course/:id/enroll", middleware.JWTMiddleware, validators.Enroll(), controllers.EnrollInCourse)
	app.Post("/path/:id/enroll", middleware.JWTMiddleware, validators.Enroll(), controllers.EnrollInPath)

	userGroup := app.Group("/user")
	userGroup.Get("/enrollments", middleware.JWTMiddleware, controllers.GetUserEnrollmentsList)
	userGroup.Get("/certificates", middleware.JWTMiddleware, controllers.GetUserCertificates)

	// Lesson progress
	enrollmentGroup := app.Group("/enrollment")
	enrollmentGroup.Get("/:enrollment_id", middleware.JWTMiddleware, validators.EnrollmentDetail(), controllers.GetEnrollment)
	enrollmentGroup.Post("/:enrollment_id/lesson/:lesson_id/progress", middleware.JWTMiddleware, validators.VideoProgress(), controllers.RecordVideoProgress)
	enrollmentGroup.Post("/:enrollment_id/lesson/:lesson_id/complete", middleware.JWTMiddleware, validators.CompleteLesson(), controllers.CompleteLesson)
	enrollmentGroup.Get("/:enrollment_id/lesson/:lesson_id/resume", middleware.JWTMiddleware, validators.LessonParams(), controllers.GetResumePoint)

	// Quiz attempts
	quizGroup := app.Group("/quiz")
	quizGroup.Post("/:quiz_id/start", middleware.JWTMiddleware, validators.StartQuiz(), controllers.StartQuiz)
	quizGroup.Get("/attempt/:attempt_id", middleware.JWTMiddleware, validators.AttemptParams(), controllers.GetAttempt)
	quizGroup.Put("/attempt/:attempt_id/answer", middleware.JWTMiddleware, validators.AnswerQuestion(), controllers.AnswerQuestion)
	quizGroup.Post("/attempt/:attempt_id/submit", middleware.JWTMiddleware, validators.SubmitQuiz(), controllers.SubmitQuiz)

	// Certificates
	certificateGroup := app.Group("/certificate")
	certificateGroup.Post("/evaluate", middleware.JWTMiddleware, validators.EvaluateCertificate(), controllers.EvaluateCertificate)
	certificateGroup.Get("/verify/:code", validators.VerifyCertificate(), controllers.VerifyCertificate)
}

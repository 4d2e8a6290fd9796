package courseRoutes

import (
	controllers "lms/controllers/course"
	"lms/middleware"
	"lms/models"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// SetupAdminCourseRoutes sets up the admin routes of the learning engine
func SetupAdminCourseRoutes(app *fiber.App) {
	adminGroup := app.Group("/admin", middleware.JWTMiddleware)

	adminGroup.Post("/certificate/:id/revoke",
		middleware.CheckPermissionMiddleware(models.PermissionCertificateRevoke),
		validators.RevokeCertificate(), controllers.RevokeCertificate)
	adminGroup.Post("/quiz/attempts/settle",
		middleware.CheckPermissionMiddleware(models.PermissionAttemptSweep),
		controllers.SettleOverdueAttempts)
}

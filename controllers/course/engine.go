package controllers

import (
	"lms/middleware"
	"lms/services"

	"github.com/gofiber/fiber/v2"
)

var engine *services.Engine

// UseEngine sets the learning engine the handlers delegate to. It must be
// called before routes are served.
func UseEngine(e *services.Engine) {
	engine = e
}

func currentUser(c *fiber.Ctx) (uint, bool) {
	userID, ok := c.Locals("userId").(uint)
	return userID, ok && userID > 0
}

func unauthorized(c *fiber.Ctx) error {
	return middleware.JsonResponse(c, fiber.StatusUnauthorized, false, "Unauthorized!", nil)
}

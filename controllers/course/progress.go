package controllers

import (
	"lms/middleware"
	"lms/services/progress"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

// RecordVideoProgress applies a periodic player report to a lesson.
func RecordVideoProgress(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedVideoProgress").(*validators.VideoProgressRequest)

	result, err := engine.Progress.RecordLessonEvent(c.UserContext(), userID,
		c.Locals("enrollment_id").(uint), c.Locals("lesson_id").(uint),
		progress.VideoProgress{
			Position:       *reqData.Position,
			WatchedPercent: *reqData.WatchedPercent,
			TimeSpentDelta: reqData.TimeSpentDelta,
		})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Progress recorded!", result)
}

func CompleteLesson(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedCompleteLesson").(*validators.CompleteLessonRequest)

	result, err := engine.Progress.RecordLessonEvent(c.UserContext(), userID,
		c.Locals("enrollment_id").(uint), c.Locals("lesson_id").(uint),
		progress.ExplicitComplete{TimeSpentDelta: reqData.TimeSpentDelta})
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Lesson completed!", result)
}

func GetResumePoint(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	resume, err := engine.Progress.ResumePoint(c.UserContext(), userID,
		c.Locals("enrollment_id").(uint), c.Locals("lesson_id").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Resume point fetched successfully!", resume)
}

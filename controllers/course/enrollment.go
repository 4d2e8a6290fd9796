package controllers

import (
	"lms/middleware"
	courseModels "lms/models/course"

	"github.com/gofiber/fiber/v2"
)

func EnrollInCourse(c *fiber.Ctx) error {
	return enroll(c, courseModels.EnrollableCourse, "Enrolled in course successfully!")
}

func EnrollInPath(c *fiber.Ctx) error {
	return enroll(c, courseModels.EnrollablePath, "Enrolled in learning path successfully!")
}

func enroll(c *fiber.Ctx, enrollableType, message string) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	id := c.Locals("id").(uint)

	enrollment, err := engine.Progress.Enroll(c.UserContext(), userID, enrollableType, id)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, enrollment)
}

func GetUserEnrollmentsList(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	enrollments, err := engine.Progress.ListEnrollments(c.UserContext(), userID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollments fetched successfully!", enrollments)
}

func GetEnrollment(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	enrollmentID := c.Locals("enrollment_id").(uint)

	detail, err := engine.Progress.GetEnrollment(c.UserContext(), userID, enrollmentID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Enrollment fetched successfully!", detail)
}

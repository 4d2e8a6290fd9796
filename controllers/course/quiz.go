package controllers

import (
	"strconv"

	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

func StartQuiz(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	started, err := engine.Quizzes.Start(c.UserContext(), userID, c.Locals("quiz_id").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusCreated, true, "Quiz attempt started!", started)
}

func GetAttempt(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	view, err := engine.Quizzes.Get(c.UserContext(), userID, c.Locals("attempt_id").(uint))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Attempt fetched successfully!", view)
}

func AnswerQuestion(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedAnswer").(*validators.AnswerRequest)

	view, err := engine.Quizzes.Answer(c.UserContext(), userID, c.Locals("attempt_id").(uint), reqData.QuestionID, reqData.Value)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Answer saved!", view)
}

// SubmitQuiz closes the attempt. Submitting an already closed attempt
// returns its stored result.
func SubmitQuiz(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedSubmit").(*validators.SubmitRequest)

	view, err := engine.Quizzes.Submit(c.UserContext(), userID, c.Locals("attempt_id").(uint), reqData.Responses)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Quiz submitted!", view)
}

// SettleOverdueAttempts closes timed-out attempts on demand, in addition to
// the scheduled sweep. ?limit= caps the batch, default 100.
func SettleOverdueAttempts(c *fiber.Ctx) error {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			return middleware.ValidationErrorResponse(c, map[string]string{"limit": "limit must be between 1 and 1000!"})
		}
		limit = n
	}

	settled, err := engine.Quizzes.SettleOverdue(c.UserContext(), limit)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Overdue attempts settled!", fiber.Map{"settled": settled})
}

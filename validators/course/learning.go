package courseValidator

import (
	"encoding/json"
	"strings"

	"lms/middleware"

	"github.com/gofiber/fiber/v2"
)

type VideoProgressRequest struct {
	Position       *float64 `json:"position" validate:"required,gte=0"`
	WatchedPercent *float64 `json:"watched_percent" validate:"required,gte=0,lte=100"`
	TimeSpentDelta int64    `json:"time_spent_delta" validate:"gte=0"`
}

type CompleteLessonRequest struct {
	TimeSpentDelta int64 `json:"time_spent_delta" validate:"gte=0"`
}

type AnswerRequest struct {
	QuestionID uint            `json:"question_id" validate:"required"`
	Value      json.RawMessage `json:"value" validate:"required"`
}

type SubmitRequest struct {
	Responses map[uint]json.RawMessage `json:"responses"`
}

type EvaluateRequest struct {
	EnrollableType string `json:"enrollable_type" validate:"required,oneof=course path"`
	EnrollableID   uint   `json:"enrollable_id" validate:"required"`
}

type RevokeRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// Enroll validates the :id of a course or path.
func Enroll() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "id"); handled {
			return err
		}
		return c.Next()
	}
}

func EnrollmentDetail() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "enrollment_id"); handled {
			return err
		}
		return c.Next()
	}
}

func LessonParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "enrollment_id", "lesson_id"); handled {
			return err
		}
		return c.Next()
	}
}

func VideoProgress() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "enrollment_id", "lesson_id"); handled {
			return err
		}
		reqData := new(VideoProgressRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		c.Locals("validatedVideoProgress", reqData)
		return c.Next()
	}
}

func CompleteLesson() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "enrollment_id", "lesson_id"); handled {
			return err
		}
		reqData := new(CompleteLessonRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		c.Locals("validatedCompleteLesson", reqData)
		return c.Next()
	}
}

func StartQuiz() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "quiz_id"); handled {
			return err
		}
		return c.Next()
	}
}

func AttemptParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "attempt_id"); handled {
			return err
		}
		return c.Next()
	}
}

func AnswerQuestion() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "attempt_id"); handled {
			return err
		}
		reqData := new(AnswerRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		c.Locals("validatedAnswer", reqData)
		return c.Next()
	}
}

func SubmitQuiz() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "attempt_id"); handled {
			return err
		}
		reqData := new(SubmitRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		c.Locals("validatedSubmit", reqData)
		return c.Next()
	}
}

func EvaluateCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(EvaluateRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		c.Locals("validatedEvaluate", reqData)
		return c.Next()
	}
}

func VerifyCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		code := strings.TrimSpace(c.Params("code"))
		if code == "" || len(code) > 64 {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid verification code!", nil)
		}
		c.Locals("verificationCode", code)
		return c.Next()
	}
}

func RevokeCertificate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if handled, err := requireIDs(c, "id"); handled {
			return err
		}
		reqData := new(RevokeRequest)
		if handled, err := parseBody(c, reqData); handled {
			return err
		}
		reqData.Reason = strings.TrimSpace(reqData.Reason)
		if reqData.Reason == "" {
			return middleware.ValidationErrorResponse(c, map[string]string{"reason": "reason is required!"})
		}
		c.Locals("validatedRevoke", reqData)
		return c.Next()
	}
}

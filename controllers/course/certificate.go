package controllers

import (
	"lms/middleware"
	validators "lms/validators/course"

	"github.com/gofiber/fiber/v2"
)

func EvaluateCertificate(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}
	reqData := c.Locals("validatedEvaluate").(*validators.EvaluateRequest)

	evaluation, err := engine.Certificates.EvaluateCompletion(c.UserContext(), userID, reqData.EnrollableType, reqData.EnrollableID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	message := "Not eligible for a certificate yet!"
	if evaluation.Certificate != nil {
		message = "Certificate issued!"
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, evaluation)
}

func GetUserCertificates(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	certificates, err := engine.Certificates.ListForUser(c.UserContext(), userID)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificates fetched successfully!", certificates)
}

// VerifyCertificate is public. Unknown codes answer 200 with valid=false.
func VerifyCertificate(c *fiber.Ctx) error {
	verification, err := engine.Certificates.Verify(c.UserContext(), c.Locals("verificationCode").(string))
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate verification result", verification)
}

func RevokeCertificate(c *fiber.Ctx) error {
	reqData := c.Locals("validatedRevoke").(*validators.RevokeRequest)

	certificate, err := engine.Certificates.Revoke(c.UserContext(), c.Locals("id").(uint), reqData.Reason)
	if err != nil {
		return middleware.ErrorResponse(c, err)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Certificate revoked!", certificate)
}

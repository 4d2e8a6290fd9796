package middleware

import (
	"fmt"
	"strings"
	"time"

	"lms/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// GenerateJWT signs a learner token. Tokens are issued by the auth service;
// this is used by tests and local tooling.
func GenerateJWT(userID uint, name, role string, ttl time.Duration) (string, error) {
	issuedAt := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": userID,
		"name":   name,
		"role":   role,
		"iat":    issuedAt.Unix(),
		"exp":    issuedAt.Add(ttl).Unix(),
	})
	return token.SignedString([]byte(config.AppConfig.JWTKey))
}

// JWTMiddleware authenticates the bearer token and stores the caller's
// userId and role in Locals.
func JWTMiddleware(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return unauthorizedResponse(c, "Missing or invalid Authorization header")
	}
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return unauthorizedResponse(c, "Invalid Authorization header format")
	}

	token, err := jwt.Parse(tokenString, signingKey)
	if err != nil || !token.Valid {
		return unauthorizedResponse(c, "Invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return unauthorizedResponse(c, "Invalid token payload")
	}
	userID, ok := claims["userId"].(float64)
	if !ok || userID <= 0 {
		return unauthorizedResponse(c, "Invalid token payload")
	}

	c.Locals("userId", uint(userID))
	if role, ok := claims["role"].(string); ok {
		c.Locals("role", role)
	}
	return c.Next()
}

func signingKey(token *jwt.Token) (interface{}, error) {
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(config.AppConfig.JWTKey), nil
}

func unauthorizedResponse(c *fiber.Ctx, message string) error {
	return JsonResponse(c, fiber.StatusUnauthorized, false, message, nil)
}

func JsonResponse(c *fiber.Ctx, statusCode int, status bool, message string, data interface{}) error {
	return c.Status(statusCode).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"data":    data,
	})
}

func ValidationErrorResponse(c *fiber.Ctx, errors map[string]string) error {
	return JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Validation failed!", errors)
}

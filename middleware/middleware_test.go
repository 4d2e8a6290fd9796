package middleware

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"lms/apperr"
	"lms/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp() *fiber.App {
	config.AppConfig = &config.Config{JWTKey: "test-secret"}

	app := fiber.New()
	app.Get("/me", JWTMiddleware, func(c *fiber.Ctx) error {
		return JsonResponse(c, fiber.StatusOK, true, "ok", fiber.Map{
			"userId": c.Locals("userId"),
			"role":   c.Locals("role"),
		})
	})
	return app
}

func decode(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(body).Decode(&out))
	return out
}

func TestJWTMiddlewareAcceptsValidToken(t *testing.T) {
	app := newTestApp()
	token, err := GenerateJWT(42, "Ada", "USER", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	body := decode(t, resp.Body)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 42, data["userId"])
	assert.Equal(t, "USER", data["role"])
}

func TestJWTMiddlewareRejects(t *testing.T) {
	app := newTestApp()
	expired, err := GenerateJWT(42, "Ada", "USER", -time.Minute)
	require.NoError(t, err)

	cases := map[string]string{
		"missing":    "",
		"not bearer": "Token abc",
		"garbage":    "Bearer abc.def.ghi",
		"expired":    "Bearer " + expired,
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestJWTMiddlewareRejectsBadPayload(t *testing.T) {
	app := newTestApp()
	sign := func(claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
		require.NoError(t, err)
		return token
	}
	exp := time.Now().Add(time.Hour).Unix()

	cases := map[string]string{
		"no user":     sign(jwt.MapClaims{"role": "USER", "exp": exp}),
		"zero user":   sign(jwt.MapClaims{"userId": 0, "exp": exp}),
		"string user": sign(jwt.MapClaims{"userId": "42", "exp": exp}),
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
			assert.Equal(t, "Invalid token payload", decode(t, resp.Body)["message"])
		})
	}
}

func TestErrorResponseMapping(t *testing.T) {
	cases := []struct {
		err     error
		status  int
		message string
	}{
		{apperr.NotFound("op", "attempt not found"), fiber.StatusNotFound, "attempt not found"},
		{apperr.Forbidden("op", "not yours"), fiber.StatusForbidden, "not yours"},
		{apperr.Conflict("op", "already open"), fiber.StatusConflict, "already open"},
		{apperr.InvalidState("op", "attempt already completed"), fiber.StatusConflict, "attempt already completed"},
		{apperr.Validation("op", "bad answer"), fiber.StatusUnprocessableEntity, "bad answer"},
		{fmt.Errorf("wrapped: %w", apperr.Conflict("op", "inner")), fiber.StatusConflict, "inner"},
		{errors.New("connection reset"), fiber.StatusInternalServerError, "Something went wrong, please try again!"},
	}
	for _, tc := range cases {
		app := fiber.New()
		err := tc.err
		app.Get("/", func(c *fiber.Ctx) error { return ErrorResponse(c, err) })

		resp, reqErr := app.Test(httptest.NewRequest("GET", "/", nil))
		require.NoError(t, reqErr)
		assert.Equal(t, tc.status, resp.StatusCode)
		body := decode(t, resp.Body)
		assert.Equal(t, false, body["status"])
		assert.Equal(t, tc.message, body["message"])
	}
}

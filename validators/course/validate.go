package courseValidator

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"lms/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

var validate = validator.New()

// paramID parses a positive numeric route parameter.
func paramID(c *fiber.Ctx, name string) (uint, bool) {
	raw := strings.TrimSpace(c.Params(name))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// requireIDs stores each named route parameter in Locals under the same key,
// or responds 400 on the first invalid one.
func requireIDs(c *fiber.Ctx, names ...string) (handled bool, err error) {
	for _, name := range names {
		id, ok := paramID(c, name)
		if !ok {
			return true, middleware.JsonResponse(c, fiber.StatusBadRequest, false, fmt.Sprintf("Invalid %s!", name), nil)
		}
		c.Locals(name, id)
	}
	return false, nil
}

// parseBody decodes and validates the request body into dst. handled is true
// when an error response has already been written.
func parseBody(c *fiber.Ctx, dst interface{}) (handled bool, err error) {
	if len(c.Body()) == 0 {
		c.Request().SetBody([]byte("{}"))
		c.Request().Header.SetContentType(fiber.MIMEApplicationJSON)
	}
	if perr := c.BodyParser(dst); perr != nil {
		return true, middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
	}
	if verr := validate.Struct(dst); verr != nil {
		return true, middleware.ValidationErrorResponse(c, fieldErrors(verr))
	}
	return false, nil
}

func fieldErrors(err error) map[string]string {
	out := make(map[string]string)
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		out["body"] = err.Error()
		return out
	}
	for _, fe := range verrs {
		field := jsonName(fe)
		switch fe.Tag() {
		case "required":
			out[field] = fmt.Sprintf("%s is required!", field)
		case "min", "gte":
			out[field] = fmt.Sprintf("%s must be at least %s!", field, fe.Param())
		case "max", "lte":
			out[field] = fmt.Sprintf("%s must be at most %s!", field, fe.Param())
		case "oneof":
			out[field] = fmt.Sprintf("%s must be one of: %s!", field, fe.Param())
		default:
			out[field] = fmt.Sprintf("%s is invalid!", field)
		}
	}
	return out
}

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func jsonName(fe validator.FieldError) string {
	if fe.Field() != "" {
		return fe.Field()
	}
	return strings.ToLower(fe.StructField())
}

package api

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kanban-platform/replenishment-service/pkg/errors"
)

// BindQueryAndValidate binds query parameters into obj, mapping validator
// failures to a VALIDATION_ERROR with per-field messages
func BindQueryAndValidate(c *gin.Context, obj interface{}) *errors.AppError {
	if err := c.ShouldBindQuery(obj); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return errors.ErrValidationWithFields("validation failed", fieldMessages(validationErrors))
		}
		return errors.ErrBadRequest(fmt.Sprintf("invalid query parameters: %v", err))
	}
	return nil
}

func fieldMessages(validationErrors validator.ValidationErrors) map[string]string {
	fields := make(map[string]string)
	for _, fieldError := range validationErrors {
		fields[fieldName(fieldError)] = errorMessage(fieldError)
	}
	return fields
}

// fieldName lowercases the struct field name so the message matches the
// JSON and query parameter spelling
func fieldName(fe validator.FieldError) string {
	field := fe.Field()
	if len(field) > 0 {
		field = strings.ToLower(field[:1]) + field[1:]
	}
	return field
}

func errorMessage(fe validator.FieldError) string {
	field := fieldName(fe)

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, fe.Param())
	case "location_id":
		return fmt.Sprintf("%s must be a valid location name", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

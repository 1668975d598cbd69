package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/steemit/bulletin/internal/apierr"
)

var registerFieldNames sync.Once

// useJSONFieldNames makes validation errors report json field names
func useJSONFieldNames() {
	registerFieldNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

// respondError writes err as a JSON error body. Errors that are not API errors
// are logged and reported as a generic server error.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var apiErr *apierr.Error
	if !errors.As(err, &apiErr) {
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		apiErr = apierr.Internal("internal server error")
	}
	c.AbortWithStatusJSON(apiErr.Status, apiErr)
}

// bindJSON decodes the request body into dest, writing a validation error and
// returning false when it cannot.
func bindJSON(c *gin.Context, logger *zap.Logger, dest interface{}) bool {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return true
	}
	respondError(c, logger, translateBindError(err))
	return false
}

func translateBindError(err error) *apierr.Error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]apierr.FieldError, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, apierr.FieldError{
				Field:   fe.Field(),
				Message: fieldMessage(fe),
			})
		}
		return apierr.Validation("validation failed", fields...)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		return apierr.Validation("request body is required")
	case errors.As(err, &syntaxErr):
		return apierr.Validation("request body is not valid JSON")
	case errors.As(err, &typeErr):
		return apierr.Validation("invalid request body",
			apierr.FieldError{Field: typeErr.Field, Message: fmt.Sprintf("must be a %s", typeErr.Type)})
	default:
		return apierr.Validation("invalid request body")
	}
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s validation", fe.Tag())
	}
}

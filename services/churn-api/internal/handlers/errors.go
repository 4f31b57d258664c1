package handlers

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
	"github.com/nimeshabuddhika/churnshield/pkg"
	middleware "github.com/nimeshabuddhika/churnshield/pkg/middlewares"
	"go.uber.org/zap"
)

var registerTagNames sync.Once

// UseJSONFieldNames makes validation errors report JSON field names (tenure, not Tenure).
func UseJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

func abortWithError(c *gin.Context, logger *zap.Logger, err error) {
	middleware.AbortWithError(c, logger, err)
}

// bindError converts a ShouldBindJSON failure into a 400 naming the first bad field.
func bindError(err error) error {
	return pkg.NewAppError(pkg.ErrInvalidInputCode, describeBindError(err), err)
}

func describeBindError(err error) string {
	var ve validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError
	switch {
	case errors.As(err, &ve) && len(ve) > 0:
		return describeFieldError(ve[0])
	case errors.As(err, &typeErr):
		return fmt.Sprintf("%s must be a %s", typeErr.Field, typeErr.Type.String())
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		return "request body is not valid JSON"
	case errors.Is(err, io.EOF):
		return "request body is required"
	default:
		return "invalid request body"
	}
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return fmt.Sprintf("%s must be >= %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

package client

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/nimeshabuddhika/churnshield/pkg/views"
)

var (
	validateOnce sync.Once
	recordRules  *validator.Validate
)

// rules reads the same binding tags the server validates with.
func rules() *validator.Validate {
	validateOnce.Do(func() {
		recordRules = validator.New()
		recordRules.SetTagName("binding")
		recordRules.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
	})
	return recordRules
}

// ValidateRecord rejects records the server would reject: missing attributes,
// negative tenure or charges and unknown categorical values.
func ValidateRecord(record views.CustomerRecord) error {
	err := rules().Struct(record)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "min":
		return fmt.Errorf("%s must be >= %s", fe.Field(), fe.Param())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s]", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

// DisplayPercent is the whole-number churn percentage shown to users.
func DisplayPercent(probability float64) int {
	return int(math.Round(probability * 100))
}

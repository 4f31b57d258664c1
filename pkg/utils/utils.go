package utils

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// IsEmpty checks if a string is empty.
func IsEmpty(s string) bool {
	return strings.TrimSpace(s) == ""
}

// ParseStructEnv binds env vars to struct fields using a mapstructure tag
func ParseStructEnv(cfg interface{}) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		if err := viper.BindEnv(tag); err != nil {
			return err
		}
	}
	return viper.Unmarshal(cfg)
}

// FormatConfigErrors logs each failing config field and folds them into a single error.
func FormatConfigErrors(logger *zap.Logger, err error, cfg interface{}) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	t := reflect.TypeOf(cfg)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	fields := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		key := fe.Field()
		if sf, ok := t.FieldByName(fe.StructField()); ok {
			if tag := sf.Tag.Get("mapstructure"); tag != "" {
				key = tag
			}
		}
		logger.Error("invalid_config_value",
			zap.String("key", key),
			zap.String("rule", fe.Tag()),
			zap.String("param", fe.Param()))
		fields = append(fields, fmt.Sprintf("%s (%s)", key, fe.Tag()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
}

// Round rounds val to the given number of decimal places.
func Round(val float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(val*p) / p
}

package config

import (
	"errors"
	"math"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// SumTolerance is the slack allowed when a set of shares must add up to one.
const SumTolerance = 0.01

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator. Field names in reports use yaml keys.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(field reflect.StructField) string {
			name := strings.SplitN(field.Tag.Get("yaml"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return field.Name
			}
			return name
		})
	})
	return validate
}

// ValidateStruct runs tag validation and appends each failure to verr.
func ValidateStruct(verr *ValidationError, prefix string, v interface{}) {
	err := Validator().Struct(v)
	if err == nil {
		return
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add(prefix, "%v", err)
		return
	}

	for _, fe := range fieldErrs {
		field := fe.Namespace()
		// drop the root type name
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}
		if prefix != "" {
			field = prefix + "." + field
		}
		verr.Add(field, "%s", describe(fe))
	}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must have at least " + fe.Param() + " entries"
	case "gte":
		return "must be >= " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "oneof":
		return "must be one of [" + fe.Param() + "]"
	case "cidrv4":
		return "must be an IPv4 CIDR"
	case "hostname_rfc1123", "fqdn":
		return "must be a hostname"
	default:
		return "failed " + fe.Tag() + " check"
	}
}

// SumsToOne reports whether the values add up to 1 within SumTolerance.
func SumsToOne(values []float64) (float64, bool) {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total, math.Abs(total-1.0) <= SumTolerance
}

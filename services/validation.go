package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"nexus_go/utils"

	"github.com/go-playground/validator/v10"
)

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	v.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		return utils.IsValidRole(fl.Field().String())
	})
	v.RegisterValidation("account_status", func(fl validator.FieldLevel) bool {
		return utils.IsValidStatus(fl.Field().String())
	})
	return v
}()

// validateStruct runs the struct tags of in and converts failures to a ValidationError.
func validateStruct(in interface{}) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(in)
	if err == nil {
		return verr
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.Add("input", "The given data was invalid.")
		return verr
	}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	label := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", label)
	case "oneof", "user_role", "account_status":
		return fmt.Sprintf("The selected %s is invalid.", label)
	case "email":
		return fmt.Sprintf("The %s must be a valid email address.", label)
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s must be at least %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("The %s must be at least %s.", label, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("The %s may not be greater than %s characters.", label, fe.Param())
		}
		return fmt.Sprintf("The %s may not be greater than %s.", label, fe.Param())
	default:
		return fmt.Sprintf("The %s is invalid.", label)
	}
}

// parseDate accepts YYYY-MM-DD or RFC3339 and returns midnight of that day.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.ParseInLocation("2006-01-02", value, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc), nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

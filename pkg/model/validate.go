package model

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// pastTolerance is how far in the past a new reservation may start
const pastTolerance = 5 * time.Minute

var (
	validate *validator.Validate
	now      = time.Now
)

func init() {
	validate = validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	validate.RegisterStructValidation(availabilityRangeValidation, DeskAvailabilityRequest{})
	validate.RegisterStructValidation(createReservationValidation, CreateReservationRequest{})
	validate.RegisterStructValidation(updateReservationValidation, UpdateReservationRequest{})
}

// ValidationError is returned when a request fails client-side validation
type ValidationError struct {
	Fields []string
	err    error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.err
}

// Validate checks a request DTO before it is sent
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return &ValidationError{Fields: []string{err.Error()}, err: err}
	}
	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields = append(fields, describe(fe))
	}
	return &ValidationError{Fields: fields, err: err}
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be %s characters or less", fe.Field(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be positive", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
	case "gtfield":
		return fmt.Sprintf("%s must be after %s", fe.Field(), fe.Param())
	case "notpast":
		return fmt.Sprintf("%s cannot be in the past", fe.Field())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func checkRange(sl validator.StructLevel, start, end Timestamp, startField, endField string) bool {
	ok := true
	if start.IsZero() {
		sl.ReportError(start, startField, startField, "required", "")
		ok = false
	}
	if end.IsZero() {
		sl.ReportError(end, endField, endField, "required", "")
		ok = false
	}
	if ok && !end.After(start.Time) {
		sl.ReportError(end, endField, endField, "gtfield", startField)
		ok = false
	}
	return ok
}

func availabilityRangeValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(DeskAvailabilityRequest)
	checkRange(sl, req.StartTime, req.EndTime, "StartTime", "EndTime")
}

func createReservationValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(CreateReservationRequest)
	if !checkRange(sl, req.StartTime, req.EndTime, "startTime", "endTime") {
		return
	}
	if req.StartTime.Before(now().Add(-pastTolerance)) {
		sl.ReportError(req.StartTime, "startTime", "startTime", "notpast", "")
	}
}

func updateReservationValidation(sl validator.StructLevel) {
	req := sl.Current().Interface().(UpdateReservationRequest)
	checkRange(sl, req.StartTime, req.EndTime, "startTime", "endTime")
}

// ValidateID rejects IDs the service can never have issued, including the
// negative placeholders used for optimistic reservations
func ValidateID(field string, id int) error {
	if id > 0 {
		return nil
	}
	return &ValidationError{Fields: []string{fmt.Sprintf("%s must be positive", field)}}
}

// ValidateUserID rejects an empty user ID
func ValidateUserID(id string) error {
	if strings.TrimSpace(id) != "" {
		return nil
	}
	return &ValidationError{Fields: []string{"userId is required"}}
}

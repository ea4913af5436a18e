package services

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const (
	minVehicleYear = 1900

	// Longest input bcrypt accepts. Must match the maxbytes tag on Password.
	maxPasswordBytes = 72
)

// RegisterInput is the registration payload. Driver fields are required
// only when Role is "driver".
type RegisterInput struct {
	FirstName     string `json:"firstName" validate:"required,min=2"`
	LastName      string `json:"lastName" validate:"required,min=2"`
	Email         string `json:"email" validate:"required,email"`
	Password      string `json:"password" validate:"required,min=6,maxbytes=72,letterdigit"`
	Phone         string `json:"phone"`
	Role          string `json:"role" validate:"required,oneof=passenger driver admin"`
	LicenseNumber string `json:"licenseNumber" validate:"required_if=Role driver"`
	VehicleModel  string `json:"vehicleModel" validate:"required_if=Role driver"`
	VehicleYear   int    `json:"vehicleYear" validate:"required_if=Role driver,omitempty,min=1900,notfutureyear"`
	LicensePlate  string `json:"licensePlate" validate:"required_if=Role driver"`
}

// ProfileInput is a partial profile update; nil fields are left unchanged.
type ProfileInput struct {
	FirstName     *string `json:"firstName" validate:"omitempty,min=2"`
	LastName      *string `json:"lastName" validate:"omitempty,min=2"`
	Phone         *string `json:"phone" validate:"omitempty,max=32"`
	LicenseNumber *string `json:"licenseNumber" validate:"omitempty,min=1"`
	VehicleModel  *string `json:"vehicleModel" validate:"omitempty,min=1"`
	VehicleYear   *int    `json:"vehicleYear" validate:"omitempty,min=1900,notfutureyear"`
	LicensePlate  *string `json:"licensePlate" validate:"omitempty,min=1"`
}

// Validator wraps go-playground/validator with the registration rules and
// reports failures keyed by JSON field name.
type Validator struct {
	validate *validator.Validate
	now      func() time.Time
}

func NewValidator(now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	v := &Validator{validate: validator.New(), now: now}

	v.validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return field.Name
		}
		return name
	})
	_ = v.validate.RegisterValidation("letterdigit", hasLetterAndDigit)
	_ = v.validate.RegisterValidation("maxbytes", maxBytes)
	_ = v.validate.RegisterValidation("notfutureyear", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() <= int64(v.now().Year())
	})

	return v
}

// Struct validates data and returns a *ValidationError listing every
// violated field, or nil.
func (v *Validator) Struct(data any) error {
	err := v.validate.Struct(data)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}

	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Field()] = v.message(fe)
	}
	return &ValidationError{Fields: fields}
}

func (v *Validator) message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "min":
		if fe.Kind() == reflect.Int {
			return fmt.Sprintf("Must be at least %s", fe.Param())
		}
		return fmt.Sprintf("Minimum length is %s", fe.Param())
	case "max":
		return fmt.Sprintf("Maximum length is %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "maxbytes":
		return fmt.Sprintf("Maximum length is %s bytes", fe.Param())
	case "letterdigit":
		return "Must contain at least one letter and one digit"
	case "notfutureyear":
		return fmt.Sprintf("Must be between %d and %d", minVehicleYear, v.now().Year())
	default:
		return fmt.Sprintf("Invalid %s field", fe.Field())
	}
}

func maxBytes(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func hasLetterAndDigit(fl validator.FieldLevel) bool {
	var letter, digit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

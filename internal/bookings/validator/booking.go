package validator

import (
	"errors"
	"fmt"
	"strings"

	"evcharge/pkg/logger"
	"evcharge/pkg/model"
	"evcharge/pkg/sanitizer"

	"github.com/go-playground/validator/v10"
)

const (
	minPlateLength = 4
	maxPlateLength = 12
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("plate", validatePlate); err != nil {
		log.Fatal("Failed to register 'plate' validator",
			"error", err,
		)
	}

	log.Debug("Booking validator initialized")

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validatePlate accepts anything that normalises to a plausible registration
// number.
func validatePlate(fl validator.FieldLevel) bool {
	plate := sanitizer.NormalizePlate(fl.Field().String())
	return len(plate) >= minPlateLength && len(plate) <= maxPlateLength
}

func (v *BookingValidator) Validate(booking *model.BookingCreate) error {
	return v.check(booking)
}

func (v *BookingValidator) ValidateReschedule(req *model.BookingReschedule) error {
	return v.check(req)
}

func (v *BookingValidator) ValidatePaymentIntent(req *model.PaymentIntentCreate) error {
	return v.check(req)
}

func (v *BookingValidator) check(s any) error {
	if err := v.validate.Struct(s); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "gt":
			message = fmt.Sprintf("%s must be greater than %s", err.Field(), err.Param())
		case "gte":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "datetime":
			message = fmt.Sprintf("%s must match the format %s", err.Field(), err.Param())
		case "plate":
			message = fmt.Sprintf("%s must be a vehicle registration number", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}

package validator

import (
	"reflect"
	"strings"

	apperrors "github.com/bmtt-school/times-tables-service/internal/errors"
	"github.com/bmtt-school/times-tables-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// Validator wraps struct-tag validation with the service's custom rules.
type Validator struct {
	structValidator *validator.Validate
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()

	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
	}
}

// Validate validates struct tags and custom rules. Failures come back as
// the shared ValidationErrors type so handlers can map them to 400.
func (v *Validator) Validate(s interface{}) error {
	err := v.structValidator.Struct(s)
	if err == nil {
		return nil
	}
	if translated := apperrors.ToValidationErrors(err); len(translated) > 0 {
		return translated
	}
	return err
}

// registerCustomValidators registers all custom validation functions
func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("user_role", validateUserRole)
	validate.RegisterValidation("class_label", validateClassLabel)
	validate.RegisterValidation("pin", validatePin)

	// Custom tag name function for better error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateUserRole(fl validator.FieldLevel) bool {
	validRoles := []models.UserRole{
		models.RoleStudent,
		models.RoleTeacher,
		models.RoleAdmin,
	}

	value := fl.Field().String()
	for _, validRole := range validRoles {
		if string(validRole) == value {
			return true
		}
	}
	return false
}

// validateClassLabel accepts labels like "M4": non-empty, short, year group
// encoded in the trailing digit.
func validateClassLabel(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" || len(value) > 10 {
		return false
	}
	return models.YearFromLabel(value) > 0
}

func validatePin(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if len(value) != 4 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

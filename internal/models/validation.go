package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is returned when input is rejected before any storage or network call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err (or anything it wraps) is a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RegisterValidators adds the enum validators used by the application model tags.
func RegisterValidators(v *validator.Validate) {
	v.RegisterValidation("work_type", func(fl validator.FieldLevel) bool {
		return ValidWorkType(WorkType(fl.Field().String()))
	})
	v.RegisterValidation("app_status", func(fl validator.FieldLevel) bool {
		return ValidStatus(Status(fl.Field().String()))
	})
	v.RegisterValidation("priority", func(fl validator.FieldLevel) bool {
		return ValidPriority(Priority(fl.Field().String()))
	})
}

func ValidWorkType(w WorkType) bool {
	switch w {
	case WorkRemote, WorkHybrid, WorkOnsite:
		return true
	}
	return false
}

func ValidStatus(s Status) bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Validate checks the required fields and enum values of an application.
func (a JobApplication) Validate() error {
	if strings.TrimSpace(a.Company) == "" || strings.TrimSpace(a.Position) == "" || strings.TrimSpace(a.Location) == "" {
		return &ValidationError{Message: "Company, position, and location are required"}
	}
	if err := validate.Struct(a); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return NewValidationError("invalid %s: %q", lowerFirst(fe.Field()), fmt.Sprint(fe.Value()))
		}
		return &ValidationError{Message: err.Error()}
	}
	return nil
}

// Validate checks enum values carried by a patch. A nil field means unchanged,
// so a present but empty enum is rejected.
func (p ApplicationPatch) Validate() error {
	if p.WorkType != nil && !ValidWorkType(*p.WorkType) {
		return NewValidationError("invalid workType: %q", *p.WorkType)
	}
	if p.Status != nil && !ValidStatus(*p.Status) {
		return NewValidationError("invalid status: %q", *p.Status)
	}
	if p.Priority != nil && !ValidPriority(*p.Priority) {
		return NewValidationError("invalid priority: %q", *p.Priority)
	}
	for name, field := range map[string]*string{"company": p.Company, "position": p.Position, "location": p.Location} {
		if field != nil && strings.TrimSpace(*field) == "" {
			return NewValidationError("%s cannot be empty", name)
		}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

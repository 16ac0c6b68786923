// Package validation checks user-supplied entity names using the validator/v10 library.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	domainerrors "github.com/d1vanov/quentier-sub007/internal/errors"
)

// Name length limits shared by tags, notebooks and notebook stacks.
const (
	MinNameLength = 1
	MaxNameLength = 100
)

// TagName is the validated shape of a tag name.
type TagName struct {
	Name string `json:"name" validate:"required,min=1,max=100,trimmed,excludes=0x2C"`
}

// NotebookName is the validated shape of a notebook name.
type NotebookName struct {
	Name string `json:"name" validate:"required,min=1,max=100,trimmed"`
}

// StackName is the validated shape of a notebook stack name.
type StackName struct {
	Stack string `json:"stack" validate:"required,min=1,max=100,trimmed"`
}

// Validator wraps go-playground/validator with domain error conversion.
type Validator struct {
	v *validator.Validate
}

// New creates a validator configured for entity names.
func New() *Validator {
	v := validator.New()

	// Use JSON tag names in error messages
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("json")
		if name == "" {
			return fld.Name
		}
		if i := strings.IndexByte(name, ','); i >= 0 {
			return name[:i]
		}
		return name
	})

	// Names are trimmed before validation; anything that still carries
	// surrounding whitespace came from a caller that skipped Normalize.
	_ = v.RegisterValidation("trimmed", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == strings.TrimSpace(s)
	})

	return &Validator{v: v}
}

// Validate validates a struct and returns a domain error.
func (v *Validator) Validate(s any) error {
	if err := v.v.Struct(s); err != nil {
		return v.formatError(err)
	}
	return nil
}

// TagName validates a tag name.
func (v *Validator) TagName(name string) error {
	return v.Validate(TagName{Name: name})
}

// NotebookName validates a notebook name.
func (v *Validator) NotebookName(name string) error {
	return v.Validate(NotebookName{Name: name})
}

// StackName validates a notebook stack name.
func (v *Validator) StackName(stack string) error {
	return v.Validate(StackName{Stack: stack})
}

// Normalize trims the surrounding whitespace of a user supplied name.
func Normalize(name string) string {
	return strings.TrimSpace(name)
}

// formatError converts validator errors to domain errors.
func (v *Validator) formatError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	fieldErrors := make(map[string]string)
	for _, e := range validationErrs {
		fieldErrors[e.Field()] = v.friendlyMessage(e)
	}

	msg := "validation failed"
	for field, reason := range fieldErrors {
		msg = field + " " + reason
		break
	}

	return domainerrors.ValidationWithDetails(msg, fieldErrors)
}

func (v *Validator) friendlyMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters", e.Param())
	case "max":
		return fmt.Sprintf("must not exceed %s characters", e.Param())
	case "trimmed":
		return "must not start or end with whitespace"
	case "excludes":
		return "must not contain commas"
	default:
		return "is invalid"
	}
}

package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pankaj-dahiya-devops/gdr/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidationError reports a finding that cannot be handled at all.
type ValidationError struct {
	// Fields lists the offending JSON field paths.
	Fields []string
	Err    error
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("invalid fields: %s", strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ValidateFinding checks that f carries the fields every playbook relies on:
// id, type and description.
func ValidateFinding(f *models.Finding) error {
	if f == nil {
		return &ValidationError{Err: errors.New("finding is nil")}
	}
	err := validate.Struct(f)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &ValidationError{Err: err}
	}
	ve := &ValidationError{Err: err}
	for _, fe := range verrs {
		ve.Fields = append(ve.Fields, fmt.Sprintf("%s (%s)", jsonName(fe), fe.Tag()))
	}
	return ve
}

// jsonName maps the struct field back to the GuardDuty JSON name.
func jsonName(fe validator.FieldError) string {
	switch fe.Field() {
	case "ID":
		return "id"
	case "Type":
		return "type"
	case "Description":
		return "description"
	}
	return fe.Field()
}

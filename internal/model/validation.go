package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("failed to register notblank validation: %v", err))
	}
	return v
}

// Validator exposes the shared validator so request structs can be checked
// with the same rules as the models.
func Validator() *validator.Validate {
	return validate
}

// ValidationErrors collects messages per attribute in the order they were added
type ValidationErrors struct {
	attributes []string
	messages   map[string][]string
}

// NewValidationErrors returns an empty collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{messages: map[string][]string{}}
}

// Add records message for attribute (snake_case, e.g. "name")
func (e *ValidationErrors) Add(attribute, message string) {
	if e.messages == nil {
		e.messages = map[string][]string{}
	}
	if _, seen := e.messages[attribute]; !seen {
		e.attributes = append(e.attributes, attribute)
	}
	e.messages[attribute] = append(e.messages[attribute], message)
}

// Any reports whether anything was recorded
func (e *ValidationErrors) Any() bool {
	return e != nil && len(e.attributes) > 0
}

// Count is the number of messages recorded
func (e *ValidationErrors) Count() int {
	if e == nil {
		return 0
	}
	n := 0
	for _, attr := range e.attributes {
		n += len(e.messages[attr])
	}
	return n
}

// On returns the messages for one attribute
func (e *ValidationErrors) On(attribute string) []string {
	if e == nil {
		return nil
	}
	return e.messages[attribute]
}

// FullMessages returns "Name can't be blank" style messages
func (e *ValidationErrors) FullMessages() []string {
	if e == nil {
		return nil
	}
	full := make([]string, 0, e.Count())
	for _, attr := range e.attributes {
		for _, msg := range e.messages[attr] {
			full = append(full, Humanize(attr)+" "+msg)
		}
	}
	return full
}

// Map returns attribute → messages, for JSON responses
func (e *ValidationErrors) Map() map[string][]string {
	if e == nil {
		return map[string][]string{}
	}
	out := make(map[string][]string, len(e.attributes))
	for _, attr := range e.attributes {
		out[attr] = append([]string(nil), e.messages[attr]...)
	}
	return out
}

func (e *ValidationErrors) Error() string {
	return "validation failed: " + strings.Join(e.FullMessages(), ", ")
}

// AsValidationErrors unwraps err into *ValidationErrors
func AsValidationErrors(err error) (*ValidationErrors, bool) {
	var verrs *ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}

// validateStruct runs the struct tags of v and converts failures into ValidationErrors
func validateStruct(v interface{}) *ValidationErrors {
	errs := NewValidationErrors()

	err := validate.Struct(v)
	if err == nil {
		return errs
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		errs.Add("base", err.Error())
		return errs
	}
	for _, fe := range fieldErrors {
		errs.Add(Underscore(fe.StructField()), messageFor(fe))
	}
	return errs
}

func messageFor(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "can't be blank"
	case "max":
		return fmt.Sprintf("is too long (maximum is %s characters)", fe.Param())
	case "min":
		return fmt.Sprintf("is too short (minimum is %s characters)", fe.Param())
	case "eqfield":
		return "doesn't match " + Humanize(Underscore(fe.Param()))
	default:
		return "is invalid"
	}
}

// Underscore turns PasswordConfirmation into password_confirmation
func Underscore(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Humanize turns password_confirmation into "Password confirmation"
func Humanize(attribute string) string {
	s := strings.ReplaceAll(attribute, "_", " ")
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

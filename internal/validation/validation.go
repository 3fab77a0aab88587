// Package validation wraps go-playground/validator with the field-keyed error bag
// returned to forms and JSON clients.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/folio/internal/db"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// ErrInvalidDate is returned by ParseDate for unparseable input.
var ErrInvalidDate = errors.New("invalid date")

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Errors 是按字段聚合的校验错误，字段名与表单字段一致。
type Errors map[string][]string

// Error implements error.
func (e Errors) Error() string {
	if len(e) == 0 {
		return "validation passed"
	}
	fields := make([]string, 0, len(e))
	for field := range e {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		parts = append(parts, strings.Join(e[field], " "))
	}
	return strings.Join(parts, " ")
}

// Add appends a message for field.
func (e Errors) Add(field, message string) {
	e[field] = append(e[field], message)
}

// Has reports whether field has at least one message.
func (e Errors) Has(field string) bool {
	return len(e[field]) > 0
}

// First returns the first message of field, or "".
func (e Errors) First(field string) string {
	if msgs := e[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Merge copies every message from other into e.
func (e Errors) Merge(other Errors) {
	for field, msgs := range other {
		for _, msg := range msgs {
			e.Add(field, msg)
		}
	}
}

// Err returns e as an error, or nil when no messages were collected.
func (e Errors) Err() error {
	if len(e) == 0 {
		return nil
	}
	return e
}

// Taken records a uniqueness violation on field.
func (e Errors) Taken(field string) {
	e.Add(field, fmt.Sprintf("The %s has already been taken.", displayName(field)))
}

// Invalid records that the selected value of field does not exist or is not allowed.
func (e Errors) Invalid(field string) {
	e.Add(field, fmt.Sprintf("The selected %s is invalid.", displayName(field)))
}

// Required records a missing value on field.
func (e Errors) Required(field string) {
	e.Add(field, fmt.Sprintf("The %s field is required.", displayName(field)))
}

// Date parses raw as a date. Blank input yields nil; bad input records an error on field.
func (e Errors) Date(field, raw string) *time.Time {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		e.Add(field, fmt.Sprintf("The %s field must be a valid date.", displayName(field)))
		return nil
	}
	return &parsed
}

// As extracts an Errors bag from err.
func As(err error) (Errors, bool) {
	var bag Errors
	if errors.As(err, &bag) {
		return bag, true
	}
	return nil, false
}

// ParseDate accepts the date and datetime layouts produced by HTML forms and JSON clients.
func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if parsed, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// IsSlug reports whether value is a lowercase, dash-separated slug.
func IsSlug(value string) bool {
	return slugPattern.MatchString(value)
}

// Validator validates tagged input structs.
type Validator struct {
	validate *validator.Validate
}

// New creates a Validator with the slug and poststatus rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(fieldName)
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return IsSlug(fl.Field().String())
	})
	_ = v.RegisterValidation("poststatus", func(fl validator.FieldLevel) bool {
		return db.ValidPostStatus(fl.Field().String())
	})
	return &Validator{validate: v}
}

var defaultValidator = New()

// Validate checks input with the shared validator.
func Validate(input interface{}) error {
	return defaultValidator.Validate(input)
}

// Validate checks input and returns an Errors bag on failure.
func (v *Validator) Validate(input interface{}) error {
	return v.Collect(input).Err()
}

// Collect checks input and always returns a (possibly empty) Errors bag so callers
// can add rules validator tags cannot express.
func (v *Validator) Collect(input interface{}) Errors {
	bag := Errors{}
	err := v.validate.Struct(input)
	if err == nil {
		return bag
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		bag.Add("_", err.Error())
		return bag
	}
	for _, fe := range fieldErrs {
		bag.Add(fe.Field(), message(fe))
	}
	return bag
}

// Collect runs the shared validator.
func Collect(input interface{}) Errors {
	return defaultValidator.Collect(input)
}

func fieldName(field reflect.StructField) string {
	for _, tag := range []string{"form", "json"} {
		name := strings.Split(field.Tag.Get(tag), ",")[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return field.Name
}

func displayName(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

func message(fe validator.FieldError) string {
	name := displayName(fe.Field())
	numeric := isNumeric(fe.Kind())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s field is required.", name)
	case "max", "lte":
		if numeric {
			return fmt.Sprintf("The %s field must not be greater than %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must not be greater than %s characters.", name, fe.Param())
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("The %s field must be at least %s.", name, fe.Param())
		}
		return fmt.Sprintf("The %s field must be at least %s characters.", name, fe.Param())
	case "slug":
		return fmt.Sprintf("The %s field must only contain lowercase letters, numbers, and dashes.", name)
	case "poststatus", "oneof":
		return fmt.Sprintf("The selected %s is invalid.", name)
	case "url":
		return fmt.Sprintf("The %s field must be a valid URL.", name)
	default:
		return fmt.Sprintf("The %s field is invalid.", name)
	}
}

func isNumeric(kind reflect.Kind) bool {
	switch kind {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

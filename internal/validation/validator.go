// Package validation wraps go-playground/validator with a shared instance and
// readable field messages keyed by JSON field names.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError describes one failed validation rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string {
	return e.Message
}

// Errors is the collection returned by ValidateStruct.
type Errors []FieldError

func (ve Errors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	messages := make([]string, len(ve))
	for i, e := range ve {
		messages[i] = e.Message
	}
	return strings.Join(messages, "; ")
}

// Fields lists the names of the fields that failed.
func (ve Errors) Fields() []string {
	fields := make([]string, len(ve))
	for i, e := range ve {
		fields[i] = e.Field
	}
	return fields
}

// Get returns the shared validator. Field names are reported by their json tag.
func Get() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "koanf"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})
	})
	return validate
}

// ValidateStruct returns nil or an Errors value describing every failed field.
func ValidateStruct(s any) error {
	err := Get().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return Errors{{Field: "unknown", Tag: "unknown", Message: err.Error()}}
	}

	out := make(Errors, len(fieldErrs))
	for i, fe := range fieldErrs {
		out[i] = FieldError{
			Field:   fe.Field(),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translate(fe),
		}
	}
	return out
}

var messageTemplates = map[string]string{
	"required":      "%s is required",
	"url":           "%s must be a valid URL",
	"hostname_port": "%s must be host:port",
}

var paramTemplates = map[string]string{
	"oneof": "%s must be one of: %s",
	"gt":    "%s must be greater than %s",
	"gte":   "%s must be greater than or equal to %s",
	"lt":    "%s must be less than %s",
	"lte":   "%s must be less than or equal to %s",
	"min":   "%s must be at least %s",
	"max":   "%s must be at most %s",
}

func translate(fe validator.FieldError) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field())
	}
	if tmpl, ok := paramTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, fe.Field(), fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

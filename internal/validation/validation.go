// Package validation checks inbound payloads before they reach the domain
// packages. A failed check yields exactly one human-readable message, for the
// first offending field.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"libraryhub/internal/apierr"
	"libraryhub/internal/slugs"
)

var (
	titleRe       = regexp.MustCompile(`^[\p{L}\p{N} ,.'!?&:;()\-]+$`)
	personNameRe  = regexp.MustCompile(`^[\p{L} .'\-]+$`)
	usernameRe    = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)
	descriptionRe = regexp.MustCompile(`^[\p{L}\p{N}\s,.'"!?&:;()/\-]+$`)
	passwordRe    = regexp.MustCompile(`^[A-Za-z0-9!@#$%^&*()_+=\-.,?]+$`)
	queryRe       = regexp.MustCompile(`^[\p{L}\p{N} ,.'&\-]+$`)
	emailRe       = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
)

var patterns = map[string]*regexp.Regexp{
	"title":       titleRe,
	"personname":  personNameRe,
	"username":    usernameRe,
	"description": descriptionRe,
	"password":    passwordRe,
	"query":       queryRe,
}

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if l := f.Tag.Get("label"); l != "" {
			return l
		}
		return f.Name
	})
	for tag, re := range patterns {
		v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return re.MatchString(fl.Field().String())
		})
	}
	// a title must leave something behind once slugged
	v.RegisterValidation("title", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		return titleRe.MatchString(t) && slugs.Make(t) != ""
	})
	v.RegisterValidation("strictemail", func(fl validator.FieldLevel) bool {
		return emailRe.MatchString(fl.Field().String())
	})
	return v
}

// Struct validates s against its `validate` tags. It returns nil or an
// *apierr.Error of kind Validation.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) || len(ves) == 0 {
		return apierr.Validation("Data should follow proper format.")
	}
	return apierr.Validation(Message(ves[0]))
}

// Message renders one field error the way it is shown to users.
func Message(fe validator.FieldError) string {
	label := fe.Field()
	numeric := isNumber(fe.Kind())

	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s should be there in the request.", label)
	case "min", "gte":
		if numeric {
			return fmt.Sprintf("%s should at least be %s.", label, fe.Param())
		}
		return fmt.Sprintf("%s should have at least %s characters.", label, fe.Param())
	case "max", "lte":
		if numeric {
			return fmt.Sprintf("%s cannot be more than %s.", label, fe.Param())
		}
		return fmt.Sprintf("%s can only be %s characters long.", label, fe.Param())
	case "email", "strictemail":
		return "Not a valid email"
	case "oneof":
		return fmt.Sprintf("%s can only be %s.", label, strings.Join(strings.Fields(fe.Param()), " or "))
	}
	if _, ok := patterns[fe.Tag()]; ok {
		return fmt.Sprintf("%s can only have letters, digits and some special characters.", label)
	}
	return fmt.Sprintf("%s is not valid.", label)
}

func isNumber(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

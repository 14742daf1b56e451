// Package forms validates login and registration input before it is sent.
package forms

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// formValidate is shared by all forms; it carries the notblank rule.
var formValidate *validator.Validate

func init() {
	formValidate = validator.New(validator.WithRequiredStructEnabled())
	_ = formValidate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// LoginInput is the login form.
type LoginInput struct {
	Username string `validate:"notblank"`
	Password string `validate:"notblank"`
}

// RegisterInput is the registration form.
type RegisterInput struct {
	Username string `validate:"notblank"`
	Email    string `validate:"notblank,email"`
	Password string `validate:"notblank,min=8"`
	FullName string
}

// FieldError is one rejected field with its display message.
type FieldError struct {
	Field   string
	Message string
}

// Errors lists rejected fields in form order.
type Errors []FieldError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, fe := range e {
		msgs[i] = fe.Message
	}
	return strings.Join(msgs, "; ")
}

// ValidationMessage is the text shown under the form.
func (e Errors) ValidationMessage() string { return e.Error() }

// For returns the message for field, or "".
func (e Errors) For(field string) string {
	for _, fe := range e {
		if fe.Field == field {
			return fe.Message
		}
	}
	return ""
}

var messages = map[string]map[string]string{
	"Username": {"notblank": "Username is required"},
	"Email":    {"notblank": "Email is required", "email": "Enter a valid email"},
	"Password": {"notblank": "Password is required", "min": "Password must be at least 8 characters"},
}

// Validate checks a LoginInput or RegisterInput. It returns Errors or nil.
func Validate(form any) error {
	err := formValidate.Struct(form)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := make(Errors, 0, len(verrs))
	seen := map[string]bool{}
	for _, fe := range verrs {
		if seen[fe.Field()] {
			continue
		}
		seen[fe.Field()] = true
		msg := messages[fe.Field()][fe.Tag()]
		if msg == "" {
			msg = fe.Field() + " is invalid"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}

// ValidateField checks a single field value the way Validate would, for
// inline feedback in interactive forms.
func ValidateField(form any, field string) error {
	if errs, ok := Validate(form).(Errors); ok {
		if msg := errs.For(field); msg != "" {
			return errors.New(msg)
		}
	}
	return nil
}

package validator

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// PasswordSymbols is the fixed punctuation set accepted by the password
// policy. It mirrors the set the identity backend enforces, so client-side
// validation rejects exactly what the server would.
const PasswordSymbols = "^$*.[]{}()?-\"!@#%&/\\,><':;|_~`+= "

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration failures here are programmer errors (nil fn, empty tag)
	// and cannot occur with the literals below.
	_ = v.RegisterValidation("strongpassword", validStrongPassword)
	_ = v.RegisterValidation("username", validUsername)

	return v
}

// Validate validates a struct using go-playground/validator tags.
func Validate(s any) error {
	if err := validate.Struct(s); err != nil {
		if validationErrors, ok := err.(validator.ValidationErrors); ok {
			return &ValidationError{Errors: validationErrors}
		}
		return err
	}
	return nil
}

// validStrongPassword enforces the account password policy: minimum 8
// characters with at least one uppercase letter, one lowercase letter, one
// digit, and one symbol from PasswordSymbols.
func validStrongPassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(PasswordSymbols, r):
			symbol = true
		}
	}
	return upper && lower && digit && symbol
}

// validUsername enforces the username policy: minimum 3 characters, no
// embedded whitespace, and not itself an email address.
func validUsername(fl validator.FieldLevel) bool {
	username := fl.Field().String()
	if len(username) < 3 {
		return false
	}
	if strings.ContainsFunc(username, unicode.IsSpace) {
		return false
	}
	return !strings.Contains(username, "@")
}

// ValidationError wraps validator.ValidationErrors with a user-friendly message.
type ValidationError struct {
	Errors validator.ValidationErrors
}

func (e *ValidationError) Error() string {
	var msgs []string
	for _, err := range e.Errors {
		msgs = append(msgs, fmt.Sprintf("field '%s' %s", err.Field(), msgForTag(err)))
	}
	return strings.Join(msgs, "; ")
}

// Fields returns a map of field names to error messages.
func (e *ValidationError) Fields() map[string]string {
	fields := make(map[string]string, len(e.Errors))
	for _, err := range e.Errors {
		fields[err.Field()] = msgForTag(err)
	}
	return fields
}

func msgForTag(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters", err.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", err.Param())
	case "strongpassword":
		return "must be at least 8 characters with an uppercase letter, a lowercase letter, a digit, and a symbol"
	case "username":
		return "must be at least 3 characters, contain no whitespace, and not be an email address"
	default:
		return fmt.Sprintf("failed %s validation", err.Tag())
	}
}

package privmsg

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

// MessageLimits holds the message validation limits.
type MessageLimits struct {
	MaxSubjectLength int // runes
	MaxBodySize      int // bytes
}

// DefaultLimits returns the default message limits.
func DefaultLimits() MessageLimits {
	return MessageLimits{
		MaxSubjectLength: DefaultMaxSubjectLength,
		MaxBodySize:      DefaultMaxBodySize,
	}
}

// ComposeForm is the user-supplied part of a new message.
type ComposeForm struct {
	Subject string `validate:"required,line,subjectlen"`
	Body    string `validate:"required,text,bodysize"`
}

// Clean returns the form with surrounding whitespace removed.
func (f ComposeForm) Clean() ComposeForm {
	return ComposeForm{
		Subject: strings.TrimSpace(f.Subject),
		Body:    strings.TrimSpace(f.Body),
	}
}

// formValidator validates compose forms against fixed limits.
// A validator caches struct metadata, so one is built per service.
type formValidator struct {
	v      *validator.Validate
	limits MessageLimits
}

func newFormValidator(limits MessageLimits) *formValidator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("subjectlen", func(fl validator.FieldLevel) bool {
		return utf8.RuneCountInString(fl.Field().String()) <= limits.MaxSubjectLength
	})
	_ = v.RegisterValidation("bodysize", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= limits.MaxBodySize
	})
	_ = v.RegisterValidation("line", func(fl validator.FieldLevel) bool {
		return validText(fl.Field().String(), false)
	})
	_ = v.RegisterValidation("text", func(fl validator.FieldLevel) bool {
		return validText(fl.Field().String(), true)
	})

	return &formValidator{v: v, limits: limits}
}

// validText rejects invalid UTF-8 and control characters. Tabs are always
// allowed; line breaks only when multiline is set.
func validText(s string, multiline bool) bool {
	if !utf8.ValidString(s) {
		return false
	}
	for _, r := range s {
		if !unicode.IsControl(r) || r == '\t' {
			continue
		}
		if multiline && (r == '\n' || r == '\r') {
			continue
		}
		return false
	}
	return true
}

// validate cleans and checks form, returning the cleaned copy.
func (fv *formValidator) validate(form ComposeForm) (ComposeForm, error) {
	form = form.Clean()

	err := fv.v.Struct(form)
	if err == nil {
		return form, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return form, &ValidationError{Field: "form", Message: err.Error()}
	}
	return form, fv.toValidationError(verrs[0])
}

func (fv *formValidator) toValidationError(fe validator.FieldError) *ValidationError {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		sentinel := ErrEmptySubject
		if field == "body" {
			sentinel = ErrEmptyBody
		}
		return &ValidationError{Field: field, Message: "this field is required", Err: sentinel}
	case "subjectlen":
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("ensure this value has at most %d characters", fv.limits.MaxSubjectLength),
			Err:     ErrSubjectTooLong,
		}
	case "bodysize":
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("ensure this value is at most %d bytes", fv.limits.MaxBodySize),
			Err:     ErrBodyTooLarge,
		}
	case "line", "text":
		return &ValidationError{Field: field, Message: "contains invalid characters", Err: ErrInvalidContent}
	default:
		return &ValidationError{Field: field, Message: fe.Error()}
	}
}

// ValidateForm validates a compose form against limits and returns the
// cleaned form. Failures are *ValidationError values.
func ValidateForm(form ComposeForm, limits MessageLimits) (ComposeForm, error) {
	return newFormValidator(limits).validate(form)
}

// ValidatePrincipal checks that p names a concrete entity.
func ValidatePrincipal(p Principal) error {
	if p == nil {
		return fmt.Errorf("%w: missing", ErrInvalidPrincipal)
	}
	ref := RefOf(p)
	if !ref.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidPrincipal, ref.String())
	}
	return nil
}

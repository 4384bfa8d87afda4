package privmsg

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateForm(t *testing.T) {
	limits := DefaultLimits()

	tests := []struct {
		name    string
		form    ComposeForm
		wantErr error
		field   string
	}{
		{"valid", ComposeForm{Subject: "Hello", Body: "World"}, nil, ""},
		{"multiline body", ComposeForm{Subject: "Hello", Body: "line one\nline two\r\n\tindented"}, nil, ""},
		{"subject at limit", ComposeForm{Subject: strings.Repeat("é", 120), Body: "b"}, nil, ""},
		{"tab in subject", ComposeForm{Subject: "a\tb", Body: "b"}, nil, ""},
		{"empty subject", ComposeForm{Subject: "", Body: "b"}, ErrEmptySubject, "subject"},
		{"blank subject", ComposeForm{Subject: "   ", Body: "b"}, ErrEmptySubject, "subject"},
		{"empty body", ComposeForm{Subject: "s", Body: ""}, ErrEmptyBody, "body"},
		{"blank body", ComposeForm{Subject: "s", Body: "\n\t "}, ErrEmptyBody, "body"},
		{"subject too long", ComposeForm{Subject: strings.Repeat("é", 121), Body: "b"}, ErrSubjectTooLong, "subject"},
		{"body too large", ComposeForm{Subject: "s", Body: strings.Repeat("x", DefaultMaxBodySize+1)}, ErrBodyTooLarge, "body"},
		{"newline in subject", ComposeForm{Subject: "a\nb", Body: "b"}, ErrInvalidContent, "subject"},
		{"control char in body", ComposeForm{Subject: "s", Body: "a\x00b"}, ErrInvalidContent, "body"},
		{"invalid utf8", ComposeForm{Subject: "s", Body: "a\xffb"}, ErrInvalidContent, "body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateForm(tt.form, limits)
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
			if !errors.Is(err, ErrInvalidMessage) {
				t.Errorf("expected ErrInvalidMessage, got %v", err)
			}
			ve, ok := IsValidationError(err)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("field = %q, want %q", ve.Field, tt.field)
			}
		})
	}
}

func TestValidateFormCleans(t *testing.T) {
	got, err := ValidateForm(ComposeForm{Subject: "  Hi there \t", Body: "\n body \n"}, DefaultLimits())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subject != "Hi there" || got.Body != "body" {
		t.Errorf("cleaned form = %+v", got)
	}
}

func TestValidateFormCustomLimits(t *testing.T) {
	limits := MessageLimits{MaxSubjectLength: 5, MaxBodySize: 10}

	if _, err := ValidateForm(ComposeForm{Subject: "12345", Body: "0123456789"}, limits); err != nil {
		t.Errorf("at limits: %v", err)
	}
	_, err := ValidateForm(ComposeForm{Subject: "123456", Body: "b"}, limits)
	if !errors.Is(err, ErrSubjectTooLong) {
		t.Errorf("expected ErrSubjectTooLong, got %v", err)
	}
	if ve, _ := IsValidationError(err); ve == nil || !strings.Contains(ve.Message, "5") {
		t.Errorf("message should name the limit, got %v", err)
	}
	if _, err := ValidateForm(ComposeForm{Subject: "s", Body: "01234567890"}, limits); !errors.Is(err, ErrBodyTooLarge) {
		t.Errorf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestComposeUsesServiceLimits(t *testing.T) {
	svc := setupTestService(t, WithMaxSubjectLength(3))
	_, err := svc.Client(alice).Send(t.Context(), bob, ComposeForm{Subject: "four", Body: "b"})
	if !errors.Is(err, ErrSubjectTooLong) {
		t.Errorf("expected ErrSubjectTooLong, got %v", err)
	}
}

func TestValidatePrincipal(t *testing.T) {
	tests := []struct {
		name  string
		p     Principal
		valid bool
	}{
		{"user", Ref("user", 1), true},
		{"team", Ref("team", 99), true},
		{"nil", nil, false},
		{"empty type", Ref("", 1), false},
		{"zero id", Ref("user", 0), false},
		{"negative id", Ref("user", -5), false},
		{"colon in type", Ref("us:er", 1), false},
		{"space in type", Ref("us er", 1), false},
		{"custom principal", testUser{id: 7}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrincipal(tt.p)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidPrincipal) {
				t.Errorf("expected ErrInvalidPrincipal, got %v", err)
			}
		})
	}
}

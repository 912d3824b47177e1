// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Registration field constraints.
const (
	MinNameLength     = 2
	MinAddressLength  = 5
	MinPhoneLength    = 10
	MaxPhoneLength    = 20
	MinPasswordLength = 8

	// PasswordSymbols is the set a password must draw at least one symbol from.
	PasswordSymbols = "!@#$%^&*"
)

var (
	// phoneRegex accepts an optional leading plus followed by digits and the
	// usual grouping characters, starting and ending on a digit.
	phoneRegex = regexp.MustCompile(`^\+?[0-9][0-9 ().-]*[0-9]$`)
	digitRegex = regexp.MustCompile(`[0-9]`)
)

// RegistrationInput is the raw registration form.
type RegistrationInput struct {
	Name            string
	Phone           string
	Address         string
	Email           string
	EmailConfirm    string
	Password        string
	PasswordConfirm string
}

// FieldError is a single violated rule.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every violated rule of one submission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "invalid registration: " + strings.Join(msgs, "; ")
}

// Has reports whether field has at least one violation.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

// NormalizeEmail trims and case-folds an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Normalize returns a copy with text fields trimmed and emails case-folded.
// Passwords are left untouched.
func (in RegistrationInput) Normalize() RegistrationInput {
	return RegistrationInput{
		Name:            strings.TrimSpace(in.Name),
		Phone:           strings.TrimSpace(in.Phone),
		Address:         strings.TrimSpace(in.Address),
		Email:           NormalizeEmail(in.Email),
		EmailConfirm:    NormalizeEmail(in.EmailConfirm),
		Password:        in.Password,
		PasswordConfirm: in.PasswordConfirm,
	}
}

// Validate checks a normalized input against every rule and returns a
// *ValidationError listing all violations, or nil.
func (in RegistrationInput) Validate() error {
	verr := &ValidationError{}

	if utf8.RuneCountInString(in.Name) < MinNameLength {
		verr.add("name", "Name must be at least 2 characters")
	}

	if !validPhone(in.Phone) {
		verr.add("phone", "Enter a valid phone number")
	}
	if n := len(in.Phone); n < MinPhoneLength || n > MaxPhoneLength {
		verr.add("phone", "Phone number should be 10-20 characters")
	}

	if utf8.RuneCountInString(in.Address) < MinAddressLength {
		verr.add("address", "Address must be at least 5 characters")
	}

	if !validEmail(in.Email) {
		verr.add("email", "Must be a valid email address")
	}
	if in.EmailConfirm != in.Email {
		verr.add("emailConfirm", "Email addresses must match")
	}

	if utf8.RuneCountInString(in.Password) < MinPasswordLength {
		verr.add("password", "Password must be at least 8 characters")
	}
	if !digitRegex.MatchString(in.Password) {
		verr.add("password", "Password must contain at least one number")
	}
	if !strings.ContainsAny(in.Password, PasswordSymbols) {
		verr.add("password", "Password must contain at least one special character")
	}
	if in.PasswordConfirm != in.Password {
		verr.add("passwordConfirm", "Passwords must match")
	}

	if len(verr.Fields) == 0 {
		return nil
	}
	return verr
}

func validPhone(phone string) bool {
	if !phoneRegex.MatchString(phone) {
		return false
	}
	digits := len(digitRegex.FindAllString(phone, -1))
	return digits >= 10 && digits <= 15
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 {
		return false
	}
	domain := email[at+1:]
	return strings.Contains(domain, ".") && !strings.HasPrefix(domain, ".") && !strings.HasSuffix(domain, ".")
}

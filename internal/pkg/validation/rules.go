package validation

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation rule patterns
var (
	EmailPattern = `(?i)^[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}$`

	// Letters, digits and @/./+/-/_ only
	UsernamePattern = `^[\w.@+\-]+$`

	UsernameMinLength = 3
	UsernameMaxLength = 150

	PasswordMinLength = 8

	// PasswordSymbols is the set counted as special characters by PasswordStrength
	PasswordSymbols = `!@#$%^&*(),.?":{}|<>`
)

// CompiledPatterns caches compiled regex patterns
var CompiledPatterns = struct {
	Email    *regexp.Regexp
	Username *regexp.Regexp
}{
	Email:    regexp.MustCompile(EmailPattern),
	Username: regexp.MustCompile(UsernamePattern),
}

// Strength classifies a password
type Strength string

const (
	StrengthWeak   Strength = "Weak"
	StrengthMedium Strength = "Medium"
	StrengthStrong Strength = "Strong"
)

// PasswordStrength scores password on five checks (length, digit, upper, lower, symbol).
// Two or fewer is Weak, five is Strong, anything between is Medium.
// Length counts characters; only ASCII letters count as upper or lower case.
func PasswordStrength(password string) Strength {
	var digit, upper, lower, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case 'A' <= r && r <= 'Z':
			upper = true
		case 'a' <= r && r <= 'z':
			lower = true
		}
		if strings.ContainsRune(PasswordSymbols, r) {
			symbol = true
		}
	}

	score := 0
	for _, ok := range []bool{utf8.RuneCountInString(password) >= PasswordMinLength, digit, upper, lower, symbol} {
		if ok {
			score++
		}
	}

	switch {
	case score <= 2:
		return StrengthWeak
	case score == 5:
		return StrengthStrong
	default:
		return StrengthMedium
	}
}

// ValidUsername reports whether s is an acceptable username
func ValidUsername(s string) bool {
	return NewStringValidation(s).
		WithMinLength(UsernameMinLength).
		WithMaxLength(UsernameMaxLength).
		WithPattern(CompiledPatterns.Username).
		Validate()
}

// ValidEmail reports whether s looks like an email address; empty is allowed
func ValidEmail(s string) bool {
	return NewStringValidation(s).
		WithRequired(false).
		WithMaxLength(254).
		WithPattern(CompiledPatterns.Email).
		Validate()
}

// StringValidation describes the checks applied to one string value
type StringValidation struct {
	Value    string
	MinLen   int
	MaxLen   int
	Required bool
	Pattern  *regexp.Regexp
}

// NewStringValidation creates a new string validation
func NewStringValidation(value string) *StringValidation {
	return &StringValidation{
		Value:    value,
		Required: true,
	}
}

// WithMinLength sets minimum length
func (v *StringValidation) WithMinLength(min int) *StringValidation {
	v.MinLen = min
	return v
}

// WithMaxLength sets maximum length
func (v *StringValidation) WithMaxLength(max int) *StringValidation {
	v.MaxLen = max
	return v
}

// WithPattern sets regex pattern
func (v *StringValidation) WithPattern(pattern *regexp.Regexp) *StringValidation {
	v.Pattern = pattern
	return v
}

// WithRequired sets if field is required
func (v *StringValidation) WithRequired(required bool) *StringValidation {
	v.Required = required
	return v
}

// Validate performs validation
func (v *StringValidation) Validate() bool {
	if v.Value == "" {
		return !v.Required
	}

	n := len([]rune(v.Value))
	if v.MinLen > 0 && n < v.MinLen {
		return false
	}
	if v.MaxLen > 0 && n > v.MaxLen {
		return false
	}

	if v.Pattern != nil && !v.Pattern.MatchString(v.Value) {
		return false
	}

	return true
}

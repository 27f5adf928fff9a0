package transform

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

const minPhoneDigits = 5

var validate = validator.New()

// ValidEmail reports whether s is a well-formed email address.
func ValidEmail(s string) bool {
	if s == "" {
		return false
	}
	return validate.Var(s, "required,email") == nil
}

// Phone strips everything but digits and returns "" when too few remain.
func Phone(s string) string {
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
	if len(digits) < minPhoneDigits {
		return ""
	}
	return digits
}

// validateByName applies the column-name heuristics. Names are matched
// case-insensitively against "mail" and "phone".
func validateByName(value string, names ...string) string {
	var isMail, isPhone bool
	for _, n := range names {
		n = strings.ToLower(n)
		isMail = isMail || strings.Contains(n, "mail")
		isPhone = isPhone || strings.Contains(n, "phone")
	}
	if isMail {
		if !ValidEmail(value) {
			return ""
		}
	}
	if isPhone {
		value = Phone(value)
	}
	return value
}

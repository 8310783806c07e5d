package intake

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]{2,}$`)
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	phoneRe = regexp.MustCompile(`^\+?[0-9\s().-]{7,20}$`)

	validate = validator.New()
)

// ValidationError is a caller mistake that maps to HTTP 400.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func ValidEmail(s string) bool {
	return len(s) <= 254 && emailRe.MatchString(s)
}

// ValidDate accepts YYYY-MM-DD calendar dates only.
func ValidDate(s string) bool {
	return dateRe.MatchString(s) && validate.Var(s, "datetime=2006-01-02") == nil
}

// ValidPhone is deliberately loose: digits with common separators, 7-15 digits.
func ValidPhone(s string) bool {
	s = strings.TrimSpace(s)
	if !phoneRe.MatchString(s) {
		return false
	}
	n := len(digits(s))
	return n >= 7 && n <= 15
}

// E164 formats a phone for the customer record. Ten-digit numbers are taken
// as North American.
func E164(s string) string {
	d := digits(s)
	if len(d) == 10 && !strings.HasPrefix(strings.TrimSpace(s), "+") {
		return "+1" + d
	}
	return "+" + d
}

func digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

package shopify

import (
	"errors"
	"strings"
)

// GraphQLErrors is the top-level "errors" array of a GraphQL response.
type GraphQLErrors []GraphQLError

func (g GraphQLErrors) Error() string {
	msgs := make([]string, 0, len(g))
	for _, e := range g {
		if e.Extensions.Code != "" {
			msgs = append(msgs, e.Message+" ("+e.Extensions.Code+")")
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

// UserError is a business-rule rejection returned inside a mutation payload.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
	Code    string   `json:"code,omitempty"`
}

// UserErrors implements error so mutation helpers can return it directly.
type UserErrors []UserError

func (u UserErrors) Error() string {
	msgs := make([]string, 0, len(u))
	for _, e := range u {
		if len(e.Field) > 0 {
			msgs = append(msgs, strings.Join(e.Field, ".")+": "+e.Message)
		} else {
			msgs = append(msgs, e.Message)
		}
	}
	return strings.Join(msgs, "; ")
}

func userErrs(in []UserError) error {
	if len(in) == 0 {
		return nil
	}
	return UserErrors(in)
}

var friendlyMessages = []struct {
	code    string
	match   string
	message string
}{
	{code: "TAKEN", match: "email has already been taken", message: "An account with this email already exists. Please log in instead."},
	{match: "phone has already been taken", message: "This phone number is already linked to another account."},
	{match: "phone is invalid", message: "Please enter a valid phone number."},
	{code: "CUSTOMER_DISABLED", message: "This account exists but is not activated yet. Check your email for the activation link."},
	{code: "TOO_SHORT", match: "password is too short", message: "Password must be at least 5 characters."},
	{code: "TOO_LONG", match: "password is too long", message: "Password must be at most 40 characters."},
	{code: "PASSWORD_STARTS_OR_ENDS_WITH_WHITESPACE", message: "Password cannot start or end with a space."},
	{match: "access denied", message: "The store is not configured to allow this action. Please contact support."},
	{code: "ACCESS_DENIED", message: "The store is not configured to allow this action. Please contact support."},
	{code: "THROTTLED", message: "We are receiving a lot of requests right now. Please try again in a minute."},
	{match: "must be in yyyy-mm-dd format", message: "Please enter dates as YYYY-MM-DD."},
}

// Friendly rewrites platform errors into storefront-facing phrasing. Unknown
// errors keep their original text.
func Friendly(err error) string {
	if err == nil {
		return ""
	}

	var ue UserErrors
	if errors.As(err, &ue) {
		for _, e := range ue {
			if m, ok := lookupFriendly(e.Code, e.Message); ok {
				return m
			}
		}
		return ue.Error()
	}

	var ge GraphQLErrors
	if errors.As(err, &ge) {
		for _, e := range ge {
			if m, ok := lookupFriendly(e.Extensions.Code, e.Message); ok {
				return m
			}
		}
		return ge.Error()
	}

	if m, ok := lookupFriendly("", err.Error()); ok {
		return m
	}
	return err.Error()
}

func lookupFriendly(code, message string) (string, bool) {
	lower := strings.ToLower(message)
	for _, f := range friendlyMessages {
		if f.code != "" && strings.EqualFold(f.code, code) {
			return f.message, true
		}
		if f.match != "" && strings.Contains(lower, f.match) {
			return f.message, true
		}
	}
	return "", false
}

// Package policy checks candidate passwords against the fixed password rule set.
package policy

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MinLength is the minimum number of characters (code points).
	MinLength = 5

	// SpecialChars is the set of characters accepted by the special-character rule.
	SpecialChars = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

// Violation messages, in evaluation order.
const (
	MsgTooShort  = "Minimum 5 characters required."
	MsgNoUpper   = "At least one uppercase letter required."
	MsgNoDigit   = "At least one number required."
	MsgNoSpecial = "At least one special character required: " + SpecialChars
)

// Result is the outcome of a policy check.
type Result struct {
	Valid      bool     `json:"valid"`
	Violations []string `json:"violations"`
}

// Rule describes a single policy rule.
type Rule struct {
	Name    string `json:"name"`
	Message string `json:"message"`
	check   func(string) bool
}

var rules = []Rule{
	{Name: "length", Message: MsgTooShort, check: hasMinLength},
	{Name: "uppercase", Message: MsgNoUpper, check: hasUpper},
	{Name: "digit", Message: MsgNoDigit, check: hasDigit},
	{Name: "special", Message: MsgNoSpecial, check: hasSpecial},
}

// Validate evaluates every rule against password and collects one message per
// failed rule. All rules run even after a failure so the report is complete.
func Validate(password string) Result {
	violations := make([]string, 0, len(rules))
	for _, r := range rules {
		if !r.check(password) {
			violations = append(violations, r.Message)
		}
	}
	return Result{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// Rules returns a copy of the rule set in evaluation order.
func Rules() []Rule {
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

func hasMinLength(pw string) bool {
	return utf8.RuneCountInString(pw) >= MinLength
}

func hasUpper(pw string) bool {
	return strings.IndexFunc(pw, unicode.IsUpper) >= 0
}

func hasDigit(pw string) bool {
	return strings.IndexFunc(pw, func(r rune) bool { return r >= '0' && r <= '9' }) >= 0
}

func hasSpecial(pw string) bool {
	return strings.ContainsAny(pw, SpecialChars)
}

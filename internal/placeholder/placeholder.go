// Package placeholder validates and substitutes {Name} tokens in outreach
// template text.
package placeholder

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/coldreach/coldreach/internal/models"
)

// ValidNames is the closed set of placeholder names a user may author into a
// reusable template. Substitution additionally accepts arbitrary caller-supplied
// bindings; only template validation is restricted to this set.
var ValidNames = []string{"Company", "Role", "RecruiterName", "MyName"}

var tokenPattern = regexp.MustCompile(`\{([^{}]+)\}`)

// ValidationError reports every offending token individually so the UI can
// highlight each one. Both lists may be populated at once.
type ValidationError struct {
	Invalid   []string // placeholder names outside the valid set
	Malformed []string // brace-syntax problems
}

func (e *ValidationError) Error() string {
	var parts []string
	if len(e.Invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid placeholders: %s (valid placeholders are: %s)",
			strings.Join(e.Invalid, ", "), strings.Join(ValidNames, ", ")))
	}
	if len(e.Malformed) > 0 {
		parts = append(parts, fmt.Sprintf("malformed placeholders: %s (placeholders must be written as {PlaceholderName})",
			strings.Join(e.Malformed, ", ")))
	}
	return strings.Join(parts, "; ")
}

// Validate checks text against the placeholder syntax rules and the valid-name
// set. It returns nil or a *ValidationError.
func Validate(text string) error {
	verr := &ValidationError{}

	if strings.Count(text, "{") != strings.Count(text, "}") {
		verr.Malformed = append(verr.Malformed, "unmatched braces")
	}
	if strings.Contains(text, "{{") || strings.Contains(text, "}}") {
		verr.Malformed = append(verr.Malformed, "double braces not allowed")
	}
	if strings.Contains(text, "{}") {
		verr.Malformed = append(verr.Malformed, "empty placeholders not allowed")
	}

	seen := make(map[string]bool)
	for _, match := range tokenPattern.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if !isValidName(name) && !seen[name] {
			seen[name] = true
			verr.Invalid = append(verr.Invalid, name)
		}
	}
	sort.Strings(verr.Invalid)

	if len(verr.Invalid) > 0 || len(verr.Malformed) > 0 {
		return verr
	}
	return nil
}

func isValidName(name string) bool {
	for _, v := range ValidNames {
		if v == name {
			return true
		}
	}
	return false
}

// Substitute replaces every {Name} occurrence that has a binding. A binding
// whose key never appears in the text is ignored, and a token with no binding
// is left in the output untouched.
func Substitute(text string, bindings map[string]string) string {
	for name, value := range bindings {
		text = strings.ReplaceAll(text, "{"+name+"}", value)
	}
	return text
}

// Bindings builds the standard placeholder bindings from a recruiter and the
// sending user, merged with caller-supplied extras. Extras win on key collision.
func Bindings(recruiter *models.RecruiterContact, user *models.User, extras map[string]string) map[string]string {
	b := map[string]string{
		"Company":       "",
		"Role":          "",
		"RecruiterName": "",
		"MyName":        "",
	}
	if recruiter != nil {
		b["Company"] = recruiter.Company
		b["Role"] = recruiter.JobRole
		b["RecruiterName"] = recruiter.Name
	}
	if user != nil {
		b["MyName"] = user.Name
	}
	for k, v := range extras {
		b[k] = v
	}
	return b
}

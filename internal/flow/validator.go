package flow

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/carebridge/leadflow/internal/models"
)

// Validation constants for free-text inputs.
const (
	// MinTextLength is the minimum trimmed length for short text answers.
	MinTextLength = 2
	// MinParagraphLength is the minimum trimmed length for paragraph answers.
	MinParagraphLength = 5
	// PhoneDigitCount is the required number of digits in a US phone number.
	PhoneDigitCount = 10
)

var (
	nonDigitRegex = regexp.MustCompile(`\D`)
	emailRegex    = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	// Month 01-12, day 01-31, year 1900-2099, separated by - or /.
	dateRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])[-/](0[1-9]|[12][0-9]|3[01])[-/](19|20)\d{2}$`)
)

// ValidateInput normalizes raw input for the step's kind and checks it against
// the kind's validation rules plus any per-step predicate. It returns the
// normalized value and whether it was accepted. Invalid input never advances
// the session; the controller re-prompts with GuidanceMessage.
func ValidateInput(step StepDefinition, raw string) (string, bool) {
	normalized := NormalizeInput(step.Kind, raw)

	valid := true
	switch step.Kind {
	case models.StepKindText:
		valid = len(normalized) >= MinTextLength
	case models.StepKindParagraph:
		valid = len(normalized) >= MinParagraphLength
	case models.StepKindEmail:
		valid = emailRegex.MatchString(normalized)
	case models.StepKindPhone:
		valid = len(nonDigitRegex.ReplaceAllString(normalized, "")) == PhoneDigitCount
	case models.StepKindDate:
		valid = dateRegex.MatchString(normalized)
	case models.StepKindChoice, models.StepKindSlotPicker:
		// Selection is constrained to the presented options.
		valid = true
	}

	if valid && step.Validate != nil {
		valid = step.Validate(normalized)
	}
	return normalized, valid
}

// NormalizeInput applies the per-kind default normalization: phones render as
// (XXX) XXX-XXXX, dates as MM-DD-YYYY, free text is trimmed.
func NormalizeInput(kind models.StepKind, raw string) string {
	trimmed := strings.TrimSpace(raw)
	switch kind {
	case models.StepKindPhone:
		return FormatPhone(trimmed)
	case models.StepKindDate:
		return formatDate(trimmed)
	default:
		return trimmed
	}
}

// FormatPhone renders a 10-digit number as (XXX) XXX-XXXX. Input that does not
// strip to exactly 10 digits is returned trimmed so validation can reject it.
func FormatPhone(raw string) string {
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	if len(digits) != PhoneDigitCount {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
}

// DigitsOnly strips every non-digit character, the canonical phone form for
// CRM lead records.
func DigitsOnly(raw string) string {
	return nonDigitRegex.ReplaceAllString(raw, "")
}

// formatDate renders 8 digits as MM-DD-YYYY, mirroring the as-you-type
// formatting of the widget. Other shapes pass through trimmed.
func formatDate(raw string) string {
	digits := nonDigitRegex.ReplaceAllString(raw, "")
	if len(digits) != 8 {
		return strings.TrimSpace(raw)
	}
	return fmt.Sprintf("%s-%s-%s", digits[0:2], digits[2:4], digits[4:8])
}

// GuidanceMessage returns the assistant re-prompt for rejected input of the
// given step kind.
func GuidanceMessage(kind models.StepKind) string {
	switch kind {
	case models.StepKindText:
		return "Please enter at least a couple of characters."
	case models.StepKindParagraph:
		return "Please tell us a little more so we can help."
	case models.StepKindEmail:
		return "Please enter a valid email address, like name@example.com."
	case models.StepKindPhone:
		return "Please enter a valid 10-digit phone number."
	case models.StepKindDate:
		return "Please enter a valid date in MM-DD-YYYY format."
	default:
		return "Sorry, that didn't look right. Please try again."
	}
}

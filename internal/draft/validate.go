package draft

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Timestamp layouts accepted for registration windows, most specific last.
var timestampLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Problem is one offending field.
type Problem struct {
	Section string
	Field   string
	Reason  string
}

func (p Problem) String() string {
	return fmt.Sprintf("%s.%s: %s", p.Section, p.Field, p.Reason)
}

// ValidationError lists every field that blocks leaving a step.
type ValidationError struct {
	Step     Step
	Problems []Problem
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		parts = append(parts, p.Field+": "+p.Reason)
	}
	return fmt.Sprintf("%s step incomplete: %s", e.Step, strings.Join(parts, "; "))
}

// Fields returns the names of the offending fields in schema order.
func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Field)
	}
	return out
}

// Has reports whether field is among the offending fields.
func (e *ValidationError) Has(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field {
			return true
		}
	}
	return false
}

type validateConfig struct {
	strictSchedule bool
}

// ValidateOption tunes Validate.
type ValidateOption func(*validateConfig)

// StrictSchedule controls whether registrationEnd must fall after
// registrationStart. Enabled by default.
func StrictSchedule(enabled bool) ValidateOption {
	return func(c *validateConfig) {
		c.strictSchedule = enabled
	}
}

// Validate checks the section collected by step. It returns a
// *ValidationError naming every offending field, or nil.
func Validate(step Step, d Draft, opts ...ValidateOption) error {
	cfg := validateConfig{strictSchedule: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	section := step.Section()
	if section == "" {
		return fmt.Errorf("validate: unknown step %d", int(step))
	}

	values := d.section(section)
	var problems []Problem
	for _, f := range schema[section] {
		if reason := checkField(f, values[f.Name]); reason != "" {
			problems = append(problems, Problem{Section: section, Field: f.Name, Reason: reason})
		}
	}

	if step == StepOverview && cfg.strictSchedule {
		start, errStart := ParseTimestamp(values[FieldRegistrationStart])
		end, errEnd := ParseTimestamp(values[FieldRegistrationEnd])
		if errStart == nil && errEnd == nil && !end.After(start) {
			problems = append(problems, Problem{
				Section: section,
				Field:   FieldRegistrationEnd,
				Reason:  "must be after registration start",
			})
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Step: step, Problems: problems}
}

func checkField(f Field, v any) string {
	if f.Kind == KindBool {
		if _, ok := v.(bool); !ok {
			return "must be true or false"
		}
		return ""
	}

	if f.Kind == KindList {
		items, ok := asStrings(v)
		if !ok {
			return "must be a list of text entries"
		}
		if f.Required && len(items) == 0 {
			return "at least one entry is required"
		}
		for i, item := range items {
			if strings.TrimSpace(item) == "" {
				return fmt.Sprintf("entry %d is blank", i+1)
			}
		}
		return ""
	}

	if isEmpty(v) {
		if f.Required {
			return "required"
		}
		return ""
	}

	switch f.Kind {
	case KindInteger:
		n, ok := asInt(v)
		if !ok {
			return "must be a whole number"
		}
		if n <= 0 {
			return "must be greater than zero"
		}
	case KindNumber:
		n, ok := asFloat(v)
		if !ok {
			return "must be a number"
		}
		if f.Name == FieldPassPercentage && (n < 0 || n > 100) {
			return "must be between 0 and 100"
		}
	case KindTimestamp:
		if _, err := ParseTimestamp(v); err != nil {
			return "must be a date and time like 2006-01-02T15:04"
		}
	case KindDuration:
		dur, err := ParseDuration(v)
		if err != nil {
			return "must be a duration like 01:30"
		}
		if dur <= 0 {
			return "must be longer than zero"
		}
	case KindEnum:
		s, ok := v.(string)
		if !ok || !contains(f.Enum, s) {
			return "must be one of " + strings.Join(f.Enum, ", ")
		}
	case KindText:
		if _, ok := v.(string); !ok {
			return "must be text"
		}
	}
	return ""
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// ParseTimestamp interprets a registration timestamp.
func ParseTimestamp(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp must be text, got %T", v)
	}
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// ParseDuration interprets HH:MM or HH:MM:SS. Hours are unbounded, minutes
// and seconds must be below 60.
func ParseDuration(v any) (time.Duration, error) {
	s, ok := v.(string)
	if !ok {
		return 0, fmt.Errorf("duration must be text, got %T", v)
	}
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("unrecognised duration %q", s)
	}

	units := []time.Duration{time.Hour, time.Minute, time.Second}
	var total time.Duration
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("unrecognised duration %q", s)
		}
		if i > 0 && (n >= 60 || len(part) != 2) {
			return 0, fmt.Errorf("unrecognised duration %q", s)
		}
		total += time.Duration(n) * units[i]
	}
	return total, nil
}

func asInt(v any) (int64, bool) {
	switch t := v.(type) {
	case int:
		return int64(t), true
	case int32:
		return int64(t), true
	case int64:
		return t, true
	case float64:
		if t != math.Trunc(t) || t < math.MinInt64 || t >= math.MaxInt64 {
			return 0, false
		}
		return int64(t), true
	case json.Number:
		n, err := t.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case json.Number:
		n, err := t.Float64()
		return n, err == nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

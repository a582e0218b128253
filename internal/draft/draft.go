// Package draft holds the contest form data accumulated across wizard steps
// and the rules that gate leaving each step.
package draft

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownSection = errors.New("unknown section")
	ErrUnknownField   = errors.New("unknown field")
)

// Step identifies a wizard page.
type Step int

const (
	StepOverview Step = iota + 1
	StepConfiguration
	StepSectionDetails
)

// FirstStep and LastStep bound the cursor.
const (
	FirstStep = StepOverview
	LastStep  = StepSectionDetails
)

// String returns the step name.
func (s Step) String() string {
	switch s {
	case StepOverview:
		return "overview"
	case StepConfiguration:
		return "configuration"
	case StepSectionDetails:
		return "section-details"
	default:
		return fmt.Sprintf("step(%d)", int(s))
	}
}

// Section returns the draft section whose fields the step collects.
func (s Step) Section() string {
	switch s {
	case StepOverview:
		return SectionOverview
	case StepConfiguration:
		return SectionConfiguration
	case StepSectionDetails:
		return SectionDetails
	default:
		return ""
	}
}

// Valid reports whether s is a known step.
func (s Step) Valid() bool {
	return s >= FirstStep && s <= LastStep
}

// Draft is an immutable snapshot of the form. Writes return a new Draft and
// leave the receiver untouched.
type Draft struct {
	sections map[string]map[string]any
}

// New returns a draft with every field at its empty value.
func New() Draft {
	d := Draft{sections: make(map[string]map[string]any, len(schema))}
	for name, fields := range schema {
		values := make(map[string]any, len(fields))
		for _, f := range fields {
			values[f.Name] = f.Empty()
		}
		d.sections[name] = values
	}
	return d
}

// With returns a copy of d with one field replaced. Values are stored as
// given; they are only interpreted by Validate.
func (d Draft) With(section, field string, value any) (Draft, error) {
	canonical, f, err := Lookup(section, field)
	if err != nil {
		return d, err
	}
	if d.sections == nil {
		d = New()
	}

	next := Draft{sections: make(map[string]map[string]any, len(d.sections))}
	for name, values := range d.sections {
		next.sections[name] = values
	}

	values := make(map[string]any, len(d.sections[canonical]))
	for k, v := range d.sections[canonical] {
		values[k] = v
	}
	values[f.Name] = cloneValue(value)
	next.sections[canonical] = values

	return next, nil
}

// Get returns the raw value of a field.
func (d Draft) Get(section, field string) (any, error) {
	canonical, f, err := Lookup(section, field)
	if err != nil {
		return nil, err
	}
	if d.sections == nil {
		return f.Empty(), nil
	}
	return cloneValue(d.sections[canonical][f.Name]), nil
}

// Overview returns a copy of the assessmentOverview object.
func (d Draft) Overview() map[string]any {
	return d.section(SectionOverview)
}

// Configuration returns a copy of the testConfiguration object.
func (d Draft) Configuration() map[string]any {
	return d.section(SectionConfiguration)
}

// Details returns a copy of the sectionDetails object.
func (d Draft) Details() map[string]any {
	return d.section(SectionDetails)
}

// SectionTitles returns the section titles. Entries that are not strings are
// skipped.
func (d Draft) SectionTitles() []string {
	v, _ := d.Get(SectionDetails, FieldSectionTitles)
	titles, _ := asStrings(v)
	return titles
}

// Text returns a field formatted as text.
func (d Draft) Text(section, field string) string {
	v, err := d.Get(section, field)
	if err != nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// Bool returns a boolean field, false if it does not hold a bool.
func (d Draft) Bool(section, field string) bool {
	v, _ := d.Get(section, field)
	b, _ := v.(bool)
	return b
}

// Map returns every section keyed by wire name.
func (d Draft) Map() map[string]any {
	out := make(map[string]any, len(schema))
	for _, name := range Sections() {
		out[name] = d.section(name)
	}
	return out
}

func (d Draft) section(name string) map[string]any {
	out := make(map[string]any, len(schema[name]))
	if d.sections == nil {
		for _, f := range schema[name] {
			out[f.Name] = f.Empty()
		}
		return out
	}
	for k, v := range d.sections[name] {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		out := make([]string, len(t))
		copy(out, t)
		return out
	case []any:
		out := make([]any, len(t))
		copy(out, t)
		return out
	default:
		return v
	}
}

func asStrings(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		ok := true
		for _, item := range t {
			s, isString := item.(string)
			if !isString {
				ok = false
				continue
			}
			out = append(out, s)
		}
		return out, ok
	default:
		return nil, false
	}
}

// FromMap rebuilds a draft from sections keyed by wire name, the shape
// produced by Map.
func FromMap(m map[string]any) (Draft, error) {
	d := New()
	for section, raw := range m {
		values, ok := raw.(map[string]any)
		if !ok {
			return Draft{}, fmt.Errorf("section %s: expected an object, got %T", section, raw)
		}
		for field, v := range values {
			next, err := d.With(section, field, v)
			if err != nil {
				return Draft{}, err
			}
			d = next
		}
	}
	return d, nil
}

package draft

import (
	"fmt"
	"strings"
)

// Section names as they appear in the persist payload.
const (
	SectionOverview      = "assessmentOverview"
	SectionConfiguration = "testConfiguration"
	SectionDetails       = "sectionDetails"
)

// Field names.
const (
	FieldName              = "name"
	FieldDescription       = "description"
	FieldRegistrationStart = "registrationStart"
	FieldRegistrationEnd   = "registrationEnd"
	FieldMaxRegistrations  = "maxRegistrations"
	FieldGuidelines        = "guidelines"

	FieldSections            = "sections"
	FieldQuestions           = "questions"
	FieldDuration            = "duration"
	FieldFullScreenMode      = "fullScreenMode"
	FieldFaceDetection       = "faceDetection"
	FieldDeviceRestriction   = "deviceRestriction"
	FieldNoiseDetection      = "noiseDetection"
	FieldNegativeMarking     = "negativeMarking"
	FieldNegativeMarkingType = "negativeMarkingType"
	FieldShuffleQuestions    = "shuffleQuestions"
	FieldShuffleOptions      = "shuffleOptions"
	FieldPassPercentage      = "passPercentage"
	FieldResultVisibility    = "resultVisibility"

	FieldSectionTitles = "sectionTitles"
)

// Enumerated values.
const (
	SubmissionStayUntilEnd   = "stay-until-end"
	SubmissionAllowEarly     = "allow-early-submission"
	VisibilityImmediate      = "immediate"
	VisibilityHostControlled = "host-controlled"
)

// Kind describes how a field's raw value is interpreted during validation.
type Kind int

const (
	KindText Kind = iota
	KindInteger
	KindNumber
	KindTimestamp
	KindDuration
	KindBool
	KindEnum
	KindList
)

// String returns a short human name for the kind.
func (k Kind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	case KindDuration:
		return "duration"
	case KindBool:
		return "boolean"
	case KindEnum:
		return "enum"
	case KindList:
		return "list"
	default:
		return "unknown"
	}
}

// Field describes one form field.
type Field struct {
	Name     string
	Label    string
	Kind     Kind
	Required bool
	Enum     []string
	Hint     string
}

// Empty returns the initial value of the field.
func (f Field) Empty() any {
	switch f.Kind {
	case KindBool:
		return false
	case KindList:
		return []string{}
	default:
		return ""
	}
}

var schema = map[string][]Field{
	SectionOverview: {
		{Name: FieldName, Label: "Name", Kind: KindText, Required: true},
		{Name: FieldDescription, Label: "Description", Kind: KindText, Required: true},
		{Name: FieldRegistrationStart, Label: "Registration start", Kind: KindTimestamp, Required: true, Hint: "2006-01-02T15:04"},
		{Name: FieldRegistrationEnd, Label: "Registration end", Kind: KindTimestamp, Required: true, Hint: "2006-01-02T15:04"},
		{Name: FieldMaxRegistrations, Label: "Max registrations", Kind: KindInteger, Required: true},
		{Name: FieldGuidelines, Label: "Guidelines", Kind: KindText, Required: true},
	},
	SectionConfiguration: {
		{Name: FieldSections, Label: "Sections", Kind: KindInteger, Required: true},
		{Name: FieldQuestions, Label: "Questions", Kind: KindInteger, Required: true},
		{Name: FieldDuration, Label: "Duration", Kind: KindDuration, Required: true, Hint: "HH:MM"},
		{Name: FieldFullScreenMode, Label: "Full screen mode", Kind: KindBool},
		{Name: FieldFaceDetection, Label: "Face detection", Kind: KindBool},
		{Name: FieldDeviceRestriction, Label: "Device restriction", Kind: KindBool},
		{Name: FieldNoiseDetection, Label: "Noise detection", Kind: KindBool},
		{Name: FieldNegativeMarking, Label: "Negative marking", Kind: KindBool},
		{Name: FieldNegativeMarkingType, Label: "Submission rule", Kind: KindEnum, Enum: []string{SubmissionStayUntilEnd, SubmissionAllowEarly}},
		{Name: FieldShuffleQuestions, Label: "Shuffle questions", Kind: KindBool},
		{Name: FieldShuffleOptions, Label: "Shuffle options", Kind: KindBool},
		{Name: FieldPassPercentage, Label: "Pass percentage", Kind: KindNumber, Required: true, Hint: "0-100"},
		{Name: FieldResultVisibility, Label: "Result visibility", Kind: KindEnum, Enum: []string{VisibilityImmediate, VisibilityHostControlled}},
	},
	SectionDetails: {
		{Name: FieldSectionTitles, Label: "Section titles", Kind: KindList, Required: true},
	},
}

var sectionAliases = map[string]string{
	"overview":      SectionOverview,
	"configuration": SectionConfiguration,
	"sections":      SectionDetails,
	"details":       SectionDetails,
}

var fieldAliases = map[string]string{
	"sectionCount":  FieldSections,
	"questionCount": FieldQuestions,
}

// Sections returns the section names in step order.
func Sections() []string {
	return []string{SectionOverview, SectionConfiguration, SectionDetails}
}

// Fields returns the schema of a section, in display order.
func Fields(section string) ([]Field, error) {
	canonical, err := CanonicalSection(section)
	if err != nil {
		return nil, err
	}
	out := make([]Field, len(schema[canonical]))
	copy(out, schema[canonical])
	return out, nil
}

// CanonicalSection resolves a section name or alias.
func CanonicalSection(section string) (string, error) {
	if _, ok := schema[section]; ok {
		return section, nil
	}
	if canonical, ok := sectionAliases[strings.ToLower(section)]; ok {
		return canonical, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSection, section)
}

// Lookup resolves a section and field (or their aliases) to the schema entry.
func Lookup(section, field string) (string, Field, error) {
	canonical, err := CanonicalSection(section)
	if err != nil {
		return "", Field{}, err
	}
	if alias, ok := fieldAliases[field]; ok {
		field = alias
	}
	for _, f := range schema[canonical] {
		if f.Name == field {
			return canonical, f, nil
		}
	}
	return "", Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, canonical, field)
}

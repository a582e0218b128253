package draft

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustWith(t *testing.T, d Draft, section string, values map[string]any) Draft {
	t.Helper()
	for field, v := range values {
		var err error
		d, err = d.With(section, field, v)
		require.NoError(t, err)
	}
	return d
}

func validOverview(t *testing.T) Draft {
	return mustWith(t, New(), SectionOverview, map[string]any{
		FieldName:              "Spring Qualifier",
		FieldDescription:       "Round one",
		FieldRegistrationStart: "2026-03-01T09:00",
		FieldRegistrationEnd:   "2026-03-10T18:00",
		FieldMaxRegistrations:  "500",
		FieldGuidelines:        "No phones.",
	})
}

func validConfiguration(t *testing.T) Draft {
	return mustWith(t, New(), SectionConfiguration, map[string]any{
		FieldSections:       "3",
		FieldQuestions:      "30",
		FieldDuration:       "01:30",
		FieldPassPercentage: "40",
	})
}

func validationError(t *testing.T, err error) *ValidationError {
	t.Helper()
	var verr *ValidationError
	require.True(t, errors.As(err, &verr), "expected *ValidationError, got %v", err)
	return verr
}

func TestValidate_Overview(t *testing.T) {
	require.NoError(t, Validate(StepOverview, validOverview(t)))

	t.Run("empty draft names every field", func(t *testing.T) {
		verr := validationError(t, Validate(StepOverview, New()))
		require.Equal(t, StepOverview, verr.Step)
		require.Equal(t, []string{
			FieldName, FieldDescription, FieldRegistrationStart,
			FieldRegistrationEnd, FieldMaxRegistrations, FieldGuidelines,
		}, verr.Fields())
	})

	tests := []struct {
		name  string
		field string
		value any
	}{
		{"blank name", FieldName, "   "},
		{"missing guidelines", FieldGuidelines, ""},
		{"zero registrations", FieldMaxRegistrations, "0"},
		{"fractional registrations", FieldMaxRegistrations, "2.5"},
		{"bad start", FieldRegistrationStart, "tomorrow"},
		{"end before start", FieldRegistrationEnd, "2026-02-01T09:00"},
		{"end equals start", FieldRegistrationEnd, "2026-03-01T09:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := validOverview(t).With(SectionOverview, tt.field, tt.value)
			require.NoError(t, err)

			verr := validationError(t, Validate(StepOverview, d))
			require.True(t, verr.Has(tt.field), "expected %s in %v", tt.field, verr.Fields())
		})
	}
}

func TestValidate_IntegerOutOfRange(t *testing.T) {
	for _, v := range []any{float64(1e19), float64(-1e19), math.Inf(1), math.NaN()} {
		d, err := validOverview(t).With(SectionOverview, FieldMaxRegistrations, v)
		require.NoError(t, err)

		verr := validationError(t, Validate(StepOverview, d))
		require.Equal(t, []Problem{{
			Section: SectionOverview,
			Field:   FieldMaxRegistrations,
			Reason:  "must be a whole number",
		}}, verr.Problems, "value %v", v)
	}
}

func TestValidate_PermissiveSchedule(t *testing.T) {
	d, err := validOverview(t).With(SectionOverview, FieldRegistrationEnd, "2026-01-01T00:00")
	require.NoError(t, err)

	require.Error(t, Validate(StepOverview, d))
	require.NoError(t, Validate(StepOverview, d, StrictSchedule(false)))
}

func TestValidate_Configuration(t *testing.T) {
	require.NoError(t, Validate(StepConfiguration, validConfiguration(t)))

	verr := validationError(t, Validate(StepConfiguration, New()))
	require.Equal(t, []string{FieldSections, FieldQuestions, FieldDuration, FieldPassPercentage}, verr.Fields())

	tests := []struct {
		name  string
		field string
		value any
		ok    bool
	}{
		{"numeric json sections", FieldSections, float64(4), true},
		{"negative questions", FieldQuestions, "-1", false},
		{"zero duration", FieldDuration, "00:00", false},
		{"duration with seconds", FieldDuration, "00:45:30", true},
		{"duration minutes overflow", FieldDuration, "01:75", false},
		{"duration plain minutes", FieldDuration, "90", false},
		{"pass percentage zero", FieldPassPercentage, "0", true},
		{"pass percentage hundred", FieldPassPercentage, float64(100), true},
		{"pass percentage over", FieldPassPercentage, "100.5", false},
		{"pass percentage text", FieldPassPercentage, "half", false},
		{"visibility listed", FieldResultVisibility, VisibilityHostControlled, true},
		{"visibility unlisted", FieldResultVisibility, "Host Control", false},
		{"submission rule listed", FieldNegativeMarkingType, SubmissionAllowEarly, true},
		{"boolean as string", FieldFaceDetection, "true", false},
		{"boolean set", FieldFaceDetection, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := validConfiguration(t).With(SectionConfiguration, tt.field, tt.value)
			require.NoError(t, err)

			err = Validate(StepConfiguration, d)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, validationError(t, err).Has(tt.field))
		})
	}
}

func TestValidate_SectionDetails(t *testing.T) {
	tests := []struct {
		name   string
		titles any
		ok     bool
	}{
		{"empty list", []string{}, false},
		{"one title", []string{"Arrays"}, true},
		{"blank entry", []string{"Arrays", " "}, false},
		{"decoded list", []any{"Arrays", "Graphs"}, true},
		{"non string entry", []any{"Arrays", 3}, false},
		{"not a list", "Arrays", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New().With(SectionDetails, FieldSectionTitles, tt.titles)
			require.NoError(t, err)

			err = Validate(StepSectionDetails, d)
			if tt.ok {
				require.NoError(t, err)
				return
			}
			require.True(t, validationError(t, err).Has(FieldSectionTitles))
		})
	}
}

func TestValidate_UnknownStep(t *testing.T) {
	err := Validate(Step(9), New())
	require.Error(t, err)
	var verr *ValidationError
	require.False(t, errors.As(err, &verr))
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Step: StepOverview, Problems: []Problem{
		{Section: SectionOverview, Field: FieldName, Reason: "required"},
		{Section: SectionOverview, Field: FieldGuidelines, Reason: "required"},
	}}
	require.Equal(t, "overview step incomplete: name: required; guidelines: required", err.Error())
}

func TestParseTimestamp(t *testing.T) {
	for _, in := range []string{"2026-03-01T09:00", "2026-03-01T09:00:30", "2026-03-01T09:00:00Z"} {
		_, err := ParseTimestamp(in)
		require.NoError(t, err, in)
	}
	_, err := ParseTimestamp(42)
	require.Error(t, err)
}

func TestParseDuration(t *testing.T) {
	d, err := ParseDuration("02:15")
	require.NoError(t, err)
	require.Equal(t, 2*time.Hour+15*time.Minute, d)

	d, err = ParseDuration("100:00:05")
	require.NoError(t, err)
	require.Equal(t, 100*time.Hour+5*time.Second, d)

	for _, bad := range []any{"1:2", "aa:bb", "", "01:00:00:00", 90} {
		_, err := ParseDuration(bad)
		require.Error(t, err, "%v", bad)
	}
}

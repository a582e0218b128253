package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/metrics"
	"github.com/mark3labs/contestr/internal/tokenstore"
)

// fakeBackend counts remote calls and can hold SaveData until released.
type fakeBackend struct {
	saveCalls  atomic.Int32
	startCalls atomic.Int32

	saveErr  error
	startErr error

	entered chan struct{}
	release chan struct{}

	mu       sync.Mutex
	requests []gateway.SaveDataRequest
}

func (b *fakeBackend) SaveData(ctx context.Context, req gateway.SaveDataRequest) error {
	b.saveCalls.Add(1)
	b.mu.Lock()
	b.requests = append(b.requests, req)
	b.mu.Unlock()
	if b.entered != nil {
		b.entered <- struct{}{}
		<-b.release
	}
	return b.saveErr
}

func (b *fakeBackend) StartContest(ctx context.Context, contestID, csrf string) (string, error) {
	b.startCalls.Add(1)
	if b.startErr != nil {
		return "", b.startErr
	}
	return "token-" + contestID, nil
}

type recordingNavigator struct {
	mu   sync.Mutex
	dest []string
}

func (n *recordingNavigator) Navigate(destination string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dest = append(n.dest, destination)
}

func (n *recordingNavigator) destinations() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.dest...)
}

func newController(t *testing.T, backend *fakeBackend, opts ...Option) *Controller {
	t.Helper()
	ids := atomic.Int32{}
	gw := gateway.New(backend, tokenstore.NewMemory(),
		gateway.WithIDGenerator(func() (string, error) {
			return "contest-" + string(rune('a'+ids.Add(1)-1)), nil
		}),
	)
	return New(gw, opts...)
}

func fill(t *testing.T, c *Controller, section string, values map[string]any) {
	t.Helper()
	for field, v := range values {
		require.NoError(t, c.UpdateField(section, field, v))
	}
}

func fillOverview(t *testing.T, c *Controller) {
	fill(t, c, draft.SectionOverview, map[string]any{
		draft.FieldName:              "Spring Qualifier",
		draft.FieldDescription:       "Round one",
		draft.FieldRegistrationStart: "2026-03-01T09:00",
		draft.FieldRegistrationEnd:   "2026-03-10T18:00",
		draft.FieldMaxRegistrations:  "500",
		draft.FieldGuidelines:        "No phones.",
	})
}

func fillConfiguration(t *testing.T, c *Controller) {
	fill(t, c, draft.SectionConfiguration, map[string]any{
		draft.FieldSections:         "3",
		draft.FieldQuestions:        "30",
		draft.FieldDuration:         "01:30",
		draft.FieldPassPercentage:   "40",
		draft.FieldFaceDetection:    true,
		draft.FieldResultVisibility: draft.VisibilityHostControlled,
	})
}

// toConfiguration fills step one and advances.
func toConfiguration(t *testing.T, c *Controller) {
	t.Helper()
	fillOverview(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))
	require.Equal(t, draft.StepConfiguration, c.Cursor())
	fillConfiguration(t, c)
}

func TestUpdateField_LastWriteWins(t *testing.T) {
	c := newController(t, &fakeBackend{})

	require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldName, "first"))
	require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldName, "second"))
	require.NoError(t, c.UpdateField("configuration", "sectionCount", "4"))

	d := c.Draft()
	require.Equal(t, "second", d.Text(draft.SectionOverview, draft.FieldName))
	require.Equal(t, "4", d.Text(draft.SectionConfiguration, draft.FieldSections))
	require.Equal(t, "", d.Text(draft.SectionOverview, draft.FieldDescription))
	require.False(t, d.Bool(draft.SectionConfiguration, draft.FieldShuffleOptions))

	require.ErrorIs(t, c.UpdateField("nope", draft.FieldName, "x"), draft.ErrUnknownSection)
	require.ErrorIs(t, c.UpdateField(draft.SectionOverview, "nope", "x"), draft.ErrUnknownField)
}

func TestUndo(t *testing.T) {
	c := newController(t, &fakeBackend{}, WithHistoryLimit(2))
	require.False(t, c.Undo())

	for _, v := range []string{"a", "b", "c"} {
		require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldName, v))
	}

	require.True(t, c.Undo())
	require.Equal(t, "b", c.Draft().Text(draft.SectionOverview, draft.FieldName))
	require.True(t, c.Undo())
	require.Equal(t, "a", c.Draft().Text(draft.SectionOverview, draft.FieldName))
	require.False(t, c.Undo())
}

func TestUndo_Disabled(t *testing.T) {
	c := newController(t, &fakeBackend{}, WithHistoryLimit(0))
	require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldName, "a"))
	require.False(t, c.Undo())
}

func TestGoToNextStep_InvalidOverview(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend)
	fillOverview(t, c)
	require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldGuidelines, ""))

	err := c.GoToNextStep(context.Background())
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, []string{draft.FieldGuidelines}, verr.Fields())
	require.Equal(t, draft.StepOverview, c.Cursor())
	require.Zero(t, backend.saveCalls.Load())
}

func TestGoToNextStep_StrictSchedule(t *testing.T) {
	for _, strict := range []bool{true, false} {
		c := newController(t, &fakeBackend{}, WithStrictSchedule(strict))
		fillOverview(t, c)
		require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldRegistrationEnd, "2026-02-01T09:00"))

		err := c.GoToNextStep(context.Background())
		if strict {
			require.Error(t, err)
			require.Equal(t, draft.StepOverview, c.Cursor())
		} else {
			require.NoError(t, err)
			require.Equal(t, draft.StepConfiguration, c.Cursor())
		}
	}
}

func TestGoToNextStep_Submits(t *testing.T) {
	backend := &fakeBackend{}
	nav := &recordingNavigator{}
	c := newController(t, backend, WithNavigator(nav))
	toConfiguration(t, c)

	require.NoError(t, c.GoToNextStep(context.Background()))
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
	require.Equal(t, int32(1), backend.saveCalls.Load())
	require.Equal(t, int32(1), backend.startCalls.Load())
	require.Equal(t, []string{DestinationSectionDetails}, nav.destinations())

	handle, ok := c.Handle()
	require.True(t, ok)
	require.Equal(t, "contest-a", handle.ContestID)
	require.Equal(t, "token-contest-a", handle.Token)

	require.ErrorIs(t, c.GoToNextStep(context.Background()), ErrLastStep)

	// Going back and forward again reuses the issued contest
	require.NoError(t, c.GoToPreviousStep())
	require.NoError(t, c.GoToNextStep(context.Background()))
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
	require.Equal(t, int32(1), backend.saveCalls.Load())
	require.Equal(t, int32(1), backend.startCalls.Load())
}

func TestGoToNextStep_PayloadRoundTrip(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend)
	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	require.Equal(t, "contest-a", req.ContestID)
	require.Equal(t, "Spring Qualifier", req.AssessmentOverview[draft.FieldName])
	require.Equal(t, "2026-03-01T09:00", req.AssessmentOverview[draft.FieldRegistrationStart])
	require.Equal(t, "500", req.AssessmentOverview[draft.FieldMaxRegistrations])
	require.Equal(t, "01:30", req.TestConfiguration[draft.FieldDuration])
	require.Equal(t, true, req.TestConfiguration[draft.FieldFaceDetection])
	require.Equal(t, false, req.TestConfiguration[draft.FieldShuffleQuestions])
	require.Equal(t, draft.VisibilityHostControlled, req.TestConfiguration[draft.FieldResultVisibility])
}

func TestGoToNextStep_PayloadMatchesInputs(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend)

	overview := map[string]any{
		draft.FieldName:              "Midterm",
		draft.FieldDescription:       "Algebra test",
		draft.FieldRegistrationStart: "2025-01-01T09:00",
		draft.FieldRegistrationEnd:   "2025-01-01T10:00",
		draft.FieldMaxRegistrations:  50,
		draft.FieldGuidelines:        "No calculators",
	}
	configuration := map[string]any{
		draft.FieldSections:       2,
		draft.FieldQuestions:      20,
		draft.FieldDuration:       "01:00",
		draft.FieldPassPercentage: 60,
	}
	fill(t, c, draft.SectionOverview, overview)
	require.NoError(t, c.GoToNextStep(context.Background()))
	fill(t, c, draft.SectionConfiguration, configuration)
	require.NoError(t, c.GoToNextStep(context.Background()))

	require.Len(t, backend.requests, 1)
	req := backend.requests[0]
	require.Equal(t, overview, req.AssessmentOverview)

	want := map[string]any{
		draft.FieldFullScreenMode:      false,
		draft.FieldFaceDetection:       false,
		draft.FieldDeviceRestriction:   false,
		draft.FieldNoiseDetection:      false,
		draft.FieldNegativeMarking:     false,
		draft.FieldNegativeMarkingType: "",
		draft.FieldShuffleQuestions:    false,
		draft.FieldShuffleOptions:      false,
		draft.FieldResultVisibility:    "",
	}
	for k, v := range configuration {
		want[k] = v
	}
	require.Equal(t, want, req.TestConfiguration)
}

func TestGoToNextStep_PersistFailure(t *testing.T) {
	backend := &fakeBackend{saveErr: errors.New("HTTP 500")}
	nav := &recordingNavigator{}
	c := newController(t, backend, WithNavigator(nav))
	toConfiguration(t, c)
	before := c.Draft().Map()

	err := c.GoToNextStep(context.Background())
	require.ErrorIs(t, err, gateway.ErrPersistence)
	require.Equal(t, draft.StepConfiguration, c.Cursor())
	require.Zero(t, backend.startCalls.Load())
	require.Equal(t, before, c.Draft().Map())
	require.Empty(t, nav.destinations())
	require.False(t, c.Pending())

	_, ok := c.Handle()
	require.False(t, ok)

	// A manual retry submits again with a fresh contest id
	backend.saveErr = nil
	require.NoError(t, c.GoToNextStep(context.Background()))
	handle, _ := c.Handle()
	require.Equal(t, "contest-b", handle.ContestID)
	require.Equal(t, int32(2), backend.saveCalls.Load())
}

func TestGoToNextStep_TokenFailure(t *testing.T) {
	backend := &fakeBackend{startErr: errors.New("HTTP 403")}
	c := newController(t, backend)
	toConfiguration(t, c)

	err := c.GoToNextStep(context.Background())
	require.ErrorIs(t, err, gateway.ErrTokenIssuance)

	var subErr *gateway.SubmissionError
	require.ErrorAs(t, err, &subErr)
	require.True(t, subErr.Orphaned())
	require.Equal(t, draft.StepConfiguration, c.Cursor())
}

func TestGoToNextStep_ConcurrentSubmitsOnce(t *testing.T) {
	backend := &fakeBackend{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := newController(t, backend)
	toConfiguration(t, c)

	first := make(chan error, 1)
	go func() { first <- c.GoToNextStep(context.Background()) }()

	<-backend.entered
	require.True(t, c.Pending())
	require.ErrorIs(t, c.GoToNextStep(context.Background()), ErrSubmissionInFlight)
	require.ErrorIs(t, c.GoToPreviousStep(), ErrSubmissionInFlight)
	require.Equal(t, draft.StepConfiguration, c.Cursor())

	// Edits during the flight do not reach the submitted snapshot
	require.NoError(t, c.UpdateField(draft.SectionOverview, draft.FieldName, "Renamed"))

	close(backend.release)
	require.NoError(t, <-first)

	require.Equal(t, int32(1), backend.saveCalls.Load())
	require.Equal(t, int32(1), backend.startCalls.Load())
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
	require.False(t, c.Pending())

	submitted, ok := c.SubmittedDraft()
	require.True(t, ok)
	require.Equal(t, "Spring Qualifier", submitted.Text(draft.SectionOverview, draft.FieldName))
	require.Equal(t, "Renamed", c.Draft().Text(draft.SectionOverview, draft.FieldName))
}

func TestGoToNextStep_ManyConcurrentCallers(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend)
	toConfiguration(t, c)

	var wg sync.WaitGroup
	var ok, busy atomic.Int32
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch err := c.GoToNextStep(context.Background()); {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrSubmissionInFlight), errors.Is(err, ErrLastStep):
				busy.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), backend.saveCalls.Load())
	require.Equal(t, int32(1), backend.startCalls.Load())
	require.Equal(t, int32(16), ok.Load()+busy.Load())
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
}

func TestGoToPreviousStep(t *testing.T) {
	backend := &fakeBackend{}
	c := newController(t, backend)

	require.NoError(t, c.GoToPreviousStep())
	require.Equal(t, draft.StepOverview, c.Cursor())

	toConfiguration(t, c)
	require.NoError(t, c.GoToPreviousStep())
	require.Equal(t, draft.StepOverview, c.Cursor())

	require.NoError(t, c.GoToNextStep(context.Background()))
	require.NoError(t, c.GoToNextStep(context.Background()))
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
	require.NoError(t, c.GoToPreviousStep())
	require.Equal(t, draft.StepConfiguration, c.Cursor())

	require.Equal(t, int32(1), backend.saveCalls.Load())
}

func TestSubmitFinal(t *testing.T) {
	backend := &fakeBackend{}
	var got []Completion
	fin := FinalizerFunc(func(ctx context.Context, c Completion) error {
		got = append(got, c)
		return nil
	})
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	c := newController(t, backend, WithFinalizer(fin), WithClock(func() time.Time { return at }))

	require.ErrorIs(t, c.SubmitFinal(context.Background()), ErrNotOnFinalStep)

	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))

	err := c.SubmitFinal(context.Background())
	var verr *draft.ValidationError
	require.ErrorAs(t, err, &verr)
	require.True(t, verr.Has(draft.FieldSectionTitles))
	require.Empty(t, got)

	require.NoError(t, c.UpdateField(draft.SectionDetails, draft.FieldSectionTitles, []string{"Logic", " "}))
	require.Error(t, c.SubmitFinal(context.Background()))

	require.NoError(t, c.UpdateField(draft.SectionDetails, draft.FieldSectionTitles, []string{"Logic", "Maths"}))
	require.NoError(t, c.SubmitFinal(context.Background()))
	require.True(t, c.Completed())
	require.ErrorIs(t, c.SubmitFinal(context.Background()), ErrAlreadyCompleted)

	require.Len(t, got, 1)
	require.Equal(t, "contest-a", got[0].Handle.ContestID)
	require.Equal(t, at, got[0].CompletedAt)
	require.Equal(t, []string{"Logic", "Maths"}, got[0].Final.SectionTitles())
	require.Empty(t, got[0].Submitted.SectionTitles())
}

func TestSubmitFinal_FinalizerFailureAllowsRetry(t *testing.T) {
	calls := 0
	fin := FinalizerFunc(func(context.Context, Completion) error {
		calls++
		if calls == 1 {
			return errors.New("disk full")
		}
		return nil
	})
	c := newController(t, &fakeBackend{}, WithFinalizer(fin))
	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))
	require.NoError(t, c.UpdateField(draft.SectionDetails, draft.FieldSectionTitles, []string{"Logic"}))

	require.Error(t, c.SubmitFinal(context.Background()))
	require.False(t, c.Completed())
	require.NoError(t, c.SubmitFinal(context.Background()))
	require.True(t, c.Completed())
}

func TestGoToPreviousStep_BlockedWhileFinalizing(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	fin := FinalizerFunc(func(context.Context, Completion) error {
		close(entered)
		<-release
		return nil
	})
	c := newController(t, &fakeBackend{}, WithFinalizer(fin))
	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))
	require.NoError(t, c.UpdateField(draft.SectionDetails, draft.FieldSectionTitles, []string{"Logic"}))

	done := make(chan error, 1)
	go func() { done <- c.SubmitFinal(context.Background()) }()
	<-entered

	require.ErrorIs(t, c.GoToPreviousStep(), ErrSubmissionInFlight)
	require.Equal(t, draft.StepSectionDetails, c.Cursor())

	close(release)
	require.NoError(t, <-done)
	require.True(t, c.Completed())
	require.Equal(t, draft.StepSectionDetails, c.Cursor())
}

func TestFinalizers(t *testing.T) {
	var order []string
	a := FinalizerFunc(func(context.Context, Completion) error {
		order = append(order, "a")
		return errors.New("a failed")
	})
	b := FinalizerFunc(func(context.Context, Completion) error {
		order = append(order, "b")
		return nil
	})

	err := Finalizers(a, nil, b).Finalize(context.Background(), Completion{})
	require.EqualError(t, err, "a failed")
	require.Equal(t, []string{"a", "b"}, order)
	require.NoError(t, Finalizers().Finalize(context.Background(), Completion{}))
}

func TestMetrics(t *testing.T) {
	m := metrics.New()
	c := newController(t, &fakeBackend{}, WithMetrics(m))

	require.Error(t, c.GoToNextStep(context.Background()))
	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))

	validation, err := testutil.GatherAndCount(m.Registry(), "contestr_validation_failures_total")
	require.NoError(t, err)
	require.Equal(t, 1, validation)

	transitions, err := testutil.GatherAndCount(m.Registry(), "contestr_transitions_total")
	require.NoError(t, err)
	require.Equal(t, 2, transitions)
}

func TestStatus(t *testing.T) {
	c := newController(t, &fakeBackend{})
	toConfiguration(t, c)
	require.NoError(t, c.GoToNextStep(context.Background()))

	s := c.Status()
	require.Equal(t, draft.StepSectionDetails, s.Cursor)
	require.Equal(t, "contest-a", s.ContestID)
	require.False(t, s.Pending)
	require.False(t, s.Completed)
}

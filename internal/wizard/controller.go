// Package wizard drives contest creation through its three steps and owns
// the one-shot submission that happens when leaving the configuration step.
package wizard

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/metrics"
)

// DestinationSectionDetails is where the navigator is sent once the contest
// has been persisted and its token issued.
const DestinationSectionDetails = "/sectionDetails"

// DefaultHistoryLimit bounds the undo history.
const DefaultHistoryLimit = 100

var (
	ErrSubmissionInFlight = errors.New("submission already in progress")
	ErrNotOnFinalStep     = errors.New("not on the final step")
	ErrLastStep           = errors.New("already on the last step")
	ErrAlreadyCompleted   = errors.New("wizard already completed")
	ErrNoHandle           = errors.New("no contest has been issued yet")
)

// Gateway submits a draft and returns the issued contest.
type Gateway interface {
	Submit(ctx context.Context, d draft.Draft) (gateway.ContestHandle, error)
}

// Navigator is told where to go after a successful submission.
type Navigator interface {
	Navigate(destination string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(destination string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(destination string) { f(destination) }

// Completion is handed to the Finalizer when the host submits the last step.
type Completion struct {
	Handle      gateway.ContestHandle
	Submitted   draft.Draft
	Final       draft.Draft
	CompletedAt time.Time
}

// Finalizer receives the completed contest.
type Finalizer interface {
	Finalize(ctx context.Context, c Completion) error
}

// FinalizerFunc adapts a function to Finalizer.
type FinalizerFunc func(ctx context.Context, c Completion) error

// Finalize calls f.
func (f FinalizerFunc) Finalize(ctx context.Context, c Completion) error { return f(ctx, c) }

// Finalizers runs every finalizer in order and joins their errors.
func Finalizers(fs ...Finalizer) Finalizer {
	return FinalizerFunc(func(ctx context.Context, c Completion) error {
		var errs []error
		for _, f := range fs {
			if f == nil {
				continue
			}
			if err := f.Finalize(ctx, c); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})
}

// Status is a point-in-time view of a Controller.
type Status struct {
	Cursor    draft.Step
	Pending   bool
	Completed bool
	ContestID string
	Draft     draft.Draft
}

// Controller is the wizard state machine. It is safe for concurrent use.
type Controller struct {
	gw           Gateway
	nav          Navigator
	fin          Finalizer
	metrics      *metrics.Metrics
	strict       bool
	historyLimit int
	now          func() time.Time

	inFlight atomic.Bool

	mu         sync.Mutex
	cursor     draft.Step
	current    draft.Draft
	history    []draft.Draft
	handle     *gateway.ContestHandle
	submitted  draft.Draft
	finalizing bool
	completed  bool
}

// Option configures a Controller.
type Option func(*Controller)

// WithNavigator sets the navigator called after the contest is issued.
func WithNavigator(n Navigator) Option {
	return func(c *Controller) {
		c.nav = n
	}
}

// WithFinalizer sets what runs when the last step is submitted.
func WithFinalizer(f Finalizer) Option {
	return func(c *Controller) {
		c.fin = f
	}
}

// WithMetrics records transitions and validation failures.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithStrictSchedule toggles the registration window ordering check.
func WithStrictSchedule(strict bool) Option {
	return func(c *Controller) {
		c.strict = strict
	}
}

// WithHistoryLimit bounds the undo history. Zero disables undo.
func WithHistoryLimit(n int) Option {
	return func(c *Controller) {
		if n >= 0 {
			c.historyLimit = n
		}
	}
}

// WithClock overrides time.Now for completion timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a controller on the first step with an empty draft.
func New(gw Gateway, opts ...Option) *Controller {
	c := &Controller{
		gw:           gw,
		strict:       true,
		historyLimit: DefaultHistoryLimit,
		now:          time.Now,
		cursor:       draft.FirstStep,
		current:      draft.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// UpdateField writes one field. Values are not validated here.
func (c *Controller) UpdateField(section, field string, value any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, err := c.current.With(section, field, value)
	if err != nil {
		return err
	}
	c.pushHistory(c.current)
	c.current = next
	return nil
}

func (c *Controller) pushHistory(d draft.Draft) {
	if c.historyLimit == 0 {
		return
	}
	c.history = append(c.history, d)
	if over := len(c.history) - c.historyLimit; over > 0 {
		c.history = append(c.history[:0:0], c.history[over:]...)
	}
}

// Undo restores the draft as it was before the last UpdateField.
func (c *Controller) Undo() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.history) == 0 {
		return false
	}
	last := len(c.history) - 1
	c.current = c.history[last]
	c.history = c.history[:last]
	return true
}

// GoToPreviousStep moves back one step. It is a no-op on the first step and
// fails while a submission or finalization is running.
func (c *Controller) GoToPreviousStep() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inFlight.Load() || c.finalizing {
		return ErrSubmissionInFlight
	}
	if c.cursor > draft.FirstStep {
		c.moveLocked(c.cursor - 1)
	}
	return nil
}

// GoToNextStep validates the current step and advances. Leaving the
// configuration step submits the draft unless a contest was already issued.
func (c *Controller) GoToNextStep(ctx context.Context) error {
	c.mu.Lock()
	if c.inFlight.Load() {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}

	cursor := c.cursor
	if cursor == draft.LastStep {
		c.mu.Unlock()
		return ErrLastStep
	}

	snapshot := c.current
	if err := draft.Validate(cursor, snapshot, draft.StrictSchedule(c.strict)); err != nil {
		c.mu.Unlock()
		c.metrics.RecordValidationFailure(cursor.String())
		logger.Debug("wizard: %v", err)
		return err
	}

	if cursor != draft.StepConfiguration || c.handle != nil {
		c.moveLocked(cursor + 1)
		c.mu.Unlock()
		if cursor == draft.StepConfiguration {
			c.navigate(DestinationSectionDetails)
		}
		return nil
	}

	if !c.inFlight.CompareAndSwap(false, true) {
		c.mu.Unlock()
		return ErrSubmissionInFlight
	}
	c.mu.Unlock()
	defer c.inFlight.Store(false)

	logger.Debug("wizard: submitting draft")
	handle, err := c.gw.Submit(ctx, snapshot)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.handle = &handle
	c.submitted = snapshot
	c.moveLocked(draft.StepSectionDetails)
	c.mu.Unlock()

	c.navigate(DestinationSectionDetails)
	return nil
}

// SubmitFinal validates the last step and hands the contest to the finalizer.
// A failed finalizer leaves the wizard open so the host can retry.
func (c *Controller) SubmitFinal(ctx context.Context) error {
	c.mu.Lock()
	switch {
	case c.completed:
		c.mu.Unlock()
		return ErrAlreadyCompleted
	case c.finalizing:
		c.mu.Unlock()
		return ErrSubmissionInFlight
	case c.cursor != draft.LastStep:
		c.mu.Unlock()
		return ErrNotOnFinalStep
	case c.handle == nil:
		c.mu.Unlock()
		return ErrNoHandle
	}

	if err := draft.Validate(draft.LastStep, c.current, draft.StrictSchedule(c.strict)); err != nil {
		c.mu.Unlock()
		c.metrics.RecordValidationFailure(draft.LastStep.String())
		return err
	}

	completion := Completion{
		Handle:      *c.handle,
		Submitted:   c.submitted,
		Final:       c.current,
		CompletedAt: c.now(),
	}
	c.finalizing = true
	c.mu.Unlock()

	var err error
	if c.fin != nil {
		err = c.fin.Finalize(ctx, completion)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalizing = false
	if err != nil {
		logger.Error("wizard: finalizing contest %s: %v", completion.Handle.ContestID, err)
		return err
	}
	c.completed = true
	logger.Info("wizard: contest %s completed", completion.Handle.ContestID)
	return nil
}

func (c *Controller) moveLocked(to draft.Step) {
	from := c.cursor
	c.cursor = to
	c.metrics.RecordTransition(from.String(), to.String())
	logger.Debug("wizard: %s -> %s", from, to)
}

func (c *Controller) navigate(destination string) {
	if c.nav != nil {
		c.nav.Navigate(destination)
	}
}

// Cursor returns the current step.
func (c *Controller) Cursor() draft.Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Draft returns the current draft.
func (c *Controller) Draft() draft.Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SubmittedDraft returns the draft that was sent to the gateway.
func (c *Controller) SubmittedDraft() (draft.Draft, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.submitted, c.handle != nil
}

// Handle returns the issued contest, if any.
func (c *Controller) Handle() (gateway.ContestHandle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle == nil {
		return gateway.ContestHandle{}, false
	}
	return *c.handle, true
}

// Pending reports whether a submission is in flight.
func (c *Controller) Pending() bool {
	return c.inFlight.Load()
}

// Completed reports whether the last step has been submitted.
func (c *Controller) Completed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.completed
}

// Status returns a consistent snapshot of the controller.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Status{
		Cursor:    c.cursor,
		Pending:   c.inFlight.Load(),
		Completed: c.completed,
		Draft:     c.current,
	}
	if c.handle != nil {
		s.ContestID = c.handle.ContestID
	}
	return s
}

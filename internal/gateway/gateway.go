// Package gateway performs the one-shot hand-off of a completed contest
// draft: persist it, obtain an access token, and store the token locally.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/metrics"
)

// TokenKey is the store key holding the most recently issued token.
const TokenKey = "contestToken"

// ContestHandle identifies a persisted contest and the token granting
// access to it.
type ContestHandle struct {
	ContestID string    `json:"contestId" yaml:"contest_id"`
	Token     string    `json:"token" yaml:"token"`
	IssuedAt  time.Time `json:"issuedAt" yaml:"issued_at"`
}

// SaveDataRequest is the persist payload.
type SaveDataRequest struct {
	ContestID          string         `json:"contestId"`
	AssessmentOverview map[string]any `json:"assessmentOverview"`
	TestConfiguration  map[string]any `json:"testConfiguration"`
}

// Backend is the remote contest service.
type Backend interface {
	SaveData(ctx context.Context, req SaveDataRequest) error
	StartContest(ctx context.Context, contestID, csrfToken string) (string, error)
}

// CredentialProvider supplies the anti-forgery token sent with StartContest.
type CredentialProvider interface {
	CSRFToken(ctx context.Context) (string, error)
}

// KeyValueStore is client-side persistent storage.
type KeyValueStore interface {
	Put(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// Outcome of a phase reported to an Observer.
type Outcome string

const (
	OutcomePersisted Outcome = "persisted"
	OutcomeIssued    Outcome = "issued"
	OutcomeStored    Outcome = "stored"
	OutcomeFailed    Outcome = "failed"
)

// Event describes the result of one submission phase.
type Event struct {
	ContestID string
	Phase     Phase
	Outcome   Outcome
	Err       error
	At        time.Time
}

// Observer is notified after every phase. Observe must not block for long;
// it runs on the submitting goroutine.
type Observer interface {
	Observe(ctx context.Context, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev Event)

// Observe calls f.
func (f ObserverFunc) Observe(ctx context.Context, ev Event) {
	f(ctx, ev)
}

// Observers fans an event out to every non-nil observer in order.
func Observers(obs ...Observer) Observer {
	return ObserverFunc(func(ctx context.Context, ev Event) {
		for _, o := range obs {
			if o != nil {
				o.Observe(ctx, ev)
			}
		}
	})
}

type noCredentials struct{}

func (noCredentials) CSRFToken(context.Context) (string, error) { return "", nil }

// Gateway submits drafts. It is safe for concurrent use, though the wizard
// never submits more than once.
type Gateway struct {
	backend  Backend
	store    KeyValueStore
	creds    CredentialProvider
	newID    func() (string, error)
	observer Observer
	metrics  *metrics.Metrics
	now      func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithCredentials sets the CSRF token source. Without it no token is sent.
func WithCredentials(creds CredentialProvider) Option {
	return func(g *Gateway) {
		if creds != nil {
			g.creds = creds
		}
	}
}

// WithIDGenerator overrides the contest identifier source.
func WithIDGenerator(fn func() (string, error)) Option {
	return func(g *Gateway) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// WithObserver registers a phase observer.
func WithObserver(o Observer) Option {
	return func(g *Gateway) {
		g.observer = o
	}
}

// WithMetrics records phase outcomes and submission latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gateway) {
		g.metrics = m
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// New creates a Gateway.
func New(backend Backend, store KeyValueStore, opts ...Option) *Gateway {
	g := &Gateway{
		backend: backend,
		store:   store,
		creds:   noCredentials{},
		newID:   newContestID,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func newContestID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// Submit persists d under a fresh contest identifier, obtains an access
// token and stores it under TokenKey. Phases run strictly in order and a
// failure stops the pipeline; the returned error is a *SubmissionError.
func (g *Gateway) Submit(ctx context.Context, d draft.Draft) (ContestHandle, error) {
	started := g.now()
	defer func() {
		g.metrics.ObserveSubmission(g.now().Sub(started))
	}()

	contestID, err := g.newID()
	if err != nil {
		return ContestHandle{}, g.fail(ctx, "", PhasePersist, fmt.Errorf("generating contest id: %w", err))
	}

	logger.Debug("gateway: persisting contest %s", contestID)
	req := SaveDataRequest{
		ContestID:          contestID,
		AssessmentOverview: d.Overview(),
		TestConfiguration:  d.Configuration(),
	}
	if err := g.backend.SaveData(ctx, req); err != nil {
		return ContestHandle{}, g.fail(ctx, contestID, PhasePersist, err)
	}
	g.succeed(ctx, contestID, PhasePersist, OutcomePersisted)

	csrf, err := g.creds.CSRFToken(ctx)
	if err != nil {
		return ContestHandle{}, g.fail(ctx, contestID, PhaseIssueToken, fmt.Errorf("reading csrf token: %w", err))
	}

	logger.Debug("gateway: requesting token for contest %s", contestID)
	token, err := g.backend.StartContest(ctx, contestID, csrf)
	if err == nil && token == "" {
		err = errors.New("backend returned an empty token")
	}
	if err != nil {
		return ContestHandle{}, g.fail(ctx, contestID, PhaseIssueToken, err)
	}
	g.succeed(ctx, contestID, PhaseIssueToken, OutcomeIssued)

	if err := g.store.Put(ctx, TokenKey, token); err != nil {
		return ContestHandle{}, g.fail(ctx, contestID, PhaseStoreToken, err)
	}
	g.succeed(ctx, contestID, PhaseStoreToken, OutcomeStored)

	logger.Info("gateway: contest %s ready", contestID)
	return ContestHandle{
		ContestID: contestID,
		Token:     token,
		IssuedAt:  g.now(),
	}, nil
}

func (g *Gateway) succeed(ctx context.Context, contestID string, phase Phase, outcome Outcome) {
	g.metrics.RecordPhase(string(phase), metrics.OutcomeSuccess)
	g.notify(ctx, Event{ContestID: contestID, Phase: phase, Outcome: outcome, At: g.now()})
}

func (g *Gateway) fail(ctx context.Context, contestID string, phase Phase, err error) error {
	subErr := &SubmissionError{Phase: phase, ContestID: contestID, Err: err}
	if subErr.Orphaned() {
		logger.Warn("gateway: contest %s persisted without a usable token: %v", contestID, err)
	} else {
		logger.Error("gateway: %v", subErr)
	}
	g.metrics.RecordPhase(string(phase), metrics.OutcomeFailure)
	g.notify(ctx, Event{ContestID: contestID, Phase: phase, Outcome: OutcomeFailed, Err: err, At: g.now()})
	return subErr
}

func (g *Gateway) notify(ctx context.Context, ev Event) {
	if g.observer == nil {
		return
	}
	g.observer.Observe(ctx, ev)
}

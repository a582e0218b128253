// Package journal keeps an append-only record of contest submissions in the
// embedded JetStream broker, so contests left on the backend without a usable
// token can be listed later.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/logger"
	"github.com/mark3labs/contestr/internal/nats"
	"github.com/mark3labs/contestr/internal/wizard"
)

// Actions recorded on phase events, plus the completion action.
const (
	ActionPersisted = string(gateway.OutcomePersisted)
	ActionIssued    = string(gateway.OutcomeIssued)
	ActionStored    = string(gateway.OutcomeStored)
	ActionFailed    = string(gateway.OutcomeFailed)
	ActionCompleted = "completed"
)

// Event is one entry in the journal.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	ContestID string    `json:"contest_id"`
	Type      string    `json:"type"`
	Action    string    `json:"action"`
	Phase     string    `json:"phase,omitempty"`
	Error     string    `json:"error,omitempty"`
	Data      string    `json:"data,omitempty"`
}

// Journal publishes and replays contest events.
type Journal struct {
	js     jetstream.JetStream
	stream jetstream.Stream
	now    func() time.Time
}

// New binds to the event stream, creating it if needed.
func New(ctx context.Context, js jetstream.JetStream) (*Journal, error) {
	stream, err := nats.SetupStream(ctx, js)
	if err != nil {
		return nil, fmt.Errorf("setting up event stream: %w", err)
	}
	return &Journal{js: js, stream: stream, now: time.Now}, nil
}

// Publish appends an event.
func (j *Journal) Publish(ctx context.Context, event Event) error {
	if event.ContestID == "" {
		return fmt.Errorf("journal event without contest id")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = j.now()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := nats.SubjectForEvent(subjectToken(event.ContestID), event.Type)
	logger.Debug("journal: %s %s %s", event.ContestID, event.Type, event.Action)

	if _, err := j.js.Publish(ctx, subject, data); err != nil {
		logger.Error("journal: publish to %s: %v", subject, err)
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Observe records a gateway phase result. Publish failures are logged and
// dropped.
func (j *Journal) Observe(ctx context.Context, ev gateway.Event) {
	if ev.ContestID == "" {
		return
	}
	event := Event{
		Timestamp: ev.At,
		ContestID: ev.ContestID,
		Type:      nats.EventTypePhase,
		Action:    string(ev.Outcome),
		Phase:     string(ev.Phase),
	}
	if ev.Err != nil {
		event.Error = ev.Err.Error()
	}
	if err := j.Publish(ctx, event); err != nil {
		logger.Warn("journal: dropping %s event for %s: %v", ev.Outcome, ev.ContestID, err)
	}
}

// Finalize records the completed contest under its name.
func (j *Journal) Finalize(ctx context.Context, c wizard.Completion) error {
	return j.Publish(ctx, Event{
		Timestamp: c.CompletedAt,
		ContestID: c.Handle.ContestID,
		Type:      nats.EventTypeFinal,
		Action:    ActionCompleted,
		Data:      c.Final.Text(draft.SectionOverview, draft.FieldName),
	})
}

// subjectToken keeps identifiers from splitting the subject hierarchy.
func subjectToken(id string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(id)
}

// Contest is the state of one contest reduced from its events.
type Contest struct {
	ContestID   string    `json:"contest_id"`
	Name        string    `json:"name,omitempty"`
	Persisted   bool      `json:"persisted"`
	Issued      bool      `json:"issued"`
	Stored      bool      `json:"stored"`
	Completed   bool      `json:"completed"`
	FailedPhase string    `json:"failed_phase,omitempty"`
	LastError   string    `json:"last_error,omitempty"`
	FirstSeen   time.Time `json:"first_seen"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Orphaned reports whether the contest exists on the backend but the host
// holds no token for it.
func (c *Contest) Orphaned() bool {
	if !c.Persisted {
		return false
	}
	return !c.Issued || !c.Stored
}

// Apply reduces one event into the contest.
func (c *Contest) Apply(event Event) {
	if c.FirstSeen.IsZero() || event.Timestamp.Before(c.FirstSeen) {
		c.FirstSeen = event.Timestamp
	}
	if event.Timestamp.After(c.UpdatedAt) {
		c.UpdatedAt = event.Timestamp
	}

	switch event.Action {
	case ActionPersisted:
		c.Persisted = true
	case ActionIssued:
		c.Issued = true
	case ActionStored:
		c.Stored = true
		c.FailedPhase = ""
		c.LastError = ""
	case ActionFailed:
		c.FailedPhase = event.Phase
		c.LastError = event.Error
	case ActionCompleted:
		c.Completed = true
		if event.Data != "" {
			c.Name = event.Data
		}
	}
}

// LoadContests replays the stream and returns every contest, oldest first.
func (j *Journal) LoadContests(ctx context.Context) ([]*Contest, error) {
	consumer, err := j.stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		FilterSubject: nats.AllSubjects(),
		DeliverPolicy: jetstream.DeliverAllPolicy,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	contests := make(map[string]*Contest)

	const batchSize = 500
	malformed := 0
	for {
		msgs, err := consumer.FetchNoWait(batchSize)
		if err != nil {
			break
		}

		count := 0
		for msg := range msgs.Messages() {
			count++
			var event Event
			if err := json.Unmarshal(msg.Data(), &event); err != nil || event.ContestID == "" {
				malformed++
				_ = msg.Ack()
				continue
			}
			if event.ID == "" {
				if meta, err := msg.Metadata(); err == nil {
					event.ID = fmt.Sprintf("%d", meta.Sequence.Stream)
				}
			}

			c, ok := contests[event.ContestID]
			if !ok {
				c = &Contest{ContestID: event.ContestID}
				contests[event.ContestID] = c
			}
			c.Apply(event)
			_ = msg.Ack()
		}

		if count < batchSize {
			break
		}
	}

	if malformed > 0 {
		logger.Warn("journal: skipped %d malformed events", malformed)
	}

	out := make([]*Contest, 0, len(contests))
	for _, c := range contests {
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].FirstSeen.Equal(out[b].FirstSeen) {
			return out[a].ContestID < out[b].ContestID
		}
		return out[a].FirstSeen.Before(out[b].FirstSeen)
	})
	return out, nil
}

// Orphans lists contests persisted on the backend without a stored token.
func (j *Journal) Orphans(ctx context.Context) ([]*Contest, error) {
	contests, err := j.LoadContests(ctx)
	if err != nil {
		return nil, err
	}
	var orphans []*Contest
	for _, c := range contests {
		if c.Orphaned() {
			orphans = append(orphans, c)
		}
	}
	return orphans, nil
}

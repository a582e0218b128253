package nats

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName holds every contest lifecycle event.
	StreamName = "contestr_events"

	// KVBucket holds client-side values such as the last issued token.
	KVBucket = "contestr_client"

	subjectRoot = "contestr"

	// Event types
	EventTypePhase = "phase"
	EventTypeFinal = "final"
)

// SubjectForContest returns the wildcard subject for all events of a contest.
// Example: "contestr.<id>.>"
func SubjectForContest(contestID string) string {
	return fmt.Sprintf("%s.%s.>", subjectRoot, contestID)
}

// SubjectForEvent returns the subject for one event type of a contest.
// Example: "contestr.<id>.phase"
func SubjectForEvent(contestID, eventType string) string {
	return fmt.Sprintf("%s.%s.%s", subjectRoot, contestID, eventType)
}

// AllSubjects matches every contest event.
func AllSubjects() string {
	return subjectRoot + ".>"
}

// SetupStream creates or updates the event stream with 90-day retention.
func SetupStream(ctx context.Context, js jetstream.JetStream) (jetstream.Stream, error) {
	return js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{AllSubjects()},
		Storage:  jetstream.FileStorage,
		MaxAge:   90 * 24 * time.Hour,
	})
}

// SetupKV creates or updates the client key-value bucket.
func SetupKV(ctx context.Context, js jetstream.JetStream) (jetstream.KeyValue, error) {
	return js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  KVBucket,
		History: 5,
		Storage: jetstream.FileStorage,
	})
}

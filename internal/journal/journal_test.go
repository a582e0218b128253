package journal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mark3labs/contestr/internal/draft"
	"github.com/mark3labs/contestr/internal/gateway"
	"github.com/mark3labs/contestr/internal/nats"
	"github.com/mark3labs/contestr/internal/wizard"
)

func setupJournal(t *testing.T) *Journal {
	t.Helper()
	b, err := nats.Start(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	j, err := New(context.Background(), b.JS)
	require.NoError(t, err)
	return j
}

func observe(j *Journal, id string, phase gateway.Phase, outcome gateway.Outcome, err error, at time.Time) {
	j.Observe(context.Background(), gateway.Event{ContestID: id, Phase: phase, Outcome: outcome, Err: err, At: at})
}

func TestLoadContests_Reduce(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()
	t0 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// Fully successful contest
	observe(j, "ok-1", gateway.PhasePersist, gateway.OutcomePersisted, nil, t0)
	observe(j, "ok-1", gateway.PhaseIssueToken, gateway.OutcomeIssued, nil, t0.Add(time.Second))
	observe(j, "ok-1", gateway.PhaseStoreToken, gateway.OutcomeStored, nil, t0.Add(2*time.Second))

	// Persisted but the token request failed
	observe(j, "orphan-1", gateway.PhasePersist, gateway.OutcomePersisted, nil, t0.Add(time.Minute))
	observe(j, "orphan-1", gateway.PhaseIssueToken, gateway.OutcomeFailed, errors.New("HTTP 403"), t0.Add(time.Minute+time.Second))

	// Token issued but never stored locally
	observe(j, "orphan-2", gateway.PhasePersist, gateway.OutcomePersisted, nil, t0.Add(2*time.Minute))
	observe(j, "orphan-2", gateway.PhaseIssueToken, gateway.OutcomeIssued, nil, t0.Add(2*time.Minute))
	observe(j, "orphan-2", gateway.PhaseStoreToken, gateway.OutcomeFailed, errors.New("disk full"), t0.Add(2*time.Minute))

	// Never reached the backend
	observe(j, "lost-1", gateway.PhasePersist, gateway.OutcomeFailed, errors.New("HTTP 500"), t0.Add(3*time.Minute))

	// Events without an id are ignored
	observe(j, "", gateway.PhasePersist, gateway.OutcomeFailed, errors.New("no id"), t0)

	contests, err := j.LoadContests(ctx)
	require.NoError(t, err)
	require.Len(t, contests, 4)
	require.Equal(t, "ok-1", contests[0].ContestID)
	require.Equal(t, "lost-1", contests[3].ContestID)

	byID := map[string]*Contest{}
	for _, c := range contests {
		byID[c.ContestID] = c
	}

	require.False(t, byID["ok-1"].Orphaned())
	require.True(t, byID["ok-1"].Stored)
	require.Equal(t, t0, byID["ok-1"].FirstSeen)
	require.Equal(t, t0.Add(2*time.Second), byID["ok-1"].UpdatedAt)

	require.True(t, byID["orphan-1"].Orphaned())
	require.Equal(t, string(gateway.PhaseIssueToken), byID["orphan-1"].FailedPhase)
	require.Equal(t, "HTTP 403", byID["orphan-1"].LastError)

	require.True(t, byID["orphan-2"].Orphaned())
	require.False(t, byID["lost-1"].Orphaned())

	orphans, err := j.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 2)
	require.Equal(t, "orphan-1", orphans[0].ContestID)
	require.Equal(t, "orphan-2", orphans[1].ContestID)
}

func TestFinalize(t *testing.T) {
	j := setupJournal(t)
	ctx := context.Background()

	observe(j, "c-1", gateway.PhasePersist, gateway.OutcomePersisted, nil, time.Now())
	observe(j, "c-1", gateway.PhaseIssueToken, gateway.OutcomeIssued, nil, time.Now())
	observe(j, "c-1", gateway.PhaseStoreToken, gateway.OutcomeStored, nil, time.Now())

	d, err := draft.New().With(draft.SectionOverview, draft.FieldName, "Spring Final")
	require.NoError(t, err)
	require.NoError(t, j.Finalize(ctx, wizard.Completion{
		Handle: gateway.ContestHandle{ContestID: "c-1", Token: "tok"},
		Final:  d,
	}))

	contests, err := j.LoadContests(ctx)
	require.NoError(t, err)
	require.Len(t, contests, 1)
	require.True(t, contests[0].Completed)
	require.Equal(t, "Spring Final", contests[0].Name)
}

func TestPublish_RequiresContestID(t *testing.T) {
	j := setupJournal(t)
	require.Error(t, j.Publish(context.Background(), Event{Type: nats.EventTypePhase}))
}

func TestJournalAsGatewayObserver(t *testing.T) {
	j := setupJournal(t)

	var _ gateway.Observer = j

	gw := gateway.New(failingBackend{}, nil,
		gateway.WithObserver(j),
		gateway.WithIDGenerator(func() (string, error) { return "gw-1", nil }),
	)
	_, err := gw.Submit(context.Background(), draft.New())
	require.ErrorIs(t, err, gateway.ErrTokenIssuance)

	orphans, err := j.Orphans(context.Background())
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	require.Equal(t, "gw-1", orphans[0].ContestID)
}

type failingBackend struct{}

func (failingBackend) SaveData(context.Context, gateway.SaveDataRequest) error { return nil }

func (failingBackend) StartContest(context.Context, string, string) (string, error) {
	return "", errors.New("token service down")
}

func TestSubjectToken(t *testing.T) {
	require.Equal(t, "a_b_c", subjectToken("a.b*c"))
	require.Equal(t, "3f2a-11", subjectToken("3f2a-11"))
}

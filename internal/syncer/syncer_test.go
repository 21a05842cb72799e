package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

type fakeFeed struct {
	mu        sync.Mutex
	pages     map[string]grid.SeriesPage
	listErr   error
	scoreErr  map[string]error
	scores    map[string][]grid.TeamScore
	events    map[string][]engine.FeedEvent
	summaries map[string]grid.GameSummary

	scoreCalls map[string]int
	eventCalls map[string]int
}

func newFakeFeed() *fakeFeed {
	return &fakeFeed{
		pages:      map[string]grid.SeriesPage{},
		scoreErr:   map[string]error{},
		scores:     map[string][]grid.TeamScore{},
		events:     map[string][]engine.FeedEvent{},
		summaries:  map[string]grid.GameSummary{},
		scoreCalls: map[string]int{},
		eventCalls: map[string]int{},
	}
}

func (f *fakeFeed) ListSeries(_ context.Context, q grid.SeriesQuery) (grid.SeriesPage, error) {
	if f.listErr != nil {
		return grid.SeriesPage{}, f.listErr
	}
	return f.pages[q.After], nil
}

func (f *fakeFeed) SeriesScores(_ context.Context, id string) ([]grid.TeamScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreCalls[id]++
	if err := f.scoreErr[id]; err != nil {
		return nil, err
	}
	return f.scores[id], nil
}

func (f *fakeFeed) GameSummary(_ context.Context, id string, _ int) (grid.GameSummary, error) {
	return f.summaries[id], nil
}

func (f *fakeFeed) SeriesEvents(_ context.Context, id string) ([]engine.FeedEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.eventCalls[id]++
	return f.events[id], nil
}

func (f *fakeFeed) calls(id string) (scores, events int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scoreCalls[id], f.eventCalls[id]
}

func gridSeries(id string, finished bool) grid.Series {
	return grid.Series{
		ID:        id,
		Finished:  finished,
		StartTime: time.Date(2025, 2, 10, 18, 0, 0, 0, time.UTC),
		Teams: []grid.TeamInfo{
			{ID: "t1", Name: "Alpha", LogoURL: "a.png"},
			{ID: "t2", Name: "Beta", LogoURL: "b.png"},
		},
	}
}

var validatedLog = []engine.FeedEvent{
	{Type: engine.EvtTeamBanned, SentenceChunks: []engine.SentenceChunk{{Text: "Alpha"}, {Text: "banned"}, {Text: "Vi"}}},
	{Type: engine.EvtSeriesValidated},
}

func seededFeed() *fakeFeed {
	f := newFakeFeed()
	f.pages[""] = grid.SeriesPage{
		Series: []grid.Series{
			gridSeries("1", true),
			{ID: "solo", Teams: []grid.TeamInfo{{ID: "t1"}}},
		},
		HasNextPage: true,
		EndCursor:   "c1",
	}
	f.pages["c1"] = grid.SeriesPage{Series: []grid.Series{gridSeries("2", false)}}
	for _, id := range []string{"1", "2"} {
		f.scores[id] = []grid.TeamScore{{ID: "t1", Score: 2}, {ID: "t2", Score: 1}}
		f.events[id] = validatedLog
		f.summaries[id] = grid.GameSummary{
			GameVersion: "15.3.655.1234",
			Participants: []grid.Participant{
				{PlayerID: "p1", Name: "Faker", Champion: "Ahri", Stats: json.RawMessage(`{"kills":1}`)},
			},
		}
	}
	return f
}

type recorder struct {
	mu     sync.Mutex
	states []Status
}

func (r *recorder) Report(s Status) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

func TestSyncOnceStoresEverything(t *testing.T) {
	feed := seededFeed()
	st := store.NewMemory()
	s := New(st, zaptest.NewLogger(t), Config{Concurrency: 2})
	fixed := time.Date(2025, 2, 11, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return fixed }

	rec := &recorder{}
	status, err := s.SyncOnce(context.Background(), feed, rec)
	require.NoError(t, err)
	assert.Equal(t, StateDone, status.State)
	assert.Equal(t, 2, status.Page)
	assert.Equal(t, 2, status.Seen)
	assert.Equal(t, 2, status.Inserted)
	assert.Zero(t, status.Failed)

	ctx := context.Background()
	series, err := st.GetSeries(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "15.3.655.1234", series.Patch)
	require.True(t, series.HasScores())
	assert.Equal(t, 2, *series.Team1.Score)
	assert.Equal(t, "Alpha", series.Team1.Name)

	_, err = st.GetSeries(ctx, "solo")
	assert.ErrorIs(t, err, store.ErrNotFound)

	ps, err := st.Participants(ctx, "1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "Ahri", ps[0].ChampionName)

	events, err := st.EventLog(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, events, 2)

	last, err := st.Setting(ctx, LastSyncKey)
	require.NoError(t, err)
	assert.Equal(t, "2025-02-11T09:00:00Z", last)

	require.NotEmpty(t, rec.states)
	assert.Equal(t, StateRunning, rec.states[0].State)
	assert.Equal(t, StateDone, rec.states[len(rec.states)-1].State)
}

func TestSettledSeriesAreNotFetchedAgain(t *testing.T) {
	feed := seededFeed()
	s := New(store.NewMemory(), zaptest.NewLogger(t), Config{})

	_, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	status, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Skipped)

	scores, events := feed.calls("1")
	assert.Equal(t, 1, scores)
	assert.Equal(t, 1, events)

	// Unfinished series keep refreshing their log but scores are fetched once.
	scores, events = feed.calls("2")
	assert.Equal(t, 1, scores)
	assert.Equal(t, 2, events)
}

func TestForgetRefetchesSettled(t *testing.T) {
	feed := seededFeed()
	s := New(store.NewMemory(), nil, Config{})

	_, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	s.Forget()
	status, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	assert.Zero(t, status.Skipped)

	_, events := feed.calls("1")
	assert.Equal(t, 2, events)
}

func TestSeriesFailureIsCounted(t *testing.T) {
	feed := seededFeed()
	feed.scoreErr["2"] = errors.New("boom")
	st := store.NewMemory()
	s := New(st, zaptest.NewLogger(t), Config{})

	status, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	assert.Equal(t, StateDone, status.State)
	assert.Equal(t, 1, status.Failed)

	series, err := st.GetSeries(context.Background(), "2")
	require.NoError(t, err)
	assert.False(t, series.HasScores())
}

func TestTooFewScoresFails(t *testing.T) {
	feed := seededFeed()
	feed.scores["1"] = []grid.TeamScore{{ID: "t1", Score: 1}}
	s := New(store.NewMemory(), nil, Config{})

	status, err := s.SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Failed)
}

func TestMissingGameVersionIsLatest(t *testing.T) {
	feed := seededFeed()
	feed.summaries["1"] = grid.GameSummary{}
	st := store.NewMemory()
	_, err := New(st, nil, Config{}).SyncOnce(context.Background(), feed, nil)
	require.NoError(t, err)

	series, err := st.GetSeries(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, "latest", series.Patch)
}

func TestListingFailureAborts(t *testing.T) {
	feed := seededFeed()
	feed.listErr = grid.ErrMaxRetries
	rec := &recorder{}

	status, err := New(store.NewMemory(), zaptest.NewLogger(t), Config{}).SyncOnce(context.Background(), feed, rec)
	require.ErrorIs(t, err, grid.ErrMaxRetries)
	assert.Equal(t, StateFailed, status.State)
	assert.NotEmpty(t, status.Error)
	assert.Equal(t, StateFailed, rec.states[len(rec.states)-1].State)
}

func TestRunStopsWithContext(t *testing.T) {
	feed := seededFeed()
	s := New(store.NewMemory(), zaptest.NewLogger(t), Config{Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	first := make(chan struct{})
	var once sync.Once
	go func() {
		done <- s.Run(ctx, feed, ReporterFunc(func(st Status) {
			if st.State == StateDone {
				once.Do(func() { close(first) })
			}
		}))
	}()

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("first sync never finished")
	}
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestStatusRunning(t *testing.T) {
	assert.True(t, Status{State: StateRunning, Page: 2}.Running())
	for _, s := range []State{StateIdle, StateDone, StateFailed} {
		assert.False(t, Status{State: s}.Running(), s)
	}
}

func TestReportersFanOut(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	Reporters{a, nil, b}.Report(Status{State: StateIdle})
	assert.Len(t, a.states, 1)
	assert.Len(t, b.states, 1)
}

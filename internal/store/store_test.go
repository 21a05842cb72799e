package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemory())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "scrims.sqlite"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		fn(t, s)
	})
	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			t.Skip("DATABASE_URL not set")
		}
		s, err := OpenPostgres(dsn)
		require.NoError(t, err)
		t.Cleanup(func() { _ = s.Close() })
		_, err = s.Clear(context.Background())
		require.NoError(t, err)
		fn(t, s)
	})
}

func testSeries(id string) Series {
	start := time.Date(2025, 2, 10, 18, 0, 0, 0, time.UTC)
	return Series{
		ID:        id,
		StartTime: &start,
		Team1:     Side{ID: "t1", Name: "Alpha", Logo: "alpha.png"},
		Team2:     Side{ID: "t2", Name: "Beta", Logo: "beta.png"},
	}
}

func TestUpsertSeries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()

		got, change, err := s.UpsertSeries(ctx, testSeries("100"))
		require.NoError(t, err)
		assert.Equal(t, Inserted, change)
		assert.Nil(t, got.Team1.Score)

		_, change, err = s.UpsertSeries(ctx, testSeries("100"))
		require.NoError(t, err)
		assert.Equal(t, Unchanged, change)

		require.NoError(t, s.UpdateResult(ctx, "100", "15.4.1", 2, 1))

		next := testSeries("100")
		next.Finished = true
		got, change, err = s.UpsertSeries(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, Updated, change)
		assert.True(t, got.Finished)

		stored, err := s.GetSeries(ctx, "100")
		require.NoError(t, err)
		assert.True(t, stored.Finished)
		assert.Equal(t, "15.4.1", stored.Patch)
		require.True(t, stored.HasScores())
		assert.Equal(t, 2, *stored.Team1.Score)
		assert.Equal(t, 1, *stored.Team2.Score)
		require.NotNil(t, stored.StartTime)
		assert.True(t, stored.StartTime.Equal(*next.StartTime))
	})
}

func TestUpsertSeriesPicksUpTeamDetails(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, _, err := s.UpsertSeries(ctx, testSeries("200"))
		require.NoError(t, err)

		renamed := testSeries("200")
		renamed.Team2.Name = "Beta Academy"
		_, change, err := s.UpsertSeries(ctx, renamed)
		require.NoError(t, err)
		assert.Equal(t, Updated, change)

		relogo := renamed
		relogo.Team1.Logo = "alpha-2025.png"
		_, change, err = s.UpsertSeries(ctx, relogo)
		require.NoError(t, err)
		assert.Equal(t, Updated, change)

		stored, err := s.GetSeries(ctx, "200")
		require.NoError(t, err)
		assert.Equal(t, "Beta Academy", stored.Team2.Name)
		assert.Equal(t, "alpha-2025.png", stored.Team1.Logo)
	})
}

func TestGetSeriesMissing(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		_, err := s.GetSeries(context.Background(), "nope")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.ErrorIs(t, s.UpdateResult(context.Background(), "nope", "15.1.1", 1, 0), ErrNotFound)
	})
}

func TestListSeries(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		for _, id := range []string{"3", "1", "2"} {
			_, _, err := s.UpsertSeries(ctx, testSeries(id))
			require.NoError(t, err)
		}
		list, err := s.ListSeries(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, "1", list[0].ID)
		assert.Equal(t, "3", list[2].ID)
	})
}

func TestParticipants(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		ps := []Participant{
			{PlayerID: "p1", PlayerName: "Faker", ChampionName: "Ahri", Stats: json.RawMessage(`{"kills":3}`)},
			{PlayerID: "p2", PlayerName: "Keria", ChampionName: "Rell"},
		}
		n, err := s.AddParticipants(ctx, "100", ps)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		n, err = s.AddParticipants(ctx, "100", ps)
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		got, err := s.Participants(ctx, "100")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "100", got[0].SeriesID)
		assert.Equal(t, "Ahri", got[0].ChampionName)
		assert.JSONEq(t, `{"kills":3}`, string(got[0].Stats))
	})
}

func TestEventLogs(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.EventLog(ctx, "100")
		require.ErrorIs(t, err, ErrNotFound)

		events := []engine.FeedEvent{{
			Type: engine.EvtTeamBanned,
			SentenceChunks: []engine.SentenceChunk{
				{Text: "Alpha"}, {Text: "banned"}, {Text: "Ahri"},
			},
		}}
		require.NoError(t, s.SaveEventLog(ctx, "100", events))
		require.NoError(t, s.SaveEventLog(ctx, "100", append(events, events[0])))

		got, err := s.EventLog(ctx, "100")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "Ahri", got[1].SentenceChunks[2].Text)
	})
}

func TestSearch(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, _, err := s.UpsertSeries(ctx, testSeries("100"))
		require.NoError(t, err)
		_, err = s.AddParticipants(ctx, "100", []Participant{
			{PlayerID: "p1", PlayerName: "Faker", ChampionName: "Ahri"},
			{PlayerID: "p2", PlayerName: "Fakeout", ChampionName: "Rell"},
			{PlayerID: "p3", PlayerName: "Zeus", ChampionName: "Jax"},
		})
		require.NoError(t, err)

		players, err := s.SearchPlayers(ctx, "fake", 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"Fakeout", "Faker"}, players)

		players, err = s.SearchPlayers(ctx, "", 1)
		require.NoError(t, err)
		assert.Len(t, players, 1)

		teams, err := s.SearchTeams(ctx, "alp", 0)
		require.NoError(t, err)
		require.Len(t, teams, 1)
		assert.Equal(t, TeamRef{ID: "t1", Name: "Alpha", Logo: "alpha.png"}, teams[0])
	})
}

func TestSettings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, err := s.Setting(ctx, "filterConfig")
		require.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, s.SetSetting(ctx, "filterConfig", `{"a":1}`))
		require.NoError(t, s.SetSetting(ctx, "filterConfig", `{"a":2}`))
		v, err := s.Setting(ctx, "filterConfig")
		require.NoError(t, err)
		assert.Equal(t, `{"a":2}`, v)
	})
}

func TestClearKeepsSettings(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		_, _, err := s.UpsertSeries(ctx, testSeries("100"))
		require.NoError(t, err)
		_, err = s.AddParticipants(ctx, "100", []Participant{{PlayerID: "p1", PlayerName: "Faker", ChampionName: "Ahri"}})
		require.NoError(t, err)
		require.NoError(t, s.SaveEventLog(ctx, "100", nil))
		require.NoError(t, s.SetSetting(ctx, "lastSync", "2025-02-10T18:00:00Z"))

		st, err := s.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, ClearStats{Series: 1, Participants: 1, EventLogs: 1}, st)

		list, err := s.ListSeries(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		v, err := s.Setting(ctx, "lastSync")
		require.NoError(t, err)
		assert.Equal(t, "2025-02-10T18:00:00Z", v)
	})
}

func TestOpen(t *testing.T) {
	s, err := Open("memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, s)

	_, err = Open("postgres", "", "")
	assert.Error(t, err)

	_, err = Open("mongo", "", "")
	assert.Error(t, err)
}

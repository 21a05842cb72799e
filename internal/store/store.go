// Package store persists synced scrim data: series, participants, draft event
// logs and a few user settings.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

var ErrNotFound = errors.New("store: not found")

// Side is one team of a series. Score stays nil until the series state feed
// reported it.
type Side struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Logo  string `json:"logo"`
	Score *int   `json:"score"`
}

type Series struct {
	ID        string     `json:"id"`
	Finished  bool       `json:"finished"`
	StartTime *time.Time `json:"startTime"`
	Patch     string     `json:"patch"`
	Team1     Side       `json:"team1"`
	Team2     Side       `json:"team2"`
}

// HasScores reports whether both scores are known.
func (s Series) HasScores() bool {
	return s.Team1.Score != nil && s.Team2.Score != nil
}

// sameDetails compares the fields a sync is allowed to overwrite.
func (s Series) sameDetails(o Series) bool {
	return s.Finished == o.Finished &&
		timeEqual(s.StartTime, o.StartTime) &&
		s.Team1.sameTeam(o.Team1) &&
		s.Team2.sameTeam(o.Team2)
}

func (s Side) sameTeam(o Side) bool {
	return s.ID == o.ID && s.Name == o.Name && s.Logo == o.Logo
}

func timeEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// withDetails copies the sync managed fields of o onto s, keeping scores and patch.
func (s Series) withDetails(o Series) Series {
	s.Finished = o.Finished
	s.StartTime = o.StartTime
	s.Team1.ID, s.Team1.Name, s.Team1.Logo = o.Team1.ID, o.Team1.Name, o.Team1.Logo
	s.Team2.ID, s.Team2.Name, s.Team2.Logo = o.Team2.ID, o.Team2.Name, o.Team2.Logo
	return s
}

type Participant struct {
	SeriesID     string          `json:"seriesId"`
	PlayerID     string          `json:"playerId"`
	PlayerName   string          `json:"playerName"`
	ChampionName string          `json:"championName"`
	Stats        json.RawMessage `json:"stats,omitempty"`
}

type TeamRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Logo string `json:"logo"`
}

// Change says what UpsertSeries did.
type Change int

const (
	Unchanged Change = iota
	Inserted
	Updated
)

func (c Change) String() string {
	switch c {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	default:
		return "unchanged"
	}
}

type ClearStats struct {
	Series       int64 `json:"series"`
	Participants int64 `json:"participants"`
	EventLogs    int64 `json:"eventLogs"`
}

type Store interface {
	// UpsertSeries inserts a new series or refreshes the details of a known
	// one. Scores and patch are never touched. It returns the stored row.
	UpsertSeries(ctx context.Context, s Series) (Series, Change, error)
	GetSeries(ctx context.Context, id string) (Series, error)
	ListSeries(ctx context.Context) ([]Series, error)
	UpdateResult(ctx context.Context, id, patch string, score1, score2 int) error

	// AddParticipants stores participants not yet known for their series and
	// player, returning how many were new.
	AddParticipants(ctx context.Context, seriesID string, ps []Participant) (int, error)
	Participants(ctx context.Context, seriesID string) ([]Participant, error)

	SaveEventLog(ctx context.Context, seriesID string, events []engine.FeedEvent) error
	EventLog(ctx context.Context, seriesID string) ([]engine.FeedEvent, error)

	SearchPlayers(ctx context.Context, query string, limit int) ([]string, error)
	SearchTeams(ctx context.Context, query string, limit int) ([]TeamRef, error)

	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	Clear(ctx context.Context) (ClearStats, error)
	Close() error
}

const defaultSearchLimit = 50

func searchLimit(n int) int {
	if n <= 0 {
		return defaultSearchLimit
	}
	return n
}

func encodeLog(events []engine.FeedEvent) (string, error) {
	raw, err := engine.EncodeEventLog(events)
	if err != nil {
		return "", fmt.Errorf("store: encode event log: %w", err)
	}
	return string(raw), nil
}

func decodeLog(raw string) ([]engine.FeedEvent, error) {
	events, err := engine.DecodeEventLog([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return events, nil
}

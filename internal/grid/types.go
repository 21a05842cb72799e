package grid

import (
	"encoding/json"
	"time"
)

type TeamInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	LogoURL string `json:"logoUrl"`
}

type Series struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"startTimeScheduled"`
	Finished  bool       `json:"finished"`
	Teams     []TeamInfo `json:"teams"`
}

type SeriesQuery struct {
	First int
	After string
	Types []string
}

type SeriesPage struct {
	Series      []Series
	HasNextPage bool
	EndCursor   string
}

type PlayerInfo struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
}

type TeamScore struct {
	ID      string `json:"id"`
	Score   int    `json:"score"`
	Players []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"players"`
}

// Participant is one player line of a game's end state summary. Stats keeps
// the whole raw object.
type Participant struct {
	PlayerID string          `json:"playerId"`
	Name     string          `json:"name"`
	Champion string          `json:"champion"`
	TeamID   int             `json:"teamId"`
	Stats    json.RawMessage `json:"stats"`
}

type GameSummary struct {
	GameVersion  string        `json:"gameVersion"`
	Participants []Participant `json:"participants"`
}

type Organisation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

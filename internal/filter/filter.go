// Package filter narrows stored series down to what the review screen asked for.
package filter

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

type Mode string

const (
	ModeAny  Mode = "Any"
	ModeOnly Mode = "Only"
)

func (m Mode) only() bool { return strings.EqualFold(string(m), string(ModeOnly)) }

type DateRange struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// Selection is one picked option of a multi-select. Champion selections carry
// the display name in Champ.
type Selection struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Champ string `json:"champ,omitempty"`
}

func (s Selection) champion() string {
	if s.Champ != "" {
		return s.Champ
	}
	return s.Value
}

type Config struct {
	DateRange       DateRange   `json:"dateRange"`
	Wins            bool        `json:"wins"`
	Losses          bool        `json:"losses"`
	Patch           string      `json:"patch"`
	ChampionsPicked []Selection `json:"championsPicked"`
	ChampPickedMode Mode        `json:"champPickedMode"`
	ChampionsBanned []Selection `json:"championsBanned"`
	ChampBannedMode Mode        `json:"champBannedMode"`
	Teams           []Selection `json:"teams"`
	Players         []Selection `json:"players"`
}

// WantsResult reports whether the config needs to know which team is ours.
func (c Config) WantsResult() bool { return c.Wins || c.Losses }

// Candidate is a stored series with what the filters look at.
type Candidate struct {
	Series       store.Series        `json:"series"`
	Participants []store.Participant `json:"participants"`
	Events       []engine.FeedEvent  `json:"-"`
	HasLog       bool                `json:"-"`
}

// Apply keeps the candidates matching cfg, newest first. Series without a
// start time go last. myTeamID may be empty when it could not be resolved, in
// which case the wins and losses checks are skipped.
func Apply(cfg Config, candidates []Candidate, myTeamID string) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if ok, _ := Match(cfg, c, myTeamID); ok {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Candidate) int {
		at, bt := a.Series.StartTime, b.Series.StartTime
		switch {
		case at != nil && bt != nil:
			return bt.Compare(*at)
		case at != nil:
			return -1
		case bt != nil:
			return 1
		}
		return 0
	})
	return out
}

// Match runs the filters in order and names the first one that rejected c.
func Match(cfg Config, c Candidate, myTeamID string) (bool, string) {
	s := c.Series

	if cfg.Patch != "" && !PatchMatches(s.Patch, cfg.Patch) {
		return false, "patch"
	}

	if cfg.DateRange.From != nil || cfg.DateRange.To != nil {
		if s.StartTime == nil {
			return false, "no start time"
		}
		if cfg.DateRange.From != nil && s.StartTime.Before(*cfg.DateRange.From) {
			return false, "before date range"
		}
		if cfg.DateRange.To != nil && s.StartTime.After(*cfg.DateRange.To) {
			return false, "after date range"
		}
	}

	if cfg.WantsResult() {
		if s.Team1.ID == "" || s.Team2.ID == "" || !s.HasScores() {
			return false, "missing result"
		}
		if myTeamID != "" && !resultMatches(cfg, s, myTeamID) {
			return false, "result"
		}
	}

	if len(cfg.Teams) > 0 {
		names := values(cfg.Teams)
		if !slices.Contains(names, s.Team1.Name) && !slices.Contains(names, s.Team2.Name) {
			return false, "teams"
		}
	}

	if len(cfg.ChampionsPicked) > 0 {
		var played []string
		for _, p := range c.Participants {
			played = append(played, p.ChampionName)
		}
		if !containsChampions(played, cfg.ChampionsPicked, cfg.ChampPickedMode) {
			return false, "champions picked"
		}
	}

	if len(cfg.ChampionsBanned) > 0 && c.HasLog {
		banned := engine.BannedChampions(c.Events)
		if !containsChampions(banned, cfg.ChampionsBanned, cfg.ChampBannedMode) {
			return false, "champions banned"
		}
	}

	if len(cfg.Players) > 0 {
		names := values(cfg.Players)
		found := slices.ContainsFunc(c.Participants, func(p store.Participant) bool {
			return slices.Contains(names, p.PlayerName)
		})
		if !found {
			return false, "players"
		}
	}
	return true, ""
}

// resultMatches treats a drawn series as a win.
func resultMatches(cfg Config, s store.Series, myTeamID string) bool {
	var mine, theirs int
	switch myTeamID {
	case s.Team1.ID:
		mine, theirs = *s.Team1.Score, *s.Team2.Score
	case s.Team2.ID:
		mine, theirs = *s.Team2.Score, *s.Team1.Score
	default:
		return false
	}
	won := mine >= theirs
	return (cfg.Wins && won) || (cfg.Losses && !won)
}

func containsChampions(have []string, want []Selection, mode Mode) bool {
	has := func(sel Selection) bool { return slices.Contains(have, sel.champion()) }
	if mode.only() {
		return !slices.ContainsFunc(want, func(sel Selection) bool { return !has(sel) })
	}
	return slices.ContainsFunc(want, has)
}

func values(sels []Selection) []string {
	out := make([]string, len(sels))
	for i, s := range sels {
		out[i] = s.Value
	}
	return out
}

// PatchMatches compares the major and minor segments of two patch strings.
// When either side has fewer than two segments only the shared ones count.
// Segments that are not numbers compare as 0.
func PatchMatches(seriesPatch, filterPatch string) bool {
	a, b := patchParts(seriesPatch), patchParts(filterPatch)
	n := min(len(a), len(b), 2)
	for i := range n {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func patchParts(s string) []int {
	parts := strings.Split(s, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		out[i], _ = strconv.Atoi(p)
	}
	return out
}

package engine

import (
	"errors"
	"slices"
)

var ErrMalformedLog = errors.New("malformed event log")

type Team string

const (
	TeamBlue Team = "blue"
	TeamRed  Team = "red"
)

// side maps a team onto its array index in DraftRecord.
func (t Team) side() (int, bool) {
	switch t {
	case TeamBlue:
		return 0, true
	case TeamRed:
		return 1, true
	default:
		return 0, false
	}
}

type Action string

const (
	ActionBan  Action = "ban"
	ActionPick Action = "pick"
)

type Phase string

const (
	PhaseBan1  Phase = "ban1"
	PhasePick1 Phase = "pick1"
	PhaseBan2  Phase = "ban2"
	PhasePick2 Phase = "pick2"
	PhaseDone  Phase = "done"
)

type TurnStep struct {
	Team   Team
	Action Action
}

// PickStep is one entry of the pick schedule: Team locks Count champions
// into its next pick slot.
type PickStep struct {
	Team  Team
	Count int
}

type EventType string

const (
	EvtTeamBanned      EventType = "team-banned-character"
	EvtTeamPicked      EventType = "team-picked-character"
	EvtSeriesValidated EventType = "grid-validated-series"
)

const (
	VerbBanned = "banned"
	VerbPicked = "picked"
)

type SentenceChunk struct {
	Text          string `json:"text"`
	Strikethrough bool   `json:"strikethrough"`
}

// FeedEvent is a single entry of the GRID event explorer feed. Only the first
// three sentence chunks carry meaning: team label, verb, champion.
type FeedEvent struct {
	Type           EventType       `json:"type"`
	SentenceChunks []SentenceChunk `json:"sentenceChunks"`
}

// DraftEvent is a FeedEvent decomposed into its positional parts.
type DraftEvent struct {
	Label    string `json:"label"`
	Verb     string `json:"verb"`
	Champion string `json:"champion"`
}

func (e FeedEvent) chunk(i int) string {
	if i < len(e.SentenceChunks) {
		return e.SentenceChunks[i].Text
	}
	return ""
}

// Draft splits the event sentence into label, verb and champion. Missing
// chunks come back empty.
func (e FeedEvent) Draft() DraftEvent {
	return DraftEvent{Label: e.chunk(0), Verb: e.chunk(1), Champion: e.chunk(2)}
}

// Action reports the draft action the verb describes. ok is false for any verb
// other than "banned" or "picked".
func (e DraftEvent) Action() (a Action, ok bool) {
	switch e.Verb {
	case VerbBanned:
		return ActionBan, true
	case VerbPicked:
		return ActionPick, true
	default:
		return "", false
	}
}

const (
	firstBanCap = 3
	pickSlots   = 4
)

// DraftRecord is the reconstructed ban/pick layout of one game. Bans are
// indexed by side and ban phase, picks by side and the side's own pick slot.
type DraftRecord struct {
	bans  [2][2][]string
	picks [2][pickSlots][]string
}

// NewDraftRecord returns a record with every slot present and empty.
func NewDraftRecord() DraftRecord {
	var r DraftRecord
	for s := range r.bans {
		for p := range r.bans[s] {
			r.bans[s][p] = []string{}
		}
		for p := range r.picks[s] {
			r.picks[s][p] = []string{}
		}
	}
	return r
}

// Ban returns the bans of team in ban phase 1 or 2.
func (r DraftRecord) Ban(team Team, phase int) []string {
	s, ok := team.side()
	if !ok || phase < 1 || phase > 2 {
		return nil
	}
	return slices.Clone(r.bans[s][phase-1])
}

// Pick returns the champions team locked into its n-th pick slot (1-based).
func (r DraftRecord) Pick(team Team, n int) []string {
	s, ok := team.side()
	if !ok || n < 1 || n > pickSlots {
		return nil
	}
	return slices.Clone(r.picks[s][n-1])
}

// Picks returns every pick of team in slot order.
func (r DraftRecord) Picks(team Team) []string {
	s, ok := team.side()
	if !ok {
		return nil
	}
	out := []string{}
	for _, slot := range r.picks[s] {
		out = append(out, slot...)
	}
	return out
}

// Bans returns every ban of team, first phase then second.
func (r DraftRecord) Bans(team Team) []string {
	s, ok := team.side()
	if !ok {
		return nil
	}
	return slices.Concat([]string{}, r.bans[s][0], r.bans[s][1])
}

// Empty reports whether no slot holds a champion.
func (r DraftRecord) Empty() bool {
	for s := range r.bans {
		for _, b := range r.bans[s] {
			if len(b) > 0 {
				return false
			}
		}
		for _, p := range r.picks[s] {
			if len(p) > 0 {
				return false
			}
		}
	}
	return true
}

func (r *DraftRecord) addBan(side, phase int, champion string) {
	r.bans[side][phase] = append(r.bans[side][phase], champion)
}

func (r *DraftRecord) addPick(side, slot int, champion string) int {
	r.picks[side][slot] = append(r.picks[side][slot], champion)
	return len(r.picks[side][slot])
}

package engine

import "slices"

func ContainsEvent(events []FeedEvent, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

func DerivePhase(cursor int) Phase {
	if cursor >= len(GameOrder) {
		return PhaseDone
	} else if cursor >= 0 && cursor <= 5 {
		return PhaseBan1
	} else if cursor > 5 && cursor <= 11 {
		return PhasePick1
	} else if cursor > 11 && cursor <= 15 {
		return PhaseBan2
	} else {
		return PhasePick2
	}
}

type TimelineStep struct {
	Index    int    `json:"index"`
	Phase    Phase  `json:"phase"`
	Team     Team   `json:"team"`
	Action   Action `json:"action"`
	Champion string `json:"champion"` // empty when the feed never filled the turn
}

// Timeline lays a record onto GameOrder so it can be shown turn by turn.
// Bans beyond a side's second-phase turns are not shown.
func Timeline(r DraftRecord) []TimelineStep {
	var (
		bans      [2][2]int
		picks     [2]int
		flatPicks = [2][]string{r.Picks(TeamBlue), r.Picks(TeamRed)}
		out       = make([]TimelineStep, 0, len(GameOrder))
	)

	for i, step := range GameOrder {
		phase := DerivePhase(i)
		s, _ := step.Team.side()

		var champ string
		switch step.Action {
		case ActionBan:
			p := 0
			if phase == PhaseBan2 {
				p = 1
			}
			if list := r.bans[s][p]; bans[s][p] < len(list) {
				champ = list[bans[s][p]]
				bans[s][p]++
			}
		case ActionPick:
			if picks[s] < len(flatPicks[s]) {
				champ = flatPicks[s][picks[s]]
				picks[s]++
			}
		}

		out = append(out, TimelineStep{Index: i, Phase: phase, Team: step.Team, Action: step.Action, Champion: champ})
	}
	return out
}

// Conflicts lists champions that appear more than once across the record,
// which a real draft never allows.
func Conflicts(r DraftRecord) []string {
	seen := map[string]int{}
	for _, slot := range r.Named() {
		for _, c := range slot.Champions {
			seen[c]++
		}
	}

	var dup []string
	for c, n := range seen {
		if n > 1 {
			dup = append(dup, c)
		}
	}
	slices.Sort(dup)
	return dup
}

// BannedChampions returns the champion of every ban event in the log.
func BannedChampions(events []FeedEvent) []string {
	return championsOf(events, EvtTeamBanned)
}

func championsOf(events []FeedEvent, t EventType) []string {
	var out []string
	for _, e := range events {
		if e.Type != t || len(e.SentenceChunks) < 3 {
			continue
		}
		out = append(out, e.SentenceChunks[2].Text)
	}
	return out
}

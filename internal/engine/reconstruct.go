package engine

import "slices"

// Resolution records how feed labels were mapped onto sides while a record
// was rebuilt, plus everything the pass had to discard.
type Resolution struct {
	BlueLabel     string       `json:"blueLabel"`
	RedLabel      string       `json:"redLabel"`
	UnknownLabels []string     `json:"unknownLabels,omitempty"`
	DroppedPicks  []DraftEvent `json:"droppedPicks,omitempty"`
	Ignored       int          `json:"ignored"`
}

// Suspect reports whether the feed looked off: a third team label showed up
// or picks could not be placed on the schedule.
func (res Resolution) Suspect() bool {
	return len(res.UnknownLabels) > 0 || len(res.DroppedPicks) > 0
}

func (res *Resolution) noteUnknown(label string) {
	if label == "" || slices.Contains(res.UnknownLabels, label) {
		return
	}
	res.UnknownLabels = append(res.UnknownLabels, label)
}

// labels is the lazy side assignment: the first label seen is blue, the first
// different one is red, and nothing changes after that.
type labels struct {
	blue, red string
}

func (l *labels) observe(label string) {
	switch {
	case label == "":
	case l.blue == "":
		l.blue = label
	case l.red == "" && label != l.blue:
		l.red = label
	}
}

func (l labels) team(label string) (Team, bool) {
	switch {
	case label == "":
		return "", false
	case label == l.blue:
		return TeamBlue, true
	case label == l.red:
		return TeamRed, true
	default:
		return "", false
	}
}

// TrimValidated drops everything up to and including the last
// grid-validated-series marker. Without a marker the input is returned as is.
func TrimValidated(events []FeedEvent) []FeedEvent {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Type == EvtSeriesValidated {
			return events[i+1:]
		}
	}
	return events
}

// Reconstruct rebuilds the draft from events in feed order. It never fails:
// events it cannot place are skipped.
func Reconstruct(events []FeedEvent) DraftRecord {
	r, _ := ReconstructDetailed(events)
	return r
}

// ReconstructGame is Reconstruct applied after TrimValidated, which is how a
// stored series event log is read.
func ReconstructGame(events []FeedEvent) (DraftRecord, Resolution) {
	return ReconstructDetailed(TrimValidated(events))
}

// ReconstructDetailed is Reconstruct that also reports the label resolution
// and the events that were not attributed. Events with an unknown verb, no team
// label or no champion are counted in Ignored and never claim a side.
func ReconstructDetailed(events []FeedEvent) (DraftRecord, Resolution) {
	var (
		r      = NewDraftRecord()
		res    Resolution
		sides  labels
		cursor int
		slot   [2]int
	)

	for _, fe := range events {
		ev := fe.Draft()
		action, ok := ev.Action()
		if !ok || ev.Label == "" || ev.Champion == "" {
			res.Ignored++
			continue
		}

		sides.observe(ev.Label)
		team, known := sides.team(ev.Label)
		if !known {
			res.noteUnknown(ev.Label)
		}

		switch action {
		case ActionBan:
			routeBan(&r, team, known, ev.Champion)

		case ActionPick:
			if cursor >= len(PickSchedule) || !known || PickSchedule[cursor].Team != team {
				res.DroppedPicks = append(res.DroppedPicks, ev)
				continue
			}
			s, _ := team.side()
			if r.addPick(s, slot[s], ev.Champion) >= PickSchedule[cursor].Count {
				slot[s]++
				cursor++
			}
		}
	}

	res.BlueLabel, res.RedLabel = sides.blue, sides.red
	return r, res
}

// routeBan fills a side's first three bans before spilling into its second
// phase. A label that is neither side falls through to red's second phase.
func routeBan(r *DraftRecord, team Team, known bool, champion string) {
	const blue, red = 0, 1
	switch {
	case known && team == TeamBlue && len(r.bans[blue][0]) < firstBanCap:
		r.addBan(blue, 0, champion)
	case known && team == TeamRed && len(r.bans[red][0]) < firstBanCap:
		r.addBan(red, 0, champion)
	case known && team == TeamBlue:
		r.addBan(blue, 1, champion)
	default:
		r.addBan(red, 1, champion)
	}
}

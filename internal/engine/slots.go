package engine

import "encoding/json"

type slotRef struct {
	name   string
	action Action
	team   Team
	n      int
}

// slotLayout is the display order of the twelve record slots.
var slotLayout = []slotRef{
	{"firstBanBlue", ActionBan, TeamBlue, 1},
	{"firstBanRed", ActionBan, TeamRed, 1},
	{"firstPickBlue1", ActionPick, TeamBlue, 1},
	{"firstPickRed1", ActionPick, TeamRed, 1},
	{"firstPickRed2", ActionPick, TeamRed, 2},
	{"firstPickBlue2", ActionPick, TeamBlue, 2},
	{"secondBanBlue", ActionBan, TeamBlue, 2},
	{"secondBanRed", ActionBan, TeamRed, 2},
	{"finalPickBlue", ActionPick, TeamBlue, 3},
	{"finalPickRed1", ActionPick, TeamRed, 3},
	{"finalPickRed2", ActionPick, TeamRed, 4},
	{"finalPickBlue2", ActionPick, TeamBlue, 4},
}

type NamedSlot struct {
	Name      string
	Team      Team
	Action    Action
	Champions []string
}

// SlotNames returns the twelve slot names in display order.
func SlotNames() []string {
	names := make([]string, len(slotLayout))
	for i, s := range slotLayout {
		names[i] = s.name
	}
	return names
}

// Named returns every slot of the record in display order.
func (r DraftRecord) Named() []NamedSlot {
	out := make([]NamedSlot, 0, len(slotLayout))
	for _, ref := range slotLayout {
		out = append(out, NamedSlot{Name: ref.name, Team: ref.team, Action: ref.action, Champions: r.get(ref)})
	}
	return out
}

func (r DraftRecord) get(ref slotRef) []string {
	if ref.action == ActionBan {
		return r.Ban(ref.team, ref.n)
	}
	return r.Pick(ref.team, ref.n)
}

// DraftSlots is the wire shape of a DraftRecord.
type DraftSlots struct {
	FirstBanBlue   []string `json:"firstBanBlue"`
	FirstBanRed    []string `json:"firstBanRed"`
	FirstPickBlue1 []string `json:"firstPickBlue1"`
	FirstPickRed1  []string `json:"firstPickRed1"`
	FirstPickRed2  []string `json:"firstPickRed2"`
	FirstPickBlue2 []string `json:"firstPickBlue2"`
	SecondBanBlue  []string `json:"secondBanBlue"`
	SecondBanRed   []string `json:"secondBanRed"`
	FinalPickBlue  []string `json:"finalPickBlue"`
	FinalPickRed1  []string `json:"finalPickRed1"`
	FinalPickRed2  []string `json:"finalPickRed2"`
	FinalPickBlue2 []string `json:"finalPickBlue2"`
}

func (r DraftRecord) Slots() DraftSlots {
	return DraftSlots{
		FirstBanBlue:   r.Ban(TeamBlue, 1),
		FirstBanRed:    r.Ban(TeamRed, 1),
		FirstPickBlue1: r.Pick(TeamBlue, 1),
		FirstPickRed1:  r.Pick(TeamRed, 1),
		FirstPickRed2:  r.Pick(TeamRed, 2),
		FirstPickBlue2: r.Pick(TeamBlue, 2),
		SecondBanBlue:  r.Ban(TeamBlue, 2),
		SecondBanRed:   r.Ban(TeamRed, 2),
		FinalPickBlue:  r.Pick(TeamBlue, 3),
		FinalPickRed1:  r.Pick(TeamRed, 3),
		FinalPickRed2:  r.Pick(TeamRed, 4),
		FinalPickBlue2: r.Pick(TeamBlue, 4),
	}
}

func (r DraftRecord) MarshalJSON() ([]byte, error) {
	s := r.Slots()
	// A zero DraftRecord still renders every slot as [].
	for _, p := range []*[]string{
		&s.FirstBanBlue, &s.FirstBanRed, &s.FirstPickBlue1, &s.FirstPickRed1,
		&s.FirstPickRed2, &s.FirstPickBlue2, &s.SecondBanBlue, &s.SecondBanRed,
		&s.FinalPickBlue, &s.FinalPickRed1, &s.FinalPickRed2, &s.FinalPickBlue2,
	} {
		if *p == nil {
			*p = []string{}
		}
	}
	return json.Marshal(s)
}

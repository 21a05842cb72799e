package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ev(label, verb, champion string) FeedEvent {
	t := EventType("")
	switch verb {
	case VerbBanned:
		t = EvtTeamBanned
	case VerbPicked:
		t = EvtTeamPicked
	}
	return FeedEvent{Type: t, SentenceChunks: []SentenceChunk{{Text: label}, {Text: verb}, {Text: champion}}}
}

func validated() FeedEvent {
	return FeedEvent{Type: EvtSeriesValidated, SentenceChunks: []SentenceChunk{{Text: "series"}, {Text: "validated"}}}
}

// canonicalDraft is a full 20 turn draft with Alpha on blue side.
func canonicalDraft() []FeedEvent {
	return []FeedEvent{
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Janna"),
		ev("Alpha", VerbBanned, "Zed"),
		ev("Beta", VerbBanned, "Yone"),
		ev("Alpha", VerbBanned, "Xin Zhao"),
		ev("Beta", VerbBanned, "Sett"),

		ev("Alpha", VerbPicked, "Ahri"),
		ev("Beta", VerbPicked, "Lee Sin"),
		ev("Beta", VerbPicked, "Orianna"),
		ev("Alpha", VerbPicked, "Jinx"),
		ev("Alpha", VerbPicked, "Thresh"),
		ev("Beta", VerbPicked, "Kai'Sa"),

		ev("Beta", VerbBanned, "Nautilus"),
		ev("Alpha", VerbBanned, "Rell"),
		ev("Beta", VerbBanned, "Azir"),
		ev("Alpha", VerbBanned, "Renata Glasc"),

		ev("Beta", VerbPicked, "Gnar"),
		ev("Alpha", VerbPicked, "Viego"),
		ev("Alpha", VerbPicked, "K'Sante"),
		ev("Beta", VerbPicked, "Lulu"),
	}
}

func TestReconstructEmptyInput(t *testing.T) {
	r := Reconstruct(nil)
	require.True(t, r.Empty())

	for _, slot := range r.Named() {
		assert.NotNil(t, slot.Champions, slot.Name)
		assert.Empty(t, slot.Champions, slot.Name)
	}

	raw, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string][]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 12)
	for name, champs := range decoded {
		assert.NotNil(t, champs, name)
		assert.Empty(t, champs, name)
	}
}

func TestZeroRecordMarshalsEverySlot(t *testing.T) {
	raw, err := json.Marshal(DraftRecord{})
	require.NoError(t, err)

	var decoded map[string][]string
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, 12)
	assert.Equal(t, []string{}, decoded["finalPickBlue2"])
}

func TestReconstructIsIdempotent(t *testing.T) {
	events := canonicalDraft()
	first := Reconstruct(events)
	second := Reconstruct(events)
	require.Equal(t, first, second)
}

func TestBanExample(t *testing.T) {
	r := Reconstruct([]FeedEvent{
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Janna"),
		ev("Alpha", VerbBanned, "Zed"),
		ev("Beta", VerbBanned, "Yone"),
		ev("Alpha", VerbBanned, "Xin Zhao"),
		ev("Beta", VerbBanned, "Sett"),
	})

	assert.Equal(t, []string{"Vi", "Zed", "Xin Zhao"}, r.Ban(TeamBlue, 1))
	assert.Equal(t, []string{"Janna", "Yone", "Sett"}, r.Ban(TeamRed, 1))
	assert.Equal(t, []string{}, r.Ban(TeamBlue, 2))
	assert.Equal(t, []string{}, r.Ban(TeamRed, 2))
}

func TestBanOverflowRouting(t *testing.T) {
	cases := []struct {
		name       string
		events     []FeedEvent
		firstBlue  []string
		firstRed   []string
		secondBlue []string
		secondRed  []string
	}{
		{
			name: "blue alone overflows after three",
			events: []FeedEvent{
				ev("Alpha", VerbBanned, "A1"),
				ev("Alpha", VerbBanned, "A2"),
				ev("Alpha", VerbBanned, "A3"),
				ev("Alpha", VerbBanned, "A4"),
				ev("Alpha", VerbBanned, "A5"),
			},
			firstBlue:  []string{"A1", "A2", "A3"},
			firstRed:   []string{},
			secondBlue: []string{"A4", "A5"},
			secondRed:  []string{},
		},
		{
			name: "interleaving does not change the per team quota",
			events: []FeedEvent{
				ev("Alpha", VerbBanned, "A1"),
				ev("Alpha", VerbBanned, "A2"),
				ev("Beta", VerbBanned, "B1"),
				ev("Alpha", VerbBanned, "A3"),
				ev("Alpha", VerbBanned, "A4"),
				ev("Beta", VerbBanned, "B2"),
				ev("Beta", VerbBanned, "B3"),
				ev("Beta", VerbBanned, "B4"),
			},
			firstBlue:  []string{"A1", "A2", "A3"},
			firstRed:   []string{"B1", "B2", "B3"},
			secondBlue: []string{"A4"},
			secondRed:  []string{"B4"},
		},
		{
			name: "red second phase opens before blue",
			events: []FeedEvent{
				ev("Alpha", VerbBanned, "A1"),
				ev("Beta", VerbBanned, "B1"),
				ev("Beta", VerbBanned, "B2"),
				ev("Beta", VerbBanned, "B3"),
				ev("Beta", VerbBanned, "B4"),
				ev("Beta", VerbBanned, "B5"),
			},
			firstBlue:  []string{"A1"},
			firstRed:   []string{"B1", "B2", "B3"},
			secondBlue: []string{},
			secondRed:  []string{"B4", "B5"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := Reconstruct(tc.events)
			assert.Equal(t, tc.firstBlue, r.Ban(TeamBlue, 1))
			assert.Equal(t, tc.firstRed, r.Ban(TeamRed, 1))
			assert.Equal(t, tc.secondBlue, r.Ban(TeamBlue, 2))
			assert.Equal(t, tc.secondRed, r.Ban(TeamRed, 2))
		})
	}
}

func TestCanonicalDraftFollowsSchedule(t *testing.T) {
	r, res := ReconstructDetailed(canonicalDraft())

	assert.Equal(t, "Alpha", res.BlueLabel)
	assert.Equal(t, "Beta", res.RedLabel)
	assert.False(t, res.Suspect())

	s := r.Slots()
	assert.Equal(t, []string{"Vi", "Zed", "Xin Zhao"}, s.FirstBanBlue)
	assert.Equal(t, []string{"Janna", "Yone", "Sett"}, s.FirstBanRed)
	assert.Equal(t, []string{"Ahri"}, s.FirstPickBlue1)
	assert.Equal(t, []string{"Lee Sin", "Orianna"}, s.FirstPickRed1)
	assert.Equal(t, []string{"Jinx", "Thresh"}, s.FirstPickBlue2)
	assert.Equal(t, []string{"Kai'Sa"}, s.FirstPickRed2)
	assert.Equal(t, []string{"Rell", "Renata Glasc"}, s.SecondBanBlue)
	assert.Equal(t, []string{"Nautilus", "Azir"}, s.SecondBanRed)
	assert.Equal(t, []string{"Gnar"}, s.FinalPickRed1)
	assert.Equal(t, []string{"Viego", "K'Sante"}, s.FinalPickBlue)
	assert.Equal(t, []string{"Lulu"}, s.FinalPickRed2)
	assert.Equal(t, []string{}, s.FinalPickBlue2)

	assert.Empty(t, Conflicts(r))
}

func TestTrimValidatedMatchesTail(t *testing.T) {
	tail := []FeedEvent{
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Janna"),
		ev("Alpha", VerbPicked, "Ahri"),
	}

	cases := []struct {
		name   string
		events []FeedEvent
	}{
		{
			name:   "single marker",
			events: append([]FeedEvent{ev("Gamma", VerbBanned, "Teemo"), ev("Delta", VerbPicked, "Yuumi"), validated()}, tail...),
		},
		{
			name: "last marker wins",
			events: append([]FeedEvent{
				ev("Beta", VerbBanned, "Teemo"),
				validated(),
				ev("Beta", VerbPicked, "Yuumi"),
				validated(),
			}, tail...),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := ReconstructGame(tc.events)
			require.Equal(t, Reconstruct(tail), got)
		})
	}
}

func TestTrimValidatedWithoutMarker(t *testing.T) {
	events := canonicalDraft()
	assert.Equal(t, events, TrimValidated(events))
	assert.Empty(t, TrimValidated([]FeedEvent{validated()}))
}

func TestMismatchedPickIsDropped(t *testing.T) {
	r, res := ReconstructDetailed([]FeedEvent{
		ev("Alpha", VerbPicked, "Ahri"),
		ev("Alpha", VerbPicked, "Jinx"), // red is up
		ev("Beta", VerbPicked, "Lee Sin"),
		ev("Beta", VerbPicked, "Orianna"),
	})

	assert.Equal(t, []string{"Ahri"}, r.Pick(TeamBlue, 1))
	assert.Equal(t, []string{"Lee Sin", "Orianna"}, r.Pick(TeamRed, 1))
	assert.Equal(t, []string{}, r.Pick(TeamBlue, 2))
	assert.NotContains(t, r.Picks(TeamBlue), "Jinx")
	assert.NotContains(t, r.Picks(TeamRed), "Jinx")
	assert.Equal(t, []DraftEvent{{Label: "Alpha", Verb: VerbPicked, Champion: "Jinx"}}, res.DroppedPicks)
}

func TestPicksAfterScheduleAreDropped(t *testing.T) {
	events := append(canonicalDraft(), ev("Alpha", VerbPicked, "Teemo"), ev("Beta", VerbPicked, "Yuumi"))
	r, res := ReconstructDetailed(events)

	assert.Equal(t, Reconstruct(canonicalDraft()), r)
	assert.Len(t, res.DroppedPicks, 2)
}

func TestUnknownVerbIsNoop(t *testing.T) {
	r, res := ReconstructDetailed([]FeedEvent{
		ev("Beta", "swapped", "Ahri"),
		validated(),
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Janna"),
		{Type: EvtTeamPicked}, // no chunks at all
	})

	assert.Equal(t, "Alpha", res.BlueLabel)
	assert.Equal(t, "Beta", res.RedLabel)
	assert.Equal(t, 3, res.Ignored)
	assert.Equal(t, []string{"Vi"}, r.Ban(TeamBlue, 1))
	assert.Equal(t, []string{"Janna"}, r.Ban(TeamRed, 1))
	assert.Empty(t, r.Picks(TeamBlue))
	assert.Empty(t, r.Picks(TeamRed))
}

func TestThirdLabelIsReported(t *testing.T) {
	r, res := ReconstructDetailed([]FeedEvent{
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Janna"),
		ev("Gamma", VerbBanned, "Zed"),
		ev("Gamma", VerbPicked, "Ahri"),
	})

	assert.Equal(t, []string{"Janna"}, r.Ban(TeamRed, 1))
	assert.Equal(t, []string{"Zed"}, r.Ban(TeamRed, 2))
	assert.Empty(t, r.Picks(TeamBlue))
	assert.Equal(t, []string{"Gamma"}, res.UnknownLabels)
	assert.Len(t, res.DroppedPicks, 1)
	assert.True(t, res.Suspect())
}

func TestMalformedEventsAreIgnored(t *testing.T) {
	r, res := ReconstructDetailed([]FeedEvent{
		ev("", VerbBanned, "Vi"),
		ev("Alpha", VerbBanned, "Zed"),
		ev("Beta", VerbBanned, "Janna"),
		{Type: EvtTeamBanned, SentenceChunks: []SentenceChunk{{Text: "Alpha"}, {Text: VerbBanned}}},
		ev("Alpha", VerbPicked, ""),
	})

	assert.Equal(t, []string{"Zed"}, r.Ban(TeamBlue, 1))
	assert.Equal(t, []string{"Janna"}, r.Ban(TeamRed, 1))
	assert.Empty(t, r.Ban(TeamRed, 2))
	assert.Empty(t, r.Picks(TeamBlue))
	assert.Equal(t, "Alpha", res.BlueLabel)
	assert.Equal(t, "Beta", res.RedLabel)
	assert.Equal(t, 3, res.Ignored)
	assert.False(t, res.Suspect())
}

func TestTimeline(t *testing.T) {
	steps := Timeline(Reconstruct(canonicalDraft()))
	require.Len(t, steps, len(GameOrder))

	want := []string{
		"Vi", "Janna", "Zed", "Yone", "Xin Zhao", "Sett",
		"Ahri", "Lee Sin", "Orianna", "Jinx", "Thresh", "Kai'Sa",
		"Nautilus", "Rell", "Azir", "Renata Glasc",
		"Gnar", "Viego", "K'Sante", "Lulu",
	}
	for i, step := range steps {
		assert.Equal(t, want[i], step.Champion, "step %d", i)
		assert.Equal(t, GameOrder[i].Team, step.Team)
		assert.Equal(t, DerivePhase(i), step.Phase)
	}
}

func TestTimelinePartialDraft(t *testing.T) {
	steps := Timeline(Reconstruct([]FeedEvent{ev("Alpha", VerbBanned, "Vi")}))
	assert.Equal(t, "Vi", steps[0].Champion)
	assert.Equal(t, "", steps[1].Champion)
	assert.Equal(t, "", steps[19].Champion)
}

func TestConflicts(t *testing.T) {
	r := Reconstruct([]FeedEvent{
		ev("Alpha", VerbBanned, "Vi"),
		ev("Beta", VerbBanned, "Vi"),
		ev("Alpha", VerbPicked, "Ahri"),
		ev("Beta", VerbPicked, "Ahri"),
	})
	assert.Equal(t, []string{"Ahri", "Vi"}, Conflicts(r))
}

func TestDerivePhase(t *testing.T) {
	cases := []struct {
		cursor int
		want   Phase
	}{
		{0, PhaseBan1},
		{5, PhaseBan1},
		{6, PhasePick1},
		{11, PhasePick1},
		{12, PhaseBan2},
		{15, PhaseBan2},
		{16, PhasePick2},
		{19, PhasePick2},
		{20, PhaseDone},
	}
	for _, tc := range cases {
		if got := DerivePhase(tc.cursor); got != tc.want {
			t.Fatalf("DerivePhase(%d) = %s, want %s", tc.cursor, got, tc.want)
		}
	}
}

func TestChampionsByEventType(t *testing.T) {
	events := canonicalDraft()
	assert.Len(t, BannedChampions(events), 10)
	assert.Len(t, championsOf(events, EvtTeamPicked), 10)
	assert.Contains(t, BannedChampions(events), "Renata Glasc")
	assert.NotContains(t, BannedChampions(events), "Ahri")
}

func TestDecodeEventLog(t *testing.T) {
	edges := `[{"node":{"type":"grid-validated-series","sentenceChunks":[]}},
		{"node":{"type":"team-banned-character","sentenceChunks":[{"text":"Alpha","strikethrough":false},{"text":"banned","strikethrough":false},{"text":"Vi","strikethrough":false}]}}]`
	bare := `[{"type":"team-picked-character","sentenceChunks":[{"text":"Beta"},{"text":"picked"},{"text":"Ahri"}]}]`

	events, err := DecodeEventLog([]byte(edges))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, EvtSeriesValidated, events[0].Type)
	assert.Equal(t, DraftEvent{Label: "Alpha", Verb: VerbBanned, Champion: "Vi"}, events[1].Draft())

	events, err = DecodeEventLog([]byte(bare))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Ahri", events[0].Draft().Champion)

	events, err = DecodeEventLog(nil)
	require.NoError(t, err)
	assert.Empty(t, events)

	_, err = DecodeEventLog([]byte(`{"node":1}`))
	require.ErrorIs(t, err, ErrMalformedLog)
}

func TestEncodeEventLogRoundTrip(t *testing.T) {
	raw, err := EncodeEventLog(canonicalDraft())
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"node"`)

	events, err := DecodeEventLog(raw)
	require.NoError(t, err)
	assert.Equal(t, Reconstruct(canonicalDraft()), Reconstruct(events))
}

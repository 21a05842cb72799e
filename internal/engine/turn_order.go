package engine

// GameOrder is the tournament draft order, one entry per ban or pick.
var GameOrder = []TurnStep{
	// Ban Phase 1
	{Team: TeamBlue, Action: ActionBan},
	{Team: TeamRed, Action: ActionBan},
	{Team: TeamBlue, Action: ActionBan},
	{Team: TeamRed, Action: ActionBan},
	{Team: TeamBlue, Action: ActionBan},
	{Team: TeamRed, Action: ActionBan},
	// Pick Phase 1
	{Team: TeamBlue, Action: ActionPick},
	{Team: TeamRed, Action: ActionPick},
	{Team: TeamRed, Action: ActionPick},
	{Team: TeamBlue, Action: ActionPick},
	{Team: TeamBlue, Action: ActionPick},
	{Team: TeamRed, Action: ActionPick},
	// Ban Phase 2
	{Team: TeamRed, Action: ActionBan},
	{Team: TeamBlue, Action: ActionBan},
	{Team: TeamRed, Action: ActionBan},
	{Team: TeamBlue, Action: ActionBan},
	// Pick Phase 2
	{Team: TeamRed, Action: ActionPick},
	{Team: TeamBlue, Action: ActionPick},
	{Team: TeamBlue, Action: ActionPick},
	{Team: TeamRed, Action: ActionPick},
}

// PickSchedule groups the picks of GameOrder into the 1-2-2-1-1-2-1 blocks
// the feed is read against. Each block fills one pick slot of its side.
var PickSchedule = []PickStep{
	{Team: TeamBlue, Count: 1},
	{Team: TeamRed, Count: 2},
	{Team: TeamBlue, Count: 2},
	{Team: TeamRed, Count: 1},
	{Team: TeamRed, Count: 1},
	{Team: TeamBlue, Count: 2},
	{Team: TeamRed, Count: 1},
}

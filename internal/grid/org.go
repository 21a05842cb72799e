package grid

import (
	"context"
	"fmt"
)

const teamsFilterQuery = `query GetTeamsFilter($name: StringFilter, $first: Int) {
  teams(filter: { name: $name }, first: $first) {
    edges { node { id name logoUrl } }
  }
}`

const playersFilterQuery = `query GetPlayersFilter($nickname: StringFilter, $first: Int) {
  players(filter: { nickname: $nickname }, first: $first) {
    edges { node { id nickname } }
  }
}`

// MyOrganisation returns the organisation the logged in account belongs to.
func (c *Client) MyOrganisation(ctx context.Context) (Organisation, error) {
	var org Organisation
	if err := c.getJSON(ctx, c.lolURL+"/api/organisations/mine", &org); err != nil {
		return Organisation{}, fmt.Errorf("organisation: %w", err)
	}
	return org, nil
}

// MyTeamID resolves the account's own team: the first team whose name
// contains the organisation name.
func (c *Client) MyTeamID(ctx context.Context) (string, error) {
	org, err := c.MyOrganisation(ctx)
	if err != nil {
		return "", err
	}
	if org.Name == "" {
		return "", ErrTeamNotFound
	}

	teams, err := c.SearchTeams(ctx, org.Name, DefaultPageSize)
	if err != nil {
		return "", err
	}
	if len(teams) == 0 {
		return "", fmt.Errorf("%w: %q", ErrTeamNotFound, org.Name)
	}
	return teams[0].ID, nil
}

func (c *Client) SearchTeams(ctx context.Context, name string, first int) ([]TeamInfo, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	var data struct {
		Teams struct {
			Edges []struct {
				Node TeamInfo `json:"node"`
			} `json:"edges"`
		} `json:"teams"`
	}
	vars := map[string]any{"first": first, "name": map[string]string{"contains": name}}
	if err := c.graphql(ctx, c.centralData(), "GetTeamsFilter", teamsFilterQuery, vars, &data); err != nil {
		return nil, err
	}

	teams := make([]TeamInfo, 0, len(data.Teams.Edges))
	for _, e := range data.Teams.Edges {
		teams = append(teams, e.Node)
	}
	return teams, nil
}

func (c *Client) SearchPlayers(ctx context.Context, nickname string, first int) ([]PlayerInfo, error) {
	if first <= 0 {
		first = DefaultPageSize
	}
	var data struct {
		Players struct {
			Edges []struct {
				Node PlayerInfo `json:"node"`
			} `json:"edges"`
		} `json:"players"`
	}
	vars := map[string]any{"first": first, "nickname": map[string]string{"contains": nickname}}
	if err := c.graphql(ctx, c.centralData(), "GetPlayersFilter", playersFilterQuery, vars, &data); err != nil {
		return nil, err
	}

	players := make([]PlayerInfo, 0, len(data.Players.Edges))
	for _, e := range data.Players.Edges {
		players = append(players, e.Node)
	}
	return players, nil
}

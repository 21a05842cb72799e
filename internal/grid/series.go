package grid

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

const (
	DefaultPageSize = 50
	maxEventPages   = 20
)

const historicalSeriesQuery = `query GetHistoricalSeries($first: Int, $after: Cursor, $types: [SeriesType!]) {
  allSeries(first: $first, after: $after, orderBy: StartTimeScheduled, orderDirection: DESC, filter: { types: $types }) {
    edges {
      node {
        id
        startTimeScheduled
        teams { baseInfo { name logoUrl id } }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

const seriesStateQuery = `query GetSeriesPlayersAndResults($id: ID!) {
  seriesState(id: $id) {
    teams {
      id
      score
      players { id name }
    }
  }
}`

const seriesEventsQuery = `query getSeriesEvents($id: String!, $filter: EventsFilter, $after: Cursor) {
  events(seriesId: $id, filter: $filter, after: $after) {
    edges {
      node {
        type
        sentenceChunks { text strikethrough }
      }
    }
    pageInfo { hasNextPage endCursor }
  }
}`

// ListSeries returns one page of historical series, newest first.
func (c *Client) ListSeries(ctx context.Context, q SeriesQuery) (SeriesPage, error) {
	if q.First <= 0 {
		q.First = DefaultPageSize
	}
	if len(q.Types) == 0 {
		q.Types = []string{"SCRIM"}
	}
	vars := map[string]any{"first": q.First, "types": q.Types}
	if q.After != "" {
		vars["after"] = q.After
	}

	var data struct {
		AllSeries struct {
			Edges []struct {
				Node struct {
					ID                 string `json:"id"`
					StartTimeScheduled string `json:"startTimeScheduled"`
					Finished           bool   `json:"finished"`
					Teams              []struct {
						BaseInfo TeamInfo `json:"baseInfo"`
					} `json:"teams"`
				} `json:"node"`
			} `json:"edges"`
			PageInfo pageInfo `json:"pageInfo"`
		} `json:"allSeries"`
	}
	if err := c.graphql(ctx, c.centralData(), "GetHistoricalSeries", historicalSeriesQuery, vars, &data); err != nil {
		return SeriesPage{}, err
	}

	page := SeriesPage{
		Series:      make([]Series, 0, len(data.AllSeries.Edges)),
		HasNextPage: data.AllSeries.PageInfo.HasNextPage,
		EndCursor:   data.AllSeries.PageInfo.EndCursor,
	}
	for _, e := range data.AllSeries.Edges {
		s := Series{ID: e.Node.ID, Finished: e.Node.Finished}
		if ts, err := time.Parse(time.RFC3339, e.Node.StartTimeScheduled); err == nil {
			s.StartTime = ts
		}
		for _, t := range e.Node.Teams {
			s.Teams = append(s.Teams, t.BaseInfo)
		}
		page.Series = append(page.Series, s)
	}
	return page, nil
}

// SeriesScores returns each team's series score from the series state feed.
func (c *Client) SeriesScores(ctx context.Context, seriesID string) ([]TeamScore, error) {
	var data struct {
		SeriesState struct {
			Teams []TeamScore `json:"teams"`
		} `json:"seriesState"`
	}
	err := c.graphql(ctx, c.seriesState(), "GetSeriesPlayersAndResults", seriesStateQuery,
		map[string]any{"id": seriesID}, &data)
	if err != nil {
		return nil, err
	}
	return data.SeriesState.Teams, nil
}

// GameSummary downloads the end state summary of one game of a series.
func (c *Client) GameSummary(ctx context.Context, seriesID string, game int) (GameSummary, error) {
	endpoint := fmt.Sprintf("%s/file-download/end-state/riot/series/%s/games/%d/summary", c.apiURL, url.PathEscape(seriesID), game)

	var raw struct {
		GameVersion  string            `json:"gameVersion"`
		Participants []json.RawMessage `json:"participants"`
	}
	if err := c.getJSON(ctx, endpoint, &raw); err != nil {
		return GameSummary{}, fmt.Errorf("game summary %s/%d: %w", seriesID, game, err)
	}

	sum := GameSummary{GameVersion: raw.GameVersion}
	for _, p := range raw.Participants {
		var fields struct {
			SummonerID     json.RawMessage `json:"summonerId"`
			RiotIDGameName string          `json:"riotIdGameName"`
			ChampionName   string          `json:"championName"`
			TeamID         int             `json:"teamId"`
		}
		if err := json.Unmarshal(p, &fields); err != nil {
			return GameSummary{}, fmt.Errorf("game summary %s/%d participant: %w", seriesID, game, err)
		}
		sum.Participants = append(sum.Participants, Participant{
			PlayerID: idString(fields.SummonerID),
			Name:     fields.RiotIDGameName,
			Champion: fields.ChampionName,
			TeamID:   fields.TeamID,
			Stats:    p,
		})
	}
	return sum, nil
}

// SeriesEvents fetches the draft related events of a series in feed order.
func (c *Client) SeriesEvents(ctx context.Context, seriesID string) ([]engine.FeedEvent, error) {
	filter := map[string]any{
		"event": []map[string]any{
			{"type": map[string]string{"eq": string(engine.EvtTeamBanned)}},
			{"type": map[string]string{"eq": string(engine.EvtTeamPicked)}},
			{"type": map[string]string{"eq": string(engine.EvtSeriesValidated)}},
		},
	}

	var (
		events []engine.FeedEvent
		after  string
	)
	for page := 0; page < maxEventPages; page++ {
		vars := map[string]any{"id": seriesID, "filter": filter}
		if after != "" {
			vars["after"] = after
		}

		var data struct {
			Events struct {
				Edges []struct {
					Node engine.FeedEvent `json:"node"`
				} `json:"edges"`
				PageInfo pageInfo `json:"pageInfo"`
			} `json:"events"`
		}
		if err := c.graphql(ctx, c.eventFeed(), "getSeriesEvents", seriesEventsQuery, vars, &data); err != nil {
			return nil, err
		}
		for _, e := range data.Events.Edges {
			events = append(events, e.Node)
		}

		info := data.Events.PageInfo
		if !info.HasNextPage || info.EndCursor == "" || info.EndCursor == after {
			break
		}
		after = info.EndCursor
	}
	return events, nil
}

// Replay opens the replay file of one game. The caller closes it. Once the
// headers are in, the stream lives as long as ctx.
func (c *Client) Replay(ctx context.Context, seriesID string, game int) (io.ReadCloser, int64, error) {
	endpoint := fmt.Sprintf("%s/file-download/replay/riot/series/%s/games/%d", c.apiURL, url.PathEscape(seriesID), game)

	ctx, cancel := context.WithCancel(ctx)
	headers := time.AfterFunc(c.timeout, cancel)
	resp, err := c.do(ctx, func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	})
	if !headers.Stop() || err != nil {
		if err == nil {
			drain(resp)
			err = context.DeadlineExceeded
		}
		cancel()
		return nil, 0, fmt.Errorf("replay %s/%d: %w", seriesID, game, err)
	}
	return &streamBody{ReadCloser: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

// streamBody releases the stream's context when the body is closed.
type streamBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *streamBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// idString renders an id the feed sends either as a number or a string.
func idString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	return string(raw)
}

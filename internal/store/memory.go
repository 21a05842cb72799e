package store

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/DoyleJ11/scrim-review/internal/engine"
)

// Memory keeps everything in process. Used by tests and DB_DRIVER=memory.
type Memory struct {
	mu           sync.RWMutex
	series       map[string]Series
	participants map[string][]Participant
	logs         map[string][]engine.FeedEvent
	settings     map[string]string
}

func NewMemory() *Memory {
	return &Memory{
		series:       map[string]Series{},
		participants: map[string][]Participant{},
		logs:         map[string][]engine.FeedEvent{},
		settings:     map[string]string{},
	}
}

func (m *Memory) UpsertSeries(_ context.Context, s Series) (Series, Change, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.series[s.ID]
	if !ok {
		s.Team1.Score, s.Team2.Score, s.Patch = nil, nil, ""
		m.series[s.ID] = s
		return s, Inserted, nil
	}
	if existing.sameDetails(s) {
		return existing, Unchanged, nil
	}
	updated := existing.withDetails(s)
	m.series[s.ID] = updated
	return updated, Updated, nil
}

func (m *Memory) GetSeries(_ context.Context, id string) (Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.series[id]
	if !ok {
		return Series{}, ErrNotFound
	}
	return s, nil
}

func (m *Memory) ListSeries(_ context.Context) ([]Series, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Series, 0, len(m.series))
	for _, s := range m.series {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b Series) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (m *Memory) UpdateResult(_ context.Context, id, patch string, score1, score2 int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[id]
	if !ok {
		return ErrNotFound
	}
	s.Patch = patch
	s.Team1.Score, s.Team2.Score = &score1, &score2
	m.series[id] = s
	return nil
}

func (m *Memory) AddParticipants(_ context.Context, seriesID string, ps []Participant) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	added := 0
	for _, p := range ps {
		exists := slices.ContainsFunc(m.participants[seriesID], func(q Participant) bool {
			return q.PlayerID == p.PlayerID
		})
		if exists {
			continue
		}
		p.SeriesID = seriesID
		m.participants[seriesID] = append(m.participants[seriesID], p)
		added++
	}
	return added, nil
}

func (m *Memory) Participants(_ context.Context, seriesID string) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Clone(m.participants[seriesID]), nil
}

func (m *Memory) SaveEventLog(_ context.Context, seriesID string, events []engine.FeedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs[seriesID] = slices.Clone(events)
	return nil
}

func (m *Memory) EventLog(_ context.Context, seriesID string) ([]engine.FeedEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events, ok := m.logs[seriesID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(events), nil
}

func (m *Memory) SearchPlayers(_ context.Context, query string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	seen := map[string]bool{}
	var out []string
	for _, ps := range m.participants {
		for _, p := range ps {
			if seen[p.PlayerName] || !strings.Contains(strings.ToLower(p.PlayerName), q) {
				continue
			}
			seen[p.PlayerName] = true
			out = append(out, p.PlayerName)
		}
	}
	slices.Sort(out)
	return out[:min(len(out), searchLimit(limit))], nil
}

func (m *Memory) SearchTeams(_ context.Context, query string, limit int) ([]TeamRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	q := strings.ToLower(query)
	seen := map[string]bool{}
	var out []TeamRef
	for _, s := range m.series {
		for _, side := range []Side{s.Team1, s.Team2} {
			if side.Name == "" || seen[side.Name] || !strings.Contains(strings.ToLower(side.Name), q) {
				continue
			}
			seen[side.Name] = true
			out = append(out, TeamRef{ID: side.ID, Name: side.Name, Logo: side.Logo})
		}
	}
	slices.SortFunc(out, func(a, b TeamRef) int { return cmp.Compare(a.Name, b.Name) })
	return out[:min(len(out), searchLimit(limit))], nil
}

func (m *Memory) Setting(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.settings[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

func (m *Memory) Clear(_ context.Context) (ClearStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var st ClearStats
	st.Series = int64(len(m.series))
	for _, ps := range m.participants {
		st.Participants += int64(len(ps))
	}
	st.EventLogs = int64(len(m.logs))

	clear(m.series)
	clear(m.participants)
	clear(m.logs)
	return st, nil
}

func (m *Memory) Close() error { return nil }

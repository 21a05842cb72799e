// Package syncer mirrors the organisation's scrim history from GRID into the
// local store.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

// LastSyncKey is the settings key holding the time of the last finished run.
const LastSyncKey = "lastSync"

const (
	DefaultPageSize    = 50
	DefaultConcurrency = 4
	DefaultInterval    = 10 * time.Minute
)

var ErrNotEnoughTeams = errors.New("syncer: series state has fewer than two teams")

// Feed is the part of the GRID client a sync needs.
type Feed interface {
	ListSeries(ctx context.Context, q grid.SeriesQuery) (grid.SeriesPage, error)
	SeriesScores(ctx context.Context, seriesID string) ([]grid.TeamScore, error)
	GameSummary(ctx context.Context, seriesID string, game int) (grid.GameSummary, error)
	SeriesEvents(ctx context.Context, seriesID string) ([]engine.FeedEvent, error)
}

type Config struct {
	PageSize    int
	Concurrency int
	Interval    time.Duration
}

type Syncer struct {
	store store.Store
	log   *zap.Logger
	cfg   Config
	now   func() time.Time

	// settled holds series that are finished with scores and a validated
	// event log. They are not fetched again for the life of the process.
	settledMu sync.Mutex
	settled   *bloom.BloomFilter
}

func New(st store.Store, log *zap.Logger, cfg Config) *Syncer {
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Syncer{
		store:   st,
		log:     log,
		cfg:     cfg,
		now:     time.Now,
		settled: bloom.NewWithEstimates(100000, 0.001),
	}
}

func (s *Syncer) isSettled(id string) bool {
	s.settledMu.Lock()
	defer s.settledMu.Unlock()
	return s.settled.TestString(id)
}

func (s *Syncer) settle(id string) {
	s.settledMu.Lock()
	s.settled.AddString(id)
	s.settledMu.Unlock()
}

// Forget drops the settled set, so the next run fetches everything again.
// Call it after the store was cleared.
func (s *Syncer) Forget() {
	s.settledMu.Lock()
	s.settled.ClearAll()
	s.settledMu.Unlock()
}

func (s *Syncer) Interval() time.Duration { return s.cfg.Interval }

// counters is the part of Status the series workers touch.
type counters struct {
	skipped atomic.Int64
	failed  atomic.Int64
}

// SyncOnce walks every scrim page once. Failures on a single series are
// logged and counted; a failed page listing ends the run.
func (s *Syncer) SyncOnce(ctx context.Context, feed Feed, rep Reporter) (Status, error) {
	if rep == nil {
		rep = Reporters{}
	}
	st := Status{State: StateRunning}
	rep.Report(st)

	var (
		cursor string
		cnt    counters
	)
	for {
		st.Page++
		page, err := feed.ListSeries(ctx, grid.SeriesQuery{
			First: s.cfg.PageSize,
			After: cursor,
			Types: []string{"SCRIM"},
		})
		if err != nil {
			return s.fail(rep, st, &cnt, fmt.Errorf("syncer: list page %d: %w", st.Page, err))
		}
		s.log.Debug("sync page", zap.Int("page", st.Page), zap.Int("series", len(page.Series)))

		var todo []store.Series
		for _, gs := range page.Series {
			if len(gs.Teams) < 2 {
				continue
			}
			st.Seen++
			stored, change, err := s.store.UpsertSeries(ctx, fromGrid(gs))
			if err != nil {
				return s.fail(rep, st, &cnt, err)
			}
			switch change {
			case store.Inserted:
				st.Inserted++
			case store.Updated:
				st.Updated++
			}
			if s.isSettled(stored.ID) {
				cnt.skipped.Add(1)
				continue
			}
			todo = append(todo, stored)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.Concurrency)
		for _, series := range todo {
			g.Go(func() error {
				if err := s.syncSeries(gctx, feed, series); err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					cnt.failed.Add(1)
					s.log.Warn("series sync failed", zap.String("series", series.ID), zap.Error(err))
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return s.fail(rep, st, &cnt, err)
		}

		st.Skipped, st.Failed = int(cnt.skipped.Load()), int(cnt.failed.Load())
		rep.Report(st)

		if !page.HasNextPage || page.EndCursor == "" {
			break
		}
		cursor = page.EndCursor
	}

	now := s.now().UTC()
	if err := s.store.SetSetting(ctx, LastSyncKey, now.Format(time.RFC3339)); err != nil {
		return s.fail(rep, st, &cnt, err)
	}
	st.State, st.LastSync = StateDone, &now
	rep.Report(st)
	s.log.Info("sync finished",
		zap.Int("seen", st.Seen),
		zap.Int("inserted", st.Inserted),
		zap.Int("updated", st.Updated),
		zap.Int("skipped", st.Skipped),
		zap.Int("failed", st.Failed))
	return st, nil
}

func (s *Syncer) fail(rep Reporter, st Status, cnt *counters, err error) (Status, error) {
	st.Skipped, st.Failed = int(cnt.skipped.Load()), int(cnt.failed.Load())
	st.State, st.Error = StateFailed, err.Error()
	rep.Report(st)
	s.log.Error("sync failed", zap.Error(err))
	return st, err
}

func fromGrid(gs grid.Series) store.Series {
	out := store.Series{
		ID:       gs.ID,
		Finished: gs.Finished,
		Team1:    store.Side{ID: gs.Teams[0].ID, Name: gs.Teams[0].Name, Logo: gs.Teams[0].LogoURL},
		Team2:    store.Side{ID: gs.Teams[1].ID, Name: gs.Teams[1].Name, Logo: gs.Teams[1].LogoURL},
	}
	if !gs.StartTime.IsZero() {
		t := gs.StartTime.UTC()
		out.StartTime = &t
	}
	return out
}

// syncSeries fills in the result and participants of a series once, and
// refreshes its event log every time.
func (s *Syncer) syncSeries(ctx context.Context, feed Feed, series store.Series) error {
	scored := series.HasScores()
	if !scored {
		if err := s.syncResult(ctx, feed, series.ID); err != nil {
			return err
		}
		scored = true
	}

	events, err := feed.SeriesEvents(ctx, series.ID)
	if err != nil {
		return fmt.Errorf("event log: %w", err)
	}
	if err := s.store.SaveEventLog(ctx, series.ID, events); err != nil {
		return err
	}

	if series.Finished && scored && engine.ContainsEvent(events, engine.EvtSeriesValidated) {
		s.settle(series.ID)
	}
	return nil
}

func (s *Syncer) syncResult(ctx context.Context, feed Feed, seriesID string) error {
	scores, err := feed.SeriesScores(ctx, seriesID)
	if err != nil {
		return fmt.Errorf("scores: %w", err)
	}
	if len(scores) < 2 {
		return ErrNotEnoughTeams
	}

	summary, err := feed.GameSummary(ctx, seriesID, 1)
	if err != nil {
		return fmt.Errorf("game summary: %w", err)
	}
	patch := summary.GameVersion
	if patch == "" {
		patch = "latest"
	}

	ps := make([]store.Participant, 0, len(summary.Participants))
	for _, p := range summary.Participants {
		ps = append(ps, store.Participant{
			PlayerID:     p.PlayerID,
			PlayerName:   p.Name,
			ChampionName: p.Champion,
			Stats:        p.Stats,
		})
	}
	if _, err := s.store.AddParticipants(ctx, seriesID, ps); err != nil {
		return err
	}
	return s.store.UpdateResult(ctx, seriesID, patch, scores[0].Score, scores[1].Score)
}

// Run syncs immediately and then every interval until ctx ends or a run
// fails.
func (s *Syncer) Run(ctx context.Context, feed Feed, rep Reporter) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		if _, err := s.SyncOnce(ctx, feed, rep); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

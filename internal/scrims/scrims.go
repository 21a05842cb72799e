// Package scrims answers the review screens: filtered series lists, drafts,
// game summaries and exports.
package scrims

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/ddragon"
	"github.com/DoyleJ11/scrim-review/internal/engine"
	"github.com/DoyleJ11/scrim-review/internal/export"
	"github.com/DoyleJ11/scrim-review/internal/filter"
	"github.com/DoyleJ11/scrim-review/internal/store"
)

// FilterConfigKey is the settings key of the saved filter.
const FilterConfigKey = "filterConfig"

// ErrUpstream marks failures of the live feed.
var ErrUpstream = errors.New("scrims: feed request failed")

// Feed is what the service needs from a logged in GRID client.
type Feed interface {
	MyTeamID(ctx context.Context) (string, error)
	SeriesEvents(ctx context.Context, seriesID string) ([]engine.FeedEvent, error)
}

// Catalog resolves champion icons.
type Catalog interface {
	ResolvePatch(ctx context.Context, gameVersion string) (string, error)
	Champions(ctx context.Context, version string) (*ddragon.Catalog, error)
}

type Service struct {
	store   store.Store
	catalog Catalog
	log     *zap.Logger
}

func New(st store.Store, catalog Catalog, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{store: st, catalog: catalog, log: log}
}

// SeriesResult is one entry of a filtered list.
type SeriesResult struct {
	Series       store.Series        `json:"series"`
	Participants []store.Participant `json:"participants"`
}

// FilterSeries loads every stored series and applies cfg. When the config asks
// for wins or losses the caller's team is looked up through feed; if that
// fails the result filter is skipped.
func (s *Service) FilterSeries(ctx context.Context, feed Feed, cfg filter.Config) ([]SeriesResult, error) {
	cands, err := s.candidates(ctx)
	if err != nil {
		return nil, err
	}

	var myTeam string
	if cfg.WantsResult() && feed != nil {
		myTeam, err = feed.MyTeamID(ctx)
		if err != nil {
			s.log.Warn("could not resolve own team, ignoring wins/losses", zap.Error(err))
			myTeam = ""
		}
	}

	if s.log.Core().Enabled(zap.DebugLevel) {
		for _, c := range cands {
			if ok, reason := filter.Match(cfg, c, myTeam); !ok {
				s.log.Debug("series excluded", zap.String("series", c.Series.ID), zap.String("reason", reason))
			}
		}
	}
	kept := filter.Apply(cfg, cands, myTeam)

	out := make([]SeriesResult, 0, len(kept))
	for _, c := range kept {
		ps := c.Participants
		if ps == nil {
			ps = []store.Participant{}
		}
		out = append(out, SeriesResult{Series: c.Series, Participants: ps})
	}
	return out, nil
}

func (s *Service) candidates(ctx context.Context) ([]filter.Candidate, error) {
	all, err := s.store.ListSeries(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]filter.Candidate, 0, len(all))
	for _, series := range all {
		ps, err := s.store.Participants(ctx, series.ID)
		if err != nil {
			return nil, err
		}
		c := filter.Candidate{Series: series, Participants: ps}

		events, err := s.store.EventLog(ctx, series.ID)
		switch {
		case err == nil:
			c.Events, c.HasLog = events, true
		case errors.Is(err, store.ErrNotFound):
		case errors.Is(err, engine.ErrMalformedLog):
			s.log.Warn("unreadable event log", zap.String("series", series.ID), zap.Error(err))
		default:
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DraftView is a reconstructed draft ready for display.
type DraftView struct {
	SeriesID   string                `json:"seriesId"`
	Patch      string                `json:"patch"`
	Draft      engine.DraftRecord    `json:"draft"`
	Timeline   []engine.TimelineStep `json:"timeline"`
	Resolution engine.Resolution     `json:"resolution"`
	Conflicts  []string              `json:"conflicts"`
	Icons      map[string]string     `json:"icons"`
}

// EventLog returns the stored log of a series, fetching and saving it from
// feed when the store has none.
func (s *Service) EventLog(ctx context.Context, feed Feed, seriesID string) ([]engine.FeedEvent, error) {
	events, err := s.store.EventLog(ctx, seriesID)
	if err == nil || !errors.Is(err, store.ErrNotFound) || feed == nil {
		return events, err
	}

	events, err = feed.SeriesEvents(ctx, seriesID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	if err := s.store.SaveEventLog(ctx, seriesID, events); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Service) Draft(ctx context.Context, feed Feed, seriesID string) (DraftView, error) {
	events, err := s.EventLog(ctx, feed, seriesID)
	if err != nil {
		return DraftView{}, err
	}

	record, res := engine.ReconstructGame(events)
	if res.Suspect() {
		s.log.Info("draft feed looked off",
			zap.String("series", seriesID),
			zap.Strings("unknownLabels", res.UnknownLabels),
			zap.Int("droppedPicks", len(res.DroppedPicks)))
	}
	conflicts := engine.Conflicts(record)
	if conflicts == nil {
		conflicts = []string{}
	}

	view := DraftView{
		SeriesID:   seriesID,
		Patch:      "latest",
		Draft:      record,
		Timeline:   engine.Timeline(record),
		Resolution: res,
		Conflicts:  conflicts,
		Icons:      map[string]string{},
	}
	if series, err := s.store.GetSeries(ctx, seriesID); err == nil && series.Patch != "" {
		view.Patch = series.Patch
	}
	s.fillIcons(ctx, &view)
	return view, nil
}

// fillIcons is best effort; a missing catalog leaves the icons empty.
func (s *Service) fillIcons(ctx context.Context, view *DraftView) {
	if s.catalog == nil || view.Draft.Empty() {
		return
	}
	version, err := s.catalog.ResolvePatch(ctx, view.Patch)
	if err != nil {
		s.log.Warn("resolve patch", zap.String("patch", view.Patch), zap.Error(err))
		return
	}
	cat, err := s.catalog.Champions(ctx, version)
	if err != nil {
		s.log.Warn("champion catalog", zap.String("version", version), zap.Error(err))
		return
	}
	for _, slot := range view.Draft.Named() {
		for _, name := range slot.Champions {
			if icon := cat.IconURL(name); icon != "" {
				view.Icons[name] = icon
			}
		}
	}
}

type Summary struct {
	Series       store.Series        `json:"series"`
	Participants []store.Participant `json:"participants"`
}

func (s *Service) Summary(ctx context.Context, seriesID string) (Summary, error) {
	series, err := s.store.GetSeries(ctx, seriesID)
	if err != nil {
		return Summary{}, err
	}
	ps, err := s.store.Participants(ctx, seriesID)
	if err != nil {
		return Summary{}, err
	}
	if ps == nil {
		ps = []store.Participant{}
	}
	return Summary{Series: series, Participants: ps}, nil
}

// Export builds a workbook of the series matching cfg. Drafts come from
// stored logs only.
func (s *Service) Export(ctx context.Context, feed Feed, cfg filter.Config) ([]byte, error) {
	results, err := s.FilterSeries(ctx, feed, cfg)
	if err != nil {
		return nil, err
	}
	rows := make([]export.Row, 0, len(results))
	for _, r := range results {
		row := export.Row{Series: r.Series}
		events, err := s.store.EventLog(ctx, r.Series.ID)
		switch {
		case err == nil:
			row.Draft, row.Resolution = engine.ReconstructGame(events)
		case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrMalformedLog):
			row.Draft = engine.NewDraftRecord()
		default:
			return nil, err
		}
		rows = append(rows, row)
	}
	return export.Workbook(rows)
}

// SavedFilter returns the stored filter, or the zero config when none was
// saved yet.
func (s *Service) SavedFilter(ctx context.Context) (filter.Config, error) {
	var cfg filter.Config
	raw, err := s.store.Setting(ctx, FilterConfigKey)
	if errors.Is(err, store.ErrNotFound) {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
		return cfg, fmt.Errorf("scrims: saved filter: %w", err)
	}
	return cfg, nil
}

func (s *Service) SaveFilter(ctx context.Context, cfg filter.Config) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	return s.store.SetSetting(ctx, FilterConfigKey, string(raw))
}

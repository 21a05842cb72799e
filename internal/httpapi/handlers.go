// Package httpapi exposes the scrim review service over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/ddragon"
	"github.com/DoyleJ11/scrim-review/internal/filter"
	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/hub"
	"github.com/DoyleJ11/scrim-review/internal/scrims"
	"github.com/DoyleJ11/scrim-review/internal/session"
	"github.com/DoyleJ11/scrim-review/internal/store"
	"github.com/DoyleJ11/scrim-review/internal/syncer"
)

const xlsxType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Deps are the collaborators of the API. Reporter is optional and receives
// the progress of every sync next to the session's own clients.
type Deps struct {
	Hub       *hub.Hub
	Store     store.Store
	Scrims    *scrims.Service
	Catalog   *ddragon.Client
	Syncer    *syncer.Syncer
	Auth      Authenticator
	NewClient func(grid.Tokens) *grid.Client
	Reporter  syncer.Reporter
	// AutoSync starts a sync right after login.
	AutoSync bool
	Log      *zap.Logger
}

type API struct {
	hub       *hub.Hub
	store     store.Store
	scrims    *scrims.Service
	catalog   *ddragon.Client
	syncer    *syncer.Syncer
	auth      Authenticator
	newClient func(grid.Tokens) *grid.Client
	reporter  syncer.Reporter
	autoSync  bool
	log       *zap.Logger
	now       func() time.Time
}

func New(d Deps) *API {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	return &API{
		hub:       d.Hub,
		store:     d.Store,
		scrims:    d.Scrims,
		catalog:   d.Catalog,
		syncer:    d.Syncer,
		auth:      d.Auth,
		newClient: d.NewClient,
		reporter:  d.Reporter,
		autoSync:  d.AutoSync,
		log:       d.Log,
		now:       time.Now,
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// feed returns the session's GRID client as a scrims.Feed, keeping a missing
// client a nil interface.
func feed(s *session.Session) scrims.Feed {
	if c := s.Client(); c != nil {
		return c
	}
	return nil
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		a.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (a *API) SearchSeries(w http.ResponseWriter, r *http.Request) {
	var cfg filter.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	s, _ := sessionFrom(r.Context())
	results, err := a.scrims.FilterSeries(r.Context(), feed(s), cfg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

func (a *API) ExportSeries(w http.ResponseWriter, r *http.Request) {
	var cfg filter.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	s, _ := sessionFrom(r.Context())
	raw, err := a.scrims.Export(r.Context(), feed(s), cfg)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="scrims.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(raw)))
	_, _ = w.Write(raw)
}

func (a *API) Draft(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	view, err := a.scrims.Draft(r.Context(), feed(s), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) Summary(w http.ResponseWriter, r *http.Request) {
	sum, err := a.scrims.Summary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (a *API) Replay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	game := 1
	if raw := r.URL.Query().Get("game"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "game must be a positive number")
			return
		}
		game = n
	}

	s, _ := sessionFrom(r.Context())
	body, size, err := s.Client().Replay(r.Context(), id, game)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="game-%s.rofl"`, filenameSafe(id)))
	if size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	}
	if _, err := io.Copy(w, body); err != nil && !errors.Is(err, context.Canceled) {
		a.log.Warn("replay stream", zap.String("series", id), zap.Int("game", game), zap.Error(err))
	}
}

// filenameSafe keeps letters, digits, dashes and underscores of s.
func filenameSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
}

func (a *API) SavedFilter(w http.ResponseWriter, r *http.Request) {
	cfg, err := a.scrims.SavedFilter(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (a *API) SaveFilter(w http.ResponseWriter, r *http.Request) {
	var cfg filter.Config
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if err := a.scrims.SaveFilter(r.Context(), cfg); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func limitParam(r *http.Request) int {
	n, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	return n
}

// Teams searches stored team names, or GRID itself with source=grid.
func (a *API) Teams(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("search")
	if r.URL.Query().Get("source") == "grid" {
		s, _ := sessionFrom(r.Context())
		teams, err := s.Client().SearchTeams(r.Context(), q, limitParam(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, teams)
		return
	}
	teams, err := a.store.SearchTeams(r.Context(), q, limitParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if teams == nil {
		teams = []store.TeamRef{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// Players searches stored player names, or GRID itself with source=grid.
func (a *API) Players(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("search")
	if r.URL.Query().Get("source") == "grid" {
		s, _ := sessionFrom(r.Context())
		players, err := s.Client().SearchPlayers(r.Context(), q, limitParam(r))
		if err != nil {
			a.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, players)
		return
	}
	names, err := a.store.SearchPlayers(r.Context(), q, limitParam(r))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, names)
}

func (a *API) StartSync(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	switch err := s.Request(r.Context()); {
	case errors.Is(err, session.ErrSyncRunning):
		writeError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		a.fail(w, r, err)
		return
	}
	a.SyncState(w, r, http.StatusAccepted)
}

func (a *API) SyncState(w http.ResponseWriter, r *http.Request, status int) {
	s, _ := sessionFrom(r.Context())
	view, err := s.State(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, status, view)
}

// ClearData empties the local store. The next sync fetches everything again.
// It is refused while the session's sync is still writing.
func (a *API) ClearData(w http.ResponseWriter, r *http.Request) {
	s, _ := sessionFrom(r.Context())
	view, err := s.State(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if view.Status.Running() {
		writeError(w, http.StatusConflict, session.ErrSyncRunning.Error())
		return
	}

	stats, err := a.store.Clear(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.syncer.Forget()
	a.log.Info("local data cleared",
		zap.Int64("series", stats.Series),
		zap.Int64("participants", stats.Participants),
		zap.Int64("eventLogs", stats.EventLogs))
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) Patches(w http.ResponseWriter, r *http.Request) {
	patches, err := a.catalog.Patches(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, patches)
}

type championsResponse struct {
	Version   string             `json:"version"`
	Champions []ddragon.Champion `json:"champions"`
}

func (a *API) Champions(w http.ResponseWriter, r *http.Request) {
	version, err := a.catalog.ResolvePatch(r.Context(), r.URL.Query().Get("patch"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	cat, err := a.catalog.Champions(r.Context(), version)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, championsResponse{Version: cat.Version, Champions: cat.Champions})
}

type itemsResponse struct {
	Version string         `json:"version"`
	Items   []ddragon.Item `json:"items"`
}

func (a *API) Items(w http.ResponseWriter, r *http.Request) {
	version, err := a.catalog.ResolvePatch(r.Context(), r.URL.Query().Get("patch"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	items, err := a.catalog.Items(r.Context(), version)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemsResponse{Version: version, Items: items})
}

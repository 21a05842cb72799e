package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/ws"
)

func SetupRoutes(a *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLog)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Post("/auth/login", a.Login)
	r.Get("/ws", ws.Handler(a.hub, a.log))

	r.Group(func(r chi.Router) {
		r.Use(a.requireSession)

		r.Post("/auth/logout", a.Logout)

		r.Post("/series/search", a.SearchSeries)
		r.Post("/series/export", a.ExportSeries)
		r.Get("/series/{id}/draft", a.Draft)
		r.Get("/series/{id}/summary", a.Summary)
		r.Get("/series/{id}/replay", a.Replay)

		r.Get("/filters/saved", a.SavedFilter)
		r.Put("/filters/saved", a.SaveFilter)

		r.Get("/teams", a.Teams)
		r.Get("/players", a.Players)

		r.Post("/sync", a.StartSync)
		r.Get("/sync", func(w http.ResponseWriter, r *http.Request) { a.SyncState(w, r, http.StatusOK) })
		r.Delete("/data", a.ClearData)

		r.Get("/catalog/patches", a.Patches)
		r.Get("/catalog/champions", a.Champions)
		r.Get("/catalog/items", a.Items)
	})
	return r
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		a.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", time.Since(start)),
			zap.String("requestID", middleware.GetReqID(r.Context())))
	})
}

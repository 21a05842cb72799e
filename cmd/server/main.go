package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/scrim-review/internal/config"
	"github.com/DoyleJ11/scrim-review/internal/ddragon"
	"github.com/DoyleJ11/scrim-review/internal/grid"
	"github.com/DoyleJ11/scrim-review/internal/httpapi"
	"github.com/DoyleJ11/scrim-review/internal/hub"
	"github.com/DoyleJ11/scrim-review/internal/logger"
	"github.com/DoyleJ11/scrim-review/internal/notify"
	"github.com/DoyleJ11/scrim-review/internal/scrims"
	"github.com/DoyleJ11/scrim-review/internal/store"
	"github.com/DoyleJ11/scrim-review/internal/syncer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DBDriver, cfg.SQLitePath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer st.Close()
	log.Info("store opened", zap.String("driver", cfg.DBDriver))

	gridOpts := []grid.Option{
		grid.WithBaseURLs(cfg.Grid.LolURL, cfg.Grid.APIURL),
		grid.WithRateLimit(cfg.Grid.RequestsPerSecond),
		grid.WithRetry(cfg.Grid.MaxRetries, cfg.Grid.BackoffBase),
		grid.WithLogger(log.Named("grid")),
	}
	catalog := ddragon.New(cfg.DDragonURL, nil)
	sync := syncer.New(st, log.Named("sync"), syncer.Config{
		PageSize:    cfg.Sync.PageSize,
		Concurrency: cfg.Sync.Concurrency,
		Interval:    cfg.Sync.Interval,
	})

	var reporter syncer.Reporter
	if cfg.NATS.URL != "" {
		pub, err := notify.Connect(cfg.NATS.URL, cfg.NATS.Subject, "server", log.Named("notify"))
		if err != nil {
			return err
		}
		defer pub.Close()
		reporter = pub
	}

	h := hub.NewHub(ctx)
	api := httpapi.New(httpapi.Deps{
		Hub:       h,
		Store:     st,
		Scrims:    scrims.New(st, catalog, log.Named("scrims")),
		Catalog:   catalog,
		Syncer:    sync,
		Auth:      grid.NewAuth(gridOpts...),
		NewClient: func(t grid.Tokens) *grid.Client { return grid.New(t.Access, gridOpts...) },
		Reporter:  reporter,
		AutoSync:  true,
		Log:       log.Named("http"),
	})

	// A configured token keeps the store fresh without anyone logged in.
	if cfg.Grid.Token != "" {
		go func() {
			rep := syncer.Reporters{reporter}
			if err := sync.Run(ctx, grid.New(cfg.Grid.Token, gridOpts...), rep); err != nil {
				log.Error("background sync stopped", zap.Error(err))
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(api),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	h.Inbox() <- hub.ShutdownHub{}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

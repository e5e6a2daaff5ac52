package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelins/radioatlas/internal/catalog"
	"github.com/avelins/radioatlas/internal/config"
	"github.com/avelins/radioatlas/internal/directory"
	"github.com/avelins/radioatlas/internal/favorites"
	"github.com/avelins/radioatlas/internal/localtime"
	"github.com/avelins/radioatlas/internal/playback"
	"github.com/avelins/radioatlas/internal/prefs"
	"github.com/avelins/radioatlas/internal/selection"
	"github.com/avelins/radioatlas/internal/storage"
	"github.com/avelins/radioatlas/internal/storage/sqlite"
	"github.com/avelins/radioatlas/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "radioatlas: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Getenv("RADIOATLAS_CONFIG"))
	if err != nil {
		return err
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	defer log.Sync()

	var kv storage.KV
	if cfg.Storage.Path != "" {
		store, err := sqlite.NewKVStore(cfg.Storage.Path, log)
		if err != nil {
			return err
		}
		defer store.Close()
		kv = store
	} else {
		kv = storage.NewMemoryKV()
	}

	client := directory.NewClient(cfg.Directory.BaseURL, cfg.Directory.UserAgent, cfg.Directory.Timeout(), log)
	store := catalog.NewStore(client, log)
	favs := favorites.NewStore(kv, log)
	theme := prefs.NewThemeStore(kv, prefs.ThemeDark, log)

	transport := playback.NewHTTPTransport(cfg.Directory.UserAgent, log)
	controller := playback.NewController(
		transport,
		client,
		cfg.Playback.LoadTimeout(),
		cfg.Playback.RetryDelay(),
		cfg.Playback.MaxRetries,
		log,
	)
	controller.SetNotify(func(s playback.Session) {
		log.Info("Playback session",
			logger.String("station_id", s.StationID),
			logger.String("status", s.Status.String()),
			logger.String("error", s.ErrorMessage),
			logger.Int("retries", s.RetryCount),
		)
	})

	coordinator := selection.NewCoordinator(store, controller, favs, log)
	coordinator.SetNotify(func(n selection.Notification) {
		switch n.Kind {
		case selection.SelectionPending:
			log.Info("Selection pending", logger.String("station_id", n.StationID))
		case selection.SelectionReady:
			log.Info("Selection ready",
				logger.String("station_id", n.StationID),
				logger.String("name", n.Station.Name),
				logger.String("country", n.Station.Country),
				logger.Bool("favorite", n.IsFavorite),
			)
			if n.Station.Lon != nil {
				log.Info("Station local time",
					logger.String("time", localtime.Display(time.Now(), *n.Station.Lon)),
				)
			}
		case selection.SelectionFailed:
			log.Warn("Selection failed",
				logger.String("station_id", n.StationID),
				logger.Error(n.Err),
			)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Loading station catalog",
		logger.Int("limit", cfg.Catalog.InitialLimit),
		logger.String("theme", string(theme.Current())),
		logger.Int("favorites", favs.Count()),
	)

	count, err := store.LoadInitialIndex(ctx, cfg.Catalog.InitialLimit)
	if err != nil {
		return err
	}

	placements := store.Placements()
	store.MarkMaterialized(len(placements))
	loaded, total := store.Progress()
	log.Info("Catalog ready",
		logger.Int("indexed", count),
		logger.Int("markers", loaded),
		logger.Int("total", total),
	)

	events := make(chan selection.Event, 16)
	go coordinator.Run(ctx, events)

	if !coordinator.SelectRandom(ctx) {
		log.Warn("Station index is empty, nothing to play")
	}

	<-ctx.Done()
	controller.Stop()
	log.Info("Shutting down")
	return nil
}

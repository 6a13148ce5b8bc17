// gmailsim is an in-process, multi-tenant mail service simulator with
// a Gmail-shaped HTTP surface: in-memory store, MIME and attachment
// pipeline, maintained label counts and a Gmail-style query engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mailsim/gmailsim/internal/config"
	"github.com/mailsim/gmailsim/internal/db"
	"github.com/mailsim/gmailsim/internal/httpapi"
	"github.com/mailsim/gmailsim/internal/search"
	"github.com/mailsim/gmailsim/internal/services"
	"github.com/mailsim/gmailsim/internal/store"
)

var version = "dev"

func main() {
	var (
		configPath   = flag.String("config", "", "path to config file")
		listenAddr   = flag.String("addr", "", "listen address (overrides config)")
		dbPath       = flag.String("db", "", "SQLite path for search index and saved queries (overrides config)")
		snapshotPath = flag.String("snapshot", "", "JSON snapshot path (overrides config)")
		showVersion  = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("gmailsim %s\n", version)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.ListenAddr = *listenAddr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *snapshotPath != "" {
		cfg.SnapshotPath = *snapshotPath
	}

	logger := newLogger(cfg)

	st := store.New(logger)
	if cfg.SnapshotPath != "" {
		if err := st.Load(cfg.SnapshotPath); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Fatal().Err(err).Str("path", cfg.SnapshotPath).Msg("failed to load snapshot")
			}
			logger.Info().Str("path", cfg.SnapshotPath).Msg("no snapshot found, starting fresh")
		} else {
			logger.Info().Str("path", cfg.SnapshotPath).Msg("snapshot loaded")
		}
	}

	var (
		index   services.Indexer
		queries *db.QueryStore
		sqlDB   *db.Store
	)
	if cfg.DBPath != "" {
		sqlDB, err = db.Open(context.Background(), cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		}
		defer sqlDB.Close()
		index = db.NewIndexStore(sqlDB)
		queries = db.NewQueryStore(sqlDB)
	}

	engine := &search.Engine{MaxTokens: cfg.MaxQueryTokens}
	if idx, ok := index.(search.Index); ok {
		engine.Index = idx
	}

	registry := services.New(st, engine, index, logger)

	// A freshly opened index knows nothing about snapshot-restored mail,
	// so rebuild it before serving queries.
	if index != nil {
		if err := registry.Reindex(context.Background()); err != nil {
			logger.Fatal().Err(err).Msg("failed to rebuild search index")
		}
	}

	server := httpapi.New(registry, st, queries, logger)

	httpSrv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info().Str("addr", cfg.ListenAddr).Str("version", version).Msg("listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
	}
	if cfg.SnapshotPath != "" {
		if err := st.Save(cfg.SnapshotPath); err != nil {
			logger.Error().Err(err).Str("path", cfg.SnapshotPath).Msg("failed to save snapshot")
		} else {
			logger.Info().Str("path", cfg.SnapshotPath).Msg("snapshot saved")
		}
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	out := os.Stderr
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err == nil {
			out = f
		}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// main.go
//
// Entry point for the prime-or-not game server.
// Responsibilities:
//   - Load .env (development) and read configuration from the environment.
//   - Configure zerolog (level + JSON or console output).
//   - Open the SQLite round history and start its writer.
//   - Start the session janitor and the HTTP server.
//   - Shut down gracefully on SIGINT/SIGTERM.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/primegame/internal/config"
	"github.com/robalobadob/primegame/internal/history"
	"github.com/robalobadob/primegame/internal/httpserver"
	"github.com/robalobadob/primegame/internal/scheduler"
	"github.com/robalobadob/primegame/internal/store"
)

const (
	sweepEvery      = time.Minute
	shutdownTimeout = 5 * time.Second
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}
	if cfg.JWTSecret == config.DevSecret {
		log.Warn().Msg("JWT_SECRET not set, using development secret")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := history.Open(cfg.HistoryDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open history")
	}
	defer db.Close()

	// The writer outlives the signal so closing sessions can still purge.
	recCtx, stopRec := context.WithCancel(context.Background())
	rec := history.NewRecorder(history.NewStore(db), 0)
	rec.Start(recCtx)

	sched := scheduler.NewTicker(ctx)
	st := store.NewMemoryStore()
	janitor := sched.Every(sweepEvery, func() {
		if n := st.Sweep(ctx, time.Now(), cfg.IdleTimeout); n > 0 {
			log.Info().Int("sessions", n).Msg("swept idle sessions")
		}
	})

	srv := httpserver.New(httpserver.Deps{
		Config:    cfg,
		Store:     st,
		Scheduler: sched,
		Recorder:  rec,
	})
	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting prime-go")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server exited")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := hs.Shutdown(shutCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	janitor.Stop()
	st.CloseAll(shutCtx)

	stopRec()
	rec.Wait()
}

package main

import (
	"context"
	"database/sql"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/mehdichamani/HikStatus/internal/api"
	"github.com/mehdichamani/HikStatus/internal/config"
	"github.com/mehdichamani/HikStatus/internal/data"
	"github.com/mehdichamani/HikStatus/internal/events"
	"github.com/mehdichamani/HikStatus/internal/mailer"
	"github.com/mehdichamani/HikStatus/internal/monitor"
	"github.com/mehdichamani/HikStatus/internal/names"
	"github.com/mehdichamani/HikStatus/internal/poller"
)

const stopTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", "config/default.yaml", "path to config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("configuration invalid, refusing to start")
	}
	cfg.Version = 1

	// DB init
	db, err := sql.Open("postgres", cfg.Database.ConnString())
	if err != nil {
		log.Fatal().Err(err).Msg("db open failed")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db ping failed")
	}

	repo := &data.MonitorModel{DB: db}

	// Optional NATS fanout
	var publisher *events.Publisher
	if cfg.NATS.URL != "" {
		nc, err := nats.Connect(cfg.NATS.URL, nats.Name("hikstatus"))
		if err != nil {
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("nats unavailable, event fanout disabled")
		} else {
			defer nc.Close()
			subject := cfg.NATS.Subject
			if subject == "" {
				subject = "hikstatus.events"
			}
			publisher = events.NewPublisher(nc, subject, 3)
		}
	}

	// Each start builds the monitor fresh from its config snapshot:
	// the name table and poller credentials belong to the snapshot.
	factory := func(cfg *config.Config) (monitor.Runner, error) {
		table, err := names.Load(cfg.CameraNameFile)
		if err != nil {
			return nil, err
		}
		log.Info().Int("names", len(table)).Msg("camera name table loaded")

		p := poller.NewISAPIPoller(cfg.NVRPassword, table, log.With().Str("component", "poller").Logger())
		mail := mailer.NewSMTPTransport(cfg.Mail)
		svc := monitor.NewService(repo, p, mail, publisher, cfg,
			log.With().Str("component", "monitor").Logger())
		return svc, nil
	}

	sup := monitor.NewSupervisor(factory, log.With().Str("component", "supervisor").Logger())
	if err := sup.Start(cfg); err != nil {
		log.Fatal().Err(err).Msg("monitor failed to start")
	}

	// Config changes produce a new snapshot and a clean restart;
	// camera state lives in the store and survives.
	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	watcher := config.NewWatcher(*configPath, cfg.Version, log.With().Str("component", "config").Logger(),
		func(next *config.Config) {
			_ = repo.AppendEvent(context.Background(), &data.AlertLogEntry{
				Timestamp: time.Now(),
				Kind:      data.EventServiceConfigChanged,
				Details:   "Configuration changed, restarting monitor.",
				Severity:  data.SeverityInfo,
			})
			if err := sup.Restart(next, stopTimeout); err != nil {
				log.Error().Err(err).Msg("restart with new config failed")
			}
		})
	watcher.Start(watchCtx)

	// HTTP reporting surface
	handler := api.NewHandler(repo, log.With().Str("component", "api").Logger())
	srv := &http.Server{
		Addr:              cfg.HTTP.Listen,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.HTTP.Listen).Msg("http listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Info().Msg("shutting down")

	if err := sup.Stop(stopTimeout); err != nil {
		log.Warn().Err(err).Msg("monitor stop timed out")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/lmittmann/tint"

	"github.com/Sovexe/helldivers2-data-pipeline/internal"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/api"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/client"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/filter"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/server"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/service"
	"github.com/Sovexe/helldivers2-data-pipeline/internal/storage/postgres"
)

type config struct {
	DBHost     string `required:"true" split_words:"true"`
	DBPort     string `default:"5432" split_words:"true"`
	DBName     string `required:"true" split_words:"true"`
	DBUser     string `required:"true" split_words:"true"`
	DBPassword string `required:"true" split_words:"true"`
	DBSSLMode  string `default:"disable" envconfig:"DB_SSLMODE"`

	LogFormat    string     `default:"json" split_words:"true"`
	LogLevel     slog.Level `default:"info" split_words:"true"`
	LogAddSource bool       `default:"false" split_words:"true"`
	LogFile      string     `default:"pipeline.log" split_words:"true"`

	APIBaseURL   string        `default:"https://helldiverstrainingmanual.com/api/v1" split_words:"true"`
	HTTPTimeout  time.Duration `default:"30s" split_words:"true"`
	FetchRetries uint          `default:"4" split_words:"true"`

	IngestInterval      time.Duration `default:"0" split_words:"true"`
	IngestPlanetHistory bool          `default:"false" split_words:"true"`
	IngestFilter        string        `default:"" split_words:"true"`

	HTTPAddr string `default:"" split_words:"true"`
}

func main() {
	var cfg config
	err := envconfig.Process("", &cfg)
	if err != nil {
		slog.Error("unable to parse config", slog.Any("error", err))
		os.Exit(1)
	}

	if err := mainErr(&cfg); err != nil {
		slog.Error("Pipeline stopped with error", slog.Any("error", err))
		os.Exit(1)
	}

	slog.Info("Pipeline terminated gracefully")
}

func mainErr(cfg *config) error {
	var logOut io.Writer
	var logFile io.WriteCloser
	var err error

	switch cfg.LogFile {
	case "":
		logOut = os.Stdout
	default:
		fileflags := os.O_WRONLY | os.O_APPEND | os.O_CREATE
		logFile, err = os.OpenFile(cfg.LogFile, fileflags, os.FileMode(0o644))
		if err != nil {
			return fmt.Errorf("unable to setup logfile: %w", err)
		}
		defer logFile.Close()

		logOut = io.MultiWriter(os.Stdout, logFile)
	}

	log := configureLogger(cfg, logOut)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := postgres.BuildDSN(cfg.DBHost, cfg.DBPort, cfg.DBName, cfg.DBUser, cfg.DBPassword, cfg.DBSSLMode)

	store, err := postgres.New(ctx, dsn, log)
	if err != nil {
		return fmt.Errorf("postgres store: %w", err)
	}
	defer store.Close()

	if err := postgres.Migrate(dsn, log); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	campaignFilter, err := filter.New(cfg.IngestFilter)
	if err != nil {
		return fmt.Errorf("campaign filter: %w", err)
	}

	warAPI := client.NewWarAPIClient(cfg.APIBaseURL, cfg.HTTPTimeout, cfg.FetchRetries, log)

	runner := service.NewRunner(
		warAPI,
		store,
		campaignFilter,
		cfg.IngestPlanetHistory,
		cfg.IngestInterval,
		log,
	)

	// The status server only makes sense for a long-lived worker; a single
	// run-to-completion invocation has nobody to answer.
	var srv *server.Server
	if cfg.IngestInterval > 0 && cfg.HTTPAddr != "" {
		srv = server.NewHTTPServer(cfg.HTTPAddr, log, api.NewRouter(log, store))
		go func() {
			if err := srv.Start(); err != nil {
				log.Error("status server failed", slog.Any("error", err))
			}
		}()
	}

	runErr := runner.Start(ctx)

	if srv != nil {
		if err := srv.Shutdown(internal.ServerShutdownTimeout); err != nil {
			log.Error("status server shutdown", slog.Any("error", err))
		}
	}

	return runErr
}

func configureLogger(cfg *config, logOut io.Writer) *slog.Logger {
	//nolint: exhaustruct // optional config
	logOpts := &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: cfg.LogAddSource,
	}

	var logHandler slog.Handler
	switch cfg.LogFormat {
	case "json":
		logHandler = slog.NewJSONHandler(logOut, logOpts)
	default:
		//nolint:exhaustruct // optional config
		logHandler = tint.NewHandler(logOut, &tint.Options{
			AddSource:  cfg.LogAddSource,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(logHandler)
}

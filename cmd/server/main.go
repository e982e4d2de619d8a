package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/marketpipe/internal/clients"
	"github.com/aristath/marketpipe/internal/clients/alphavantage"
	"github.com/aristath/marketpipe/internal/clients/finnhub"
	"github.com/aristath/marketpipe/internal/clients/yahoo"
	"github.com/aristath/marketpipe/internal/config"
	"github.com/aristath/marketpipe/internal/database"
	"github.com/aristath/marketpipe/internal/database/repositories"
	"github.com/aristath/marketpipe/internal/modules/analyst"
	"github.com/aristath/marketpipe/internal/modules/charts"
	"github.com/aristath/marketpipe/internal/modules/delisting"
	"github.com/aristath/marketpipe/internal/modules/earnings"
	"github.com/aristath/marketpipe/internal/modules/ratios"
	"github.com/aristath/marketpipe/internal/modules/scoring"
	"github.com/aristath/marketpipe/internal/modules/universe"
	"github.com/aristath/marketpipe/internal/pipeline"
	"github.com/aristath/marketpipe/internal/scheduler"
	"github.com/aristath/marketpipe/internal/server"
	"github.com/aristath/marketpipe/pkg/logger"
)

var errAlreadyRunning = errors.New("pipeline run already in progress")

func main() {
	cfg, err := config.Load()
	if err != nil {
		errLog := logger.New(logger.Config{Level: "error"})
		errLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	log.Info().Msg("Starting marketpipe")

	pipe, err := config.LoadPipeline(cfg.PipelinePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load pipeline configuration")
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	gateway := repositories.NewGateway(db.Conn(), pipe.DBTxTimeout.Std(), log)
	archive := database.NewHistoryArchive(cfg.HistoryDir, log)

	loc, err := time.LoadLocation(pipe.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", pipe.Timezone).Msg("Invalid pipeline timezone")
	}

	providers := buildProviders(pipe, loc, log)
	if len(providers) == 0 {
		log.Fatal().Msg("No usable providers configured")
	}

	budget := pipeline.NewBudget(pipe.APICallBudgetTotal)
	router := clients.NewRouter(providers, budget, pipe.AdapterCallTimeout.Std(), log)

	calendar, err := scheduler.NewTradingCalendar(pipe.Timezone, pipe.Holidays, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build trading calendar")
	}

	universeSvc := universe.NewService(gateway.Instruments, gateway.Prices, archive, log)
	chartSvc := charts.NewService(pipe.MinHistoryBars, pipe.TargetHistoryBars, log)

	orch := pipeline.New(pipeline.Config{
		Log:      log,
		Pipeline: pipe,
		Calendar: calendar,
		Router:   router,
		Gateway:  gateway,
		Universe: universeSvc,
		Charts:   chartSvc,
		Ratios:   ratios.NewEngine(pipe, log),
		Scoring:  scoring.NewService(gateway, chartSvc, pipe, log),
		Analyst:  analyst.NewService(router, gateway.Analyst, log),
		Earnings: earnings.NewService(router, gateway.Earnings, log),
		Reaper:   delisting.NewReaper(router, gateway, pipe.DelistingMinAgreement, log),
		Budget:   budget,
	})

	seedUniverse(universeSvc, gateway, pipe.UniverseSource, log)

	if cfg.RunOnce {
		summary := orch.Run(context.Background(), pipe.ForceRun)
		os.Exit(summary.ExitCode())
	}

	job := scheduler.NewDailyPipelineJob(scheduler.DailyPipelineConfig{
		Orchestrator: orch,
		Force:        pipe.ForceRun,
		Log:          log,
	})

	sched := scheduler.New(loc, log)
	if err := sched.AddJob(pipe.DailySchedule, job); err != nil {
		log.Fatal().Err(err).Msg("Failed to register daily pipeline job")
	}
	sched.Start()
	defer sched.Stop()

	srv := server.New(server.Config{
		Port:    cfg.Port,
		Log:     log,
		Gateway: gateway,
		TriggerRun: func() error {
			if job.Running() {
				return errAlreadyRunning
			}
			go func() {
				if err := sched.RunNow(job); err != nil {
					log.Error().Err(err).Msg("Manual pipeline run failed")
				}
			}()
			return nil
		},
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown failed")
	}
}

// buildProviders turns the configured provider list into routable
// providers, preserving the configured failover order. Unknown names are
// skipped with a warning so a config typo degrades instead of crashing.
// loc anchors each pool's daily-quota reset to pipeline-local midnight.
func buildProviders(pipe *config.Pipeline, loc *time.Location, log zerolog.Logger) []*clients.Provider {
	var providers []*clients.Provider
	for _, pc := range pipe.Providers {
		var adapter clients.Adapter
		switch pc.Name {
		case "yahoo":
			adapter = yahoo.NewClient(log)
		case "alphavantage":
			adapter = alphavantage.NewClient(log)
		case "finnhub":
			adapter = finnhub.NewClient(log)
		default:
			log.Warn().Str("provider", pc.Name).Msg("Unknown provider in config, skipping")
			continue
		}

		caps := make([]clients.Capability, 0, len(pc.Capabilities))
		for _, c := range pc.Capabilities {
			caps = append(caps, clients.Capability(c))
		}
		adapter = clients.Restrict(adapter, caps)

		pool := clients.NewPool(pc.Name, pc.Keys, pc.RequestsPerMinute, pc.RequestsPerDay, loc, log)
		providers = append(providers, clients.NewProvider(adapter, pool, pc.BaseConfidence))
	}
	return providers
}

// seedUniverse loads the instrument list on first boot; an already
// populated universe is left alone.
func seedUniverse(svc *universe.Service, gateway *repositories.Gateway, source string, log zerolog.Logger) {
	existing, err := gateway.Instruments.GetAllActive()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to inspect universe")
	}
	if len(existing) > 0 {
		return
	}

	n, err := svc.SeedFromFile(source)
	if err != nil {
		log.Fatal().Err(err).Str("source", source).Msg("Failed to seed universe")
	}
	log.Info().Int("instruments", n).Str("source", source).Msg("Universe seeded")
}

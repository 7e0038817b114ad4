package main

import (
	"context"

	"github.com/ashaw315/hotdog-diaries-sub014/internal/config"
	"github.com/ashaw315/hotdog-diaries-sub014/internal/diversity"
	"github.com/ashaw315/hotdog-diaries-sub014/internal/handlers"
	"github.com/ashaw315/hotdog-diaries-sub014/internal/jobs"
	"github.com/ashaw315/hotdog-diaries-sub014/internal/scheduler"
	"github.com/ashaw315/hotdog-diaries-sub014/internal/store"
	pkgconfig "github.com/ashaw315/hotdog-diaries-sub014/pkg/config"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/database"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/logging"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/monitoring"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/server"
	"github.com/ashaw315/hotdog-diaries-sub014/pkg/version"
)

func main() {
	logger := logging.NewLoggerWithService("curator")
	pkgconfig.LoadEnv(logger)

	cfg := config.LoadConfig()

	dbConfig := database.DefaultConfig()
	dbConfig.URL = cfg.DatabaseURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	if err := database.ApplySchema(context.Background(), db, logger); err != nil {
		logger.WithError(err).Fatal("Failed to apply database schema")
	}

	contentStore := store.NewContentStore(db)

	analyzer := diversity.NewAnalyzer(contentStore, cfg.Weights, cfg.TypeTargets)
	selector := scheduler.NewSelector(analyzer)
	planner := scheduler.NewPlanner(contentStore, analyzer, selector, cfg, logger)
	publisher := scheduler.NewPublisher(contentStore, logger, cfg.Timezone, cfg.PublishGrace, cfg.PublishMaxFailures)
	reconciler := scheduler.NewReconciler(contentStore, logger)

	healthChecker := monitoring.NewHealthChecker("curator", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("curator", version.Version, version.GitCommit)
	schedulerMetrics := handlers.NewSchedulerMetrics(metricsCollector)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL":      cfg.DatabaseURL,
		"SCHEDULE_TIMEZONE": cfg.Timezone,
	}))

	app := server.SetupServiceRouter(logger, "curator", healthChecker, metricsCollector)

	scheduleHandler := handlers.NewScheduleHandler(planner, contentStore, reconciler, logger, schedulerMetrics)
	scheduleHandler.RegisterRoutes(app)

	publishJob := jobs.NewPublishJob(jobs.PublishJobConfig{
		Publisher: publisher,
		Logger:    logger,
		Metrics:   schedulerMetrics,
		Interval:  cfg.PublishInterval,
	})
	publishJob.Start()
	defer publishJob.Stop()

	reconcileJob := jobs.NewReconcileJob(jobs.ReconcileJobConfig{
		Reconciler: reconciler,
		Logger:     logger,
		Metrics:    schedulerMetrics,
		Interval:   cfg.ReconcileInterval,
	})
	reconcileJob.Start()
	defer reconcileJob.Stop()

	serverConfig := server.DefaultConfig("curator", cfg.Port)
	if err := server.Start(serverConfig, app, logger); err != nil {
		logger.Fatal(err.Error())
	}
}

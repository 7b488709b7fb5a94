package main

import (
	"context"
	"errors"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icinga-job-catalog/internal"
	"github.com/icinga/icinga-job-catalog/internal/catalog"
	"github.com/icinga/icinga-job-catalog/internal/daemon"
	"github.com/icinga/icinga-job-catalog/internal/listener"
	"github.com/okzk/sdnotify"
	"go.uber.org/zap"
	"os/signal"
	"syscall"
)

func main() {
	conf := daemon.ParseFlagsAndConfig()

	logs, err := logging.NewLoggingFromConfig("icinga-job-catalog", conf.Logging)
	if err != nil {
		utils.PrintErrorThenExit(err, daemon.ExitFailure)
	}

	logger := logs.GetLogger()
	defer func() { _ = logger.Sync() }()

	logger.Infof("Starting Icinga Job Catalog daemon (%s)", internal.Version.Version)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var jobs listener.Catalog
	switch conf.Backend {
	case daemon.BackendFixtures:
		logger.Infow("Loading jobs from fixtures", zap.String("path", conf.Fixtures))
		fixtures, err := catalog.LoadFixtures(conf.Fixtures)
		if err != nil {
			logger.Fatalf("Cannot load fixtures: %+v", err)
		}

		jobs, err = catalog.NewMemoryFromFixtures(fixtures, conf.Filter.ParseOptions())
		if err != nil {
			logger.Fatalf("Cannot load fixtures: %+v", err)
		}
	default:
		db, err := database.NewDbFromConfig(&conf.Database, logs.GetChildLogger("database"), database.RetryConnectorCallbacks{})
		if err != nil {
			logger.Fatalf("Cannot create database connection from config: %+v", err)
		}
		defer func() { _ = db.Close() }()

		logger.Infof("Connecting to database at '%s'", db.GetAddr())
		if err := db.PingContext(ctx); err != nil {
			logger.Fatalf("Cannot connect to the database: %+v", err)
		}

		schema := catalog.NewSchema(db, logs.GetChildLogger("schema"))
		if err := schema.UpdateFromDatabase(ctx); err != nil {
			logger.Fatalf("Failed to load schema from database: %+v", err)
		}

		go schema.PeriodicUpdates(ctx, conf.SchemaRefreshInterval)

		jobs = catalog.NewStore(db, schema, conf.Filter.ParseOptions(), logs.GetChildLogger("catalog"))
	}

	// When the daemon is started by systemd, we've to notify systemd that we're ready.
	_ = sdnotify.Ready()

	opts := listener.Options{PerPage: conf.PerPage, MaxPerPage: conf.MaxPerPage}
	err = listener.NewListener(conf.Listen, jobs, opts, logs.GetChildLogger("listener")).Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Errorf("Listener has finished with an error: %+v", err)
	} else {
		logger.Info("Listener has finished")
	}
}

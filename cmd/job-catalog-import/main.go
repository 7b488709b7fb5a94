package main

import (
	"context"
	"errors"
	"github.com/icinga/icinga-go-library/config"
	"github.com/icinga/icinga-go-library/database"
	"github.com/icinga/icinga-go-library/logging"
	"github.com/icinga/icinga-go-library/utils"
	"github.com/icinga/icinga-job-catalog/internal"
	"github.com/icinga/icinga-job-catalog/internal/catalog"
	"github.com/icinga/icinga-job-catalog/internal/daemon"
	"go.uber.org/zap"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Flags defines the CLI flags of the importer.
type Flags struct {
	Version bool `long:"version" description:"print version and exit"`
	// Config is the path to the daemon config file, which provides the database connection.
	Config string `short:"c" long:"config" description:"path to config file"`
	// Fixtures is the path of the fixture file to import.
	Fixtures string `short:"f" long:"fixtures" description:"path to the YAML fixture file to import"`
}

func main() {
	flags := Flags{Config: internal.SysConfDir + "/icinga-job-catalog/config.yml"}
	if err := config.ParseFlags(&flags); err != nil {
		if errors.Is(err, config.ErrInvalidArgument) {
			panic(err)
		}

		utils.PrintErrorThenExit(err, daemon.ExitFailure)
	}

	if flags.Version {
		internal.Version.Print("Icinga Job Catalog importer")
		os.Exit(daemon.ExitSuccess)
	}

	if flags.Fixtures == "" {
		utils.PrintErrorThenExit(errors.New("the fixture file to import must be given with --fixtures"), daemon.ExitFailure)
	}

	conf, err := daemon.LoadConfig(flags.Config)
	if err != nil {
		utils.PrintErrorThenExit(err, daemon.ExitFailure)
	}
	if conf.Backend != daemon.BackendDatabase {
		utils.PrintErrorThenExit(errors.New("importing requires the database backend"), daemon.ExitFailure)
	}

	logs, err := logging.NewLoggingFromConfig("icinga-job-catalog-import", conf.Logging)
	if err != nil {
		utils.PrintErrorThenExit(err, daemon.ExitFailure)
	}

	logger := logs.GetLogger()
	defer func() { _ = logger.Sync() }()

	fixtures, err := catalog.LoadFixtures(flags.Fixtures)
	if err != nil {
		logger.Fatalf("Cannot load fixtures: %+v", err)
	}

	jobs, err := fixtures.ToJobs(time.Now())
	if err != nil {
		logger.Fatalf("Cannot convert fixtures: %+v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.NewDbFromConfig(&conf.Database, logs.GetChildLogger("database"), database.RetryConnectorCallbacks{})
	if err != nil {
		logger.Fatalf("Cannot create database connection from config: %+v", err)
	}
	defer func() { _ = db.Close() }()

	logger.Infof("Connecting to database at '%s'", db.GetAddr())
	if err := db.PingContext(ctx); err != nil {
		logger.Fatalf("Cannot connect to the database: %+v", err)
	}

	store := catalog.NewStore(db, nil, conf.Filter.ParseOptions(), logs.GetChildLogger("catalog"))
	if err := store.Import(ctx, jobs); err != nil {
		logger.Fatalf("Cannot import fixtures: %+v", err)
	}

	logger.Infow("Imported fixtures", zap.String("path", flags.Fixtures), zap.Int("jobs", len(jobs)))
}

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	gustavo "github.com/derWhity/gustavo/internal"
	"github.com/derWhity/gustavo/internal/ctxhelper"
	"github.com/derWhity/gustavo/internal/log"
	"github.com/derWhity/gustavo/internal/migrate"
	"github.com/derWhity/gustavo/internal/ratelimit"
	eventrepo "github.com/derWhity/gustavo/internal/repos/event/inmem"
	archive "github.com/derWhity/gustavo/internal/repos/event/sqlite"
	sessionrepo "github.com/derWhity/gustavo/internal/repos/session/inmem"
	"github.com/jmoiron/sqlx"
	"github.com/kardianos/osext"
	_ "github.com/mattn/go-sqlite3" // Just needed for the sqlite driver
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

const (
	appName    = "Gustavo"
	appVersion = "0.0.1"
	dbFile     = "gustavo.db"
)

// Checks and tries to create the given directory recursively (or panics if this fails)
func checkAndCreateDir(path string, logger *logrus.Entry) {
	fileInfo, err := os.Stat(path)
	if err != nil {
		if e, ok := err.(*os.PathError); ok && e.Err == syscall.ENOENT {
			logger.WithField(log.FldPath, path).Info("Directory does not exist - trying to create...")
			if err = os.MkdirAll(path, os.ModePerm); err != nil {
				logger.WithError(err).Fatal("Failed to create directory")
			}
			logger.Info("Directory created successfully")
		} else {
			logger.WithError(err).Fatal("Stat has failed")
		}
	} else {
		if !fileInfo.IsDir() {
			logger.Fatalf("'%s' is not a directory. Remove the plain file if you want to continue", path)
		}
	}
}

func main() {
	execDir, err := osext.ExecutableFolder()
	if err != nil {
		panic(err)
	}

	configFile := flag.String(
		"config",
		filepath.Join(execDir, "config.json"),
		"The configuration file to load the application's configuration from",
	)

	ctx := context.Background()

	// Initialize the logger
	logger := logrus.WithField(log.FldVersion, appVersion)
	logger.Infof("%s version %s is starting up...", appName, appVersion)
	ctx = context.WithValue(ctx, ctxhelper.KeyLogger, logger)

	// Load the main configuration file
	cs := gustavo.NewConfigService(*configFile)
	if err := cs.Load(ctx); err != nil {
		logger.WithError(err).Error("Cannot load config. Using defaults")
	}
	conf := cs.GetConfig(ctx)

	logger.Infof("Using '%s' as data directory", conf.DataDir)
	checkAndCreateDir(conf.DataDir, logger)

	// Set up the archive database and perform pending migrations
	dbFileName := path.Join(conf.DataDir, dbFile)
	var db *sqlx.DB
	if db, err = sqlx.Open("sqlite3", dbFileName); err != nil {
		logger.WithError(err).Fatal("Failed to open database connection")
	}
	logger.Info("Performing database migrations...")
	if err = migrate.ExecuteMigrationsOnDb(db, logger); err != nil {
		logger.WithError(err).Fatal("Database migration has failed. Please check database for consistency and try again.")
	}

	// The in-memory store is the source of truth; the archive only receives completed mutations
	// and hands the events back on the next start
	eventArchive := archive.New(db, logger)
	eventRepo := eventrepo.New(eventArchive, logger)
	if archived, err := eventArchive.LoadAll(); err != nil {
		logger.WithError(err).Fatal("Failed to load archived events")
	} else {
		eventRepo.Restore(archived)
	}
	sessionRepo := sessionrepo.New()

	limiter := ratelimit.New(conf.RateLimit.Burst, time.Duration(conf.RateLimit.RefillMillis)*time.Millisecond)

	sessServ := gustavo.NewSessionService(sessionRepo, eventRepo, logger)
	evSrv := gustavo.NewEventService(eventRepo, sessionRepo, logger)
	itSrv := gustavo.NewItemService(eventRepo, logger)
	rtSrv := gustavo.NewRatingService(eventRepo, limiter, cs, logger)
	simSrv := gustavo.NewSimilarityService(eventRepo, logger)

	httpLogger := logger.WithField(log.FldTransport, "HTTP")

	h := gustavo.MakeHTTPHandler(
		evSrv,
		itSrv,
		rtSrv,
		simSrv,
		sessServ,
		httpLogger,
	)

	// Start listening
	errs := make(chan error)

	// Listen for stop signals that will end the service
	go func() {
		c := make(chan os.Signal, 2)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		err := fmt.Errorf("%s", <-c)
		logger.Info("Caught signal to stop. Shutting down.")
		limiter.Stop()
		errs <- err
	}()

	go func() {
		httpLogger.WithField("addr", conf.ListenAddress).Info("Starting listening port")
		errs <- http.ListenAndServe(conf.ListenAddress, h)
	}()

	// Watchdog for systemd
	go func() {
		interval, err := daemon.SdWatchdogEnabled(false)
		if err != nil || interval == 0 {
			return
		}
		logger.Info("Activating systemd watchdog goroutine")
		port := strings.Split(conf.ListenAddress, ":")[1]
		url := fmt.Sprintf("http://127.0.0.1:%s/alive", port)
		for {
			if _, err := http.Get(url); err == nil {
				daemon.SdNotify(false, "WATCHDOG=1")
			}
			time.Sleep(interval / 3)
		}
	}()

	// Notify systemd that we are ready to go (if available)
	daemon.SdNotify(false, "READY=1")

	logger.WithError(<-errs).Error("Shutdown complete")
}

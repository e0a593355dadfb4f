package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	runner "github.com/devinterview/collab/backend/exec"
	httpServer "github.com/devinterview/collab/backend/server/http"
	"github.com/devinterview/collab/backend/server/metrics"
	websocketServer "github.com/devinterview/collab/backend/server/websocket"
	"github.com/devinterview/collab/backend/service"
	roster "github.com/devinterview/collab/backend/storage/memory"
	"github.com/devinterview/collab/backend/storage/sqlite"
	sw "github.com/devinterview/collab/backend/switch"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	fs := pflag.NewFlagSet("main", pflag.ContinueOnError)

	var (
		apiListenAddr = fs.StringP("api-listen-addr", "a", ":8080", "api listen address")
		wsListenAddr  = fs.StringP("ws-listen-addr", "w", ":8888", "websocket sync listen address")
		logLevel      = fs.StringP("log-level", "l", "debug", "log level")
		dbPath        = fs.StringP("db-path", "d", "./data/collab.db", "session database path")
		execTimeout   = fs.DurationP("exec-timeout", "t", 10*time.Second, "code execution timeout")
	)
	if err := fs.Parse(os.Args[1:]); err != nil {
		logger.Fatal().Err(err).Msg("failed to parse command line arguments")
	}

	lvl, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse loglevel")
	}
	logger = logger.Level(lvl)

	sessions, err := sqlite.New(*dbPath, &logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open session store")
	}
	defer func() {
		_ = sessions.Close()
	}()

	collector := metrics.NewCollector()
	svc := service.NewService(service.Config{
		Roster:  roster.NewMemStore(),
		Switch:  sw.NewSwitch(&logger),
		Metrics: collector,
		Logger:  &logger,
	})
	httpSrv := httpServer.NewServer(httpServer.Config{
		Logger:         &logger,
		Sessions:       sessions,
		Runner:         runner.NewRunner(runner.Config{Logger: &logger, Timeout: *execTimeout}),
		MetricsHandler: collector.Handler(),
		ListenAddr:     *apiListenAddr,
	})
	wsSrv := websocketServer.NewServer(websocketServer.Config{
		Logger:      &logger,
		SyncService: svc,
		ListenAddr:  *wsListenAddr,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		wg   = &sync.WaitGroup{}
		errc = make(chan error, 2)
	)
	wg.Add(2)
	go httpSrv.Run(ctx, wg, errc)
	go wsSrv.Run(ctx, wg, errc)

	select {
	case err = <-errc:
		logger.Error().Err(err).Msg("unexpected server error, shutting down")
	case <-ctx.Done():
		logger.Warn().Msg("interrupted")
	}
	cancel()
	wg.Wait()
}

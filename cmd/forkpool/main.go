// Forkpool - Pre-fork HTTP Worker Pool Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/forkpool

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/forkpool/internal/admin"
	"github.com/tomtom215/forkpool/internal/config"
	"github.com/tomtom215/forkpool/internal/logging"
	"github.com/tomtom215/forkpool/internal/pool"
	"github.com/tomtom215/forkpool/internal/supervisor"
	"github.com/tomtom215/forkpool/internal/supervisor/services"
	ws "github.com/tomtom215/forkpool/internal/websocket"
	"github.com/tomtom215/forkpool/internal/worker"
)

// Exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// A worker subscribes before loading anything: the master may forward
	// a shutdown signal while it is still starting.
	id, isWorker, idErr := worker.IDFromEnv()
	var workerSignals <-chan os.Signal
	if isWorker {
		ch, stop := worker.NotifyShutdown()
		defer stop()
		workerSignals = ch
	}

	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		return exitUsage
	}

	// Workers are re-executed with the master's arguments and environment,
	// so both roles load the same configuration.
	cfg, err := config.LoadWithKoanf(opts.configPath, opts.overrides)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to load configuration")
		return exitUsage
	}

	if isWorker {
		return runWorker(cfg, id, idErr, workerSignals)
	}
	return runMaster(cfg)
}

func initLogging(cfg *config.Config, role string) {
	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Role:      role,
		Pid:       os.Getpid(),
	})
}

func runWorker(cfg *config.Config, id int, idErr error, signals <-chan os.Signal) int {
	initLogging(cfg, "worker")
	if idErr != nil {
		logging.Error().Err(idErr).Msg("Invalid worker environment")
		return exitUsage
	}
	if err := worker.RunProcess(context.Background(), cfg, id, signals); err != nil {
		logging.Error().Err(err).Int("worker_id", id).Msg("Worker failed")
		return exitFailure
	}
	return exitOK
}

func runMaster(cfg *config.Config) int {
	initLogging(cfg, "master")
	log := logging.With().Str("instance", uuid.NewString()).Logger()

	log.Info().Int("cpus", runtime.NumCPU()).Msgf("Number of CPUs: %d", runtime.NumCPU())
	log.Info().Msgf("Master process PID: %d", os.Getpid())
	log.Info().
		Int("workers", cfg.Pool.Workers()).
		Str("addr", cfg.Server.Addr()).
		Str("listen_mode", cfg.Server.ListenMode).
		Str("respawn_policy", cfg.Pool.RespawnPolicy).
		Str("drain_policy", cfg.Worker.DrainPolicy).
		Dur("delay", cfg.Workload.Delay).
		Msg("Configuration loaded")

	// Subscribe before forking: a signal during startup is relayed to the
	// pool instead of killing the master with its workers orphaned.
	sigCh := make(chan os.Signal, 4)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	listener, err := sharedListener(cfg)
	if err != nil {
		log.Error().Err(err).Str("addr", cfg.Server.Addr()).Msg("Failed to open shared listener")
		return exitFailure
	}
	if listener != nil {
		defer listener.Close()
	}

	spawner, err := pool.NewExecSpawner(listener)
	if err != nil {
		log.Error().Err(err).Msg("Failed to prepare worker spawner")
		return exitFailure
	}
	sup := pool.New(pool.OptionsFromConfig(cfg.Pool), spawner)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPoolService(services.NewPoolService(sup))
	tree.AddPoolService(services.NewSignalServiceWithSource(sup, sigCh))

	if cfg.Admin.Enabled {
		hub := ws.NewHub()
		sup.Subscribe(hub)
		server := &http.Server{
			Addr:              cfg.Admin.Addr(),
			Handler:           admin.NewRouter(sup, admin.Options{RateLimit: cfg.Admin.RateLimit, Hub: hub}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		tree.AddAdminService(services.NewHTTPServerService(server, 5*time.Second))
		tree.AddAdminService(services.NewEventHubService(hub))
		log.Info().Str("addr", server.Addr).Msg("Admin API enabled")
	}

	err = <-tree.ServeBackground(context.Background())
	reportUnstopped(tree)

	code, msg := classifyExit(err)
	switch {
	case code != exitOK:
		log.Error().Err(err).Msg(msg)
	case err != nil && errors.Is(err, pool.ErrStartupFailed):
		log.Info().Err(err).Msg(msg)
	default:
		log.Info().Msg(msg)
	}
	return code
}

// classifyExit maps the supervisor tree's result to the master's exit code.
// The pool service always terminates the tree, so a wrapped
// ErrTerminateSupervisorTree is the normal end after a drained shutdown.
func classifyExit(err error) (int, string) {
	switch {
	case errors.Is(err, pool.ErrStartupFailed) && errors.Is(err, pool.ErrShuttingDown):
		return exitOK, "Shut down during startup"
	case errors.Is(err, pool.ErrStartupFailed):
		return exitFailure, "Failed to start worker pool"
	case err == nil, errors.Is(err, context.Canceled):
		return exitOK, "Master stopped"
	case errors.Is(err, suture.ErrTerminateSupervisorTree) && !errors.Is(err, pool.ErrNotStarted):
		return exitOK, "All workers exited, master stopped"
	default:
		return exitFailure, "Supervisor tree failed"
	}
}

// sharedListener binds the port once in inherit mode and returns the
// socket to hand to every worker. In reuseport mode workers bind
// themselves and it returns nil.
func sharedListener(cfg *config.Config) (*os.File, error) {
	if cfg.Server.ListenMode != config.ListenInherit {
		return nil, nil
	}
	ln, err := worker.Listen(context.Background(), cfg.Server.Addr(), false)
	if err != nil {
		return nil, err
	}
	defer ln.Close()

	f, err := worker.ListenerFile(ln)
	if err != nil {
		return nil, fmt.Errorf("share listener: %w", err)
	}
	return f, nil
}

func reportUnstopped(tree *supervisor.Tree) {
	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
}

// Matchgate - competition and authentication backend for legacy game clients.
//
// Matchgate answers the SOAP calls a client makes around a ranked match:
// remote login, competition session creation, report intention and the
// binary match report upload. Decoded reports are stored in SQLite and
// archived to disk or S3; an admin API, MQTT telemetry and Discord
// notifications expose what is happening.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/energizer-project/matchgate/internal/api"
	"github.com/energizer-project/matchgate/internal/archive"
	"github.com/energizer-project/matchgate/internal/certpool"
	"github.com/energizer-project/matchgate/internal/cli"
	"github.com/energizer-project/matchgate/internal/competition"
	"github.com/energizer-project/matchgate/internal/config"
	"github.com/energizer-project/matchgate/internal/connector"
	"github.com/energizer-project/matchgate/internal/db"
	"github.com/energizer-project/matchgate/internal/events"
	"github.com/energizer-project/matchgate/internal/scheduler"
	"github.com/energizer-project/matchgate/internal/telemetry"
	"github.com/energizer-project/matchgate/internal/util"
)

const Banner = `
  __  __       _       _                 _
 |  \/  | __ _| |_ ___| |__   __ _  __ _| |_ ___
 | |\/| |/ _' | __/ __| '_ \ / _' |/ _' | __/ _ \
 | |  | | (_| | || (__| | | | (_| | (_| | ||  __/
 |_|  |_|\__,_|\__\___|_| |_|\__, |\__,_|\__\___|
                             |___/  v%s
 Competition & Auth Backend
`

func main() {
	fmt.Printf(Banner, util.Version)
	fmt.Println()

	// Defaults first; reconfigured once the config is loaded.
	if err := util.InitLogger(util.DefaultLogConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.Info().
		Str("version", util.Version).
		Str("platform", runtime.GOOS).
		Str("arch", runtime.GOARCH).
		Int("cpus", runtime.NumCPU()).
		Msg("starting Matchgate")

	config.LoadDotEnv()

	cfg, err := config.Load(config.DefaultConfigDir)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if applied := cfg.ApplyEnv(); len(applied) > 0 {
		log.Info().Strs("variables", applied).Msg("environment overrides applied")
	}

	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := config.RunSetupWizard(cfg, os.Stdin, os.Stdout); err != nil {
			log.Fatal().Err(err).Msg("setup wizard failed")
		}
		return
	}

	logging := cfg.GetLogging()
	logCfg := util.LogConfig{
		Level:      logging.Level,
		Directory:  logging.Directory,
		MaxSizeMB:  logging.MaxSizeMB,
		MaxBackups: logging.MaxBackups,
		Console:    logging.Console,
	}
	if err := util.InitLogger(logCfg); err != nil {
		log.Warn().Err(err).Msg("failed to reconfigure logger, using defaults")
	}

	validation := config.Validate(cfg)
	for _, w := range validation.Warnings {
		log.Warn().Str("field", w.Field).Msg(w.Message)
	}
	if !validation.IsValid() {
		for _, e := range validation.Errors {
			log.Error().Str("field", e.Field).Msg(e.Message)
		}
		log.Fatal().Str("path", cfg.Path()).Msg("configuration validation failed, please fix the errors above")
	}

	sysInfo := util.GetSystemInfo()
	log.Info().
		Str("hostname", sysInfo.Hostname).
		Str("os", sysInfo.OS).
		Str("cpu", sysInfo.CPUModel).
		Int("cores", sysInfo.CPUCores).
		Uint64("memory_mb", sysInfo.TotalMemory).
		Msg("system information")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := cfg.GetService()
	if err := os.MkdirAll(filepath.Dir(svc.DatabasePath), 0755); err != nil {
		log.Fatal().Err(err).Msg("failed to create database directory")
	}
	store, err := db.NewStore(svc.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", svc.DatabasePath).Msg("failed to open database")
	}

	archiver, err := archive.New(ctx, cfg.GetArchive())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize report archive")
	}

	eventBus := events.NewEventBus()

	certs := cfg.GetCertificates()
	pool := certpool.New(store, certpool.Options{
		Expiry:      certs.Expiry(),
		Placeholder: certs.Placeholder,
		EventBus:    eventBus,
	})
	seedCertificates(ctx, pool, certs.SeedFile)

	engine := competition.NewEngine(store, competition.Options{
		Layout:   cfg.GetReportLayout(),
		Archiver: archiver,
		EventBus: eventBus,
	})

	discord := connector.NewDiscordConnector(cfg.GetDiscord(), eventBus)
	if discord.Enabled() {
		log.Info().Msg("discord notifications enabled")
	}

	var (
		mqttHandler *telemetry.MQTTHandler
		publisher   scheduler.StatusPublisher
	)
	if cfg.GetMQTT().Enabled {
		mqttHandler, err = telemetry.NewMQTTHandler(cfg.GetMQTT(), eventBus)
		if err != nil {
			log.Warn().Err(err).Msg("failed to initialize MQTT, telemetry disabled")
		} else {
			publisher = mqttHandler
		}
	}

	apiServer := api.NewServer(cfg, api.Dependencies{
		Engine: engine,
		Pool:   pool,
		Stats:  store,
	})
	sched := scheduler.NewScheduler(cfg, pool, store, eventBus, publisher)

	// The console's quit command ends the process like a signal does.
	quitCh := make(chan struct{}, 1)
	eventBus.Subscribe(events.EventShutdown, "main", func(ctx context.Context, e events.Event) error {
		if e.Source != "cli" {
			return nil
		}
		select {
		case quitCh <- struct{}{}:
		default:
		}
		return nil
	})

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Int("port", svc.HTTPPort).Msg("starting HTTP server")
		if err := apiServer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info().Msg("starting task scheduler")
		if err := sched.Start(ctx); err != nil {
			log.Warn().Err(err).Msg("scheduler stopped with error")
		}
	}()

	if mqttHandler != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Msg("starting MQTT telemetry")
			if err := mqttHandler.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("MQTT telemetry failed")
			}
		}()
	}

	if svc.InteractiveConsole {
		console := cli.NewCLI(engine, pool, eventBus, os.Stdin, os.Stdout)
		// Not tracked by wg: a blocked stdin read must not hold up shutdown.
		go console.Start(ctx)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
	case <-quitCh:
		log.Info().Msg("shutdown requested from console")
	case err := <-errCh:
		log.Error().Err(err).Msg("critical error, initiating shutdown")
	}

	log.Info().Msg("initiating graceful shutdown...")
	cancel()

	timeout := time.Duration(svc.ShutdownTimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all tasks stopped gracefully")
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("shutdown timed out, forcing exit")
	}

	eventBus.Stop()

	if err := store.Close(); err != nil {
		log.Warn().Err(err).Msg("failed to close database")
	}

	log.Info().Msg("Matchgate stopped")
}

// seedCertificates loads the optional seed file into an empty pool.
func seedCertificates(ctx context.Context, pool *certpool.Pool, path string) {
	if path == "" || !util.FileExists(path) {
		return
	}
	stats, err := pool.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read certificate pool stats")
		return
	}
	if stats.Total > 0 {
		log.Debug().Int("total", stats.Total).Msg("certificate pool already provisioned, skipping seed file")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to open certificate seed file")
		return
	}
	defer f.Close()

	n, err := pool.ProvisionFrom(ctx, f)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to seed certificates")
		return
	}
	log.Info().Int("added", n).Str("path", path).Msg("certificate seed file loaded")
}

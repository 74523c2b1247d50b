package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gokaycavdar/go-loginguard/internal/config"
	"github.com/gokaycavdar/go-loginguard/internal/logging"
	"github.com/gokaycavdar/go-loginguard/pkg/alert"
	"github.com/gokaycavdar/go-loginguard/pkg/bruteforce"
	"github.com/gokaycavdar/go-loginguard/pkg/engine"
	"github.com/gokaycavdar/go-loginguard/pkg/ensemble"
	"github.com/gokaycavdar/go-loginguard/pkg/geoip"
	"github.com/gokaycavdar/go-loginguard/pkg/guard"
	"github.com/gokaycavdar/go-loginguard/pkg/rules"
	"github.com/gokaycavdar/go-loginguard/pkg/server"
	"github.com/gokaycavdar/go-loginguard/pkg/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
		Output: os.Stderr,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logging.Fatal().Err(err).Msg("loginguard stopped")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	// 1. GeoIP; without a database every lookup degrades to an error location.
	var resolver geoip.Resolver
	cityDB, err := geoip.NewService(cfg.GeoIP.CityDBPath)
	if err != nil {
		logging.Warn().Err(err).Str("path", cfg.GeoIP.CityDBPath).Msg("geoip database unavailable, locations will be unknown")
		resolver = geoip.NewStaticResolver()
	} else {
		defer cityDB.Close()
		resolver = geoip.NewBreakerResolver(cityDB, geoip.BreakerConfig{
			Name:        "geoip-city",
			MaxFailures: cfg.GeoIP.BreakerMaxFailures,
			Timeout:     cfg.GeoIP.BreakerTimeout,
		})
	}

	// 2. Rule evaluator
	evaluator := engine.NewDefault(storage.NewMemoryStore(), rules.Config{
		MaxSpeedKmh:       cfg.Rules.MaxSpeedKmh,
		ImpossibleTravel:  cfg.Rules.ImpossibleTravel,
		NewDevice:         cfg.Rules.NewDevice,
		NewBrowser:        cfg.Rules.NewBrowser,
		NewCountry:        cfg.Rules.NewCountry,
		UnusualHour:       cfg.Rules.UnusualHour,
		UnusualHourBefore: cfg.Rules.UnusualHourBefore,
		UnusualHourAfter:  cfg.Rules.UnusualHourAfter,
	})

	// 3. Brute force
	tracker, err := bruteforce.NewTracker(bruteforce.TrackerConfig{
		UserWindow:            cfg.BruteForce.UserWindow,
		IPWindow:              cfg.BruteForce.IPWindow,
		UserIPWindow:          cfg.BruteForce.UserIPWindow,
		DistinctUsersMaxPerIP: cfg.BruteForce.DistinctUsersMaxPerIP,
		DistinctUsersTTL:      cfg.BruteForce.DistinctUsersTTL,
	})
	if err != nil {
		return err
	}
	policyCfg := bruteforce.DefaultPolicyConfig()
	policyCfg.UserThreshold = cfg.BruteForce.UserThreshold
	policyCfg.IPThreshold = cfg.BruteForce.IPThreshold
	policyCfg.StuffingThreshold = cfg.BruteForce.StuffingThreshold
	policyCfg.LockThreshold = cfg.BruteForce.LockThreshold
	policyCfg.LockDuration = cfg.BruteForce.LockDuration
	policy := bruteforce.NewPolicy(tracker, policyCfg)

	// 4. Ensemble; missing artifacts are fatal when enabled.
	var combiner *ensemble.Combiner
	if cfg.Ensemble.Enabled {
		artifacts, err := ensemble.LoadArtifacts(cfg.Ensemble.ArtifactDir)
		if err != nil {
			return err
		}
		combiner, err = ensemble.NewCombinerFromArtifacts(artifacts, ensemble.Weights{
			Rule: cfg.Ensemble.RuleWeight,
			IF:   cfg.Ensemble.IFWeight,
			AE:   cfg.Ensemble.AEWeight,
		})
		if err != nil {
			return err
		}
		logging.Info().Str("dir", cfg.Ensemble.ArtifactDir).Msg("ensemble models loaded")
	}

	// 5. Persistence
	eventLog, err := openEventLog(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer eventLog.Close()

	// 6. Alerts
	var notifier alert.Notifier = alert.LogNotifier{}
	if cfg.Alert.Enabled {
		notifier, err = alert.NewSESNotifier(ctx, cfg.Alert.Region, cfg.Alert.Sender, cfg.Alert.Recipient)
		if err != nil {
			return err
		}
	}

	svc, err := guard.New(guard.Deps{
		Resolver:       resolver,
		Evaluator:      evaluator,
		Policy:         policy,
		Combiner:       combiner,
		Log:            eventLog,
		Notifier:       notifier,
		AlertThreshold: cfg.Alert.Threshold,
	})
	if err != nil {
		return err
	}

	srv, err := server.New(svc, server.Config{
		IngestRatePerSecond: cfg.Server.IngestRatePerSecond,
		IngestBurst:         cfg.Server.IngestBurst,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", cfg.Server.Addr).Str("storage", cfg.Storage.Backend).Msg("loginguard listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logging.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func openEventLog(ctx context.Context, cfg config.StorageConfig) (storage.EventLog, error) {
	switch cfg.Backend {
	case "badger":
		return storage.OpenBadgerEventLog(cfg.BadgerDir)
	case "postgres":
		return storage.OpenPostgresEventLog(ctx, cfg.PostgresDSN)
	default:
		return storage.NewFileEventLog(cfg.EventsFile, cfg.ResultsFile)
	}
}

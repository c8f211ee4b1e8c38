// Package main is the entry point for the saint/devil lottery server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"saint-devil-lottery/internal/api"
	"saint-devil-lottery/internal/bot"
	"saint-devil-lottery/internal/config"
	"saint-devil-lottery/internal/lottery"
	"saint-devil-lottery/internal/scheduler"
	"saint-devil-lottery/internal/service"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	// Load configuration
	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setupLogger(cfg.Log)

	log.Info().Str("storage", cfg.Storage.Driver).Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("Lottery server stopped with error")
	}
	log.Info().Msg("Lottery server stopped gracefully")
}

// newTelegramBot is replaced in tests.
var newTelegramBot = bot.New

func run(ctx context.Context, cfg *config.Config) error {
	loc, err := cfg.Lottery.Location()
	if err != nil {
		return err
	}

	backend, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.close()

	gc := cfg.Lottery.Generator
	generator := lottery.NewPositionGenerator(&lottery.GeneratorConfig{
		MinPosition:        gc.MinPosition,
		SpecialMinPosition: gc.SpecialMinPosition,
		MaxPosition:        gc.MaxPosition,
		SpecialChance:      gc.SpecialChance,
		MaxRedraws:         gc.MaxRedraws,
	}, nil)

	lotteryService := service.NewLotteryService(
		backend.store,
		generator,
		lottery.NewRateLimiter(cfg.Lottery.Window),
		clockwork.NewRealClock(),
		loc,
	)
	adminService := service.NewAdminService(backend.store, generator, lotteryService)

	router, err := api.NewRouter(api.RouterConfig{
		Mode:           cfg.Server.Mode,
		AdminToken:     cfg.Admin.Token,
		TrustedProxies: cfg.Server.TrustedProxies,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, api.NewHandler(lotteryService, adminService, backend.health))
	if err != nil {
		return err
	}
	if cfg.Admin.Token == "" {
		log.Warn().Msg("admin.token is empty, HTTP admin endpoints are disabled")
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sched, err := scheduler.New(cfg.Scheduler, loc, adminService)
	if err != nil {
		return err
	}

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = newTelegramBot(&bot.Dependencies{
			Config:       cfg,
			AdminService: adminService,
		})
		if err != nil {
			return err
		}
	} else {
		log.Info().Msg("bot.token is empty, Telegram admin bot disabled")
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info().Msg("Shutting down HTTP server...")
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return sched.Run(gctx)
	})

	if telegramBot != nil {
		g.Go(func() error {
			telegramBot.Start()
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			telegramBot.Stop()
			return nil
		})
	}

	return g.Wait()
}

// setupLogger applies level and format from configuration.
func setupLogger(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

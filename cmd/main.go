package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/CharlieAKAN/Coop-Keeper/config"
	"github.com/CharlieAKAN/Coop-Keeper/db"
	"github.com/CharlieAKAN/Coop-Keeper/deckrules"
	"github.com/CharlieAKAN/Coop-Keeper/delivery"
	"github.com/CharlieAKAN/Coop-Keeper/handlers"
	"github.com/CharlieAKAN/Coop-Keeper/middleware"
	"github.com/CharlieAKAN/Coop-Keeper/pairings"
	"github.com/CharlieAKAN/Coop-Keeper/repositories"
	"github.com/CharlieAKAN/Coop-Keeper/roundtimer"
	api "github.com/CharlieAKAN/Coop-Keeper/routes"
	"github.com/CharlieAKAN/Coop-Keeper/services"
	"github.com/CharlieAKAN/Coop-Keeper/storage"
)

const deckEventBuffer = 64

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		}
	}()
	logger.Info("database connection established")

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 credentials missing, exports and QR uploads disabled")
	}

	hub := delivery.NewHub(logger)
	go hub.Run()
	logger.Info("delivery hub started")

	scheduler := roundtimer.NewScheduler(hub, logger)

	rootCtx, stopNotifier := context.WithCancel(context.Background())
	defer stopNotifier()

	deckEvents := make(chan delivery.DeckSubmitted, deckEventBuffer)
	notifier := delivery.NewDeckReviewNotifier(hub, logger)
	go notifier.Run(rootCtx, deckEvents)

	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	locks := services.NewTIDLocker()
	closer := services.NewRoundCloser(scheduler, hub, logger)
	engine := pairings.NewEngine(nil)
	rulesSource := deckrules.NewFileSource(cfg.DeckRulesPath)

	authService := services.NewAuthService(cfg.AdminUsername, cfg.AdminPasswordHash, cfg.JWTSecretKey)
	tournamentService := services.NewTournamentService(tournamentRepo, uploader, locks, logger)
	playerService := services.NewPlayerService(tournamentRepo, locks, closer, hub, logger)
	deckService := services.NewDeckService(tournamentRepo, rulesSource, locks, deckEvents, logger)
	roundService := services.NewRoundService(tournamentRepo, engine, scheduler, hub, locks, closer, logger)
	standingsService := services.NewStandingsService(tournamentRepo, uploader, hub, logger)
	logger.Info("services initialized")

	authenticator := middleware.NewAuthenticator(cfg.JWTSecretKey)

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		authenticator,
		handlers.NewAuthHandler(authService),
		handlers.NewTournamentHandler(tournamentService),
		handlers.NewPlayerHandler(playerService),
		handlers.NewDeckHandler(deckService),
		handlers.NewRoundHandler(roundService),
		handlers.NewStandingsHandler(standingsService),
		handlers.NewWebSocketHandler(hub, logger),
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			os.Exit(1)
		}
		logger.Info("server shutdown complete")
	}
	logger.Info("application exited")
}

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/relaypoint/console/adapters/capture"
	"github.com/relaypoint/console/adapters/history"
	"github.com/relaypoint/console/adapters/stt"
	adapterupload "github.com/relaypoint/console/adapters/upload"
	"github.com/relaypoint/console/domain/repositories"
	"github.com/relaypoint/console/internal/api"
	"github.com/relaypoint/console/internal/auth"
	"github.com/relaypoint/console/internal/composer"
	"github.com/relaypoint/console/internal/config"
	"github.com/relaypoint/console/internal/conn"
	"github.com/relaypoint/console/internal/stream"
	"github.com/relaypoint/console/internal/upload"
	"github.com/relaypoint/console/internal/voice"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	tokens := auth.NewSource(cfg.Token)
	if claims, err := auth.Inspect(cfg.Token); err == nil {
		logger.Info("authenticated",
			zap.String("operator_id", claims.OperatorID),
			zap.String("channel_id", claims.ChannelID),
		)
	}

	// Command channel
	manager := conn.NewManager(conn.Config{
		URL:              cfg.ServerURL,
		TokenProvider:    tokens.Token,
		HandshakeTimeout: cfg.HandshakeTimeout,
		PingInterval:     cfg.PingInterval,
		PongTimeout:      cfg.PongTimeout,
		BackoffBase:      cfg.BackoffBase,
		BackoffCap:       cfg.BackoffCap,
	}, logger)

	// Message stream fed by the socket
	messages := stream.New(logger)
	frames, unsubscribe := manager.SubscribeFrames()
	defer unsubscribe()
	go messages.Run(frames)

	manager.Connect()

	// Seed the stream from history; live frames that raced ahead collapse by
	// server id.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()

		historyClient := history.NewClient(cfg.HistoryURL, cfg.Token, cfg.RequestTimeout, logger)
		past, err := historyClient.Fetch(ctx)
		if err != nil {
			logger.Warn("failed to fetch message history", zap.Error(err))
			return
		}
		if err := messages.LoadInitial(past); err != nil {
			logger.Warn("history load skipped", zap.Error(err))
		}
	}()

	// Attachment uploads
	previews, err := adapterupload.NewDiskPreviewDeriver(cfg.PreviewDir)
	if err != nil {
		logger.Fatal("failed to prepare preview storage", zap.Error(err))
	}
	uploader := adapterupload.NewClient(cfg.UploadURL, cfg.Token, cfg.RequestTimeout, logger)
	uploads := upload.NewCoordinator(uploader, previews, cfg.RequestTimeout, logger)

	// Composer
	orchestrator := composer.New(manager, uploads, messages, logger)

	// Voice capture: cloud transcription with automatic local fallback
	audioConfig := repositories.AudioConfig{
		SampleRate: cfg.SampleRate,
		Encoding:   cfg.Encoding,
		Language:   cfg.Language,
	}
	var cloud repositories.Transcriber
	if cfg.UseMockSTT {
		cloud = stt.NewMockTranscriber(logger)
	} else {
		cloud = stt.NewGoogleTranscriber()
	}
	local := stt.NewMockRecognizer(logger)
	mic := capture.NewPipeCapture(cfg.AudioSource, logger)
	recorder := voice.NewEngine(cloud, local, mic, audioConfig, cfg.RequestTimeout, orchestrator.AppendText, logger)

	// Local status surface
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	api.InitRoutes(e, manager, messages, uploads, recorder, logger)

	go func() {
		if err := e.Start(cfg.StatusAddr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the status server", zap.Error(err))
		}
	}()

	logger.Info("console started",
		zap.String("server_url", cfg.ServerURL),
		zap.String("status_addr", cfg.StatusAddr),
	)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("console is shutting down...")

	manager.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("status server forced to shutdown", zap.Error(err))
	}

	logger.Info("console exited")
}

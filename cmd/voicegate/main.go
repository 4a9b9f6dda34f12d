package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sebas/voicegate/internal/agent/elevenlabs"
	"github.com/sebas/voicegate/internal/banner"
	"github.com/sebas/voicegate/internal/config"
	"github.com/sebas/voicegate/internal/dialer"
	"github.com/sebas/voicegate/internal/dialer/twilio"
	"github.com/sebas/voicegate/internal/logger"
	"github.com/sebas/voicegate/internal/metrics"
	"github.com/sebas/voicegate/internal/server"
	"github.com/sebas/voicegate/internal/session"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		os.Exit(1)
	}

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	adapters := dialer.NewRegistry()
	if cfg.TwilioAccountSID != "" {
		twilioAdapter, err := twilio.New(twilio.Config{
			AccountSID: cfg.TwilioAccountSID,
			AuthToken:  cfg.TwilioAuthToken,
			FromNumber: cfg.TwilioFromNumber,
		})
		if err != nil {
			slog.Error("Failed to configure Twilio adapter", "error", err)
			os.Exit(1)
		}
		adapters.Register(twilioAdapter)
	}
	if len(adapters.Names()) == 0 {
		slog.Error("No telephony vendor configured")
		os.Exit(1)
	}

	if cfg.ElevenLabsAPIKey == "" {
		slog.Error("ELEVENLABS_API_KEY is required")
		os.Exit(1)
	}
	connector, err := elevenlabs.NewConnector(elevenlabs.Config{
		APIKey:     cfg.ElevenLabsAPIKey,
		APIBaseURL: cfg.ElevenLabsBaseURL,
	})
	if err != nil {
		slog.Error("Failed to configure agent connector", "error", err)
		os.Exit(1)
	}

	m := metrics.New()
	registry := session.NewRegistry(cfg.MaxSessions, cfg.GracePeriod, m)
	contexts := session.NewContextStore(cfg.ContextTTL)
	defer contexts.Close()

	srv := server.New(cfg, adapters, registry, contexts, connector, m)

	banner.Print("VoiceGate Media Gateway", []banner.ConfigLine{
		{Label: "Listen", Value: cfg.ListenAddr()},
		{Label: "Public host", Value: cfg.PublicHost},
		{Label: "Vendors", Value: strings.Join(adapters.Names(), ", ")},
		{Label: "Max sessions", Value: fmt.Sprintf("%d", cfg.MaxSessions)},
		{Label: "Max call duration", Value: cfg.MaxCallDuration.String()},
		{Label: "Environment", Value: cfg.Environment},
	})

	srv.Start()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan
	slog.Info("Received signal, shutting down", "signal", sig)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}
	registry.CloseAll()
	time.Sleep(500 * time.Millisecond)
}

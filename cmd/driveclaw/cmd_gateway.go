// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sipeed/driveclaw/pkg/assistant"
	"github.com/sipeed/driveclaw/pkg/audit"
	"github.com/sipeed/driveclaw/pkg/bus"
	"github.com/sipeed/driveclaw/pkg/channels"
	"github.com/sipeed/driveclaw/pkg/config"
	"github.com/sipeed/driveclaw/pkg/confirm"
	"github.com/sipeed/driveclaw/pkg/drive"
	"github.com/sipeed/driveclaw/pkg/logger"
	"github.com/sipeed/driveclaw/pkg/summarizer"
)

func gatewayCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.FilePath != "" {
		if err := logger.EnableFileLogging(config.ExpandHome(cfg.Logging.FilePath)); err != nil {
			logger.WarnCF("gateway", "File logging disabled", map[string]any{"error": err.Error()})
		}
	}

	fmt.Printf("%s driveclaw gateway %s\n", logo, formatVersion())

	if err := runGateway(cfg); err != nil {
		logger.ErrorCF("gateway", "Gateway stopped", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func runGateway(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	recorder, err := audit.NewLogger(audit.Config{
		Enabled:     cfg.Audit.Enabled,
		LogFilePath: config.ExpandHome(cfg.Audit.LogFilePath),
		SecretKey:   []byte(cfg.Audit.SecretKey),
	})
	if err != nil {
		return fmt.Errorf("audit logger: %w", err)
	}
	defer recorder.Close()

	if cfg.Drive.RefreshToken == "" {
		return fmt.Errorf("drive credentials missing, set DRIVECLAW_DRIVE_REFRESH_TOKEN or edit %s", config.ConfigPath())
	}
	store := drive.NewClient(cfg.Drive)

	var summ assistant.Summarizer
	if cfg.Summarizer.APIKey != "" {
		s, err := summarizer.New(cfg.Summarizer)
		if err != nil {
			return fmt.Errorf("summarizer: %w", err)
		}
		summ = s
	} else {
		logger.WarnC("gateway", "No summarizer API key, SUMMARY command disabled")
	}

	tracker := confirm.NewTracker(cfg.Confirm.TTL())
	go tracker.RunSweeper(ctx, cfg.Confirm.SweepInterval())

	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	router := assistant.NewRouter(assistant.RouterOptions{
		Tracker:      tracker,
		Store:        store,
		Summarizer:   summ,
		Recorder:     recorder,
		Timeout:      cfg.Drive.Timeout(),
		MaxFileBytes: cfg.Summarizer.MaxFileBytes,
	})
	loop := assistant.NewLoop(messageBus, router, assistant.NewFormatter(0), cfg.RateLimits)

	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		return fmt.Errorf("channels: %w", err)
	}
	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(ctx) }()

	logger.InfoC("gateway", "Gateway running, press Ctrl+C to stop")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.InfoCF("gateway", "Shutting down", map[string]any{"signal": sig.String()})
	case err := <-loopDone:
		if err != nil && ctx.Err() == nil {
			cancel()
			manager.StopAll(context.Background())
			return fmt.Errorf("message loop: %w", err)
		}
	}

	cancel()
	manager.StopAll(context.Background())
	logger.InfoC("gateway", "Goodbye")
	return nil
}

// loadConfig loads the config file, creating a default one on first
// run so the user has something to edit.
func loadConfig() (*config.Config, error) {
	path := config.ConfigPath()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		if err := config.SaveConfig(path, cfg); err != nil {
			return nil, err
		}
		fmt.Printf("Created default config at %s\n", path)
		return config.LoadConfig(path)
	}
	return config.LoadConfig(path)
}

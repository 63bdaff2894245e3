// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package main

import (
	"fmt"
	"os"

	"github.com/sipeed/driveclaw/pkg/audit"
	"github.com/sipeed/driveclaw/pkg/config"
)

func statusCmd() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("%s driveclaw %s\n\n", logo, formatVersion())
	fmt.Printf("Config: %s\n\n", config.ConfigPath())

	fmt.Println("Channels:")
	fmt.Printf("  WhatsApp:   %s\n", enabledMark(cfg.Channels.WhatsApp.Enabled))
	fmt.Printf("  Telegram:   %s\n", enabledMark(cfg.Channels.Telegram.Enabled))
	fmt.Printf("  WebSocket:  %s\n", enabledMark(cfg.Channels.WebSocket.Enabled))
	fmt.Println()

	fmt.Println("Google Drive:")
	fmt.Printf("  Client ID:      %s\n", presentMark(cfg.Drive.ClientID))
	fmt.Printf("  Client secret:  %s\n", presentMark(cfg.Drive.ClientSecret))
	fmt.Printf("  Refresh token:  %s\n", presentMark(cfg.Drive.RefreshToken))
	if cfg.Drive.RootFolderID != "" {
		fmt.Printf("  Root folder:    %s\n", cfg.Drive.RootFolderID)
	} else {
		fmt.Println("  Root folder:    (drive root)")
	}
	fmt.Println()

	fmt.Println("Summarizer:")
	fmt.Printf("  API key:  %s\n", presentMark(cfg.Summarizer.APIKey))
	fmt.Printf("  Model:    %s\n", cfg.Summarizer.Model)
	fmt.Println()

	fmt.Println("Audit log:")
	if !cfg.Audit.Enabled {
		fmt.Println("  disabled")
		return
	}
	logPath := config.ExpandHome(cfg.Audit.LogFilePath)
	fmt.Printf("  Path: %s\n", logPath)
	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		fmt.Println("  (no entries yet)")
		return
	}

	recorder, err := audit.NewLogger(audit.Config{
		Enabled:     true,
		LogFilePath: logPath,
		SecretKey:   []byte(cfg.Audit.SecretKey),
	})
	if err != nil {
		fmt.Printf("  Error opening audit log: %v\n", err)
		return
	}
	defer recorder.Close()

	count, err := recorder.Verify()
	if err != nil {
		fmt.Printf("  Chain verification FAILED: %v\n", err)
		return
	}
	fmt.Printf("  Chain verified: %d entries intact\n", count)
}

func enabledMark(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func presentMark(value string) string {
	if value != "" {
		return "configured"
	}
	return "missing"
}

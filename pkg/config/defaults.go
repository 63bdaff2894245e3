package config

const (
	defaultSummarizerModel = "gpt-4o-mini"

	// DefaultMaxFileBytes is the summarization size ceiling. Files larger
	// than this are rejected before any fetch or API call.
	DefaultMaxFileBytes int64 = 10 * 1024 * 1024
)

func DefaultConfig() *Config {
	return &Config{
		Channels: ChannelsConfig{
			WhatsApp: WhatsAppConfig{
				Enabled: false,
				DBPath:  "~/.driveclaw/whatsapp.db",
			},
			Telegram: TelegramConfig{
				Enabled: false,
			},
			WebSocket: WebSocketConfig{
				Enabled: false,
				Host:    "127.0.0.1",
				Port:    18891,
				Path:    "/ws",
			},
		},
		Drive: DriveConfig{
			BaseURL:        "https://www.googleapis.com/drive/v3",
			RootFolderID:   "root",
			TimeoutSeconds: 30,
		},
		Summarizer: SummarizerConfig{
			Model:          defaultSummarizerModel,
			MaxFileBytes:   DefaultMaxFileBytes,
			TimeoutSeconds: 60,
		},
		Confirm: ConfirmConfig{
			TTLSeconds:           300,
			SweepIntervalSeconds: 60,
		},
		Audit: AuditConfig{
			Enabled:     true,
			LogFilePath: "~/.driveclaw/audit.log",
		},
		RateLimits: RateLimitsConfig{
			Enabled:           false,
			MessagesPerMinute: 30,
			Burst:             5,
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

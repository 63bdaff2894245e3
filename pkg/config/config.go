// DriveClaw - WhatsApp Google Drive assistant
// License: MIT

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers,
// so allow_from can contain both "12345" and 12345.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Channels   ChannelsConfig   `json:"channels"`
	Drive      DriveConfig      `json:"drive"`
	Summarizer SummarizerConfig `json:"summarizer"`
	Confirm    ConfirmConfig    `json:"confirm"`
	Audit      AuditConfig      `json:"audit"`
	RateLimits RateLimitsConfig `json:"rate_limits"`
	Logging    LoggingConfig    `json:"logging"`
}

type ChannelsConfig struct {
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Telegram  TelegramConfig  `json:"telegram"`
	WebSocket WebSocketConfig `json:"websocket"`
}

type WhatsAppConfig struct {
	Enabled   bool                `json:"enabled" env:"DRIVECLAW_CHANNELS_WHATSAPP_ENABLED"`
	DBPath    string              `json:"db_path" env:"DRIVECLAW_CHANNELS_WHATSAPP_DB_PATH"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DRIVECLAW_CHANNELS_WHATSAPP_ALLOW_FROM"`
}

type TelegramConfig struct {
	Enabled   bool                `json:"enabled" env:"DRIVECLAW_CHANNELS_TELEGRAM_ENABLED"`
	Token     string              `json:"token" env:"DRIVECLAW_CHANNELS_TELEGRAM_TOKEN"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DRIVECLAW_CHANNELS_TELEGRAM_ALLOW_FROM"`
}

type WebSocketConfig struct {
	Enabled   bool                `json:"enabled" env:"DRIVECLAW_CHANNELS_WEBSOCKET_ENABLED"`
	Host      string              `json:"host" env:"DRIVECLAW_CHANNELS_WEBSOCKET_HOST"`
	Port      int                 `json:"port" env:"DRIVECLAW_CHANNELS_WEBSOCKET_PORT"`
	Path      string              `json:"path" env:"DRIVECLAW_CHANNELS_WEBSOCKET_PATH"`
	AllowFrom FlexibleStringSlice `json:"allow_from" env:"DRIVECLAW_CHANNELS_WEBSOCKET_ALLOW_FROM"`
}

type DriveConfig struct {
	ClientID       string `json:"client_id" env:"DRIVECLAW_DRIVE_CLIENT_ID"`
	ClientSecret   string `json:"client_secret" env:"DRIVECLAW_DRIVE_CLIENT_SECRET"`
	RefreshToken   string `json:"refresh_token" env:"DRIVECLAW_DRIVE_REFRESH_TOKEN"`
	RootFolderID   string `json:"root_folder_id" env:"DRIVECLAW_DRIVE_ROOT_FOLDER_ID"`
	BaseURL        string `json:"base_url" env:"DRIVECLAW_DRIVE_BASE_URL"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"DRIVECLAW_DRIVE_TIMEOUT_SECONDS"`
}

func (d DriveConfig) Timeout() time.Duration {
	if d.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(d.TimeoutSeconds) * time.Second
}

type SummarizerConfig struct {
	Model          string `json:"model" env:"DRIVECLAW_SUMMARIZER_MODEL"`
	APIKey         string `json:"api_key" env:"DRIVECLAW_SUMMARIZER_API_KEY"`
	BaseURL        string `json:"base_url" env:"DRIVECLAW_SUMMARIZER_BASE_URL"`
	MaxFileBytes   int64  `json:"max_file_bytes" env:"DRIVECLAW_SUMMARIZER_MAX_FILE_BYTES"`
	TimeoutSeconds int    `json:"timeout_seconds" env:"DRIVECLAW_SUMMARIZER_TIMEOUT_SECONDS"`
}

func (s SummarizerConfig) Timeout() time.Duration {
	if s.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.TimeoutSeconds) * time.Second
}

type ConfirmConfig struct {
	TTLSeconds           int `json:"ttl_seconds" env:"DRIVECLAW_CONFIRM_TTL_SECONDS"`
	SweepIntervalSeconds int `json:"sweep_interval_seconds" env:"DRIVECLAW_CONFIRM_SWEEP_INTERVAL_SECONDS"`
}

func (c ConfirmConfig) TTL() time.Duration {
	if c.TTLSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c ConfirmConfig) SweepInterval() time.Duration {
	if c.SweepIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

type AuditConfig struct {
	Enabled     bool   `json:"enabled" env:"DRIVECLAW_AUDIT_ENABLED"`
	LogFilePath string `json:"log_file_path" env:"DRIVECLAW_AUDIT_LOG_FILE_PATH"`
	SecretKey   string `json:"secret_key" env:"DRIVECLAW_AUDIT_SECRET_KEY"`
}

type RateLimitsConfig struct {
	Enabled           bool `json:"enabled" env:"DRIVECLAW_RATE_LIMITS_ENABLED"`
	MessagesPerMinute int  `json:"messages_per_minute" env:"DRIVECLAW_RATE_LIMITS_MESSAGES_PER_MINUTE"`
	Burst             int  `json:"burst" env:"DRIVECLAW_RATE_LIMITS_BURST"`
}

type LoggingConfig struct {
	Level    string `json:"level" env:"DRIVECLAW_LOGGING_LEVEL"`
	FilePath string `json:"file_path" env:"DRIVECLAW_LOGGING_FILE_PATH"`
}

// LoadConfig reads path (JSON), applies defaults for missing values, then
// overlays DRIVECLAW_* environment variables. A missing file is not an
// error; defaults plus env are returned.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	} else if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

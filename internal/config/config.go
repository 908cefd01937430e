// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is passed explicitly into every component at construction
type Config struct {
	ServerName   string        `yaml:"server_name"`
	ForceRetrain bool          `yaml:"force_retrain"`
	History      HistoryConfig `yaml:"history"`
	Anomaly      AnomalyConfig `yaml:"anomaly"`
	Logs         LogsConfig    `yaml:"logs"`
	Store        StoreConfig   `yaml:"store"`
	MQTT         MQTTConfig    `yaml:"mqtt"`
	HTTP         HTTPConfig    `yaml:"http"`
	Logging      LoggingConfig `yaml:"logging"`
}

// HistoryConfig locates the snapshot logs
type HistoryConfig struct {
	Path               string `yaml:"path"`
	KnownAnomaliesPath string `yaml:"known_anomalies_path"`
	EventsPath         string `yaml:"events_path"`
	RecentLimit        int    `yaml:"recent_limit"` // 0 keeps everything
	SkipKnown          bool   `yaml:"skip_known"`
}

// AnomalyConfig tunes the isolation forest and the scoring loop
type AnomalyConfig struct {
	ModelPath     string        `yaml:"model_path"`
	Contamination float64       `yaml:"contamination"`
	NumTrees      int           `yaml:"num_trees"`
	MaxSamples    int           `yaml:"max_samples"`
	Seed          int64         `yaml:"seed"`
	MinRows       int           `yaml:"min_rows"`
	PollInterval  time.Duration `yaml:"poll_interval"`
	WatchModel    bool          `yaml:"watch_model"`
}

// LogsConfig drives the log classifier
type LogsConfig struct {
	Path          string `yaml:"path"`
	ModelPath     string `yaml:"model_path"`
	AlertsPath    string `yaml:"alerts_path"`
	RemoveNumbers bool   `yaml:"remove_numbers"`
	MaxIter       int    `yaml:"max_iter"`
}

// StoreConfig enables the SQLite event index when Path is set
type StoreConfig struct {
	Path string `yaml:"path"`
}

// MQTTConfig enables anomaly fan-out when Broker is set
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"-"` // from env only
	Topic    string `yaml:"topic"`
}

// HTTPConfig enables the health/metrics/classify endpoint when ListenAddr is set
type HTTPConfig struct {
	ListenAddr      string `yaml:"listen_addr"`
	MaxPayloadBytes int64  `yaml:"max_payload_bytes"`
	APIKey          string `yaml:"-"` // from env only; empty disables auth on /classify
	TLSCert         string `yaml:"tls_cert"`
	TLSKey          string `yaml:"tls_key"`
}

// LoggingConfig controls structured logging
type LoggingConfig struct {
	Level      string `yaml:"level"`
	JSON       bool   `yaml:"json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// Default returns the configuration used when no file is given
func Default() Config {
	return Config{
		History: HistoryConfig{
			Path:               "data/snapshot_history.jsonl",
			KnownAnomaliesPath: "data/known_anomalies.jsonl",
			EventsPath:         "data/anomaly_events.jsonl",
			RecentLimit:        500,
			SkipKnown:          true,
		},
		Anomaly: AnomalyConfig{
			ModelPath:     "models/anomaly_model.json",
			Contamination: 0.05,
			NumTrees:      200,
			MaxSamples:    256,
			Seed:          42,
			MinRows:       20,
			PollInterval:  5 * time.Second,
		},
		Logs: LogsConfig{
			Path:       "data/centos_logs.txt",
			ModelPath:  "models/log_classifier.json",
			AlertsPath: "dashboard/alerts.json",
			MaxIter:    2000,
		},
		MQTT: MQTTConfig{
			ClientID: "hostwatch",
			Topic:    "hostwatch/{server}/anomaly",
		},
		HTTP: HTTPConfig{MaxPayloadBytes: 1 << 20},
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
	}
}

// Load builds Config from defaults, an optional YAML file and env overrides
func Load(path string) (*Config, error) {
	// A missing .env is the normal case
	_ = godotenv.Load()

	if path == "" {
		path = os.Getenv("HOSTWATCH_CONFIG")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if cfg.ServerName == "" {
		cfg.ServerName, _ = os.Hostname()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("HOSTWATCH_SERVER_NAME"); v != "" {
		cfg.ServerName = v
	}
	if v := os.Getenv("HOSTWATCH_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("HOSTWATCH_KNOWN_ANOMALIES_PATH"); v != "" {
		cfg.History.KnownAnomaliesPath = v
	}
	if v := os.Getenv("HOSTWATCH_EVENTS_PATH"); v != "" {
		cfg.History.EventsPath = v
	}
	if v := os.Getenv("HOSTWATCH_RECENT_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HOSTWATCH_RECENT_LIMIT: %w", err)
		}
		cfg.History.RecentLimit = n
	}
	if v := os.Getenv("HOSTWATCH_ANOMALY_MODEL_PATH"); v != "" {
		cfg.Anomaly.ModelPath = v
	}
	if v := os.Getenv("HOSTWATCH_CONTAMINATION"); v != "" {
		c, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("HOSTWATCH_CONTAMINATION: %w", err)
		}
		cfg.Anomaly.Contamination = c
	}
	if v := os.Getenv("HOSTWATCH_POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("HOSTWATCH_POLL_INTERVAL: %w", err)
		}
		cfg.Anomaly.PollInterval = d
	}
	if v := os.Getenv("HOSTWATCH_LOG_FILE"); v != "" {
		cfg.Logs.Path = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_MODEL_PATH"); v != "" {
		cfg.Logs.ModelPath = v
	}
	if v := os.Getenv("HOSTWATCH_FORCE_RETRAIN"); v != "" {
		cfg.ForceRetrain = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("HOSTWATCH_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HOSTWATCH_MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := os.Getenv("HOSTWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}
	if v := os.Getenv("HOSTWATCH_LISTEN_ADDR"); v != "" {
		cfg.HTTP.ListenAddr = v
	}
	if v := os.Getenv("HOSTWATCH_HTTP_API_KEY"); v != "" {
		cfg.HTTP.APIKey = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HOSTWATCH_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	return nil
}

// Validate rejects settings the trainer or loop cannot run with
func (c *Config) Validate() error {
	if c.Anomaly.Contamination <= 0 || c.Anomaly.Contamination >= 1 {
		return fmt.Errorf("anomaly.contamination must be in (0,1), got %v", c.Anomaly.Contamination)
	}
	if c.Anomaly.NumTrees < 1 {
		return fmt.Errorf("anomaly.num_trees must be >= 1, got %d", c.Anomaly.NumTrees)
	}
	if c.Anomaly.MaxSamples < 2 {
		return fmt.Errorf("anomaly.max_samples must be >= 2, got %d", c.Anomaly.MaxSamples)
	}
	if c.Anomaly.PollInterval <= 0 {
		return fmt.Errorf("anomaly.poll_interval must be positive, got %v", c.Anomaly.PollInterval)
	}
	if c.History.RecentLimit < 0 {
		return fmt.Errorf("history.recent_limit must be >= 0, got %d", c.History.RecentLimit)
	}
	if (c.HTTP.TLSCert == "") != (c.HTTP.TLSKey == "") {
		return errors.New("http.tls_cert and http.tls_key must be set together")
	}
	if c.HTTP.MaxPayloadBytes < 1 {
		return fmt.Errorf("http.max_payload_bytes must be >= 1, got %d", c.HTTP.MaxPayloadBytes)
	}
	if c.Logs.MaxIter < 1 {
		return fmt.Errorf("logs.max_iter must be >= 1, got %d", c.Logs.MaxIter)
	}
	return nil
}

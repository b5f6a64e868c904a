package common

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Log       LogConfig
	Pipeline  PipelineConfig
	Engines   EnginesConfig
	Store     StoreConfig
	Server    ServerConfig
	Queue     QueueConfig
	Watch     WatchConfig
	Retention RetentionConfig
}

type LogConfig struct {
	Level  slog.Level
	Format string // "json" or "text"
}

// PipelineConfig holds routing and rule configuration
type PipelineConfig struct {
	OutputDir           string
	RulesFile           string
	ConfidenceThreshold float64 // <0 keeps the rules file value
	Concurrency         int
}

// EnginesConfig selects and tunes the external engines
type EnginesConfig struct {
	OCR           string
	Transcriber   string
	Synthesizer   string
	WhisperBinary string
	WhisperModel  string
	Language      string
	TesseractBin  string
	OCRLang       string
	TessdataDir   string
	HeicConverter string
	EspeakBinary  string
	Voice         string
}

// StoreConfig holds result store configuration
type StoreConfig struct {
	Driver           string
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr      string
	HTTPAddr      string
	UploadDir     string
	MaxUploadSize int64
}

type QueueConfig struct {
	Workers        int
	Size           int
	ProcessTimeout time.Duration
}

type WatchConfig struct {
	Dirs       []string
	Debounce   time.Duration
	SkipHidden bool
}

type RetentionConfig struct {
	MaxAge   time.Duration
	Schedule string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Log: LogConfig{
			Level:  getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Pipeline: PipelineConfig{
			OutputDir:           getEnv("OUTPUT_DIR", "outputs"),
			RulesFile:           getEnv("RULES_FILE", ""),
			ConfidenceThreshold: getEnvAsFloat64("CONFIDENCE_THRESHOLD", -1),
			Concurrency:         getEnvAsInt("CONCURRENCY", 4),
		},
		Engines: EnginesConfig{
			OCR:           getEnv("OCR_ENGINE", "tesseract"),
			Transcriber:   getEnv("TRANSCRIBER", "whisper"),
			Synthesizer:   getEnv("SYNTHESIZER", "auto"),
			WhisperBinary: getEnv("WHISPER_BIN", "whisper"),
			WhisperModel:  getEnv("WHISPER_MODEL", "base"),
			Language:      getEnv("LANGUAGE", ""),
			TesseractBin:  getEnv("TESSERACT_BIN", "tesseract"),
			OCRLang:       getEnv("OCR_LANG", "eng"),
			TessdataDir:   getEnv("TESSDATA_PREFIX", ""),
			HeicConverter: getEnv("HEIC_CONVERTER", "magick"),
			EspeakBinary:  getEnv("ESPEAK_BIN", "espeak-ng"),
			Voice:         getEnv("TTS_VOICE", "en"),
		},
		Store: StoreConfig{
			Driver:           getEnv("STORE_DRIVER", ""),
			DSN:              getEnv("DB_URL", "receptro.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr:      getEnv("GRPC_ADDR", ":8080"),
			HTTPAddr:      getEnv("HTTP_ADDR", ":8081"),
			UploadDir:     getEnv("UPLOAD_DIR", "uploads"),
			MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_BYTES", 32<<20),
		},
		Queue: QueueConfig{
			Workers:        getEnvAsInt("WORKERS", 4),
			Size:           getEnvAsInt("QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("PROCESS_TIMEOUT", 3*time.Minute),
		},
		Watch: WatchConfig{
			Dirs:       getEnvAsList("WATCH_DIRS"),
			Debounce:   getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
			SkipHidden: getEnvAsBool("WATCH_SKIP_HIDDEN", true),
		},
		Retention: RetentionConfig{
			MaxAge:   getEnvAsDuration("RETENTION_MAX_AGE", 0),
			Schedule: getEnv("RETENTION_SCHEDULE", "@hourly"),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(value)); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma or os.PathListSeparator separated value.
func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.FieldsFunc(value, func(r rune) bool { return r == ',' || r == os.PathListSeparator })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks the loaded configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Pipeline.OutputDir) == "" {
		return NewAppError("CONFIG_ERROR", "OUTPUT_DIR is required", ErrInvalidInput)
	}
	if t := c.Pipeline.ConfidenceThreshold; t > 1 {
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("CONFIDENCE_THRESHOLD must be within [0,1], got %v", t), ErrInvalidInput)
	}
	if c.Queue.Workers < 1 {
		return NewAppError("CONFIG_ERROR", "WORKERS must be at least 1", ErrInvalidInput)
	}
	if c.Queue.Size < 1 {
		return NewAppError("CONFIG_ERROR", "QUEUE_SIZE must be at least 1", ErrInvalidInput)
	}
	switch c.Log.Format {
	case "json", "text":
	default:
		return NewAppError("CONFIG_ERROR", fmt.Sprintf("LOG_FORMAT must be json or text, got %q", c.Log.Format), ErrInvalidInput)
	}
	if c.Retention.MaxAge < 0 {
		return NewAppError("CONFIG_ERROR", "RETENTION_MAX_AGE must not be negative", ErrInvalidInput)
	}
	return nil
}

// ValidateServer checks the settings only the daemon needs.
func (c *Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Server.GRPCAddr == "" && c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "at least one of GRPC_ADDR or HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Store.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	return nil
}

// NewLogger builds the process logger from LogConfig.
func (c LogConfig) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level}
	if c.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}

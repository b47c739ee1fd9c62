package config

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/anthanhphan/gosdk/conflux"
	"github.com/anthanhphan/gosdk/logger"
)

// Config holds transfer service configuration
type Config struct {
	Server    ServerConfig    `json:"server" yaml:"server"`
	App       AppConfig       `json:"app" yaml:"app"`
	Upload    UploadConfig    `json:"upload" yaml:"upload"`
	Assembler AssemblerConfig `json:"assembler" yaml:"assembler"`
	Reaper    ReaperConfig    `json:"reaper" yaml:"reaper"`
	Storage   StorageConfig   `json:"storage" yaml:"storage"`
	Sessions  SessionsConfig  `json:"sessions" yaml:"sessions"`
	Queue     QueueConfig     `json:"queue" yaml:"queue"`
	Redis     RedisConfig     `json:"redis" yaml:"redis"`
	Postgres  PostgresConfig  `json:"postgres" yaml:"postgres"`
	Logger    logger.Config   `json:"logger" yaml:"logger"`
}

type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`
}

type AppConfig struct {
	NodeID int64 `json:"node_id" yaml:"node_id"`
	// RedisClock makes id generation use the Redis server clock.
	RedisClock bool `json:"redis_clock" yaml:"redis_clock"`
}

type UploadConfig struct {
	MaxFileSize       int64 `json:"max_file_size" yaml:"max_file_size"`
	MaxChunkSize      int64 `json:"max_chunk_size" yaml:"max_chunk_size"`
	MaxChunks         int   `json:"max_chunks" yaml:"max_chunks"`
	SessionTTLSeconds int   `json:"session_ttl_seconds" yaml:"session_ttl_seconds"`
}

type AssemblerConfig struct {
	MaxAttempts      int `json:"max_attempts" yaml:"max_attempts"`
	RetryBaseDelayMS int `json:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int `json:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
}

type ReaperConfig struct {
	Enabled                bool `json:"enabled" yaml:"enabled"`
	IntervalSeconds        int  `json:"interval_seconds" yaml:"interval_seconds"`
	InitialDelaySeconds    int  `json:"initial_delay_seconds" yaml:"initial_delay_seconds"`
	RetentionSeconds       int  `json:"retention_seconds" yaml:"retention_seconds"`
	ScratchMaxAgeSeconds   int  `json:"scratch_max_age_seconds" yaml:"scratch_max_age_seconds"`
	StalledAssemblySeconds int  `json:"stalled_assembly_seconds" yaml:"stalled_assembly_seconds"`
}

type StorageConfig struct {
	Driver  string   `json:"driver" yaml:"driver"` // "fs", "s3"
	DataDir string   `json:"data_dir" yaml:"data_dir"`
	FSync   bool     `json:"fsync" yaml:"fsync"`
	S3      S3Config `json:"s3" yaml:"s3"`
}

type S3Config struct {
	Endpoint  string `json:"endpoint" yaml:"endpoint"`
	AccessKey string `json:"access_key" yaml:"access_key"`
	SecretKey string `json:"secret_key" yaml:"secret_key"`
	UseSSL    bool   `json:"use_ssl" yaml:"use_ssl"`
	Region    string `json:"region" yaml:"region"`
	Bucket    string `json:"bucket" yaml:"bucket"`
}

type SessionsConfig struct {
	Driver string `json:"driver" yaml:"driver"` // "memory", "redis", "postgres"
	Prefix string `json:"prefix" yaml:"prefix"`
}

type QueueConfig struct {
	Driver      string `json:"driver" yaml:"driver"` // "local", "asynq"
	Concurrency int    `json:"concurrency" yaml:"concurrency"`
	QueueSize   int    `json:"queue_size" yaml:"queue_size"`
	// ReadyQueue is the asynq queue downstream consumers listen on.
	ReadyQueue string `json:"ready_queue" yaml:"ready_queue"`
}

type RedisConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	Password string `json:"password" yaml:"password"`
	DB       int    `json:"db" yaml:"db"`
}

type PostgresConfig struct {
	DSN      string `json:"dsn" yaml:"dsn"`
	MaxConns int32  `json:"max_conns" yaml:"max_conns"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr: ":8090",
		},
		App: AppConfig{
			NodeID: 1,
		},
		Upload: UploadConfig{
			MaxFileSize:       500 * 1024 * 1024, // 500MiB
			MaxChunkSize:      16 * 1024 * 1024,  // 16MiB
			MaxChunks:         10000,
			SessionTTLSeconds: 24 * 60 * 60,
		},
		Assembler: AssemblerConfig{
			MaxAttempts:      3,
			RetryBaseDelayMS: 500,
			RetryMaxDelayMS:  10000,
		},
		Reaper: ReaperConfig{
			Enabled:                true,
			IntervalSeconds:        60 * 60,
			InitialDelaySeconds:    30,
			RetentionSeconds:       7 * 24 * 60 * 60,
			ScratchMaxAgeSeconds:   6 * 60 * 60,
			StalledAssemblySeconds: 30 * 60,
		},
		Storage: StorageConfig{
			Driver:  "fs",
			DataDir: "./data",
		},
		Sessions: SessionsConfig{
			Driver: "memory",
			Prefix: "transfer",
		},
		Queue: QueueConfig{
			Driver:      "local",
			Concurrency: 2,
			QueueSize:   128,
			ReadyQueue:  "artifacts",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Postgres: PostgresConfig{
			MaxConns: 8,
		},
		Logger: logger.Config{
			LogLevel:    logger.LevelInfo,
			LogEncoding: logger.EncodingJSON,
		},
	}
}

// SessionTTL returns the upload window with a safe default.
func (c UploadConfig) SessionTTL() time.Duration {
	if c.SessionTTLSeconds > 0 {
		return time.Duration(c.SessionTTLSeconds) * time.Second
	}
	return 24 * time.Hour
}

// RetryBaseDelay returns the first assembler retry delay.
func (c AssemblerConfig) RetryBaseDelay() time.Duration {
	if c.RetryBaseDelayMS > 0 {
		return time.Duration(c.RetryBaseDelayMS) * time.Millisecond
	}
	return 500 * time.Millisecond
}

// RetryMaxDelay caps the assembler retry delay.
func (c AssemblerConfig) RetryMaxDelay() time.Duration {
	if c.RetryMaxDelayMS > 0 {
		return time.Duration(c.RetryMaxDelayMS) * time.Millisecond
	}
	return 10 * time.Second
}

func (c ReaperConfig) Interval() time.Duration {
	return secondsOr(c.IntervalSeconds, time.Hour)
}

func (c ReaperConfig) InitialDelay() time.Duration {
	return secondsOr(c.InitialDelaySeconds, 30*time.Second)
}

func (c ReaperConfig) Retention() time.Duration {
	return secondsOr(c.RetentionSeconds, 7*24*time.Hour)
}

func (c ReaperConfig) ScratchMaxAge() time.Duration {
	return secondsOr(c.ScratchMaxAgeSeconds, 6*time.Hour)
}

func (c ReaperConfig) StalledAssembly() time.Duration {
	return secondsOr(c.StalledAssemblySeconds, 30*time.Minute)
}

func secondsOr(v int, def time.Duration) time.Duration {
	if v > 0 {
		return time.Duration(v) * time.Second
	}
	return def
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	configPath := path
	if configPath == "" {
		env := os.Getenv("ENV")
		if env == "" {
			env = "local"
		}
		configPath = filepath.Join("internal", "transfer", "config", env+".yaml")
	}

	cfg := DefaultConfig()

	parsedCfg, err := conflux.ParseConfig(configPath, cfg)
	if err != nil {
		// The logger is not initialised yet, so report through the std logger.
		log.Printf("Config file not found or failed to parse, using defaults if file not specified. Path: %s, Error: %v", configPath, err)
		if path != "" {
			return nil, err
		}
		return cfg, nil
	}

	return parsedCfg, nil
}

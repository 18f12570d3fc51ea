package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"image-normalizer/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/wb-go/wbf/retry"
)

const defaultConfigPath = "config/local.yaml"

type Config struct {
	Env        string           `yaml:"env" env:"ENV" env-default:"local" validate:"oneof=local dev prod test"`
	Server     ServerConfig     `yaml:"server"`
	DB         DBConfig         `yaml:"db"`
	MinIO      MinIOConfig      `yaml:"minio"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	Worker     WorkerConfig     `yaml:"worker"`
	Retry      RetryConfig      `yaml:"retry"`
	Normalizer NormalizerConfig `yaml:"normalizer"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"SERVER_ADDR" env-default:"8080" validate:"required"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"SERVER_READ_TIMEOUT" env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"SERVER_WRITE_TIMEOUT" env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"SERVER_IDLE_TIMEOUT" env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"10s"`
	MaxUploadSize   int64         `yaml:"max_upload_size" env:"SERVER_MAX_UPLOAD_SIZE" env-default:"33554432" validate:"gt=0"`
}

type DBConfig struct {
	Host            string        `yaml:"host" env:"DB_HOST" env-default:"localhost" validate:"required"`
	Port            int           `yaml:"port" env:"DB_PORT" env-default:"5432" validate:"gt=0"`
	User            string        `yaml:"user" env:"DB_USER" env-default:"postgres" validate:"required"`
	Password        string        `yaml:"password" env:"DB_PASSWORD"`
	Name            string        `yaml:"name" env:"DB_NAME" env-default:"images" validate:"required"`
	SSLMode         string        `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"DB_MAX_OPEN_CONNS" env-default:"10"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"DB_MAX_IDLE_CONNS" env-default:"5"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"DB_CONN_MAX_LIFETIME" env-default:"30m"`
}

type MinIOConfig struct {
	Endpoint   string        `yaml:"endpoint" env:"MINIO_ENDPOINT" env-default:"localhost:9000" validate:"required"`
	AccessKey  string        `yaml:"access_key" env:"MINIO_ACCESS_KEY" validate:"required"`
	SecretKey  string        `yaml:"secret_key" env:"MINIO_SECRET_KEY" validate:"required"`
	Bucket     string        `yaml:"bucket" env:"MINIO_BUCKET" env-default:"images" validate:"required"`
	UseSSL     bool          `yaml:"use_ssl" env:"MINIO_USE_SSL" env-default:"false"`
	PreviewTTL time.Duration `yaml:"preview_ttl" env:"MINIO_PREVIEW_TTL" env-default:"15m" validate:"gt=0"`
}

type KafkaConfig struct {
	Brokers         []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" validate:"required,min=1"`
	ProcessingTopic string   `yaml:"processing_topic" env:"KAFKA_PROCESSING_TOPIC" env-default:"image-normalize" validate:"required"`
	ResultsTopic    string   `yaml:"results_topic" env:"KAFKA_RESULTS_TOPIC" env-default:"image-normalized" validate:"required"`
	GroupID         string   `yaml:"group_id" env:"KAFKA_GROUP_ID" env-default:"image-normalizer-group" validate:"required"`
}

type WorkerConfig struct {
	Concurrency int `yaml:"concurrency" env:"WORKER_CONCURRENCY" env-default:"4" validate:"gt=0"`
}

type RetryConfig struct {
	Attempts int           `yaml:"attempts" env:"RETRY_ATTEMPTS" env-default:"3" validate:"gt=0"`
	Delay    time.Duration `yaml:"delay" env:"RETRY_DELAY" env-default:"200ms"`
	Backoff  float64       `yaml:"backoff" env:"RETRY_BACKOFF" env-default:"2" validate:"gte=1"`
}

type NormalizerConfig struct {
	MaxDimension       int           `yaml:"max_dimension" env:"NORMALIZER_MAX_DIMENSION" env-default:"1920" validate:"gt=0"`
	MaxPixels          int64         `yaml:"max_pixels" env:"NORMALIZER_MAX_PIXELS" env-default:"50000000" validate:"gt=0"`
	MaxBytes           int64         `yaml:"max_bytes" env:"NORMALIZER_MAX_BYTES" env-default:"4718592" validate:"gt=0"`
	SizeOverheadFactor float64       `yaml:"size_overhead_factor" env:"NORMALIZER_SIZE_OVERHEAD_FACTOR" env-default:"1.37" validate:"gte=1"`
	InitialQuality     float64       `yaml:"initial_quality" env:"NORMALIZER_INITIAL_QUALITY" env-default:"0.9" validate:"gt=0,lte=1"`
	QualityDecay       float64       `yaml:"quality_decay" env:"NORMALIZER_QUALITY_DECAY" env-default:"0.9" validate:"gt=0,lt=1"`
	MaxIterations      int           `yaml:"max_iterations" env:"NORMALIZER_MAX_ITERATIONS" env-default:"10" validate:"gt=0,lte=100"`
	Interpolation      string        `yaml:"interpolation" env:"NORMALIZER_INTERPOLATION" env-default:"catmullrom" validate:"oneof=catmullrom bilinear"`
	Timeout            time.Duration `yaml:"timeout" env:"NORMALIZER_TIMEOUT" env-default:"30s" validate:"gt=0"`
}

// MustLoad reads the YAML file named by CONFIG_PATH (or config/local.yaml), lets environment
// variables override it and validates the result. Without a file only the environment is used.
func MustLoad() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	return Load(path)
}

func Load(path string) (*Config, error) {
	var cfg Config

	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if errors.Is(err, os.ErrNotExist) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("failed to read config from env: %w", err)
		}
	} else {
		return nil, fmt.Errorf("failed to stat config %s: %w", path, err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) DefaultRetryStrategy() retry.Strategy {
	return retry.Strategy{
		Attempts: c.Retry.Attempts,
		Delay:    c.Retry.Delay,
		Backoff:  c.Retry.Backoff,
	}
}

func (c *Config) DBDSN() string {
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     fmt.Sprintf("%s:%d", c.DB.Host, c.DB.Port),
		Path:     c.DB.Name,
		RawQuery: url.Values{"sslmode": []string{c.DB.SSLMode}}.Encode(),
	}
	return dsn.String()
}

func (c *Config) NormalizeOptions() domain.NormalizeOptions {
	return domain.NormalizeOptions{
		MaxDimension:       c.Normalizer.MaxDimension,
		MaxPixels:          c.Normalizer.MaxPixels,
		MaxBytes:           c.Normalizer.MaxBytes,
		SizeOverheadFactor: c.Normalizer.SizeOverheadFactor,
		InitialQuality:     c.Normalizer.InitialQuality,
		QualityDecay:       c.Normalizer.QualityDecay,
		MaxIterations:      c.Normalizer.MaxIterations,
		Interpolation:      c.Normalizer.Interpolation,
		Timeout:            c.Normalizer.Timeout,
	}
}

package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DatabaseConfig  `yaml:"database"`
	Blob      BlobConfig      `yaml:"blob"`
	MinIO     MinIOConfig     `yaml:"minio"`
	S3        S3Config        `yaml:"s3"`
	NATS      NATSConfig      `yaml:"nats"`
	Media     MediaConfig     `yaml:"media"`
	Inference InferenceConfig `yaml:"inference"`
	Sweeper   SweeperConfig   `yaml:"sweeper"`
	Logging   LoggingConfig   `yaml:"logging"`
}

type ServerConfig struct {
	Port           int           `yaml:"port" env:"BW_SERVER_PORT"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes" env:"BW_MAX_UPLOAD_BYTES"`
	ReadTimeout    time.Duration `yaml:"read_timeout" env:"BW_READ_TIMEOUT"`
	WriteTimeout   time.Duration `yaml:"write_timeout" env:"BW_WRITE_TIMEOUT"`
}

// AuthConfig maps API keys to the principal they authenticate.
type AuthConfig struct {
	APIKeys map[string]string `yaml:"api_keys" env:"BW_API_KEYS"`
}

type DatabaseConfig struct {
	Backend    string `yaml:"backend" env:"BW_DB_BACKEND"` // postgres, sqlite, memory
	Host       string `yaml:"host" env:"BW_DB_HOST"`
	Port       int    `yaml:"port" env:"BW_DB_PORT"`
	Name       string `yaml:"name" env:"BW_DB_NAME"`
	User       string `yaml:"user" env:"BW_DB_USER"`
	Password   string `yaml:"password" env:"BW_DB_PASSWORD"`
	MaxConns   int    `yaml:"max_conns" env:"BW_DB_MAX_CONNS"`
	SQLitePath string `yaml:"sqlite_path" env:"BW_SQLITE_PATH"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type BlobConfig struct {
	Backend string `yaml:"backend" env:"BW_BLOB_BACKEND"` // minio, s3, fs
	FSRoot  string `yaml:"fs_root" env:"BW_BLOB_FS_ROOT"`
}

type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint" env:"BW_MINIO_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"BW_MINIO_ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" env:"BW_MINIO_SECRET_KEY"`
	Bucket    string `yaml:"bucket" env:"BW_MINIO_BUCKET"`
	UseSSL    bool   `yaml:"use_ssl" env:"BW_MINIO_USE_SSL"`
}

type S3Config struct {
	Endpoint     string `yaml:"endpoint" env:"BW_S3_ENDPOINT"`
	Region       string `yaml:"region" env:"BW_S3_REGION"`
	AccessKey    string `yaml:"access_key" env:"BW_S3_ACCESS_KEY"`
	SecretKey    string `yaml:"secret_key" env:"BW_S3_SECRET_KEY"`
	Bucket       string `yaml:"bucket" env:"BW_S3_BUCKET"`
	UsePathStyle bool   `yaml:"use_path_style" env:"BW_S3_USE_PATH_STYLE"`
}

// NATSConfig: an empty URL disables asset events.
type NATSConfig struct {
	URL string `yaml:"url" env:"BW_NATS_URL"`
}

type MediaConfig struct {
	FFmpegPath string        `yaml:"ffmpeg_path" env:"BW_FFMPEG_PATH"`
	TempDir    string        `yaml:"temp_dir" env:"BW_MEDIA_TEMP_DIR"`
	Timeout    time.Duration `yaml:"timeout" env:"BW_MEDIA_TIMEOUT"`
}

type InferenceConfig struct {
	ModelPath   string   `yaml:"model_path" env:"BW_MODEL_PATH"`
	LibraryPath string   `yaml:"library_path" env:"BW_ORT_LIBRARY_PATH"`
	InputName   string   `yaml:"input_name" env:"BW_MODEL_INPUT_NAME"`
	OutputNames []string `yaml:"output_names" env:"BW_MODEL_OUTPUT_NAMES"`
	InputSize   int      `yaml:"input_size" env:"BW_MODEL_INPUT_SIZE"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval" env:"BW_SWEEP_INTERVAL"`
	Grace    time.Duration `yaml:"grace" env:"BW_SWEEP_GRACE"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"BW_LOG_LEVEL"`
	Format string `yaml:"format" env:"BW_LOG_FORMAT"`
}

// Load reads config from YAML file and applies environment variable overrides.
// A missing file is not an error; the environment and defaults still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	case os.IsNotExist(err):
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("apply env overrides: %w", err)
	}
	setDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadBytes == 0 {
		cfg.Server.MaxUploadBytes = 200 << 20
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 60 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}
	if cfg.Database.Backend == "" {
		cfg.Database.Backend = "postgres"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.MaxConns == 0 {
		cfg.Database.MaxConns = 20
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "buddywatch.db"
	}
	if cfg.Blob.Backend == "" {
		cfg.Blob.Backend = "minio"
	}
	if cfg.Blob.FSRoot == "" {
		cfg.Blob.FSRoot = "media"
	}
	if cfg.S3.Region == "" {
		cfg.S3.Region = "us-east-1"
	}
	if cfg.Media.FFmpegPath == "" {
		cfg.Media.FFmpegPath = "ffmpeg"
	}
	if cfg.Media.Timeout == 0 {
		cfg.Media.Timeout = 30 * time.Second
	}
	if cfg.Inference.ModelPath == "" {
		cfg.Inference.ModelPath = "models/buddywatch_face.onnx"
	}
	if cfg.Inference.InputName == "" {
		cfg.Inference.InputName = "input"
	}
	if len(cfg.Inference.OutputNames) == 0 {
		cfg.Inference.OutputNames = []string{"confidence", "bbox"}
	}
	if cfg.Inference.InputSize == 0 {
		cfg.Inference.InputSize = 120
	}
	if cfg.Sweeper.Interval == 0 {
		cfg.Sweeper.Interval = time.Hour
	}
	if cfg.Sweeper.Grace == 0 {
		cfg.Sweeper.Grace = 24 * time.Hour
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func (c *Config) validate() error {
	switch c.Database.Backend {
	case "postgres", "sqlite", "memory":
	default:
		return fmt.Errorf("unknown database backend %q", c.Database.Backend)
	}
	switch c.Blob.Backend {
	case "minio", "s3", "fs":
	default:
		return fmt.Errorf("unknown blob backend %q", c.Blob.Backend)
	}
	if len(c.Inference.OutputNames) != 2 {
		return fmt.Errorf("inference.output_names must name exactly 2 outputs, got %d", len(c.Inference.OutputNames))
	}
	return nil
}

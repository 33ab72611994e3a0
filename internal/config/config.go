package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DefaultImageKitDirective 是 ImageKit 的基础变换：300x300、人脸居中、缩放 0.75。
const DefaultImageKitDirective = "w-300,h-300,fo-face,z-0.75"

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API        APIConfig        `mapstructure:"api"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	ImageKit   ImageKitConfig   `mapstructure:"imagekit"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Migration  MigrationConfig  `mapstructure:"migration"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。Host 为空时禁用依赖 Redis 的功能。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr 返回 host:port 形式的地址。
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled 表示是否配置了 Redis。
func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint         string `mapstructure:"endpoint"`
	PublicEndpoint   string `mapstructure:"public_endpoint"`
	AccessKeyID      string `mapstructure:"access_key_id"`
	SecretAccessKey  string `mapstructure:"secret_access_key"`
	UseSSL           bool   `mapstructure:"use_ssl"`
	Bucket           string `mapstructure:"bucket"`
	Region           string `mapstructure:"region"`
	AutoCreateBucket bool   `mapstructure:"auto_create_bucket"`
}

// AuthConfig 描述 JWT 签发所需的密钥与有效期。
type AuthConfig struct {
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	TokenTTL       time.Duration `mapstructure:"token_ttl"`

	LoginRateLimitPerHour int           `mapstructure:"login_rate_limit_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
}

// EnrichmentConfig 控制头像处理服务的选择与调用方式。
type EnrichmentConfig struct {
	// Provider 取值 imagekit 或 minio。
	Provider      string        `mapstructure:"provider"`
	Timeout       time.Duration `mapstructure:"timeout"`
	Folder        string        `mapstructure:"folder"`
	BaseDirective string        `mapstructure:"base_directive"`
}

// ImageKitConfig contains credentials for the ImageKit upload API.
type ImageKitConfig struct {
	UploadURL   string `mapstructure:"upload_url"`
	PrivateKey  string `mapstructure:"private_key"`
	URLEndpoint string `mapstructure:"url_endpoint"`
}

// UploadConfig 控制上传图片的暂存与扫描。
type UploadConfig struct {
	StagingDir string `mapstructure:"staging_dir"`
	MaxBytes   int64  `mapstructure:"max_bytes"`
	ClamdAddr  string `mapstructure:"clamd_addr"`
}

// MigrationConfig 控制批量迁移的分页大小。
type MigrationConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Load reads configuration from environment variables (with optional defaults).
// A local .env file, when present, is loaded first and never overrides real env vars.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.API.AllowedOrigins = splitAndTrim(v.GetString("api.allowed_origins"))
	cfg.Enrichment.Provider = strings.ToLower(strings.TrimSpace(cfg.Enrichment.Provider))
	cfg.Enrichment.BaseDirective = strings.TrimSpace(cfg.Enrichment.BaseDirective)
	if cfg.Enrichment.Provider == "imagekit" && cfg.Enrichment.BaseDirective == "" {
		cfg.Enrichment.BaseDirective = DefaultImageKitDirective
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.allowed_origins", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "resumebuilder")
	v.SetDefault("database.user", "resumebuilder")
	v.SetDefault("database.password", "resumebuilder")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket", "resume-images")
	v.SetDefault("minio.auto_create_bucket", true)
	v.SetDefault("auth.private_key_path", "keys/jwt_private.pem")
	v.SetDefault("auth.public_key_path", "keys/jwt_public.pem")
	v.SetDefault("auth.token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.login_rate_limit_per_hour", 10)
	v.SetDefault("auth.login_lock_threshold", 5)
	v.SetDefault("auth.login_lock_ttl", 15*time.Minute)
	v.SetDefault("enrichment.provider", "imagekit")
	v.SetDefault("enrichment.timeout", 20*time.Second)
	v.SetDefault("enrichment.folder", "/user-resumes")
	v.SetDefault("imagekit.upload_url", "https://upload.imagekit.io/api/v1/files/upload")
	v.SetDefault("upload.staging_dir", "")
	v.SetDefault("upload.max_bytes", 5*1024*1024)
	v.SetDefault("migration.batch_size", 100)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                       "API_PORT",
		"api.allowed_origins":            "API_ALLOWED_ORIGINS",
		"database.host":                  "DATABASE_HOST",
		"database.port":                  "DATABASE_PORT",
		"database.name":                  "POSTGRES_DB",
		"database.user":                  "POSTGRES_USER",
		"database.password":              "POSTGRES_PASSWORD",
		"database.sslmode":               "DATABASE_SSLMODE",
		"redis.host":                     "REDIS_HOST",
		"redis.port":                     "REDIS_PORT",
		"minio.endpoint":                 "MINIO_ENDPOINT",
		"minio.public_endpoint":          "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":            "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":        "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                  "MINIO_USE_SSL",
		"minio.bucket":                   "MINIO_BUCKET",
		"minio.region":                   "MINIO_REGION",
		"minio.auto_create_bucket":       "MINIO_AUTO_CREATE_BUCKET",
		"auth.private_key_path":          "JWT_PRIVATE_KEY_PATH",
		"auth.public_key_path":           "JWT_PUBLIC_KEY_PATH",
		"auth.token_ttl":                 "JWT_TOKEN_TTL",
		"auth.login_rate_limit_per_hour": "LOGIN_RATE_LIMIT_PER_HOUR",
		"auth.login_lock_threshold":      "LOGIN_LOCK_THRESHOLD",
		"auth.login_lock_ttl":            "LOGIN_LOCK_TTL",
		"enrichment.provider":            "ENRICHMENT_PROVIDER",
		"enrichment.timeout":             "ENRICHMENT_TIMEOUT",
		"enrichment.folder":              "ENRICHMENT_FOLDER",
		"enrichment.base_directive":      "ENRICHMENT_BASE_DIRECTIVE",
		"imagekit.upload_url":            "IMAGEKIT_UPLOAD_URL",
		"imagekit.private_key":           "IMAGEKIT_PRIVATE_KEY",
		"imagekit.url_endpoint":          "IMAGEKIT_URL_ENDPOINT",
		"upload.staging_dir":             "UPLOAD_STAGING_DIR",
		"upload.max_bytes":               "UPLOAD_MAX_BYTES",
		"upload.clamd_addr":              "CLAMD_ADDR",
		"migration.batch_size":           "MIGRATION_BATCH_SIZE",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Enabled() && cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.Auth.PrivateKeyPath == "" || cfg.Auth.PublicKeyPath == "" {
		return errors.New("jwt key paths are required")
	}
	if cfg.Auth.TokenTTL <= 0 {
		return errors.New("jwt token ttl must be positive")
	}
	if cfg.Enrichment.Timeout <= 0 {
		return errors.New("enrichment timeout must be positive")
	}
	switch cfg.Enrichment.Provider {
	case "imagekit":
		if cfg.Enrichment.BaseDirective == "" {
			return errors.New("enrichment base directive is required")
		}
		if cfg.ImageKit.PrivateKey == "" {
			return errors.New("imagekit private key is required")
		}
		if cfg.ImageKit.UploadURL == "" {
			return errors.New("imagekit upload url is required")
		}
	case "minio":
		// MinIO 只做原样托管，无法执行裁剪与去背景。
		if cfg.Enrichment.BaseDirective != "" {
			return errors.New("minio provider stores images untransformed, enrichment base directive must be empty")
		}
		if cfg.MinIO.Endpoint == "" {
			return errors.New("minio endpoint is required")
		}
		if cfg.MinIO.AccessKeyID == "" {
			return errors.New("minio access key id is required")
		}
		if cfg.MinIO.SecretAccessKey == "" {
			return errors.New("minio secret access key is required")
		}
		if cfg.MinIO.Bucket == "" {
			return errors.New("minio bucket is required")
		}
	default:
		return fmt.Errorf("unsupported enrichment provider %q", cfg.Enrichment.Provider)
	}
	if cfg.Upload.MaxBytes <= 0 {
		return errors.New("upload max bytes must be positive")
	}
	if cfg.Migration.BatchSize <= 0 {
		return errors.New("migration batch size must be positive")
	}
	return nil
}

func splitAndTrim(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

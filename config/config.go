package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Upload  UploadConfig  `mapstructure:"upload"`
	Storage StorageConfig `mapstructure:"storage"`
	Backend BackendConfig `mapstructure:"backend"`
	Enhance EnhanceConfig `mapstructure:"enhance"`
	Cleanup CleanupConfig `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigins  string        `mapstructure:"cors_origins"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	Algorithm string `mapstructure:"algorithm"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type UploadConfig struct {
	MaxSize     int64    `mapstructure:"max_size"`
	AllowedExts []string `mapstructure:"allowed_exts"`
	MaxBatch    int      `mapstructure:"max_batch"`
}

type StorageConfig struct {
	Backend   string `mapstructure:"backend"` // local or s3
	LocalPath string `mapstructure:"local_path"`
	PublicURL string `mapstructure:"public_url"`

	S3Endpoint  string `mapstructure:"s3_endpoint"`
	S3AccessKey string `mapstructure:"s3_access_key"`
	S3SecretKey string `mapstructure:"s3_secret_key"`
	S3Bucket    string `mapstructure:"s3_bucket"`
	S3PublicURL string `mapstructure:"s3_public_url"`
}

type BackendConfig struct {
	AutoBGAPIKey  string        `mapstructure:"autobg_api_key"`
	AutoBGBaseURL string        `mapstructure:"autobg_base_url"`
	BiRefNetURL   string        `mapstructure:"birefnet_url"`
	EnableGrabCut bool          `mapstructure:"enable_grabcut"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

type EnhanceConfig struct {
	AutoColor bool `mapstructure:"auto_color"`
	Contrast  bool `mapstructure:"contrast"`
	Denoise   bool `mapstructure:"denoise"`
	Sharpen   bool `mapstructure:"sharpen"`
}

type CleanupConfig struct {
	Spec   string        `mapstructure:"spec"`
	MaxAge time.Duration `mapstructure:"max_age"`
}

// Load reads configuration from a YAML file, with environment variables
// taking precedence (KEROXIO_SERVER_PORT overrides server.port).
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix("KEROXIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New loads config.yaml from the working directory, falling back to defaults
// when the file is missing so the service still boots in development.
func New() *Config {
	cfg, err := Load("config.yaml")
	if err != nil {
		return getDefaultConfig()
	}
	return cfg
}

// CORSOriginsList splits the configured origins, "*" meaning any.
func (c *ServerConfig) CORSOriginsList() []string {
	if c.CORSOrigins == "*" {
		return []string{"*"}
	}
	parts := strings.Split(c.CORSOrigins, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	return origins
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.cors_origins", "http://localhost:3000,http://localhost:5173,http://localhost:19006")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.algorithm", "HS256")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_exts", []string{"jpg", "jpeg", "png", "webp"})
	v.SetDefault("upload.max_batch", 10)

	v.SetDefault("storage.backend", "local")
	v.SetDefault("storage.local_path", "./storage")
	v.SetDefault("storage.public_url", "/storage")
	v.SetDefault("storage.s3_bucket", "keroxio-images")

	v.SetDefault("backend.autobg_base_url", "https://www.autobg.ai/api")
	v.SetDefault("backend.birefnet_url", "")
	v.SetDefault("backend.enable_grabcut", true)
	v.SetDefault("backend.max_concurrent", 3)
	v.SetDefault("backend.queue_timeout", 30*time.Second)

	v.SetDefault("enhance.auto_color", true)
	v.SetDefault("enhance.contrast", true)
	v.SetDefault("enhance.denoise", false)
	v.SetDefault("enhance.sharpen", true)

	v.SetDefault("cleanup.spec", "@hourly")
	v.SetDefault("cleanup.max_age", 72*time.Hour)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			CORSOrigins:  "http://localhost:3000,http://localhost:5173,http://localhost:19006",
		},
		Auth: AuthConfig{
			Algorithm: "HS256",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Upload: UploadConfig{
			MaxSize:     10 * 1024 * 1024,
			AllowedExts: []string{"jpg", "jpeg", "png", "webp"},
			MaxBatch:    10,
		},
		Storage: StorageConfig{
			Backend:   "local",
			LocalPath: "./storage",
			PublicURL: "/storage",
			S3Bucket:  "keroxio-images",
		},
		Backend: BackendConfig{
			AutoBGBaseURL: "https://www.autobg.ai/api",
			EnableGrabCut: true,
			MaxConcurrent: 3,
			QueueTimeout:  30 * time.Second,
		},
		Enhance: EnhanceConfig{
			AutoColor: true,
			Contrast:  true,
			Sharpen:   true,
		},
		Cleanup: CleanupConfig{
			Spec:   "@hourly",
			MaxAge: 72 * time.Hour,
		},
	}
}

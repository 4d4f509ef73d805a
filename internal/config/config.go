package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App      AppConfig      `yaml:"app"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Storage  StorageConfig  `yaml:"storage"`
	Workers  WorkersConfig  `yaml:"workers"`
	Upload   UploadConfig   `yaml:"upload"`
	Template TemplateConfig `yaml:"template"`
	Grades   GradesConfig   `yaml:"grades"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type AppConfig struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Env     string `yaml:"env"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
}

type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	Charset            string        `yaml:"charset"`
	ParseTime          bool          `yaml:"parse_time"`
	Loc                string        `yaml:"loc"`
	MaxConnections     int           `yaml:"max_connections"`
	MaxIdleConnections int           `yaml:"max_idle_connections"`
	ConnectionLifetime time.Duration `yaml:"connection_lifetime"`
	AutoMigrate        bool          `yaml:"auto_migrate"`
}

type RedisConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	PoolSize     int           `yaml:"pool_size"`
	RewriteQueue string        `yaml:"rewrite_queue"`
	DLQSuffix    string        `yaml:"dlq_suffix"`
	LockPrefix   string        `yaml:"lock_prefix"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
}

const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

type StorageConfig struct {
	Driver string      `yaml:"driver"`
	Local  LocalConfig `yaml:"local"`
	S3     S3Config    `yaml:"s3"`
}

type LocalConfig struct {
	Root string `yaml:"root"`
}

type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type WorkersConfig struct {
	Rewrite RewriteWorkerConfig `yaml:"rewrite"`
}

type RewriteWorkerConfig struct {
	Count     int `yaml:"count"`
	QueueSize int `yaml:"queue_size"`
}

type UploadConfig struct {
	MaxSize           int64    `yaml:"max_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// TemplateConfig holds the cell coordinates of the ministry gradebook
// layout. Zero values fall back to the standard template.
type TemplateConfig struct {
	SchoolRow       int `yaml:"school_row"`
	HeaderRow       int `yaml:"header_row"`
	FirstStudentRow int `yaml:"first_student_row"`
	HeaderRows      int `yaml:"header_rows"`
}

const (
	WritebackSync  = "sync"
	WritebackQueue = "queue"
)

type GradesConfig struct {
	Writeback string `yaml:"writeback"`
}

type AuthConfig struct {
	JWTSecret      string        `yaml:"jwt_secret"`
	TokenTTL       time.Duration `yaml:"token_ttl"`
	GoogleClientID string        `yaml:"google_client_id"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads CONFIG_PATH (default config.yaml). A .env file in the working
// directory is loaded first and ${VAR} references in the YAML are expanded
// from the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML config data.
func Parse(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate fills defaults and rejects settings the services cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Database.Charset == "" {
		c.Database.Charset = "utf8mb4"
	}
	if c.Database.Loc == "" {
		c.Database.Loc = "UTC"
	}
	if c.Redis.RewriteQueue == "" {
		c.Redis.RewriteQueue = "gradebook:rewrite"
	}
	if c.Redis.DLQSuffix == "" {
		c.Redis.DLQSuffix = ":dlq"
	}
	if c.Redis.LockPrefix == "" {
		c.Redis.LockPrefix = "gradebook:lock:"
	}
	if c.Redis.LockTTL <= 0 {
		c.Redis.LockTTL = 30 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = StorageLocal
	}
	if c.Storage.Local.Root == "" {
		c.Storage.Local.Root = "data"
	}
	if c.Workers.Rewrite.Count <= 0 {
		c.Workers.Rewrite.Count = 4
	}
	if c.Workers.Rewrite.QueueSize <= 0 {
		c.Workers.Rewrite.QueueSize = 64
	}
	if c.Upload.MaxSize == 0 {
		c.Upload.MaxSize = 10 << 20
	}
	if len(c.Upload.AllowedExtensions) == 0 {
		c.Upload.AllowedExtensions = []string{".xls", ".xlsx"}
	}
	for i, ext := range c.Upload.AllowedExtensions {
		ext = strings.ToLower(ext)
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		c.Upload.AllowedExtensions[i] = ext
	}
	if c.Grades.Writeback == "" {
		c.Grades.Writeback = WritebackSync
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}

	switch c.Storage.Driver {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Grades.Writeback {
	case WritebackSync, WritebackQueue:
	default:
		return fmt.Errorf("unknown grades.writeback mode %q", c.Grades.Writeback)
	}
	if c.Upload.MaxSize < 0 {
		return fmt.Errorf("upload.max_size must not be negative")
	}
	if c.Template.HeaderRow < 0 || c.Template.SchoolRow < 0 || c.Template.FirstStudentRow < 0 || c.Template.HeaderRows < 0 {
		return fmt.Errorf("template coordinates must not be negative")
	}
	return nil
}

// MySQL DSN format: [username[:password]@][protocol[(address)]]/dbname[?param1=value1&...&paramN=valueN]
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s&multiStatements=true",
		c.Database.User, c.Database.Password, c.Database.Host, c.Database.Port,
		c.Database.Name, c.Database.Charset, c.Database.ParseTime, c.Database.Loc)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

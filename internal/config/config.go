package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr           string        `yaml:"listen_addr"`
	Port                 string        `yaml:"port"`
	DatabasePath         string        `yaml:"database_path"`
	ActivityDatabasePath string        `yaml:"activity_database_path"`
	SessionSecret        string        `yaml:"session_secret"`
	GinMode              string        `yaml:"gin_mode"`
	UploadDir            string        `yaml:"upload_dir"`
	UploadURLPath        string        `yaml:"upload_url_path"`
	FilesystemDisk       string        `yaml:"filesystem_disk"`
	SuperRootUserName    string        `yaml:"super_root_user_name"`
	SuperRootPassword    string        `yaml:"super_root_password"`
	LogLevel             string        `yaml:"log_level"`
	LogFormat            string        `yaml:"log_format"`
	SlowQueryThreshold   time.Duration `yaml:"slow_query_threshold"`
	MaxUploadBytes       int64         `yaml:"max_upload_bytes"`
	MaxImageWidth        int           `yaml:"max_image_width"`
	AuditDeniedAttempts  bool          `yaml:"audit_denied_attempts"`
}

const (
	defaultMaxUploadBytes = 10 << 20
	defaultMaxImageWidth  = 1600
)

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// 若设置了 CONFIG_FILE，则在环境变量之上叠加 YAML 文件中的非空配置。
func Load() AppConfig {
	cfg := fromEnv()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		overlaid, err := LoadFile(cfg, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: ignoring %s: %v\n", path, err)
			return cfg
		}
		return overlaid
	}

	return cfg
}

// LoadFile decodes a YAML document and applies every non-zero field on top of base.
func LoadFile(base AppConfig, path string) (AppConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return base, err
	}

	var file AppConfig
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return base, fmt.Errorf("decode yaml: %w", err)
	}

	return merge(base, file), nil
}

func fromEnv() AppConfig {
	port := envOr("PORT", "8080")

	listenAddr := envOr("LISTEN_ADDR", fmt.Sprintf(":%s", port))

	return AppConfig{
		ListenAddr:           listenAddr,
		Port:                 port,
		DatabasePath:         envOr("DATABASE_PATH", "folio.db"),
		ActivityDatabasePath: envOr("ACTIVITY_DATABASE_PATH", "folio-activity.db"),
		SessionSecret:        envOr("SESSION_SECRET", "folio-dev-secret"),
		GinMode:              envOr("GIN_MODE", "release"),
		UploadDir:            envOr("UPLOAD_DIR", "web/static/uploads"),
		UploadURLPath:        envOr("UPLOAD_URL_PATH", "/static/uploads"),
		FilesystemDisk:       envOr("FILESYSTEM_DISK", "public"),
		SuperRootUserName:    strings.TrimSpace(os.Getenv("SUPER_ROOT_USER_NAME")),
		SuperRootPassword:    strings.TrimSpace(os.Getenv("SUPER_ROOT_PASSWORD")),
		LogLevel:             envOr("LOG_LEVEL", "info"),
		LogFormat:            envOr("LOG_FORMAT", "text"),
		SlowQueryThreshold:   envDuration("SLOW_QUERY_THRESHOLD", time.Second),
		MaxUploadBytes:       envInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		MaxImageWidth:        int(envInt64("MAX_IMAGE_WIDTH", defaultMaxImageWidth)),
		AuditDeniedAttempts:  envBool("AUDIT_DENIED_ATTEMPTS", false),
	}
}

func merge(base, file AppConfig) AppConfig {
	out := base
	overrideString(&out.ListenAddr, file.ListenAddr)
	overrideString(&out.Port, file.Port)
	overrideString(&out.DatabasePath, file.DatabasePath)
	overrideString(&out.ActivityDatabasePath, file.ActivityDatabasePath)
	overrideString(&out.SessionSecret, file.SessionSecret)
	overrideString(&out.GinMode, file.GinMode)
	overrideString(&out.UploadDir, file.UploadDir)
	overrideString(&out.UploadURLPath, file.UploadURLPath)
	overrideString(&out.FilesystemDisk, file.FilesystemDisk)
	overrideString(&out.SuperRootUserName, file.SuperRootUserName)
	overrideString(&out.SuperRootPassword, file.SuperRootPassword)
	overrideString(&out.LogLevel, file.LogLevel)
	overrideString(&out.LogFormat, file.LogFormat)
	if file.SlowQueryThreshold > 0 {
		out.SlowQueryThreshold = file.SlowQueryThreshold
	}
	if file.MaxUploadBytes > 0 {
		out.MaxUploadBytes = file.MaxUploadBytes
	}
	if file.MaxImageWidth > 0 {
		out.MaxImageWidth = file.MaxImageWidth
	}
	if file.AuditDeniedAttempts {
		out.AuditDeniedAttempts = true
	}
	return out
}

func overrideString(dst *string, value string) {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		*dst = trimmed
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envInt64(key string, fallback int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envDuration(key string, fallback time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func envBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

// ErrMissingSuperRoot 表示未配置超级管理员账号。
var ErrMissingSuperRoot = errors.New("super root credentials are not configured")

// SuperRoot returns the configured bootstrap credentials.
func (c AppConfig) SuperRoot() (string, string, error) {
	if c.SuperRootUserName == "" || c.SuperRootPassword == "" {
		return "", "", ErrMissingSuperRoot
	}
	return c.SuperRootUserName, c.SuperRootPassword, nil
}

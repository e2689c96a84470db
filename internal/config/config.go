// Package config loads signspeak settings from defaults, an optional YAML
// file and SIGNSPEAK_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable the config reads.
const EnvPrefix = "SIGNSPEAK_"

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Detector    DetectorConfig    `yaml:"detector"`
	Notify      NotifyConfig      `yaml:"notify"`
	Admin       AdminConfig       `yaml:"admin"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	StaticDir      string   `yaml:"static_dir"`
	SessionSecret  string   `yaml:"session_secret"`
	SecureCookies  bool     `yaml:"secure_cookies"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Tray           bool     `yaml:"tray"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RecognitionConfig struct {
	CameraID        int           `yaml:"camera_id"`
	LiveInterval    time.Duration `yaml:"live_interval"`
	CaptureInterval time.Duration `yaml:"capture_interval"`
	AutoStart       string        `yaml:"auto_start"` // "", "live" or "capture"
	SamplesFile     string        `yaml:"samples_file"`
}

type DetectorConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ScriptPath string `yaml:"script_path"`
	PythonPath string `yaml:"python_path"`
}

type NotifyConfig struct {
	Command string        `yaml:"command"`
	Args    []string      `yaml:"args"`
	Timeout time.Duration `yaml:"timeout"`
}

// AdminConfig bootstraps an admin account at startup when Email is set.
type AdminConfig struct {
	FullName string `yaml:"fullname"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in settings.
func Default() *Config {
	dataDir := ".signspeak"
	if home, err := os.UserHomeDir(); err == nil {
		dataDir = filepath.Join(home, ".signspeak")
	}

	return &Config{
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173"},
		},
		Database: DatabaseConfig{
			Path: filepath.Join(dataDir, "signspeak.db"),
		},
		Recognition: RecognitionConfig{
			LiveInterval:    1500 * time.Millisecond,
			CaptureInterval: 300 * time.Millisecond,
		},
		Detector: DetectorConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Timeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path may be empty; a missing file is an error
// only when path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	var errs []error

	envString("ADDR", &c.Server.Addr)
	envString("STATIC_DIR", &c.Server.StaticDir)
	envString("SESSION_SECRET", &c.Server.SessionSecret)
	errs = append(errs, envBool("SECURE_COOKIES", &c.Server.SecureCookies))
	envList("ALLOWED_ORIGINS", &c.Server.AllowedOrigins)
	errs = append(errs, envBool("TRAY", &c.Server.Tray))

	envString("DB_PATH", &c.Database.Path)

	errs = append(errs, envInt("CAMERA_ID", &c.Recognition.CameraID))
	errs = append(errs, envDuration("LIVE_INTERVAL", &c.Recognition.LiveInterval))
	errs = append(errs, envDuration("CAPTURE_INTERVAL", &c.Recognition.CaptureInterval))
	envString("AUTO_START", &c.Recognition.AutoStart)
	envString("SAMPLES_FILE", &c.Recognition.SamplesFile)

	errs = append(errs, envBool("DETECTOR_ENABLED", &c.Detector.Enabled))
	envString("DETECTOR_SCRIPT", &c.Detector.ScriptPath)
	envString("DETECTOR_PYTHON", &c.Detector.PythonPath)

	envString("NOTIFY_COMMAND", &c.Notify.Command)
	envList("NOTIFY_ARGS", &c.Notify.Args)
	errs = append(errs, envDuration("NOTIFY_TIMEOUT", &c.Notify.Timeout))

	envString("ADMIN_NAME", &c.Admin.FullName)
	envString("ADMIN_EMAIL", &c.Admin.Email)
	envString("ADMIN_PASSWORD", &c.Admin.Password)

	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)

	return errors.Join(errs...)
}

// Validate checks values that would otherwise fail later at runtime.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server address is required")
	}
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Recognition.LiveInterval <= 0 || c.Recognition.CaptureInterval <= 0 {
		return errors.New("recognition intervals must be positive")
	}
	switch strings.ToLower(c.Recognition.AutoStart) {
	case "", "live", "capture":
	default:
		return fmt.Errorf("unknown auto_start mode %q", c.Recognition.AutoStart)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return errors.New("admin password is required when admin email is set")
	}
	return nil
}

// SetupLogging configures the standard logrus logger.
func (c *Config) SetupLogging() {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if c.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

func envList(key string, dst *[]string) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return
	}
	out := make([]string, 0)
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	DayOffset int `yaml:"day_offset"`
	Paths     struct {
		SourceRoot  string `yaml:"source_root"`
		ArchiveRoot string `yaml:"archive_root"`
	} `yaml:"paths"`
	Encoder struct {
		Path    string        `yaml:"path"`
		Args    []string      `yaml:"args"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"encoder"`
	Codec struct {
		SourceExt string `yaml:"source_ext"`
		TargetExt string `yaml:"target_ext"`
		Naming    string `yaml:"naming"`
	} `yaml:"codec"`
	Database struct {
		Driver   string `yaml:"driver"`
		DSN      string `yaml:"dsn"`
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		Table    string `yaml:"table"`
		Column   string `yaml:"column"`
	} `yaml:"database"`
	Mail struct {
		Host       string `yaml:"host"`
		Port       int    `yaml:"port"`
		TLS        string `yaml:"tls"`
		Username   string `yaml:"username"`
		Password   string `yaml:"password"`
		From       string `yaml:"from"`
		FromDomain string `yaml:"from_domain"`
		To         string `yaml:"to"`
	} `yaml:"mail"`
	Redis struct {
		URL     string        `yaml:"url"`
		LockTTL time.Duration `yaml:"lock_ttl"`
	} `yaml:"redis"`
	Log struct {
		Level  string `yaml:"level"`
		File   string `yaml:"file"`
		Syslog bool   `yaml:"syslog"`
	} `yaml:"log"`
}

func Default() Config {
	var cfg Config
	cfg.DayOffset = 1
	cfg.Paths.SourceRoot = "/var/spool/asterisk/monitor"
	cfg.Paths.ArchiveRoot = "/mnt/asterisk/monitor"
	cfg.Encoder.Path = "lame"
	cfg.Codec.SourceExt = "wav"
	cfg.Codec.TargetExt = "mp3"
	cfg.Codec.Naming = "extension"
	cfg.Database.Driver = "mysql"
	cfg.Database.Host = "127.0.0.1"
	cfg.Database.Port = 3306
	cfg.Database.Name = "asteriskcdrdb"
	cfg.Database.Table = "cdr"
	cfg.Database.Column = "recordingfile"
	cfg.Mail.Port = 465
	cfg.Mail.TLS = "implicit"
	cfg.Redis.LockTTL = 6 * time.Hour
	cfg.Log.Level = "info"
	return cfg
}

// Load layers the YAML file at path (if any) and RA_* environment variables
// over Default. A missing file is not an error. Call Validate on the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, err
			}
		} else {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("RA_DAY_OFFSET"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("RA_DAY_OFFSET must be an integer")
		}
		cfg.DayOffset = n
	}
	if v := os.Getenv("RA_SOURCE_ROOT"); v != "" {
		cfg.Paths.SourceRoot = v
	}
	if v := os.Getenv("RA_ARCHIVE_ROOT"); v != "" {
		cfg.Paths.ArchiveRoot = v
	}
	if v := os.Getenv("RA_ENCODER_PATH"); v != "" {
		cfg.Encoder.Path = v
	}
	if v := os.Getenv("RA_ENCODER_ARGS"); v != "" {
		cfg.Encoder.Args = strings.Fields(v)
	}
	if v := os.Getenv("RA_ENCODER_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Encoder.Timeout = d
		}
	}
	if v := os.Getenv("RA_SOURCE_EXT"); v != "" {
		cfg.Codec.SourceExt = v
	}
	if v := os.Getenv("RA_TARGET_EXT"); v != "" {
		cfg.Codec.TargetExt = v
	}
	if v := os.Getenv("RA_NAMING"); v != "" {
		cfg.Codec.Naming = v
	}
	if v := os.Getenv("RA_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("RA_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("RA_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("RA_DB_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = p
		}
	}
	if v := os.Getenv("RA_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("RA_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("RA_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("RA_DB_TABLE"); v != "" {
		cfg.Database.Table = v
	}
	if v := os.Getenv("RA_DB_COLUMN"); v != "" {
		cfg.Database.Column = v
	}
	if v := os.Getenv("RA_MAIL_HOST"); v != "" {
		cfg.Mail.Host = v
	}
	if v := os.Getenv("RA_MAIL_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Mail.Port = p
		}
	}
	if v := os.Getenv("RA_MAIL_TLS"); v != "" {
		cfg.Mail.TLS = v
	}
	if v := os.Getenv("RA_MAIL_USERNAME"); v != "" {
		cfg.Mail.Username = v
	}
	if v := os.Getenv("RA_MAIL_PASSWORD"); v != "" {
		cfg.Mail.Password = v
	}
	if v := os.Getenv("RA_MAIL_FROM"); v != "" {
		cfg.Mail.From = v
	}
	if v := os.Getenv("RA_MAIL_FROM_DOMAIN"); v != "" {
		cfg.Mail.FromDomain = v
	}
	if v := os.Getenv("RA_MAIL_TO"); v != "" {
		cfg.Mail.To = v
	}
	if v := os.Getenv("RA_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("RA_REDIS_LOCK_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Redis.LockTTL = d
		}
	}
	if v := os.Getenv("RA_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RA_LOG_FILE"); v != "" {
		cfg.Log.File = v
	}
	if v := os.Getenv("RA_LOG_SYSLOG"); v != "" {
		cfg.Log.Syslog = parseBool(v, cfg.Log.Syslog)
	}
	return nil
}

// LogLevel maps log.level to a slog level. Unknown values mean info.
func (c Config) LogLevel() slog.Level {
	switch strings.ToUpper(strings.TrimSpace(c.Log.Level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseBool(input string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

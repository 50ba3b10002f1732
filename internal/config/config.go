package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type Config struct {
	Mode     Mode   `yaml:"mode"`
	HTTPAddr string `yaml:"http_addr"`

	UpstreamURL     string        `yaml:"upstream_url"`
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	DBDriver string `yaml:"db_driver"`
	DBDSN    string `yaml:"db_dsn"`

	BlobBasePath string `yaml:"blob_base_path"`

	AuthHMACSecret string        `yaml:"auth_hmac_secret"`
	SessionTTL     time.Duration `yaml:"session_ttl"`

	EnableLocalAuth bool   `yaml:"enable_local_auth"`
	AdminUser       string `yaml:"admin_user"`
	AdminPassHash   string `yaml:"admin_pass_hash"` // bcrypt

	CORSOriginsOnline  []string `yaml:"cors_origins_online"`
	CORSOriginsOffline []string `yaml:"cors_origins_offline"`

	LogPath  string `yaml:"log_path"`
	LogLevel string `yaml:"log_level"`
}

// CORSOrigins returns the allowed browser origins for the current mode.
func (c Config) CORSOrigins() []string {
	if c.Mode == ModeOnline {
		return c.CORSOriginsOnline
	}
	return c.CORSOriginsOffline
}

func defaults() Config {
	return Config{
		Mode:               ModeOffline,
		HTTPAddr:           ":8080",
		UpstreamURL:        "http://localhost:3001/api",
		UpstreamTimeout:    15 * time.Second,
		DBDriver:           "sqlite",
		BlobBasePath:       "./data",
		AuthHMACSecret:     "dev-secret-change-me",
		SessionTTL:         24 * time.Hour,
		EnableLocalAuth:    true,
		AdminUser:          "admin",
		AdminPassHash:      "$2y$12$pyZAiWaTfVtM7UElIRStvOC3gNbnp70nmQU4eYopLGBfCJr1DOvji",
		CORSOriginsOnline:  []string{"https://label.example.com"},
		CORSOriginsOffline: []string{"http://localhost:3000", "http://localhost:5173"},
		LogPath:            "logs/labeld.log",
		LogLevel:           "info",
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE (if
// set), then applies environment overrides.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &base); err != nil {
			return Config{}, fmt.Errorf("unmarshal config: %w", err)
		}
	}
	cfg, err := fromEnv(base)
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

// FromEnv builds a Config from defaults and environment variables only.
func FromEnv() (Config, error) {
	return fromEnv(defaults())
}

func fromEnv(base Config) (Config, error) {
	upTimeout, err := envDuration("UPSTREAM_TIMEOUT", base.UpstreamTimeout)
	if err != nil {
		return Config{}, err
	}
	ttl, err := envDuration("SESSION_TTL", base.SessionTTL)
	if err != nil {
		return Config{}, err
	}
	return Config{
		Mode:               Mode(envOr("MODE", string(base.Mode))),
		HTTPAddr:           envOr("HTTP_ADDR", base.HTTPAddr),
		UpstreamURL:        envOr("UPSTREAM_URL", base.UpstreamURL),
		UpstreamTimeout:    upTimeout,
		DBDriver:           envOr("DB_DRIVER", base.DBDriver),
		DBDSN:              envOr("DB_DSN", base.DBDSN),
		BlobBasePath:       envOr("BLOB_BASE_PATH", base.BlobBasePath),
		AuthHMACSecret:     envOr("AUTH_HMAC_SECRET", base.AuthHMACSecret),
		SessionTTL:         ttl,
		EnableLocalAuth:    envBool("ENABLE_LOCAL_AUTH", base.EnableLocalAuth),
		AdminUser:          envOr("ADMIN_USER", base.AdminUser),
		AdminPassHash:      envOr("ADMIN_PASS_HASH", base.AdminPassHash),
		CORSOriginsOnline:  csvOr("CORS_ORIGINS_ONLINE", base.CORSOriginsOnline),
		CORSOriginsOffline: csvOr("CORS_ORIGINS_OFFLINE", base.CORSOriginsOffline),
		LogPath:            envOr("LOG_PATH", base.LogPath),
		LogLevel:           envOr("LOG_LEVEL", base.LogLevel),
	}, nil
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeOffline, ModeOnline:
	default:
		return fmt.Errorf("MODE must be offline or online, got %q", c.Mode)
	}
	if c.Mode == ModeOnline && c.AuthHMACSecret == defaults().AuthHMACSecret {
		return errors.New("AUTH_HMAC_SECRET must be set in online mode")
	}
	return nil
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
func envBool(k string, def bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return def
	}
}
func envDuration(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}
func csvOr(k string, def []string) []string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

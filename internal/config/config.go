package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		// dev | staging | prod
		Env      string `yaml:"env"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"app"`

	Server struct {
		Addr               string   `yaml:"addr"`
		CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`
		// BackendURL es la URL pública del servicio; sintetiza los
		// redirect_uri como {backend_url}/sync/{provider}/oauth2callback.
		BackendURL string `yaml:"backend_url"`
	} `yaml:"server"`

	Storage struct {
		Driver   string `yaml:"driver"` // postgres | memory
		DSN      string `yaml:"dsn"`
		Postgres struct {
			MaxOpenConns    int    `yaml:"max_open_conns"`
			MaxIdleConns    int    `yaml:"max_idle_conns"`
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Auth struct {
		// JWTSecret valida los bearer tokens emitidos por el servicio de identidad.
		JWTSecret string `yaml:"jwt_secret"`
		Issuer    string `yaml:"issuer"`
	} `yaml:"auth"`

	Rate struct {
		Enabled bool `yaml:"enabled"`
		// Backend del contador: redis | memory
		Backend string `yaml:"backend"`
		Redis   struct {
			Addr     string `yaml:"addr"`
			Password string `yaml:"password"`
			DB       int    `yaml:"db"`
			Prefix   string `yaml:"prefix"`
		} `yaml:"redis"`
		Authorize struct {
			Limit  int    `yaml:"limit"`
			Window string `yaml:"window"`
		} `yaml:"authorize"`
	} `yaml:"rate"`

	Providers struct {
		Dropbox struct {
			AppKey    string `yaml:"app_key"`
			AppSecret string `yaml:"app_secret"`
		} `yaml:"dropbox"`
		GitHub struct {
			ClientID     string `yaml:"client_id"`
			ClientSecret string `yaml:"client_secret"`
		} `yaml:"github"`
	} `yaml:"providers"`

	Sync struct {
		// PendingTTL: edad máxima de un attachment PENDING antes de que el
		// janitor lo pase a REVOKED. 0 desactiva el janitor.
		PendingTTL      time.Duration `yaml:"pending_ttl"`
		JanitorInterval time.Duration `yaml:"janitor_interval"`
		// UpstreamTimeout acota cada llamada saliente al provider.
		UpstreamTimeout time.Duration `yaml:"upstream_timeout"`
	} `yaml:"sync"`

	Flags struct {
		Migrate bool `yaml:"migrate"`
	} `yaml:"flags"`
}

// Load lee el YAML (opcional), aplica defaults y luego overrides por env.
// El env siempre gana sobre el YAML.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":5050"
	}
	if c.Server.BackendURL == "" {
		c.Server.BackendURL = "http://localhost:5050"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "memory"
	}
	if c.Rate.Backend == "" {
		c.Rate.Backend = "memory"
	}
	if c.Rate.Authorize.Limit == 0 {
		c.Rate.Authorize.Limit = 10
	}
	if c.Rate.Authorize.Window == "" {
		c.Rate.Authorize.Window = "1m"
	}
	if c.Sync.PendingTTL == 0 {
		c.Sync.PendingTTL = 24 * time.Hour
	}
	if c.Sync.JanitorInterval == 0 {
		c.Sync.JanitorInterval = time.Hour
	}
	if c.Sync.UpstreamTimeout == 0 {
		c.Sync.UpstreamTimeout = 15 * time.Second
	}

	// validate string durations
	if c.Storage.Postgres.ConnMaxLifetime != "" {
		if _, err := time.ParseDuration(c.Storage.Postgres.ConnMaxLifetime); err != nil {
			return nil, err
		}
	}
	if _, err := time.ParseDuration(c.Rate.Authorize.Window); err != nil {
		return nil, err
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// applyEnvOverrides aplica los overrides documentados.
// Los nombres de provider (DROPBOX_APP_KEY etc.) se mantienen por compat
// con los deployment existentes.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("LOG_LEVEL"); ok {
		c.App.LogLevel = v
	}
	if v, ok := getEnvStr("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("BACKEND_URL"); ok {
		c.Server.BackendURL = v
	}
	if v, ok := getEnvStr("DATABASE_URL"); ok {
		c.Storage.Driver = "postgres"
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("AUTH_JWT_SECRET"); ok {
		c.Auth.JWTSecret = v
	}
	if v, ok := getEnvStr("AUTH_ISSUER"); ok {
		c.Auth.Issuer = v
	}
	if v, ok := getEnvStr("REDIS_ADDR"); ok {
		c.Rate.Backend = "redis"
		c.Rate.Redis.Addr = v
	}
	if v, ok := getEnvStr("REDIS_PASSWORD"); ok {
		c.Rate.Redis.Password = v
	}
	if v, ok := getEnvInt("REDIS_DB"); ok {
		c.Rate.Redis.DB = v
	}
	if v, ok := getEnvBool("RATE_ENABLED"); ok {
		c.Rate.Enabled = v
	}

	if v, ok := getEnvStr("DROPBOX_APP_KEY"); ok {
		c.Providers.Dropbox.AppKey = v
	}
	if v, ok := getEnvStr("DROPBOX_APP_SECRET"); ok {
		c.Providers.Dropbox.AppSecret = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_ID"); ok {
		c.Providers.GitHub.ClientID = v
	}
	if v, ok := getEnvStr("GITHUB_CLIENT_SECRET"); ok {
		c.Providers.GitHub.ClientSecret = v
	}

	if v, ok := getEnvDur("SYNC_PENDING_TTL"); ok {
		c.Sync.PendingTTL = v
	}
	if v, ok := getEnvDur("SYNC_JANITOR_INTERVAL"); ok {
		c.Sync.JanitorInterval = v
	}
}

// Validate hace chequeos mínimos de coherencia.
func (c *Config) Validate() error {
	if c.Storage.Driver == "postgres" && strings.TrimSpace(c.Storage.DSN) == "" {
		return fmt.Errorf("config: storage.driver=postgres requiere storage.dsn (o DATABASE_URL)")
	}
	if strings.EqualFold(c.App.Env, "prod") && strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return fmt.Errorf("config: auth.jwt_secret es obligatorio en prod")
	}
	return nil
}

// RedirectURI arma el redirect_uri para un provider dado.
func (c *Config) RedirectURI(provider string) string {
	return strings.TrimRight(c.Server.BackendURL, "/") + "/sync/" + provider + "/oauth2callback"
}

// ---- Helpers env ----

func getEnvStr(key string) (string, bool) {
	v := os.Getenv(key)
	return v, v != ""
}

func getEnvInt(key string) (int, bool) {
	if s, ok := getEnvStr(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i, true
		}
	}
	return 0, false
}

func getEnvBool(key string) (bool, bool) {
	if s, ok := getEnvStr(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(s)); err == nil {
			return b, true
		}
	}
	return false, false
}

func getEnvDur(key string) (time.Duration, bool) {
	if s, ok := getEnvStr(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(s)); err == nil {
			return d, true
		}
	}
	return 0, false
}

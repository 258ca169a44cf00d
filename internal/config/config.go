package config

import (
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server struct {
		Port         int           `yaml:"port"`
		Host         string        `yaml:"host"`
		ReadTimeout  time.Duration `yaml:"read_timeout"`
		WriteTimeout time.Duration `yaml:"write_timeout"`
		// PublicURL is where the browser reaches this service; used for OAuth redirects.
		PublicURL string `yaml:"public_url"`
	} `yaml:"server"`

	Database struct {
		// Driver selects the document store: postgres, sqlite, redis or memory.
		Driver string `yaml:"driver"`
		DSN    string `yaml:"dsn"`
		Path   string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		URL      string        `yaml:"url"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		Timeout  time.Duration `yaml:"timeout"`
		Prefix   string        `yaml:"prefix"`
	} `yaml:"redis"`

	Auth struct {
		GoogleClientID     string        `yaml:"google_client_id"`
		GoogleClientSecret string        `yaml:"google_client_secret"`
		SessionStore       string        `yaml:"session_store"`
		SessionMaxAge      time.Duration `yaml:"session_max_age"`
		CookieName         string        `yaml:"cookie_name"`
		CookieSecure       bool          `yaml:"cookie_secure"`
		DefaultRedirect    string        `yaml:"default_redirect"`
	} `yaml:"auth"`

	Backend struct {
		BaseURL             string        `yaml:"base_url"`
		SkillBenchmarkLimit time.Duration `yaml:"skill_benchmark_timeout"`
	} `yaml:"backend"`

	LLM struct {
		APIKey  string        `yaml:"api_key"`
		Model   string        `yaml:"model"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"llm"`

	Gmail struct {
		Enabled         bool          `yaml:"enabled"`
		CredentialsFile string        `yaml:"credentials_file"`
		TokenFile       string        `yaml:"token_file"`
		UserEmail       string        `yaml:"user_email"`
		PollInterval    time.Duration `yaml:"poll_interval"`
	} `yaml:"gmail"`

	RateLimit struct {
		RequestsPerMinute int `yaml:"requests_per_minute"`
		Burst             int `yaml:"burst"`
	} `yaml:"rate_limit"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	CORS struct {
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"cors"`
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + strconv.Itoa(c.Server.Port)
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars expands ${VAR} references. Unset variables are left as written.
func expandEnvVars(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		if val := os.Getenv(match[2 : len(match)-1]); val != "" {
			return val
		}
		return match
	})
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	c := &Config{}

	c.Server.Port = 8080
	c.Server.Host = "0.0.0.0"
	c.Server.ReadTimeout = 30 * time.Second
	c.Server.WriteTimeout = 90 * time.Second
	c.Server.PublicURL = "http://localhost:8080"

	c.Database.Driver = "postgres"
	c.Database.DSN = "host=localhost user=postgres password=password dbname=jobtracker port=5432 sslmode=disable"
	c.Database.Path = "elevate.db"

	c.Redis.URL = "redis://localhost:6379"
	c.Redis.Timeout = 5 * time.Second
	c.Redis.Prefix = "elevate"

	c.Auth.SessionStore = "memory"
	c.Auth.SessionMaxAge = 30 * 24 * time.Hour
	c.Auth.CookieName = "elevate_session"
	c.Auth.DefaultRedirect = "/platform/features/dashboard"

	c.Backend.BaseURL = "http://localhost:8000"
	c.Backend.SkillBenchmarkLimit = 60 * time.Second

	c.LLM.Model = "gemini-2.5-flash"
	c.LLM.Timeout = 60 * time.Second

	c.Gmail.CredentialsFile = "credential.json"
	c.Gmail.TokenFile = "token.json"
	c.Gmail.PollInterval = time.Minute

	c.RateLimit.RequestsPerMinute = 30
	c.RateLimit.Burst = 5

	c.Logging.Level = "info"
	c.Logging.Format = "json"

	c.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	return c
}

// Load builds the configuration from defaults, then the YAML file at path (if any),
// then environment variables. A missing .env file is not an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	c := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), c); err != nil {
				return nil, err
			}
		}
	}
	c.loadFromEnv()
	return c, nil
}

func (c *Config) loadFromEnv() {
	setInt(&c.Server.Port, "PORT")
	setString(&c.Server.Host, "HOST")
	setString(&c.Server.PublicURL, "PUBLIC_URL")

	setString(&c.Database.Driver, "DB_DRIVER")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Database.Path, "SQLITE_PATH")

	setString(&c.Redis.URL, "REDIS_URL")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setInt(&c.Redis.DB, "REDIS_DB")
	setDuration(&c.Redis.Timeout, "REDIS_TIMEOUT")

	setString(&c.Auth.GoogleClientID, "GOOGLE_CLIENT_ID")
	setString(&c.Auth.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	setString(&c.Auth.SessionStore, "SESSION_STORE")
	setBool(&c.Auth.CookieSecure, "COOKIE_SECURE")

	setString(&c.Backend.BaseURL, "BACKEND_URL")

	setString(&c.LLM.APIKey, "GEMINI_API_KEY")
	setString(&c.LLM.Model, "LLM_MODEL")

	setBool(&c.Gmail.Enabled, "GMAIL_ENABLED")
	setString(&c.Gmail.UserEmail, "GMAIL_USER_EMAIL")
	setDuration(&c.Gmail.PollInterval, "GMAIL_POLL_INTERVAL")

	setInt(&c.RateLimit.RequestsPerMinute, "RATE_LIMIT_RPM")

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		var out []string
		for _, o := range strings.Split(origins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				out = append(out, o)
			}
		}
		c.CORS.AllowedOrigins = out
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v == "true" || v == "1"
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

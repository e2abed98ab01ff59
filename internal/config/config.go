package config

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

/*
CONFIGURATION DESIGN:

- Defaults first, then the optional YAML file, then the environment
- A missing file is not an error: the defaults describe the demo deployment
- Validation happens BEFORE the config is handed to the server
- The resulting Config is never mutated after Load returns
*/

const (
	DefaultAddr            = ":3000"
	DefaultBackendURL      = "http://backend:4000"
	DefaultPublicDir       = "public"
	DefaultUpstreamTimeout = 5 * time.Second
	DefaultSource          = "frontend-service"
	DefaultMessage         = "Hello from Frontend!"

	// BackendURLEnv overrides Upstream.BaseURL when set.
	BackendURLEnv = "BACKEND_URL"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	CallLog   CallLogConfig   `yaml:"call_log"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr"`       // e.g. ":3000"
	PublicDir string `yaml:"public_dir"` // static assets root
	Message   string `yaml:"message"`    // frontend_message in /api/data
}

type UpstreamConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Source  string        `yaml:"source"` // X-Source header value
}

type LoggingConfig struct {
	Level       string `yaml:"level"` // debug | info | warn | error
	Development bool   `yaml:"development"`
}

type RateLimitConfig struct {
	Enabled         bool `yaml:"enabled"`
	Capacity        int  `yaml:"capacity"`
	RefillPerSecond int  `yaml:"refill_per_second"`
}

// On reports whether the limiter should be installed. It is opt-in: behind
// a sidecar every client shares the proxy's address.
func (r RateLimitConfig) On() bool {
	return r.Enabled
}

type CallLogConfig struct {
	Path string `yaml:"path"` // empty disables the call log
}

// Load reads configuration from a YAML file and applies the environment.
// If the file doesn't exist, the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, eris.Wrapf(err, "invalid YAML in %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, eris.Wrapf(err, "failed to read config file %s", path)
		}
	}

	applyEnv(cfg, os.LookupEnv)
	applyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      DefaultAddr,
			PublicDir: DefaultPublicDir,
			Message:   DefaultMessage,
		},
		Upstream: UpstreamConfig{
			BaseURL: DefaultBackendURL,
			Timeout: DefaultUpstreamTimeout,
			Source:  DefaultSource,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		RateLimit: RateLimitConfig{
			Capacity:        50,
			RefillPerSecond: 10,
		},
	}
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(BackendURLEnv); ok && v != "" {
		cfg.Upstream.BaseURL = v
	}
}

// applyDefaults refills fields a YAML file explicitly blanked.
func applyDefaults(cfg *Config) {
	d := Default()

	if cfg.Server.Addr == "" {
		cfg.Server.Addr = d.Server.Addr
	}
	if cfg.Server.PublicDir == "" {
		cfg.Server.PublicDir = d.Server.PublicDir
	}
	if cfg.Server.Message == "" {
		cfg.Server.Message = d.Server.Message
	}
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = d.Upstream.BaseURL
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = d.Upstream.Timeout
	}
	if cfg.Upstream.Source == "" {
		cfg.Upstream.Source = d.Upstream.Source
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = d.Logging.Level
	}
	if cfg.RateLimit.Capacity == 0 {
		cfg.RateLimit.Capacity = d.RateLimit.Capacity
	}
	if cfg.RateLimit.RefillPerSecond == 0 {
		cfg.RateLimit.RefillPerSecond = d.RateLimit.RefillPerSecond
	}
}

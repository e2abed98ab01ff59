package config

import (
	"net/url"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/rotisserie/eris"
)

var validLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate reports every problem in cfg at once.
func Validate(cfg *Config) error {
	var errs *multierror.Error

	u, err := url.Parse(cfg.Upstream.BaseURL)
	switch {
	case err != nil:
		errs = multierror.Append(errs, eris.Wrap(err, "upstream.base_url"))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = multierror.Append(errs, eris.Errorf("upstream.base_url: scheme must be http or https, got %q", u.Scheme))
	case u.Host == "":
		errs = multierror.Append(errs, eris.New("upstream.base_url: host is required"))
	}

	if cfg.Upstream.Timeout < 0 {
		errs = multierror.Append(errs, eris.New("upstream.timeout must not be negative"))
	}

	if strings.TrimSpace(cfg.Upstream.Source) == "" {
		errs = multierror.Append(errs, eris.New("upstream.source must not be blank"))
	}

	if !strings.Contains(cfg.Server.Addr, ":") {
		errs = multierror.Append(errs, eris.Errorf("server.addr %q must be host:port or :port", cfg.Server.Addr))
	}

	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = multierror.Append(errs, eris.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level))
	}

	if cfg.RateLimit.Capacity < 0 || cfg.RateLimit.RefillPerSecond < 0 {
		errs = multierror.Append(errs, eris.New("rate_limit values must not be negative"))
	}

	return errs.ErrorOrNil()
}

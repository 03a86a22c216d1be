// Package config holds the probe settings resolved from the environment,
// an optional .env file and command line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/reportes-seo/GeoGrid-SEO-Local/pkg/logging"
)

// Defaults mirror the example client shipped with the server.
const (
	DefaultBaseURL     = "http://localhost:3000"
	DefaultRequestFile = "examples/request-example.json"
	DefaultOutputFile  = "output.png"
	DefaultLogLevel    = "info"
	DefaultJobName     = "geogrid_probe"
)

// Config controls a single probe run.
type Config struct {
	BaseURL     string
	RequestFile string
	OutputFile  string

	// Timeout bounds each HTTP exchange. Zero keeps the transport default.
	Timeout time.Duration

	// Extended adds the readiness and liveness checks after Health.
	Extended bool

	LogLevel string

	// PushgatewayURL, when set, receives the run's metrics.
	PushgatewayURL string
	JobName        string
}

// LoadDotEnv loads path into the process environment without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FromEnv builds a Config from GEOGRID_* variables and LOG_LEVEL.
func FromEnv() (Config, error) {
	cfg := Config{
		BaseURL:        getenv("GEOGRID_BASE_URL", DefaultBaseURL),
		RequestFile:    getenv("GEOGRID_REQUEST_FILE", DefaultRequestFile),
		OutputFile:     getenv("GEOGRID_OUTPUT_FILE", DefaultOutputFile),
		LogLevel:       getenv("LOG_LEVEL", DefaultLogLevel),
		PushgatewayURL: getenv("GEOGRID_PUSHGATEWAY_URL", ""),
		JobName:        getenv("GEOGRID_JOB_NAME", DefaultJobName),
	}

	if v := getenv("GEOGRID_TIMEOUT", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("GEOGRID_TIMEOUT: %w", err)
		}
		cfg.Timeout = d
	}
	if v := getenv("GEOGRID_EXTENDED", ""); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("GEOGRID_EXTENDED: %w", err)
		}
		cfg.Extended = b
	}
	return cfg, nil
}

// Validate reports every problem found, joined into one error.
func (c Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.BaseURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("base url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("base url %q: scheme must be http or https", c.BaseURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("base url %q: missing host", c.BaseURL))
	}

	if strings.TrimSpace(c.RequestFile) == "" {
		errs = append(errs, errors.New("request file must not be empty"))
	}
	if strings.TrimSpace(c.OutputFile) == "" {
		errs = append(errs, errors.New("output file must not be empty"))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}
	if !logging.ValidLevel(c.LogLevel) {
		errs = append(errs, fmt.Errorf("log level %q must be one of %s", c.LogLevel, strings.Join(logging.Levels, ", ")))
	}
	if c.PushgatewayURL != "" {
		if _, err := url.ParseRequestURI(c.PushgatewayURL); err != nil {
			errs = append(errs, fmt.Errorf("pushgateway url: %w", err))
		}
		if strings.TrimSpace(c.JobName) == "" {
			errs = append(errs, errors.New("job name must not be empty when pushing metrics"))
		}
	}

	return errors.Join(errs...)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

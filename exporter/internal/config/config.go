package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Default values applied when neither the file nor the environment set them.
const (
	DefaultListen           = ":9180"
	DefaultLocaleID         = 10
	DefaultTimeout          = 30 * time.Second
	DefaultResourceCacheTTL = 10 * time.Minute
	DefaultLogLevel         = "info"
)

// Supported KDP locales.
const (
	LocaleEnglish = 10
	LocaleRussian = 77
)

// Config is the full exporter configuration.
type Config struct {
	KDP KDPConfig `yaml:"kdp"`

	// Listen is the HTTP listen address of the exporter.
	Listen string `yaml:"listen" env:"LISTEN_ADDR"`

	// LogLevel is one of debug | info | warn | error.
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

// KDPConfig holds the KDP API connection settings.
type KDPConfig struct {
	// URL is the WSDL location of the KDP API.
	URL string `yaml:"url" env:"KDP_URL"`

	// Endpoint and Namespace skip WSDL discovery when both are set.
	Endpoint  string `yaml:"endpoint" env:"KDP_ENDPOINT"`
	Namespace string `yaml:"namespace" env:"KDP_NAMESPACE"`

	ClientID  uint32 `yaml:"client_id" env:"KDP_CLIENT_ID"`
	UserID    uint32 `yaml:"user_id" env:"KDP_USER_ID"`
	SecretKey string `yaml:"secret_key" env:"KDP_SECRET_KEY"`

	// Resource is the name of the protected resource to export.
	Resource string `yaml:"resource" env:"KDP_RESOURCE"`

	// LocaleID selects the response language: 10 English, 77 Russian.
	LocaleID uint32 `yaml:"locale_id" env:"KDP_LOCALE_ID"`

	// Timeout bounds every API call.
	Timeout time.Duration `yaml:"timeout" env:"KDP_TIMEOUT"`

	// RateLimit caps API calls per minute. 0 means unlimited.
	RateLimit int `yaml:"rate_limit" env:"KDP_RATE_LIMIT"`

	// ResourceCacheTTL is how long a resolved resource id stays usable when
	// the resource listing fails. 0 disables the fallback.
	ResourceCacheTTL time.Duration `yaml:"resource_cache_ttl" env:"KDP_RESOURCE_CACHE_TTL"`

	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" env:"KDP_INSECURE_SKIP_VERIFY"`
}

// LogValue keeps the secret key out of log output.
func (k KDPConfig) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("url", k.URL),
		slog.String("endpoint", k.Endpoint),
		slog.Any("client_id", k.ClientID),
		slog.Any("user_id", k.UserID),
		slog.String("resource", k.Resource),
		slog.Any("locale_id", k.LocaleID),
		slog.Duration("timeout", k.Timeout),
		slog.Int("rate_limit", k.RateLimit),
	)
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse yaml: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse env: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Listen:   DefaultListen,
		LogLevel: DefaultLogLevel,
		KDP: KDPConfig{
			LocaleID:         DefaultLocaleID,
			Timeout:          DefaultTimeout,
			ResourceCacheTTL: DefaultResourceCacheTTL,
		},
	}
}

// validate checks required fields and value ranges.
func validate(cfg *Config) error {
	k := cfg.KDP
	if k.URL == "" {
		return fmt.Errorf("kdp.url (KDP_URL) is required")
	}
	if !govalidator.IsRequestURL(k.URL) {
		return fmt.Errorf("kdp.url %q is not a valid URL", k.URL)
	}
	if k.Endpoint != "" && !govalidator.IsRequestURL(k.Endpoint) {
		return fmt.Errorf("kdp.endpoint %q is not a valid URL", k.Endpoint)
	}
	if (k.Endpoint == "") != (k.Namespace == "") {
		return fmt.Errorf("kdp.endpoint and kdp.namespace must be set together")
	}
	if k.ClientID == 0 {
		return fmt.Errorf("kdp.client_id (KDP_CLIENT_ID) is required")
	}
	if k.UserID == 0 {
		return fmt.Errorf("kdp.user_id (KDP_USER_ID) is required")
	}
	if k.SecretKey == "" {
		return fmt.Errorf("kdp.secret_key (KDP_SECRET_KEY) is required")
	}
	if k.Resource == "" {
		return fmt.Errorf("kdp.resource (KDP_RESOURCE) is required")
	}
	switch k.LocaleID {
	case LocaleEnglish, LocaleRussian:
	default:
		return fmt.Errorf("kdp.locale_id must be %d or %d, got %d", LocaleEnglish, LocaleRussian, k.LocaleID)
	}
	if k.Timeout <= 0 {
		return fmt.Errorf("kdp.timeout must be positive")
	}
	if k.RateLimit < 0 {
		return fmt.Errorf("kdp.rate_limit must not be negative")
	}
	if k.ResourceCacheTTL < 0 {
		return fmt.Errorf("kdp.resource_cache_ttl must not be negative")
	}
	if cfg.Listen == "" {
		return fmt.Errorf("listen address is required")
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	return nil
}

// ParseLevel converts a log level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
	return l, nil
}

// Level returns the configured log level. Load has already validated it.
func (c *Config) Level() slog.Level {
	l, _ := ParseLevel(c.LogLevel)
	return l
}

// RestartRequired lists the settings that differ from prev but only take
// effect after a restart. Hot reload applies the log level, the resource
// name and the locale.
func (c *Config) RestartRequired(prev *Config) []string {
	var changed []string
	a, b := prev.KDP, c.KDP
	if a.URL != b.URL || a.Endpoint != b.Endpoint || a.Namespace != b.Namespace {
		changed = append(changed, "kdp.url")
	}
	if a.ClientID != b.ClientID || a.UserID != b.UserID || a.SecretKey != b.SecretKey {
		changed = append(changed, "kdp.credentials")
	}
	if a.Timeout != b.Timeout || a.RateLimit != b.RateLimit || a.InsecureSkipVerify != b.InsecureSkipVerify {
		changed = append(changed, "kdp.transport")
	}
	if a.ResourceCacheTTL != b.ResourceCacheTTL {
		changed = append(changed, "kdp.resource_cache_ttl")
	}
	if prev.Listen != c.Listen {
		changed = append(changed, "listen")
	}
	return changed
}

// Pending tracks restart-only changes between the config the process
// started with and the latest reload.
type Pending struct {
	started *Config
	last    []string
}

// NewPending returns a tracker for a process started with cfg.
func NewPending(cfg *Config) *Pending {
	return &Pending{started: cfg}
}

// Update returns the restart-only settings in which c differs from the
// started config. The bool is false when that list is the same as after the
// previous Update, so a warning is reported once per change.
func (p *Pending) Update(c *Config) ([]string, bool) {
	changed := c.RestartRequired(p.started)
	same := slices.Equal(changed, p.last)
	p.last = changed
	return changed, !same
}

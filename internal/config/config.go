package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "IMPORTPANEL"

// Defaults applied before reading configs/config.yml.
const (
	defaultPort          = "8080"
	defaultLogLevel      = "info"
	defaultDBPath        = "importpanel.db"
	defaultNamespace     = "admin-dashboard"
	defaultTimeout       = 15 * time.Second
	defaultFlushInterval = 300 * time.Millisecond
	defaultLogCap        = 5000
	defaultScrollEpsilon = 1.0
)

// Config is the typed view of the viper settings.
type Config struct {
	Port     string `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn error"`

	DB struct {
		Path string `mapstructure:"path" validate:"required"`
	} `mapstructure:"db"`

	CKAN CKAN `mapstructure:"ckan"`

	Panel Panel `mapstructure:"panel"`
}

// CKAN holds the collaborator endpoints. Values are read-only after load.
type CKAN struct {
	BaseURL   string        `mapstructure:"base_url" validate:"required,url"`
	APIKey    string        `mapstructure:"api_key"`
	WSURL     string        `mapstructure:"ws_url" validate:"omitempty,url"`
	Namespace string        `mapstructure:"namespace" validate:"required"`
	Languages []string      `mapstructure:"languages"`
	Timeout   time.Duration `mapstructure:"timeout" validate:"gt=0"`
}

// Panel tunes the realtime import-status panel.
type Panel struct {
	FlushInterval time.Duration `mapstructure:"flush_interval" validate:"gt=0"`
	LogCap        int           `mapstructure:"log_cap" validate:"gte=0"`
	ScrollEpsilon float64       `mapstructure:"scroll_epsilon" validate:"gte=0"`
}

// Load reads configs/config.yml (optional) and IMPORTPANEL_* environment
// overrides into a validated Config.
func Load(v *viper.Viper, paths ...string) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yml")
	if len(paths) == 0 {
		paths = []string{"configs", "."}
	}
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", defaultPort)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("db.path", defaultDBPath)
	v.SetDefault("ckan.base_url", "")
	v.SetDefault("ckan.api_key", "")
	v.SetDefault("ckan.ws_url", "")
	v.SetDefault("ckan.namespace", defaultNamespace)
	v.SetDefault("ckan.languages", []string{"en"})
	v.SetDefault("ckan.timeout", defaultTimeout)
	v.SetDefault("panel.flush_interval", defaultFlushInterval)
	v.SetDefault("panel.log_cap", defaultLogCap)
	v.SetDefault("panel.scroll_epsilon", defaultScrollEpsilon)
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.CKAN.BaseURL = strings.TrimRight(strings.TrimSpace(c.CKAN.BaseURL), "/")
	c.CKAN.Namespace = strings.Trim(strings.TrimSpace(c.CKAN.Namespace), "/")
	if c.CKAN.WSURL == "" && c.CKAN.BaseURL != "" {
		c.CKAN.WSURL = deriveWSURL(c.CKAN.BaseURL)
	}
	c.CKAN.WSURL = strings.TrimRight(c.CKAN.WSURL, "/")
}

// deriveWSURL maps http(s)://host/path to ws(s)://host/path.
func deriveWSURL(base string) string {
	switch {
	case strings.HasPrefix(base, "https://"):
		return "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		return "ws://" + strings.TrimPrefix(base, "http://")
	default:
		return base
	}
}

// ChannelURL is the websocket endpoint of the configured namespace.
func (c CKAN) ChannelURL() string {
	return c.WSURL + "/" + c.Namespace
}

// Package config loads widgetsync settings with Viper from flags,
// WIDGETSYNC_* environment variables and a .widgetsync.yml file, in that
// order of precedence.
//
// Sections cover the HTTP server, the widget cache store, the socket
// channel, the layout file and logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/conneroisu/widgetsync/internal/errors"
)

// EnvPrefix prefixes every environment override, e.g. WIDGETSYNC_SERVER_PORT.
const EnvPrefix = "WIDGETSYNC"

type Config struct {
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Socket SocketConfig `yaml:"socket" mapstructure:"socket"`
	Layout LayoutConfig `yaml:"layout" mapstructure:"layout"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

type ServerConfig struct {
	Host            string        `yaml:"host" mapstructure:"host"`
	Port            int           `yaml:"port" mapstructure:"port"`
	Title           string        `yaml:"title" mapstructure:"title"`
	AllowedOrigins  []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	Driver string `yaml:"driver" mapstructure:"driver"`
	Path   string `yaml:"path" mapstructure:"path"`
}

type SocketConfig struct {
	// URL is where client commands (get, set, watch) dial the host.
	URL            string        `yaml:"url" mapstructure:"url"`
	Rate           float64       `yaml:"rate" mapstructure:"rate"`
	Burst          int           `yaml:"burst" mapstructure:"burst"`
	PingInterval   time.Duration `yaml:"ping_interval" mapstructure:"ping_interval"`
	RequestTimeout time.Duration `yaml:"request_timeout" mapstructure:"request_timeout"`
	ReadLimit      int64         `yaml:"read_limit" mapstructure:"read_limit"`
}

type LayoutConfig struct {
	Path  string `yaml:"path" mapstructure:"path"`
	Watch bool   `yaml:"watch" mapstructure:"watch"`
}

type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SetDefaults registers every key with its default so environment
// overrides resolve even when no config file sets the key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8050)
	v.SetDefault("server.title", "widgetsync")
	v.SetDefault("server.allowed_origins", []string{"localhost:*", "127.0.0.1:*"})
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.path", "")

	v.SetDefault("socket.url", "ws://localhost:8050/socket")
	v.SetDefault("socket.rate", 100.0)
	v.SetDefault("socket.burst", 200)
	v.SetDefault("socket.ping_interval", 30*time.Second)
	v.SetDefault("socket.request_timeout", 10*time.Second)
	v.SetDefault("socket.read_limit", int64(1<<20))

	v.SetDefault("layout.path", "layout.yml")
	v.SetDefault("layout.watch", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Init points v at the config file and environment. An explicit file wins
// over WIDGETSYNC_CONFIG_FILE, which wins over ./.widgetsync.yml. A
// missing default file is not an error.
func Init(v *viper.Viper, file string) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		file = v.GetString("config_file")
		explicit = file != ""
	}
	if explicit {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName(".widgetsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !explicit && errors.As(err, &notFound) {
			return nil
		}
		e := errors.NewConfigError(errors.ErrCodeConfigInvalid, "reading config file")
		e.Cause = err
		return e
	}
	return nil
}

// Load decodes the global viper instance.
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes v, fills unset values and validates the result.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		e := errors.NewConfigError(errors.ErrCodeConfigInvalid, "decoding configuration")
		e.Cause = err
		return nil, e
	}

	// Slices set through the environment arrive as one comma separated string.
	cfg.Server.AllowedOrigins = splitList(strings.Join(cfg.Server.AllowedOrigins, ","))

	cfg.applyDefaults()

	if result := Validate(&cfg); result.HasErrors() {
		e := errors.NewConfigError(errors.ErrCodeConfigInvalid, "invalid configuration")
		e.Cause = result
		return nil, e
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	cfg, err := LoadFrom(v)
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Store.Driver == "" {
		c.Store.Driver = "memory"
	}
	if c.Socket.PingInterval <= 0 {
		c.Socket.PingInterval = 30 * time.Second
	}
	if c.Socket.RequestTimeout <= 0 {
		c.Socket.RequestTimeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

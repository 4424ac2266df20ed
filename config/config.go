package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DefaultPollInterval = 150 * time.Millisecond
	MinPollInterval     = 25 * time.Millisecond
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Bridge   BridgeConfig   `mapstructure:"bridge"`
	Terminal TerminalConfig `mapstructure:"terminal"`
	Sim      SimConfig      `mapstructure:"sim"`
	Bybit    BybitConfig    `mapstructure:"bybit"`
	Log      LogConfig      `mapstructure:"log"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"` // "dev" or "prod"
}

// BridgeConfig controls the HTTP/WebSocket surface and the tick poller.
type BridgeConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	PollIntervalMs int      `mapstructure:"poll_interval_ms"`
	WS             WSConfig `mapstructure:"ws"`
}

type WSConfig struct {
	WriteWait      time.Duration `mapstructure:"write_wait"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

// Addr returns the listen address, e.g. "127.0.0.1:8001".
func (b BridgeConfig) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// PollInterval applies the default and the 25ms floor.
func (b BridgeConfig) PollInterval() time.Duration {
	if b.PollIntervalMs <= 0 {
		return DefaultPollInterval
	}
	d := time.Duration(b.PollIntervalMs) * time.Millisecond
	if d < MinPollInterval {
		return MinPollInterval
	}
	return d
}

type SimConfig struct {
	CatalogFile string        `mapstructure:"catalog_file"` // yaml catalog; built-in catalog when empty
	Step        time.Duration `mapstructure:"step"`         // minimum time between two distinct ticks
	Seed        int64         `mapstructure:"seed"`
}

type BybitConfig struct {
	REST     RESTConfig `mapstructure:"rest"`
	Category string     `mapstructure:"category"` // "linear", "spot", "inverse"
}

type RESTConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LogConfig defines the logger configuration options.
type LogConfig struct {
	Level       string `mapstructure:"level"`       // "debug", "info", "warn", "error"
	Format      string `mapstructure:"format"`      // "json" or "console"
	OutputFile  string `mapstructure:"output_file"` // optional rotated file
	Environment string `mapstructure:"environment"` // "dev" or "prod"
}

type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// legacyEnv maps config keys to the environment names the bridge has always honoured.
var legacyEnv = map[string]string{
	"bridge.poll_interval_ms": "MT5_POLL_INTERVAL_MS",
	"bridge.port":             "MT5_BRIDGE_PORT",
	"terminal.path":           "MT5_PATH",
	"terminal.login":          "MT5_LOGIN",
	"terminal.password":       "MT5_PASSWORD",
	"terminal.server":         "MT5_SERVER",
}

// Load reads configuration from an optional config.yaml, a .env file and the environment.
// Environment variables use underscores for nesting, e.g. BRIDGE_PORT or TERMINAL_DRIVER.
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	if ex, err := os.Executable(); err == nil {
		v.AddConfigPath(filepath.Join(filepath.Dir(ex), "../config"))
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, name := range legacyEnv {
		upper := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, upper, name); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "termbridge")
	v.SetDefault("app.env", "dev")

	v.SetDefault("bridge.host", "127.0.0.1")
	v.SetDefault("bridge.port", 8001)
	v.SetDefault("bridge.poll_interval_ms", int(DefaultPollInterval/time.Millisecond))
	v.SetDefault("bridge.ws.write_wait", 5*time.Second)
	v.SetDefault("bridge.ws.pong_wait", 60*time.Second)
	v.SetDefault("bridge.ws.ping_period", 50*time.Second)
	v.SetDefault("bridge.ws.send_buffer", 256)
	v.SetDefault("bridge.ws.max_message_size", 512*1024)

	v.SetDefault("terminal.driver", DriverSim)

	v.SetDefault("sim.step", 100*time.Millisecond)
	v.SetDefault("sim.seed", 1)

	v.SetDefault("bybit.rest.base_url", "https://api.bybit.com")
	v.SetDefault("bybit.rest.timeout", 10*time.Second)
	v.SetDefault("bybit.category", "linear")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.environment", "dev")

	v.SetDefault("postgres.enabled", false)
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.max_open_conns", 10)
	v.SetDefault("postgres.max_idle_conns", 5)
	v.SetDefault("postgres.conn_max_lifetime", time.Hour)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.channel_prefix", "ticks.")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate rejects settings the bridge cannot start with.
func (c *Config) Validate() error {
	if c.Bridge.Port <= 0 || c.Bridge.Port > 65535 {
		return fmt.Errorf("invalid bridge port: %d", c.Bridge.Port)
	}
	switch c.Terminal.Driver {
	case DriverSim, DriverBybit, DriverNone:
	default:
		return fmt.Errorf("unknown terminal driver: %q", c.Terminal.Driver)
	}
	if c.Bridge.WS.SendBuffer <= 0 {
		return fmt.Errorf("bridge.ws.send_buffer must be positive")
	}
	return nil
}

package config

import "time"

// StoreConfig selects and configures the durable snapshot store.
type StoreConfig struct {
	Driver        string `mapstructure:"driver" yaml:"driver"`
	SQLitePath    string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	RedisAddr     string `mapstructure:"redis_addr" yaml:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db" yaml:"redis_db"`
	KeyPrefix     string `mapstructure:"key_prefix" yaml:"key_prefix"`
}

// LiveKitConfig configures the optional media room paired with each board.
type LiveKitConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
	URL       string `mapstructure:"url" yaml:"url"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	DefaultRoom    string        `mapstructure:"default_room" yaml:"default_room"`
	InlinePdfLimit int           `mapstructure:"inline_pdf_limit" yaml:"inline_pdf_limit"`
	SinkBuffer     int           `mapstructure:"sink_buffer" yaml:"sink_buffer"`
	PersistWorkers int           `mapstructure:"persist_workers" yaml:"persist_workers"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout" yaml:"persist_timeout"`
	LoadTimeout    time.Duration `mapstructure:"load_timeout" yaml:"load_timeout"`
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	KeepAlive      time.Duration `mapstructure:"keep_alive" yaml:"keep_alive"`
	BufferedHosts  []string      `mapstructure:"buffered_hosts" yaml:"buffered_hosts"`
	WSRateLimit    int           `mapstructure:"ws_rate_limit" yaml:"ws_rate_limit"`

	Store StoreConfig `mapstructure:"store" yaml:"store"`

	JWTSecret        string   `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer        string   `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience      string   `mapstructure:"jwt_audience" yaml:"jwt_audience"`
	PrivilegedRoles  []string `mapstructure:"privileged_roles" yaml:"privileged_roles"`
	RestrictedEvents []string `mapstructure:"restricted_events" yaml:"restricted_events"`

	LiveKit LiveKitConfig `mapstructure:"livekit" yaml:"livekit"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		LogLevel:          "info",
		DefaultRoom:       "whiteboard-default",
		InlinePdfLimit:    256 << 10,
		SinkBuffer:        64,
		PersistWorkers:    4,
		PersistTimeout:    5 * time.Second,
		LoadTimeout:       2 * time.Second,
		PollInterval:      2 * time.Second,
		KeepAlive:         15 * time.Second,
		BufferedHosts:     []string{".vercel.app", ".netlify.app"},
		WSRateLimit:       1200,
		Store: StoreConfig{
			Driver:     "sqlite",
			SQLitePath: "boardsync.db",
			RedisAddr:  "localhost:6379",
			KeyPrefix:  "boardsync:room:",
		},
		JWTIssuer:        "boardsync",
		JWTAudience:      "boardsync",
		PrivilegedRoles:  []string{"teacher", "admin"},
		RestrictedEvents: []string{"clear", "clear_all", "pdf-set"},
		LiveKit: LiveKitConfig{
			URL: "ws://localhost:7880",
		},
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.DefaultRoom != "" {
		c.DefaultRoom = other.DefaultRoom
	}
	if other.InlinePdfLimit != 0 {
		c.InlinePdfLimit = other.InlinePdfLimit
	}
	if other.SinkBuffer != 0 {
		c.SinkBuffer = other.SinkBuffer
	}
	if other.PersistWorkers != 0 {
		c.PersistWorkers = other.PersistWorkers
	}
	if other.PersistTimeout != 0 {
		c.PersistTimeout = other.PersistTimeout
	}
	if other.LoadTimeout != 0 {
		c.LoadTimeout = other.LoadTimeout
	}
	if other.PollInterval != 0 {
		c.PollInterval = other.PollInterval
	}
	if other.KeepAlive != 0 {
		c.KeepAlive = other.KeepAlive
	}
	if other.BufferedHosts != nil {
		c.BufferedHosts = other.BufferedHosts
	}
	if other.WSRateLimit != 0 {
		c.WSRateLimit = other.WSRateLimit
	}
	if other.Store.Driver != "" {
		c.Store.Driver = other.Store.Driver
	}
	if other.Store.SQLitePath != "" {
		c.Store.SQLitePath = other.Store.SQLitePath
	}
	if other.Store.RedisAddr != "" {
		c.Store.RedisAddr = other.Store.RedisAddr
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
}

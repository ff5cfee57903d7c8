package config

// Config is the on-disk configuration. Every section is optional; omitted
// fields keep the values from Default().
type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Transport TransportConfig `json:"transport"`
	Broadcast BroadcastConfig `json:"broadcast"`
	Readiness ReadinessConfig `json:"readiness"`
	Listener  ListenerConfig  `json:"listener"`
	Journal   JournalConfig   `json:"journal"`
	HTTP      HTTPConfig      `json:"http"`
}

type LoggingConfig struct {
	Level   string `json:"level"`
	Console bool   `json:"console"`
	// Format is the console encoding: "text" or "json".
	Format string      `json:"format,omitempty"`
	File   LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// TransportConfig selects the relay driver.
//
// Example:
//
//	"transport": { "driver": "redis", "redis": { "addr": "127.0.0.1:6379" } }
type TransportConfig struct {
	Driver string      `json:"driver"`
	Redis  RedisConfig `json:"redis"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"` // do not log
	DB       int    `json:"db,omitempty"`
	// DialTimeout is a Go duration string (e.g. "5s").
	DialTimeout string `json:"dial_timeout,omitempty"`
	// PeerTopics are the channels whose subscriber counts make up the peer
	// count. Empty means the broadcast and request topics.
	PeerTopics []string `json:"peer_topics,omitempty"`
}

// BroadcastConfig controls the periodic broadcast.
//
// Schedule accepts a Go duration ("24h"), an "HH:MM" interval, or a cron
// expression ("0 7 * * *", "@daily"). Prefixes "cron:", "interval:" and
// "every:" force the kind.
type BroadcastConfig struct {
	Schedule       string `json:"schedule"`
	Timezone       string `json:"timezone,omitempty"`
	OnStart        bool   `json:"on_start"`
	PublishTimeout string `json:"publish_timeout"`
}

// ReadinessConfig bounds the startup peer check.
type ReadinessConfig struct {
	MinPeers    int    `json:"min_peers"`
	MaxAttempts int    `json:"max_attempts"`
	Backoff     string `json:"backoff"`
	MaxBackoff  string `json:"max_backoff"`
}

type ListenerConfig struct {
	// DecodeLogRate is the number of decode-failure warnings per second.
	DecodeLogRate float64 `json:"decode_log_rate"`
}

// JournalConfig controls the optional broadcast journal.
//
// Example:
//
//	"journal": { "driver": "sqlite", "path": "./dailystoic.db" }
type JournalConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

// HTTPConfig controls the optional metrics/debug server.
//
// Security note:
//   - Prefer binding to localhost (the default).
//   - If you bind to a non-loopback address, set a token or explicitly allow_insecure.
//   - pprof is only mounted when Pprof is true.
type HTTPConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Pprof         bool   `json:"pprof,omitempty"`
	Token         string `json:"token,omitempty"` // optional bearer token (do not log)
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

const (
	DriverRedis  = "redis"
	DriverMemory = "memory"

	JournalNone   = "none"
	JournalFile   = "file"
	JournalSQLite = "sqlite"
)

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			Format:  "text",
		},
		Transport: TransportConfig{
			Driver: DriverRedis,
			Redis: RedisConfig{
				Addr:        "127.0.0.1:6379",
				DialTimeout: "5s",
			},
		},
		Broadcast: BroadcastConfig{
			Schedule:       "24h",
			OnStart:        true,
			PublishTimeout: "10s",
		},
		Readiness: ReadinessConfig{
			MinPeers:    1,
			MaxAttempts: 10,
			Backoff:     "1s",
			MaxBackoff:  "30s",
		},
		Listener: ListenerConfig{DecodeLogRate: 1},
		Journal:  JournalConfig{Driver: JournalNone},
		HTTP:     HTTPConfig{Addr: "127.0.0.1:9464"},
	}
}

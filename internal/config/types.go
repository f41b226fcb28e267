package config

// Config is the root configuration for amerhub.
type Config struct {
	Hub       HubConfig       `yaml:"hub,omitempty"`
	Storage   StorageConfig   `yaml:"storage,omitempty"`
	Assistant AssistantConfig `yaml:"assistant,omitempty"`
	Logging   LoggingConfig   `yaml:"logging,omitempty"`
}

// HubConfig controls the realtime hub server.
type HubConfig struct {
	Port           int               `yaml:"port,omitempty"`
	Bind           string            `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string            `yaml:"customBindHost,omitempty"`
	AllowedOrigins []string          `yaml:"allowedOrigins,omitempty"`
	Auth           AuthConfig        `yaml:"auth,omitempty"`
	TLS            TLSConfig         `yaml:"tls,omitempty"`
	Limits         LimitsConfig      `yaml:"limits,omitempty"`
	Heartbeat      HeartbeatConfig   `yaml:"heartbeat,omitempty"`
	Matchmaking    MatchmakingConfig `yaml:"matchmaking,omitempty"`
}

// AuthConfig configures bearer credential verification. Secret may be
// written as ${ENV_VAR}.
type AuthConfig struct {
	Secret          string `yaml:"secret,omitempty"`
	TokenTTLMinutes int    `yaml:"tokenTtlMinutes,omitempty"`
}

// TLSConfig configures TLS on the listener.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled,omitempty"`
	CertPath string `yaml:"certPath,omitempty"`
	KeyPath  string `yaml:"keyPath,omitempty"`
}

// LimitsConfig sets the rate ceilings and the connection cap.
type LimitsConfig struct {
	MessagesPerMinute           int `yaml:"messagesPerMinute,omitempty"`
	ConnectionAttemptsPerMinute int `yaml:"connectionAttemptsPerMinute,omitempty"`
	MaxConnectionsPerUser       int `yaml:"maxConnectionsPerUser,omitempty"`
}

// HeartbeatConfig sets liveness probing thresholds.
type HeartbeatConfig struct {
	IntervalSeconds   int `yaml:"intervalSeconds,omitempty"`
	ProbeAfterSeconds int `yaml:"probeAfterSeconds,omitempty"`
	CloseAfterSeconds int `yaml:"closeAfterSeconds,omitempty"`
}

// MatchmakingConfig tunes the help-request protocol.
type MatchmakingConfig struct {
	RequestTTLMinutes int `yaml:"requestTtlMinutes,omitempty"`
	HistoryLimit      int `yaml:"historyLimit,omitempty"`
}

// StorageConfig locates the SQLite database. ":memory:" is accepted.
type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

// AssistantConfig configures the optional automated-reply collaborator.
type AssistantConfig struct {
	Enabled        bool   `yaml:"enabled,omitempty"`
	Endpoint       string `yaml:"endpoint,omitempty"`
	Model          string `yaml:"model,omitempty"`
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	Style string `yaml:"style,omitempty"` // "pretty" | "json"
}

package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		Hub: HubConfig{
			Port: 18890,
			Bind: "loopback",
			Auth: AuthConfig{
				TokenTTLMinutes: 720,
			},
			Limits: LimitsConfig{
				MessagesPerMinute:           30,
				ConnectionAttemptsPerMinute: 10,
				MaxConnectionsPerUser:       3,
			},
			Heartbeat: HeartbeatConfig{
				IntervalSeconds:   30,
				ProbeAfterSeconds: 60,
				CloseAfterSeconds: 120,
			},
			Matchmaking: MatchmakingConfig{
				RequestTTLMinutes: 5,
				HistoryLimit:      50,
			},
		},
		Storage: StorageConfig{
			Path: "",
		},
		Assistant: AssistantConfig{
			TimeoutSeconds: 60,
		},
		Logging: LoggingConfig{
			Level: "info",
			Style: "pretty",
		},
	}
}

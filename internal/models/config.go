package models

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `json:"server" mapstructure:"server"`
	Realtime   RealtimeConfig   `json:"realtime" mapstructure:"realtime"`
	Session    SessionConfig    `json:"session" mapstructure:"session"`
	Media      MediaConfig      `json:"media" mapstructure:"media"`
	Moderation ModerationConfig `json:"moderation" mapstructure:"moderation"`
	Database   DatabaseConfig   `json:"database" mapstructure:"database"`
	Tracing    TracingConfig    `json:"tracing" mapstructure:"tracing"`
	Retry      RetryConfig      `json:"retry" mapstructure:"retry"`
	LogLevel   string           `json:"log_level" mapstructure:"log_level"`
}

// ServerConfig describes the chat backend's REST API
type ServerConfig struct {
	BaseURL        string `json:"base_url" mapstructure:"base_url"`
	UploadPath     string `json:"upload_path" mapstructure:"upload_path"`
	HistoryPath    string `json:"history_path" mapstructure:"history_path"`
	UsersPath      string `json:"users_path" mapstructure:"users_path"`
	HTTPTimeoutSec int    `json:"http_timeout_sec" mapstructure:"http_timeout_sec"`
}

// RealtimeConfig describes the backend's event channel
type RealtimeConfig struct {
	URL          string `json:"url" mapstructure:"url"`
	Protocol     string `json:"protocol" mapstructure:"protocol"` // "socketio" or "json"
	ReadLimitKB  int    `json:"read_limit_kb" mapstructure:"read_limit_kb"`
	DialTimeoutS int    `json:"dial_timeout_sec" mapstructure:"dial_timeout_sec"`
}

// SessionConfig holds the authenticated local user
type SessionConfig struct {
	UserID string `json:"user_id" mapstructure:"user_id"`
}

// MediaConfig holds media related configurations
type MediaConfig struct {
	TempDir      string            `json:"temp_dir"`
	MaxSizeMB    MediaSizeLimits   `json:"maxSizeMB"`
	AllowedTypes MediaAllowedTypes `json:"allowedTypes"`
	Recorder     RecorderConfig    `json:"recorder"`
}

// MediaSizeLimits defines size limits for different media types in MB
type MediaSizeLimits struct {
	Image    int `json:"image"`
	Video    int `json:"video"`
	Audio    int `json:"audio"`
	Document int `json:"document"`
}

// MediaAllowedTypes defines allowed MIME types for each media category
type MediaAllowedTypes struct {
	Image    []string `json:"image"`
	Video    []string `json:"video"`
	Audio    []string `json:"audio"`
	Document []string `json:"document"`
}

// RecorderConfig configures the ffmpeg audio capture
type RecorderConfig struct {
	FFmpegPath  string `json:"ffmpeg_path"`
	InputFormat string `json:"input_format"` // e.g. "pulse", "alsa", "avfoundation"
	Device      string `json:"device"`
}

// ModerationConfig configures the flagged-term filter
type ModerationConfig struct {
	Enabled   *bool    `json:"enabled"`
	Terms     []string `json:"terms"`
	Threshold int      `json:"threshold"`
}

// IsEnabled defaults to true when unset.
func (m ModerationConfig) IsEnabled() bool {
	return m.Enabled == nil || *m.Enabled
}

// DatabaseConfig holds the moderation audit log location. An empty path
// disables the audit log.
type DatabaseConfig struct {
	Path          string `json:"path"`
	RetentionDays int    `json:"retentionDays"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	Enabled        bool    `json:"enabled"`
	UseStdout      bool    `json:"use_stdout"`
}

// RetryConfig holds retry related configurations
type RetryConfig struct {
	InitialBackoffMs int `json:"initialBackoffMs"`
	MaxBackoffMs     int `json:"maxBackoffMs"`
	MaxAttempts      int `json:"maxAttempts"`
}

type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}

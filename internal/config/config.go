package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"wechat/internal/constants"
	"wechat/internal/models"
	"wechat/internal/security"
	"wechat/internal/validation"
)

var (
	ErrMissingServerURL = models.ConfigError{Message: "missing chat server base URL"}
	ErrMissingUserID    = models.ConfigError{Message: "missing session user ID"}
)

func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path) // #nosec G304 - Path validated by security.ValidateFilePath above
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	c.Server.BaseURL = strings.TrimSuffix(c.Server.BaseURL, "/")
	if c.Server.BaseURL == "" {
		return ErrMissingServerURL
	}
	if err := validation.ValidateBaseURL("server.base_url", c.Server.BaseURL, "http", "https"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}
	if c.Session.UserID == "" {
		return ErrMissingUserID
	}
	if err := validation.ValidateUserID("session.user_id", c.Session.UserID); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if c.Server.UploadPath == "" {
		c.Server.UploadPath = constants.DefaultUploadPath
	}
	if c.Server.HistoryPath == "" {
		c.Server.HistoryPath = constants.DefaultHistoryPath
	}
	if c.Server.UsersPath == "" {
		c.Server.UsersPath = constants.DefaultUsersPath
	}
	if c.Server.HTTPTimeoutSec <= 0 {
		c.Server.HTTPTimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if err := validation.ValidateTimeout(c.Server.HTTPTimeoutSec, "server.http_timeout_sec"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if err := validateRealtime(c); err != nil {
		return err
	}

	// Set default media configuration if not provided
	if c.Media.MaxSizeMB.Image == 0 {
		c.Media.MaxSizeMB.Image = constants.DefaultMaxImageSizeMB
	}
	if c.Media.MaxSizeMB.Video == 0 {
		c.Media.MaxSizeMB.Video = constants.DefaultMaxVideoSizeMB
	}
	if c.Media.MaxSizeMB.Audio == 0 {
		c.Media.MaxSizeMB.Audio = constants.DefaultMaxAudioSizeMB
	}
	if c.Media.MaxSizeMB.Document == 0 {
		c.Media.MaxSizeMB.Document = constants.DefaultMaxDocumentSizeMB
	}

	if len(c.Media.AllowedTypes.Image) == 0 {
		c.Media.AllowedTypes.Image = constants.DefaultImageTypes
	}
	if len(c.Media.AllowedTypes.Video) == 0 {
		c.Media.AllowedTypes.Video = constants.DefaultVideoTypes
	}
	if len(c.Media.AllowedTypes.Audio) == 0 {
		c.Media.AllowedTypes.Audio = constants.DefaultAudioTypes
	}
	if len(c.Media.AllowedTypes.Document) == 0 {
		c.Media.AllowedTypes.Document = constants.DefaultDocumentTypes
	}
	if c.Media.TempDir == "" {
		c.Media.TempDir = os.TempDir()
	}
	if c.Media.Recorder.FFmpegPath == "" {
		c.Media.Recorder.FFmpegPath = "ffmpeg"
	}

	if len(c.Moderation.Terms) == 0 {
		c.Moderation.Terms = constants.DefaultFlaggedTerms
	}
	if c.Moderation.Threshold <= 0 {
		c.Moderation.Threshold = constants.DefaultOveruseThreshold
	}

	if c.Database.Path != "" {
		if err := security.ValidateFilePath(c.Database.Path); err != nil {
			return models.ConfigError{Message: fmt.Sprintf("invalid database path: %v", err)}
		}
	}
	if c.Database.RetentionDays <= 0 {
		c.Database.RetentionDays = constants.DefaultRetentionDays
	}
	if err := validation.ValidateRetentionDays(c.Database.RetentionDays); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "wechat"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}

	return nil
}

func validateRealtime(c *models.Config) error {
	if c.Realtime.Protocol == "" {
		c.Realtime.Protocol = constants.DefaultRealtimeProtocol
	}
	switch c.Realtime.Protocol {
	case constants.RealtimeProtocolSocketIO, constants.RealtimeProtocolJSON:
	default:
		return models.ConfigError{Message: fmt.Sprintf("unsupported realtime protocol %q", c.Realtime.Protocol)}
	}

	if c.Realtime.URL == "" {
		c.Realtime.URL = c.Server.BaseURL
	}
	if err := validation.ValidateBaseURL("realtime.url", c.Realtime.URL, "http", "https", "ws", "wss"); err != nil {
		return models.ConfigError{Message: err.Error()}
	}

	if c.Realtime.ReadLimitKB <= 0 {
		c.Realtime.ReadLimitKB = constants.DefaultReadLimitKB
	}
	if c.Realtime.DialTimeoutS <= 0 {
		c.Realtime.DialTimeoutS = constants.DefaultDialTimeoutSec
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if u := os.Getenv("WECHAT_SERVER_URL"); u != "" {
		c.Server.BaseURL = u
	}
	if u := os.Getenv("WECHAT_REALTIME_URL"); u != "" {
		c.Realtime.URL = u
	}
	// The session user normally comes from the login flow, not the file
	if id := os.Getenv("WECHAT_USER_ID"); id != "" {
		c.Session.UserID = id
	}
	if path := os.Getenv("WECHAT_DB_PATH"); path != "" {
		c.Database.Path = path
	}
}

// AssetURL resolves a backend-relative asset path (such as an avatar) against
// the server origin.
func AssetURL(c *models.Config, assetPath string) string {
	if assetPath == "" {
		return ""
	}
	if u, err := url.Parse(assetPath); err == nil && u.IsAbs() {
		return assetPath
	}
	return c.Server.BaseURL + "/" + strings.TrimPrefix(assetPath, "/")
}

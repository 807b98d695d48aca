package constants

// Default backend routes
const (
	DefaultUploadPath  = "/api/upload"
	DefaultHistoryPath = "/chat-history"
	DefaultUsersPath   = "/api/auth/allusers"
)

// Default realtime configuration values
const (
	RealtimeProtocolSocketIO = "socketio"
	RealtimeProtocolJSON     = "json"
	DefaultRealtimeProtocol  = RealtimeProtocolSocketIO
	DefaultSocketIOPath      = "/socket.io/"
	DefaultJSONSocketPath    = "/ws"
	DefaultReadLimitKB       = 1024
	DefaultDialTimeoutSec    = 15
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec         = 30
	DefaultDatabaseRetryAttempts  = 3
	DefaultGracefulShutdownSec    = 5
	DefaultRetryBackoffMs         = 500
	DefaultMaxBackoffMs           = 5000
	DefaultRecorderStopTimeoutSec = 5
)

// Default media configuration values
const (
	BytesPerMegabyte         = 1024 * 1024
	DefaultMaxImageSizeMB    = 5
	DefaultMaxVideoSizeMB    = 100
	DefaultMaxAudioSizeMB    = 16
	DefaultMaxDocumentSizeMB = 100
)

// Recorded audio artifact
const (
	RecordingFilename    = "audio-message.webm"
	RecordingContentType = "audio/webm"
)

// Moderation defaults
const DefaultOveruseThreshold = 5

// DefaultFlaggedTerms is the built-in flagged-term list used when the
// configuration does not provide one.
var DefaultFlaggedTerms = []string{
	"coke", "blow", "snow", "flake", "powder", "yeyo", "rock", "girl", "pearl",
	"8-ball", "sugar", "nose candy", "white", "yayo", "fish scale",
}

// Audit log retention
const (
	DefaultRetentionDays          = 30
	CleanupSchedulerIntervalHours = 24
)

// Privacy settings
const DefaultIDMaskLength = 4

// File permission constants
const (
	DefaultFilePermissions      = 0600
	DefaultDirectoryPermissions = 0750
)

// Validation limits
const (
	MaxUserIDLength  = 128
	MaxMessageLength = 64 * 1024
)

// EncryptionSalt and EncryptionLookupSalt feed the audit log key derivation.
const (
	EncryptionSalt       = "wechat-audit-log-v1"
	EncryptionLookupSalt = "wechat-audit-lookup-v1"
)

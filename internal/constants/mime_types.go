package constants

// Default allowed MIME types per media category
var (
	DefaultImageTypes    = []string{"image/jpeg", "image/png", "image/gif"}
	DefaultVideoTypes    = []string{"video/mp4", "video/webm"}
	DefaultAudioTypes    = []string{"audio/mp3", "audio/wav", "audio/mpeg", RecordingContentType}
	DefaultDocumentTypes = []string{"application/pdf", "application/msword", "text/plain"}
)

// MimeTypes maps file extensions to their corresponding MIME types. Used to
// infer the content type of a local file when the caller does not provide one.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",

	".mp4":  "video/mp4",
	".webm": "video/webm",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".weba": "audio/webm",

	".pdf": "application/pdf",
	".doc": "application/msword",
	".txt": "text/plain",
}

// DefaultMimeType is the fallback MIME type for unknown file extensions
const DefaultMimeType = "application/octet-stream"

// MediaURLExtensions lists the URL suffixes rendered as media rather than text.
var MediaURLExtensions = []string{
	"jpg", "jpeg", "png", "gif", "pdf", "mp4", "mp3", "webm",
	"xls", "xlsx", "ppt", "xlsm", "wav",
}

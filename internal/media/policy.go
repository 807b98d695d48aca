package media

import (
	"mime"
	"net/url"
	"path"
	"strings"

	"wechat/internal/constants"
	"wechat/internal/errors"
	"wechat/internal/models"
)

// Policy provides centralized media type classification and validation
type Policy interface {
	// Classify maps a MIME type to its category, or MessageTypeUnknown when the
	// type is in no allow-list
	Classify(contentType string) models.MessageType
	// FileType maps a MIME type to image, video or audio, and everything else
	// to document
	FileType(contentType string) models.MessageType
	// Validate checks the type against the allow-lists and the size against the
	// category limit, before any network call is made
	Validate(contentType string, size int64) (models.MessageType, error)
	// MaxSize returns the maximum allowed size in bytes for a category
	MaxSize(t models.MessageType) int64
}

type policy struct {
	config  models.MediaConfig
	allowed map[models.MessageType]map[string]struct{}
}

// classifyOrder fixes the precedence when a type appears in several lists.
var classifyOrder = []models.MessageType{
	models.MessageTypeImage,
	models.MessageTypeVideo,
	models.MessageTypeAudio,
	models.MessageTypeDocument,
}

// NewPolicy creates a Policy from the media configuration. Empty allow-lists
// fall back to the built-in defaults.
func NewPolicy(config models.MediaConfig) Policy {
	lists := map[models.MessageType][]string{
		models.MessageTypeImage:    orDefault(config.AllowedTypes.Image, constants.DefaultImageTypes),
		models.MessageTypeVideo:    orDefault(config.AllowedTypes.Video, constants.DefaultVideoTypes),
		models.MessageTypeAudio:    orDefault(config.AllowedTypes.Audio, constants.DefaultAudioTypes),
		models.MessageTypeDocument: orDefault(config.AllowedTypes.Document, constants.DefaultDocumentTypes),
	}

	allowed := make(map[models.MessageType]map[string]struct{}, len(lists))
	for t, types := range lists {
		set := make(map[string]struct{}, len(types))
		for _, ct := range types {
			set[NormalizeContentType(ct)] = struct{}{}
		}
		allowed[t] = set
	}

	return &policy{config: config, allowed: allowed}
}

func orDefault(list, def []string) []string {
	if len(list) == 0 {
		return def
	}
	return list
}

func (p *policy) Classify(contentType string) models.MessageType {
	ct := NormalizeContentType(contentType)
	if ct == "" {
		return models.MessageTypeUnknown
	}
	for _, t := range classifyOrder {
		if _, ok := p.allowed[t][ct]; ok {
			return t
		}
	}
	return models.MessageTypeUnknown
}

func (p *policy) FileType(contentType string) models.MessageType {
	switch t := p.Classify(contentType); t {
	case models.MessageTypeImage, models.MessageTypeVideo, models.MessageTypeAudio:
		return t
	default:
		return models.MessageTypeDocument
	}
}

func (p *policy) Validate(contentType string, size int64) (models.MessageType, error) {
	t := p.Classify(contentType)
	if t == models.MessageTypeUnknown {
		return t, errors.NewFileTypeError(contentType)
	}
	if size < 0 {
		return t, errors.NewValidationError("size", contentType, "file size is unknown")
	}
	if limit := p.MaxSize(t); size > limit {
		return t, errors.NewFileSizeError(t.String(), size, limit)
	}
	return t, nil
}

func (p *policy) MaxSize(t models.MessageType) int64 {
	var mb int
	switch t {
	case models.MessageTypeImage:
		mb = p.config.MaxSizeMB.Image
	case models.MessageTypeVideo:
		mb = p.config.MaxSizeMB.Video
	case models.MessageTypeAudio:
		mb = p.config.MaxSizeMB.Audio
	default:
		mb = p.config.MaxSizeMB.Document
	}
	if mb <= 0 {
		mb = defaultSizeMB(t)
	}
	return int64(mb) * constants.BytesPerMegabyte
}

func defaultSizeMB(t models.MessageType) int {
	switch t {
	case models.MessageTypeImage:
		return constants.DefaultMaxImageSizeMB
	case models.MessageTypeVideo:
		return constants.DefaultMaxVideoSizeMB
	case models.MessageTypeAudio:
		return constants.DefaultMaxAudioSizeMB
	default:
		return constants.DefaultMaxDocumentSizeMB
	}
}

// NormalizeContentType strips parameters and case-folds a MIME type.
// "Audio/WebM; codecs=opus" becomes "audio/webm".
func NormalizeContentType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mediaType)
	}
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// ContentTypeForFile infers a MIME type from the file extension.
func ContentTypeForFile(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ct, ok := constants.MimeTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return NormalizeContentType(ct)
	}
	return constants.DefaultMimeType
}

// IsMediaURL reports whether a message body is a link to an uploaded file
// that should be rendered as media rather than text.
func IsMediaURL(content string) bool {
	u, err := url.Parse(strings.TrimSpace(content))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	if ext == "" {
		return false
	}
	for _, known := range constants.MediaURLExtensions {
		if ext == known {
			return true
		}
	}
	return false
}

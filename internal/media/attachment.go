package media

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"wechat/internal/security"
)

// Attachment is a file pending upload. Temporary attachments (recordings) are
// removed from disk when discarded.
type Attachment struct {
	Path        string
	Filename    string
	ContentType string
	Size        int64

	temporary bool
}

// AttachmentFromFile stats a local file and builds an Attachment. When
// contentType is empty it is inferred from the file extension.
func AttachmentFromFile(path, contentType string) (*Attachment, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid attachment path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	if strings.TrimSpace(contentType) == "" {
		contentType = ContentTypeForFile(path)
	}

	return &Attachment{
		Path:        path,
		Filename:    filepath.Base(path),
		ContentType: NormalizeContentType(contentType),
		Size:        info.Size(),
	}, nil
}

// Open returns a reader over the attachment contents.
func (a *Attachment) Open() (io.ReadCloser, error) {
	f, err := os.Open(a.Path) // #nosec G304 - Path validated when the attachment was built
	if err != nil {
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return f, nil
}

// Discard removes the backing file of a temporary attachment. It is a no-op
// for user-selected files.
func (a *Attachment) Discard() error {
	if a == nil || !a.temporary {
		return nil
	}
	if err := os.Remove(a.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", a.Path, err)
	}
	return nil
}

// CleanupStaleRecordings removes recording artifacts older than maxAge left
// behind in dir by a crashed session.
func CleanupStaleRecordings(dir string, maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read recording directory: %w", err)
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), recordingPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return removed, fmt.Errorf("failed to get file info: %w", err)
		}
		if now.Sub(info.ModTime()) <= maxAge {
			continue
		}
		if err := security.ValidateFilePathWithBase(entry.Name(), dir); err != nil {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, fmt.Errorf("failed to remove old recording: %w", err)
		}
		removed++
	}
	return removed, nil
}

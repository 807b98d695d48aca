package security

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{
			name: "valid relative path",
			path: "config/test.json",
		},
		{
			name: "valid absolute path",
			path: "/etc/wechat/config.json",
		},
		{
			name: "dots inside a name",
			path: "uploads/report..final.pdf",
		},
		{
			name:    "empty path",
			path:    "",
			wantErr: true,
			errMsg:  "path cannot be empty",
		},
		{
			name:    "path with directory traversal",
			path:    "../../../etc/passwd",
			wantErr: true,
			errMsg:  "path contains directory traversal",
		},
		{
			name:    "traversal in the middle",
			path:    "media/../../secret",
			wantErr: true,
			errMsg:  "path contains directory traversal",
		},
		{
			name:    "null byte",
			path:    "config\x00.json",
			wantErr: true,
			errMsg:  "null byte",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateFilePath(tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateFilePathWithBase(t *testing.T) {
	base := t.TempDir()

	assert.NoError(t, ValidateFilePathWithBase("recording.webm", base))
	assert.NoError(t, ValidateFilePathWithBase(filepath.Join(base, "sub", "a.webm"), base))
	assert.Error(t, ValidateFilePathWithBase("/tmp/elsewhere.webm", filepath.Join(base, "nested")))
	assert.Error(t, ValidateFilePathWithBase("../escape", base))
}

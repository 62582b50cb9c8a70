package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{"py", "Python"},
		{"go", "Go"},
		{"ts", "TypeScript"},
		{"yml", "YAML"},
		{"yaml", "YAML"},
		{"PY", "Python"},
		{"exe", "Unknown"},
		{"", "Unknown"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectLanguage(tt.ext), "extension %q", tt.ext)
	}
}

func TestFileExtension(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"app.py", "py"},
		{"src/main/App.java", "java"},
		{"archive.tar.gz", "gz"},
		{"Makefile", ""},
		{"trailing.", ""},
		{".gitignore", "gitignore"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FileExtension(tt.filename), "filename %q", tt.filename)
	}
}

package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// FileKind classifies resume and job description files by extension
type FileKind string

const (
	KindText    FileKind = "text"
	KindPDF     FileKind = "pdf"
	KindUnknown FileKind = "unknown"
)

var textExtensions = []string{".txt", ".md", ".markdown", ".text"}

// KindOf returns the kind of file implied by the extension of filename
func KindOf(filename string) FileKind {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case ext == ".pdf":
		return KindPDF
	case slices.Contains(textExtensions, ext):
		return KindText
	default:
		return KindUnknown
	}
}

// SizeError reports a file over the configured limit
type SizeError struct {
	Path  string
	Size  int64
	Limit int64
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("%s is %s, the limit is %s", e.Path, FormatFileSize(e.Size), FormatFileSize(e.Limit))
}

// ErrNotFound is wrapped by ReadFileLimited when the path does not exist
var ErrNotFound = errors.New("file does not exist")

// ReadFileLimited reads a regular file. A positive limit is checked against the
// stat size before reading and against the bytes actually read.
func ReadFileLimited(path string, limit int64) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("filename cannot be empty")
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("cannot access file %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if limit > 0 && info.Size() > limit {
		return nil, &SizeError{Path: path, Size: info.Size(), Limit: limit}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read file %s: %w", path, err)
	}
	// the file may have grown since the stat
	if limit > 0 && int64(len(data)) > limit {
		return nil, &SizeError{Path: path, Size: int64(len(data)), Limit: limit}
	}
	return data, nil
}

// EnsureParentDir creates the directory that will hold filename. An empty
// filename means stdout and is accepted as is.
func EnsureParentDir(filename string) error {
	if filename == "" {
		return nil
	}

	dir := filepath.Dir(filename)
	if dir == "." {
		return nil
	}
	if info, err := os.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s exists and is not a directory", dir)
		}
		return nil
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("cannot create directory %s: %w", dir, err)
	}
	return nil
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}

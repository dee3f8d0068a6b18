// Package attach validates local files before they are uploaded to a
// session. The rules match the ones the backend enforces, so a bad file is
// rejected before any bytes are sent.
package attach

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	// MaxFileSize is the largest accepted upload.
	MaxFileSize = 10 * 1024 * 1024
	// MaxFilesPerSession caps the number of files stored per session.
	MaxFilesPerSession = 3
)

// AllowedTypes lists accepted file extensions, lowercase and without a dot.
var AllowedTypes = []string{"pdf", "txt", "md"}

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrTooManyFiles    = errors.New("maximum 3 files per session")
)

// FileType returns the lowercase extension of name: the text after the last
// dot, or "" when there is none.
func FileType(name string) string {
	idx := strings.LastIndexByte(name, '.')
	if idx < 0 {
		return ""
	}
	return strings.ToLower(name[idx+1:])
}

// ValidateName checks the extension of name and returns the file type.
func ValidateName(name string) (string, error) {
	ft := FileType(name)
	for _, allowed := range AllowedTypes {
		if ft == allowed {
			return ft, nil
		}
	}
	return "", fmt.Errorf("%w: %q. Supported: %s", ErrUnsupportedType, ft, strings.Join(AllowedTypes, ", "))
}

// ValidateSize rejects files over MaxFileSize.
func ValidateSize(size int64) error {
	if size > MaxFileSize {
		return fmt.Errorf("%w: %s (maximum %s)", ErrTooLarge, FormatFileSize(size), FormatFileSize(MaxFileSize))
	}
	return nil
}

// CheckCapacity reports whether adding n files to a session that already
// holds existing files stays within MaxFilesPerSession.
func CheckCapacity(existing, n int) error {
	if existing+n > MaxFilesPerSession {
		return ErrTooManyFiles
	}
	return nil
}

// Candidate is a local file that passed validation.
type Candidate struct {
	Path string
	Name string
	Type string
	Size int64
}

// Stat resolves path and validates it as an upload.
func Stat(path string) (*Candidate, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("cannot attach directory: %s", path)
	}

	name := filepath.Base(absPath)
	ft, err := ValidateName(name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if err := ValidateSize(info.Size()); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &Candidate{Path: absPath, Name: name, Type: ft, Size: info.Size()}, nil
}

// Plan validates every path and the resulting session file count. Either all
// candidates are returned or none.
func Plan(paths []string, existing int) ([]Candidate, error) {
	if err := CheckCapacity(existing, len(paths)); err != nil {
		return nil, err
	}
	out := make([]Candidate, 0, len(paths))
	for _, p := range paths {
		c, err := Stat(p)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// Expand expands glob patterns (including **) into a sorted, de-duplicated
// list of regular files. A pattern without matches is tried as a literal path.
func Expand(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern: %w", err)
		}
		if len(matches) == 0 {
			// Try as a literal path
			if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
				matches = []string{pattern}
			} else {
				return nil, fmt.Errorf("no files match pattern: %s", pattern)
			}
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// FormatFileSize returns a human-readable file size
func FormatFileSize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1fGB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1fMB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1fKB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%dB", bytes)
	}
}

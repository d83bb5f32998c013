// package shared defines shared helpers
package shared

import (
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

var whitespace = regexp.MustCompile(`\s+`)

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger opens (or creates) path and its directory for appending and returns a logger writing to it along with the file.
func NewFileLogger(path string) (*log.Logger, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(f), f, nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// GenerateState returns an opaque OAuth state value.
func GenerateState() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// NormalizeText lowercases s and collapses runs of whitespace into single spaces.
func NormalizeText(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(strings.ToLower(s), " "))
}

// Package seek persists how far into a log file the previous run read.
//
// Each seek key is a small text file holding one decimal byte offset. It is
// rewritten in full on every successful scan. There is no locking: running
// two checks against the same key at once is not supported.
package seek

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/supporttools/logcheck/pkg/logger"
	"github.com/supporttools/logcheck/pkg/types"
)

// Store loads and saves the offset for one seek key.
type Store interface {
	// Load returns the stored offset and whether one was found. Read
	// failures are reported as not found.
	Load() (int64, bool)

	// Save overwrites the stored offset.
	Save(offset int64) error

	// Path returns the location of the seek file.
	Path() string
}

// ResolveKey returns the seek file location for a target.
//
//   - key == "" and a static filename: <scratchDir>/<base(target)>.seek
//   - key == "" and a dynamic filename: usage fault
//   - key names a directory: <key>/<base(target)>.seek
//   - otherwise key is used as-is (including os.DevNull)
func ResolveKey(key, scratchDir, target string, dynamic bool) (string, error) {
	name := filepath.Base(target) + types.DefaultSeekSuffix

	if key == "" {
		if dynamic {
			return "", types.UsageError("a fixed seek key is required when the log filename uses a pattern")
		}
		return filepath.Join(scratchDir, name), nil
	}

	if key == types.NullSeekKey {
		return key, nil
	}

	if info, err := os.Stat(key); err == nil && info.IsDir() {
		return filepath.Join(key, name), nil
	}

	return key, nil
}

// New returns the store for a resolved key path.
func New(path string) Store {
	if path == types.NullSeekKey {
		return nullStore{}
	}
	return &fileStore{path: path}
}

// Apply returns the offset to seek to for a file of the given size. An
// offset beyond the end means the file was truncated or rotated.
func Apply(offset, size int64) int64 {
	if offset > size || offset < 0 {
		return 0
	}
	return offset
}

// Unchanged reports whether the file has not grown since the stored offset.
func Unchanged(offset, size int64) bool {
	return offset == size
}

type fileStore struct {
	path string
}

func (s *fileStore) Path() string {
	return s.path
}

func (s *fileStore) Load() (int64, bool) {
	log := logger.ForComponent("seek").WithField("seekFile", s.path)

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("failed to read seek file, scanning from start")
		}
		return 0, false
	}

	text := strings.TrimSpace(string(data))
	offset, err := strconv.ParseInt(text, 10, 64)
	if err != nil || offset < 0 {
		log.Warnf("seek file holds %q, scanning from start", text)
		return 0, false
	}
	if offset == 0 {
		return 0, false
	}
	return offset, true
}

func (s *fileStore) Save(offset int64) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return types.IOError("failed to open seek file %s for writing: %w", s.path, err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", offset); err != nil {
		f.Close()
		return types.IOError("failed to write seek file %s: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return types.IOError("failed to close seek file %s: %w", s.path, err)
	}
	return nil
}

type nullStore struct{}

func (nullStore) Path() string            { return types.NullSeekKey }
func (nullStore) Load() (int64, bool)     { return 0, false }
func (nullStore) Save(offset int64) error { return nil }

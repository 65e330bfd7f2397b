package channels

import (
	"context"
	"fmt"
	"os"
	"sync"

	fortitude "github.com/99souls/fortitude"
	"github.com/99souls/fortitude/engine/models"
)

// File appends one line per notification to target.Path, §4.9:
// "<RFC3339 ts> LEVEL [source] title — message".
type File struct {
	mu    sync.Mutex
	files map[string]*os.File
}

func NewFile() *File {
	return &File{files: make(map[string]*os.File)}
}

func (f *File) Deliver(_ context.Context, n models.Notification, target models.Channel) error {
	if target.Path == "" {
		return fortitude.New(fortitude.ErrInvalidInput, "file channel requires a path")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	fh, ok := f.files[target.Path]
	if !ok {
		var err error
		fh, err = os.OpenFile(target.Path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fortitude.Wrap(fortitude.ErrStorageError, err, "open notification log %s", target.Path)
		}
		f.files[target.Path] = fh
	}

	line := fmt.Sprintf("%s %s [%s] %s — %s\n",
		n.CreatedAt.Format("2006-01-02T15:04:05Z07:00"), n.Type, n.Source, n.Title, n.Body)
	if _, err := fh.WriteString(line); err != nil {
		return fortitude.Wrap(fortitude.ErrStorageError, err, "append to notification log %s", target.Path)
	}
	return nil
}

// Close releases every open file handle.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var firstErr error
	for path, fh := range f.files {
		if err := fh.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(f.files, path)
	}
	return firstErr
}

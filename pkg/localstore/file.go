package localstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

const tmpSuffix = ".tmp"

// File keeps one file per key inside a directory. Several processes opening
// the same directory observe each other's writes through Watch.
type File struct {
	dir    string
	logger *slog.Logger
}

var _ Store = (*File)(nil)

// FileOption configures a File store.
type FileOption func(*File)

// WithFileLogger sets the logger used for watcher errors.
func WithFileLogger(l *slog.Logger) FileOption {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFile opens (creating if needed) a directory-backed store.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("localstore: create dir: %w", err)
	}
	f := &File{
		dir:    dir,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Get reads key. Any read error is reported as a missing key.
func (f *File) Get(key string) (string, bool) {
	b, err := os.ReadFile(f.path(key))
	if err != nil {
		return "", false
	}
	return string(b), true
}

// Set writes value atomically so readers never observe a partial value.
func (f *File) Set(key, value string) error {
	tmp, err := os.CreateTemp(f.dir, "."+encodeKey(key)+"-*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	if _, err := tmp.WriteString(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), f.path(key)); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("localstore: set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. A missing key is not an error.
func (f *File) Remove(key string) error {
	if err := os.Remove(f.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("localstore: remove %q: %w", key, err)
	}
	return nil
}

// Watch streams changes to keys in the directory. Unlike MemoryTab, writes made
// through this handle are echoed as well; callers that care must filter them.
func (f *File) Watch(ctx context.Context) <-chan Change {
	out := make(chan Change, 64)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		f.logger.Error("localstore watcher unavailable", slog.Any("error", err))
		close(out)
		return out
	}
	if err := w.Add(f.dir); err != nil {
		f.logger.Error("localstore watch failed", slog.String("dir", f.dir), slog.Any("error", err))
		_ = w.Close()
		close(out)
		return out
	}

	go func() {
		defer close(out)
		defer w.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				c, ok := f.toChange(ev)
				if !ok {
					continue
				}
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				f.logger.Warn("localstore watcher error", slog.Any("error", err))
			}
		}
	}()

	return out
}

func (f *File) toChange(ev fsnotify.Event) (Change, bool) {
	name := filepath.Base(ev.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, tmpSuffix) {
		return Change{}, false
	}
	key, err := url.PathUnescape(name)
	if err != nil {
		return Change{}, false
	}

	switch {
	case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
		// A rename onto the key is reported as Create on the target.
		if _, ok := f.Get(key); ok {
			return Change{}, false
		}
		return Change{Key: key, Removed: true}, true
	case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
		v, ok := f.Get(key)
		if !ok {
			return Change{}, false
		}
		return Change{Key: key, Value: v}, true
	}
	return Change{}, false
}

func (f *File) path(key string) string {
	return filepath.Join(f.dir, encodeKey(key))
}

func encodeKey(key string) string {
	return url.PathEscape(key)
}

// Package watch reports batches of changed C sources and model files so
// that extraction and analysis can be re-run continuously.
package watch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/internal/scanner"
)

// Defaults for the debounce windows.
const (
	DefaultQuiet   = 300 * time.Millisecond
	DefaultMaxWait = 5 * time.Second
)

// Watcher watches a source tree and a set of model files.
type Watcher struct {
	watcher *fsnotify.Watcher
	root    string
	files   map[string]struct{}
	opts    scanner.Options
	quiet   time.Duration
	maxWait time.Duration
	log     log.Logger
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period and the maximum batch delay.
func WithDebounce(quiet, maxWait time.Duration) Option {
	return func(w *Watcher) {
		w.quiet = quiet
		w.maxWait = maxWait
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(w *Watcher) { w.log = log.OrDefault(l) }
}

// New watches every directory below root (skipping what the scanner
// skips) and the given model files. root may be empty.
func New(root string, files []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher: fw,
		files:   make(map[string]struct{}),
		opts:    scanner.DefaultOptions(),
		quiet:   DefaultQuiet,
		maxWait: DefaultMaxWait,
		log:     log.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if root != "" {
		if w.root, err = filepath.Abs(root); err != nil {
			fw.Close()
			return nil, err
		}
		if err := w.addTree(w.root); err != nil {
			fw.Close()
			return nil, err
		}
	}
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = struct{}{}
		if err := fw.Add(filepath.Dir(abs)); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", f, err)
		}
	}
	return w, nil
}

// addTree adds dir and its subdirectories.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) skipDir(name string) bool {
	if w.opts.SkipHidden && strings.HasPrefix(name, ".") {
		return true
	}
	for _, ex := range w.opts.DefaultExcludes {
		if name == ex {
			return true
		}
	}
	return false
}

// relevant reports whether a changed path is a watched model file or a C
// input below root.
func (w *Watcher) relevant(path string) bool {
	if _, ok := w.files[path]; ok {
		return true
	}
	if w.root == "" || !strings.HasPrefix(path, w.root+string(filepath.Separator)) {
		return false
	}
	return scanner.DetectKind(filepath.Ext(path)) != ""
}

// Run streams debounced change batches until ctx is done, then closes the
// underlying watcher. Run must be called once.
func (w *Watcher) Run(ctx context.Context) <-chan Event {
	paths := make(chan string)
	go func() {
		defer close(paths)
		defer w.watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.handle(ctx, ev, paths)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.log.Error("watcher error", "error", err)
			}
		}
	}()
	return Debounce(ctx, paths, w.quiet, w.maxWait)
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event, paths chan<- string) {
	if ev.Has(fsnotify.Create) && w.root != "" && strings.HasPrefix(ev.Name, w.root) {
		if isDir, err := statDir(ev.Name); err == nil && isDir {
			if !w.skipDir(filepath.Base(ev.Name)) {
				if err := w.addTree(ev.Name); err != nil {
					w.log.Warn("failed to watch new directory", "path", ev.Name, "error", err)
				}
			}
			return
		}
	}
	if ev.Op == fsnotify.Chmod || !w.relevant(ev.Name) {
		return
	}
	w.log.Debug("change detected", "path", ev.Name, "op", ev.Op.String())
	select {
	case paths <- ev.Name:
	case <-ctx.Done():
	}
}

func statDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

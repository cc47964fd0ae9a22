// Package watcher monitors an inbox directory for drawing files and feeds
// each settled file to the pipeline.
package watcher

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/crypto/sha3"

	"sketchd/internal/config"
)

const (
	// DefaultDebounce is used when the config leaves the debounce unset.
	DefaultDebounce = 500 * time.Millisecond
	// DefaultPattern matches drawing files when the config leaves it unset.
	DefaultPattern = "*.json"

	eventBuffer = 100
	errorBuffer = 10
)

// Event is a drawing file that has stopped changing.
type Event struct {
	Path      string
	Hash      [32]byte
	Size      int64
	Timestamp time.Time
}

// Watcher reports drawing files in one inbox directory once they have been
// quiet for the debounce interval. A file whose bytes match what was last
// reported for that path is not reported again.
type Watcher struct {
	fsw      *fsnotify.Watcher
	dir      string
	pattern  string
	debounce time.Duration

	mu        sync.Mutex
	pending   map[string]time.Time // last activity per path
	delivered map[string][32]byte  // content hash last reported per path

	events chan Event
	errors chan error
	done   chan struct{}
	wg     sync.WaitGroup
}

// New creates a watcher for the configured inbox. Nothing is watched until
// Start.
func New(cfg config.WatchConfig) (*Watcher, error) {
	pattern := cfg.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, err
	}
	debounce := time.Duration(cfg.DebounceMs) * time.Millisecond
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		fsw:       fsw,
		dir:       cfg.InboxDir,
		pattern:   pattern,
		debounce:  debounce,
		pending:   make(map[string]time.Time),
		delivered: make(map[string][32]byte),
		events:    make(chan Event, eventBuffer),
		errors:    make(chan error, errorBuffer),
		done:      make(chan struct{}),
	}, nil
}

// Events delivers settled files. It is closed by Stop.
func (w *Watcher) Events() <-chan Event { return w.events }

// Errors delivers watch and read failures. It is closed by Stop.
func (w *Watcher) Errors() <-chan error { return w.errors }

// Dir returns the inbox directory, absolute after Start.
func (w *Watcher) Dir() string { return w.dir }

// Pattern returns the file name glob.
func (w *Watcher) Pattern() string { return w.pattern }

// Matches reports whether path names a candidate drawing.
func (w *Watcher) Matches(path string) bool {
	ok, _ := filepath.Match(w.pattern, filepath.Base(path))
	return ok
}

// PendingFiles returns the number of files waiting to settle.
func (w *Watcher) PendingFiles() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Start creates the inbox if needed, queues the drawings already in it and
// begins watching.
func (w *Watcher) Start() error {
	dir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	w.dir = dir

	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	if err := w.fsw.Add(dir); err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !w.Matches(e.Name()) {
			continue
		}
		if info, err := e.Info(); err == nil {
			w.touch(filepath.Join(dir, e.Name()), info.ModTime())
		}
	}

	w.wg.Add(1)
	go w.run()
	return nil
}

// Stop ends watching and closes the Events and Errors channels.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsw.Close()
}

func (w *Watcher) touch(path string, at time.Time) {
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

func (w *Watcher) forget(path string) {
	w.mu.Lock()
	delete(w.pending, path)
	delete(w.delivered, path)
	w.mu.Unlock()
}

func (w *Watcher) report(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// tick is how often pending files are checked: half the debounce, kept
// within [10ms, 1s].
func (w *Watcher) tick() time.Duration {
	return min(max(w.debounce/2, 10*time.Millisecond), time.Second)
}

func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			switch {
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				w.forget(ev.Name)
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0 && w.Matches(ev.Name):
				if info, err := os.Stat(ev.Name); err == nil && !info.IsDir() {
					w.touch(ev.Name, time.Now())
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.report(err)

		case now := <-ticker.C:
			w.settle(now)
		}
	}
}

// settle reports every pending file that has been quiet since
// now - debounce. Files are hashed without holding the lock; a file touched
// while it was being hashed stays pending.
func (w *Watcher) settle(now time.Time) {
	cutoff := now.Add(-w.debounce)

	w.mu.Lock()
	due := make(map[string]time.Time)
	for path, at := range w.pending {
		if at.Before(cutoff) {
			due[path] = at
		}
	}
	w.mu.Unlock()

	for path, at := range due {
		hash, size, err := HashFile(path)

		w.mu.Lock()
		if err != nil {
			delete(w.pending, path)
			w.mu.Unlock()
			w.report(err)
			continue
		}
		if cur, ok := w.pending[path]; !ok || !cur.Equal(at) {
			w.mu.Unlock()
			continue
		}
		if prev, ok := w.delivered[path]; ok && prev == hash {
			delete(w.pending, path)
			w.mu.Unlock()
			continue
		}

		select {
		case w.events <- Event{Path: path, Hash: hash, Size: size, Timestamp: now}:
			delete(w.pending, path)
			w.delivered[path] = hash
		default:
			// Consumer is behind; retry on the next tick.
		}
		w.mu.Unlock()
	}
}

// HashFile streams path through SHA3-256 and returns the digest and size.
func HashFile(path string) ([32]byte, int64, error) {
	var sum [32]byte

	f, err := os.Open(path)
	if err != nil {
		return sum, 0, err
	}
	defer f.Close()

	h := sha3.New256()
	n, err := io.Copy(h, f)
	if err != nil {
		return sum, 0, err
	}
	copy(sum[:], h.Sum(nil))
	return sum, n, nil
}

package tlsroots

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yndnr/tlsmesh-go/internal/core/domain"
)

// Reloader reloads the material of one channel.
type Reloader interface {
	Reload(ch domain.ChannelType) error
}

// Watcher watches the certificate files of a Store and reloads the
// affected channel on change. It never disconnects peers; connections
// pick up new material when they are next established.
type Watcher struct {
	store    Reloader
	files    map[domain.ChannelType]ChannelFiles
	done     chan struct{}
	stopOnce sync.Once
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onReload func(ch domain.ChannelType, err error)

	// A channel reloads once its files have been quiet for debounce.
	debounce time.Duration
	timers   map[domain.ChannelType]*time.Timer
	timerMu  sync.Mutex
	stopped  bool
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the logger for the watcher.
func WithLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// WithDebounce sets the debounce duration.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithOnReload registers a callback invoked after every reload attempt.
func WithOnReload(fn func(ch domain.ChannelType, err error)) WatcherOption {
	return func(w *Watcher) {
		w.onReload = fn
	}
}

// NewWatcher creates a watcher reloading store when any of files change.
func NewWatcher(store Reloader, files map[domain.ChannelType]ChannelFiles, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		store:      store,
		files:      files,
		done:       make(chan struct{}),
		logger:     slog.Default(),
		debounce: 500 * time.Millisecond,
		timers:   make(map[domain.ChannelType]*time.Timer),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Start starts watching for certificate changes.
// This function blocks until Stop() is called.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	w.watcher = watcher

	// Watch directories rather than files so editors that replace files
	// by rename are still seen.
	dirs := make(map[string]struct{})
	for _, f := range w.files {
		for _, path := range []string{f.CertFile, f.KeyFile, f.CAFile} {
			if path != "" {
				dirs[filepath.Dir(path)] = struct{}{}
			}
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			watcher.Close()
			return fmt.Errorf("tlsroots: watch dir %s: %w", dir, err)
		}
	}

	w.logger.Info("certificate watcher started", "dirs", len(dirs))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			// Only reload on write or create events
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			for _, ch := range w.channelsFor(event.Name) {
				w.logger.Debug("certificate file changed",
					"file", event.Name,
					"op", event.Op.String(),
					"channel", ch.String(),
				)
				w.debouncedReload(ch)
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("certificate watcher error", "error", err)

		case <-w.done:
			return watcher.Close()
		}
	}
}

// StartAsync starts watching in a goroutine.
func (w *Watcher) StartAsync() {
	go func() {
		if err := w.Start(); err != nil {
			w.logger.Error("certificate watcher stopped with error",
				"error", err,
			)
		}
	}()
}

// Stop stops watching and cancels pending reloads. It is safe to call
// more than once.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		w.timerMu.Lock()
		w.stopped = true
		for ch, t := range w.timers {
			t.Stop()
			delete(w.timers, ch)
		}
		w.timerMu.Unlock()
		close(w.done)
	})
}

// channelsFor returns the channels using the file at path.
func (w *Watcher) channelsFor(path string) []domain.ChannelType {
	path = filepath.Clean(path)

	var out []domain.ChannelType
	for ch, f := range w.files {
		for _, p := range []string{f.CertFile, f.KeyFile, f.CAFile} {
			if p == "" {
				continue
			}
			p = filepath.Clean(p)
			// A CA directory matches any file inside it.
			if p == path || filepath.Dir(path) == p {
				out = append(out, ch)
				break
			}
		}
	}
	return out
}

// debouncedReload schedules a reload of ch after the debounce window.
// Every further event for ch restarts the window, so a key pair written
// as two files is loaded once both writes are done.
func (w *Watcher) debouncedReload(ch domain.ChannelType) {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()
	if w.stopped {
		return
	}

	if t, ok := w.timers[ch]; ok {
		t.Stop()
	}
	w.timers[ch] = time.AfterFunc(w.debounce, func() {
		w.timerMu.Lock()
		if w.stopped {
			w.timerMu.Unlock()
			return
		}
		delete(w.timers, ch)
		w.timerMu.Unlock()

		w.reload(ch)
	})
}

func (w *Watcher) reload(ch domain.ChannelType) {
	err := w.store.Reload(ch)
	if err != nil {
		w.logger.Error("certificate reload failed",
			"channel", ch.String(),
			"error", err,
		)
	}
	if w.onReload != nil {
		w.onReload(ch, err)
	}
}

package batch

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/ironsheep/image-deskew/internal/imaging"
)

// DefaultDebounce is how long a file must stay quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// Watcher corrects image files as they are created or rewritten in a
// directory.
type Watcher struct {
	runner   *Runner
	dir      string
	debounce time.Duration
	onResult func(Result)

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithResultHandler is called once per processed file.
func WithResultHandler(fn func(Result)) WatchOption {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// NewWatcher creates a Watcher that processes files in dir with runner.
func NewWatcher(runner *Runner, dir string, opts ...WatchOption) *Watcher {
	w := &Watcher{
		runner:   runner,
		dir:      dir,
		debounce: DefaultDebounce,
		onResult: func(Result) {},
		pending:  make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches the directory until ctx is canceled. Files already present are
// not processed. Run waits for in-flight files before returning.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	if w.runner.outputDir != "" {
		if err := os.MkdirAll(w.runner.outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	w.runner.logger.Info().Str("dir", w.dir).Msg("watching for images")
	defer w.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if !w.accepts(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.runner.logger.Error().Err(err).Msg("watcher error")
		}
	}
}

func (w *Watcher) accepts(path string) bool {
	if !imaging.IsSupported(path) || w.runner.IsOutput(path) {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// schedule restarts the quiet period for path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.pending[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() { w.fire(ctx, path, t) })
	w.pending[path] = t
}

// fire processes path once its quiet period has elapsed. A timer that was
// replaced by a later schedule call does nothing.
func (w *Watcher) fire(ctx context.Context, path string, t *time.Timer) {
	w.mu.Lock()
	if w.closed || w.pending[path] != t {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.wg.Add(1)
	w.mu.Unlock()
	defer w.wg.Done()

	w.onResult(w.runner.ProcessFile(ctx, path))
}

// stop cancels files still in their quiet period and waits for the rest.
func (w *Watcher) stop() {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		t.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	w.wg.Wait()
}

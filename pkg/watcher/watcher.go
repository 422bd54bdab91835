// Package watcher tells rp when its graph data changed on disk, so the
// open dialog and the headless --watch loop can re-apply the pattern.
//
// The data file's directory is watched with fsnotify, which also sees
// editors and exporters that save by renaming a temp file over the
// original. On network filesystems, when fsnotify cannot start, or with
// RP_FORCE_POLL set, the files are stat-polled instead. A SQLite store is
// tracked with its -wal and -journal sidecars because a commit may touch
// only the WAL.
package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vanderheijden86/rolepattern/pkg/debug"
)

// DefaultPollInterval is how often polling mode stats the files.
const DefaultPollInterval = 2 * time.Second

var (
	ErrFileRemoved    = errors.New("watched file was removed")
	ErrPermission     = errors.New("permission denied")
	ErrAlreadyStarted = errors.New("watcher already started")
)

// SQLiteCompanions are the sidecar suffixes SQLite writes next to a store.
var SQLiteCompanions = []string{"-wal", "-journal"}

// Event is one debounced change of the data file or a sidecar.
type Event struct {
	Path string // always the data file
	At   time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounceDuration = d }
}

func WithPollInterval(d time.Duration) Option {
	return func(w *Watcher) { w.pollInterval = d }
}

// WithOnChange is called with every event before it is offered on
// Changed.
func WithOnChange(fn func(Event)) Option {
	return func(w *Watcher) { w.onChange = fn }
}

// WithOnError receives ErrFileRemoved, ErrPermission and fsnotify errors.
// Watching continues after each.
func WithOnError(fn func(error)) Option {
	return func(w *Watcher) { w.onError = fn }
}

func WithForcePoll(force bool) Option {
	return func(w *Watcher) { w.forcePoll = force }
}

// WithCompanions tracks path+suffix files along with the data file.
func WithCompanions(suffixes ...string) Option {
	return func(w *Watcher) { w.companions = append(w.companions, suffixes...) }
}

// stamp is what polling compares between ticks.
type stamp struct {
	mod  time.Time
	size int64
	ok   bool // file exists
}

func stampOf(path string) (stamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return stamp{}, err
	}
	return stamp{mod: info.ModTime(), size: info.Size(), ok: true}, nil
}

// Watcher reports changes to one data file.
type Watcher struct {
	path             string
	companions       []string
	debounceDuration time.Duration
	pollInterval     time.Duration
	onChange         func(Event)
	onError          func(error)
	forcePoll        bool

	debouncer *Debouncer
	changeCh  chan Event

	mu      sync.RWMutex
	started bool
	polling bool
	fsType  FilesystemType
	cancel  context.CancelFunc
	stamps  map[string]stamp
}

// NewWatcher prepares a watcher for the data file at path. Nothing is
// watched until Start.
func NewWatcher(path string, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		path:             abs,
		debounceDuration: DefaultDebounceDuration,
		pollInterval:     DefaultPollInterval,
		onChange:         func(Event) {},
		onError:          func(error) {},
		changeCh:         make(chan Event, 1),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.debouncer = NewDebouncer(w.debounceDuration)
	return w, nil
}

// tracked lists the data file then its sidecars.
func (w *Watcher) tracked() []string {
	out := make([]string, 0, 1+len(w.companions))
	out = append(out, w.path)
	for _, s := range w.companions {
		out = append(out, w.path+s)
	}
	return out
}

func (w *Watcher) isTracked(name string) bool {
	base := filepath.Base(name)
	for _, f := range w.tracked() {
		if filepath.Base(f) == base {
			return true
		}
	}
	return false
}

// Start begins watching in the background. A data file that does not exist
// yet is fine; an unreadable one is ErrPermission.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return ErrAlreadyStarted
	}

	w.stamps = make(map[string]stamp)
	for _, f := range w.tracked() {
		st, err := stampOf(f)
		if os.IsPermission(err) {
			return ErrPermission
		}
		w.stamps[f] = st
	}

	w.fsType = DetectFilesystemType(w.path)
	w.polling = w.forcePoll || envBool("RP_FORCE_POLL") || isRemoteFilesystem(w.fsType)

	var fsw *fsnotify.Watcher
	if !w.polling {
		var err error
		if fsw, err = startNotify(filepath.Dir(w.path)); err != nil {
			debug.Log("watcher: fsnotify unavailable, polling: %v", err)
			w.polling = true
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	go w.loop(ctx, fsw)

	debug.Log("watcher: %s (fs=%s, polling=%v)", w.path, w.fsType, w.polling)
	w.started = true
	return nil
}

func startNotify(dir string) (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// loop serves both modes: with fsw nil the ticker drives polling, else the
// fsnotify channels drive it and the ticker channel stays nil.
func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher) {
	var (
		events <-chan fsnotify.Event
		errs   <-chan error
		tick   <-chan time.Time
	)
	if fsw != nil {
		defer fsw.Close()
		events, errs = fsw.Events, fsw.Errors
	} else {
		t := time.NewTicker(w.pollInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			w.handleNotify(ev)
		case err, ok := <-errs:
			if !ok {
				return
			}
			w.onError(err)
		case <-tick:
			if w.poll() {
				w.debouncer.Trigger(w.notifyChange)
			}
		}
	}
}

func (w *Watcher) handleNotify(ev fsnotify.Event) {
	if !w.isTracked(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Remove != 0 && filepath.Base(ev.Name) == filepath.Base(w.path) {
		w.onError(ErrFileRemoved)
		return
	}
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
		w.debouncer.Trigger(w.notifyChange)
	}
}

// poll restamps every tracked file and reports whether any changed. The
// data file disappearing is reported through onError instead.
func (w *Watcher) poll() bool {
	changed := false
	for _, f := range w.tracked() {
		cur, err := stampOf(f)
		switch {
		case os.IsPermission(err):
			w.onError(ErrPermission)
			continue
		case err != nil && !os.IsNotExist(err):
			w.onError(err)
			continue
		}

		w.mu.Lock()
		prev := w.stamps[f]
		w.stamps[f] = cur
		w.mu.Unlock()

		if prev.ok && !cur.ok && f == w.path {
			w.onError(ErrFileRemoved)
			continue
		}
		if stampChanged(prev, cur) {
			changed = true
		}
	}
	return changed
}

func stampChanged(prev, cur stamp) bool {
	if prev.ok != cur.ok {
		return true
	}
	return cur.ok && (cur.mod.After(prev.mod) || cur.size != prev.size)
}

func (w *Watcher) notifyChange() {
	if !w.IsStarted() {
		return
	}
	ev := Event{Path: w.path, At: time.Now()}
	debug.Log("watcher: change in %s", w.path)
	w.onChange(ev)

	// One pending event is enough; the reader reloads everything anyway.
	select {
	case w.changeCh <- ev:
	default:
	}
}

// Stop ends watching. Changed is left open so a blocked reader is not
// woken with a zero Event.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.cancel()
	w.debouncer.Cancel()
	w.started = false
}

func (w *Watcher) IsPolling() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.polling
}

func (w *Watcher) IsStarted() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.started
}

// Changed receives after each debounced change.
func (w *Watcher) Changed() <-chan Event {
	return w.changeCh
}

// Path is the absolute data file path.
func (w *Watcher) Path() string {
	return w.path
}

// FilesystemType is the classification made at Start.
func (w *Watcher) FilesystemType() FilesystemType {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fsType
}

func (w *Watcher) PollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.pollInterval
}

func envBool(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}

package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/avironsec/aviron/internal/log"
)

// NotifyWatcher watches a directory tree with the platform's kernel facility
// (inotify, kqueue, ReadDirectoryChangesW) through fsnotify. Subdirectories
// created while watching are registered automatically when recursive
// registration is enabled.
type NotifyWatcher struct {
	mainDir      string
	registerSubs bool
	fileListener func(FileEvent)
	regListener  func(RegisterEvent)
	errListener  func(ErrorEvent)
	termListener func(TerminationEvent)

	mu         sync.Mutex
	watcher    *fsnotify.Watcher
	registered map[string]bool
	running    bool
	closed     bool

	termOnce sync.Once
	done     chan struct{}
}

// NewNotifyWatcher creates a native watcher rooted at mainDir. With
// registerAllSubDirs all existing subdirectories are registered on Start and
// created subdirectories are registered as they appear.
func NewNotifyWatcher(mainDir string, registerAllSubDirs bool) (*NotifyWatcher, error) {
	info, err := os.Stat(mainDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("watch directory %q does not exist", mainDir)
	}
	return &NotifyWatcher{
		mainDir:      mainDir,
		registerSubs: registerAllSubDirs,
		registered:   map[string]bool{},
		done:         make(chan struct{}),
	}, nil
}

func (w *NotifyWatcher) SetFileListener(fn func(FileEvent))         { w.fileListener = fn }
func (w *NotifyWatcher) SetRegisterListener(fn func(RegisterEvent)) { w.regListener = fn }
func (w *NotifyWatcher) SetErrorListener(fn func(ErrorEvent))       { w.errListener = fn }
func (w *NotifyWatcher) SetTerminationListener(fn func(TerminationEvent)) {
	w.termListener = fn
}

// Register adds secondary directory trees to the watch. May be called before
// or after Start.
func (w *NotifyWatcher) Register(dirs ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher for %s is closed", w.mainDir)
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return fmt.Errorf("watch directory %q does not exist", dir)
		}
		if err := w.registerTreeLocked(dir); err != nil {
			return err
		}
	}
	return nil
}

// Start registers the main directory tree and launches the event loop. A
// second call on a running watcher is a no-op.
func (w *NotifyWatcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("watcher for %s is closed", w.mainDir)
	}
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = fsw

	// directories recorded by Register before Start
	for p := range w.registered {
		if err := fsw.Add(p); err != nil {
			fsw.Close()
			w.watcher = nil
			return err
		}
	}

	if err := w.registerTreeLocked(w.mainDir); err != nil {
		fsw.Close()
		w.watcher = nil
		return err
	}

	w.running = true
	go w.loop(fsw)
	return nil
}

// registerTreeLocked adds dir, and with registerSubs its whole subtree, to the
// fsnotify watch set. Directories queued via Register before Start are only
// recorded and picked up by Start.
func (w *NotifyWatcher) registerTreeLocked(dir string) error {
	add := func(p string) error {
		if w.registered[p] {
			return nil
		}
		if w.watcher != nil {
			if err := w.watcher.Add(p); err != nil {
				return err
			}
		}
		w.registered[p] = true
		w.emitRegister(RegisterEvent{Path: p})
		return nil
	}

	if !w.registerSubs {
		return add(dir)
	}
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		return add(p)
	})
}

func (w *NotifyWatcher) loop(fsw *fsnotify.Watcher) {
	for {
		select {
		case ev, ok := <-fsw.Events:
			if !ok {
				w.terminate(nil)
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				w.terminate(nil)
				return
			}
			if err == fsnotify.ErrEventOverflow {
				w.emitFile(FileEvent{Type: Overflow, Time: time.Now()})
				continue
			}
			w.emitError(ErrorEvent{Path: w.mainDir, Err: err})
		case <-w.done:
			w.terminate(nil)
			return
		}
	}
}

func (w *NotifyWatcher) handleEvent(ev fsnotify.Event) {
	var typ EventType
	switch {
	case ev.Op.Has(fsnotify.Create):
		typ = Created
	case ev.Op.Has(fsnotify.Write):
		typ = Modified
	case ev.Op.Has(fsnotify.Remove), ev.Op.Has(fsnotify.Rename):
		typ = Deleted
	default:
		// chmod noise
		return
	}

	kind := w.classify(ev.Name, typ)

	if typ == Created && kind == KindDir && w.registerSubs {
		w.mu.Lock()
		if !w.closed {
			if err := w.registerTreeLocked(ev.Name); err != nil {
				w.mu.Unlock()
				w.emitError(ErrorEvent{Path: ev.Name, Err: err})
				w.emitFile(FileEvent{Path: ev.Name, Type: typ, Kind: kind, Time: time.Now()})
				return
			}
		}
		w.mu.Unlock()
	}

	if typ == Deleted {
		w.mu.Lock()
		if w.registered[ev.Name] {
			delete(w.registered, ev.Name)
			kind = KindDir
		}
		w.mu.Unlock()
	}

	w.emitFile(FileEvent{Path: ev.Name, Type: typ, Kind: kind, Time: time.Now()})
}

// classify stats the path to tell files from directories. Deleted paths can no
// longer be stat'ed and are resolved against the registered set by the caller.
func (w *NotifyWatcher) classify(path string, typ EventType) Kind {
	if typ == Deleted {
		return KindUnknown
	}
	info, err := os.Stat(path)
	if err != nil {
		return KindUnknown
	}
	if info.IsDir() {
		return KindDir
	}
	return KindFile
}

// Close stops the event loop and releases the kernel watch. The Termination
// event fires exactly once.
func (w *NotifyWatcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.running
	w.running = false
	fsw := w.watcher
	w.mu.Unlock()

	close(w.done)
	if fsw != nil {
		if err := fsw.Close(); err != nil {
			log.Debugf("watcher: close: %v", err)
		}
	}
	if !running {
		w.terminate(nil)
	}
	return nil
}

func (w *NotifyWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *NotifyWatcher) MainDir() string { return w.mainDir }

// RegisteredPaths returns the currently registered directories, sorted.
func (w *NotifyWatcher) RegisteredPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.registered))
	for p := range w.registered {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

func (w *NotifyWatcher) terminate(err error) {
	w.termOnce.Do(func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
		if w.termListener != nil {
			w.termListener(TerminationEvent{Path: w.mainDir, Err: err})
		}
	})
}

func (w *NotifyWatcher) emitFile(ev FileEvent) {
	if w.fileListener != nil {
		w.fileListener(ev)
	}
}

func (w *NotifyWatcher) emitRegister(ev RegisterEvent) {
	if w.regListener != nil {
		w.regListener(ev)
	}
}

func (w *NotifyWatcher) emitError(ev ErrorEvent) {
	if w.errListener != nil {
		w.errListener(ev)
	}
}

package aviron

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avironsec/aviron/internal/cache"
	"github.com/avironsec/aviron/internal/log"
	"github.com/avironsec/aviron/internal/queue"
	"github.com/avironsec/aviron/internal/util"
	"github.com/avironsec/aviron/watcher"
)

// scanBatchSize is how many queued paths the worker drains per cycle before
// checking for idleness.
const scanBatchSize = 300

// workerBackoff is slept after a worker cycle failure to keep a persistent
// fault from spinning the worker.
const workerBackoff = 2 * time.Second

// workerCounter numbers realtime scan workers process-wide.
var workerCounter atomic.Int64

// RealtimeScanEvent is delivered to the scan listener for every file the
// realtime scanner submitted to the daemon.
type RealtimeScanEvent struct {
	Path   string
	Result *ScanResult
	Err    error
}

// ScanCache is the clean-verdict cache consulted by the realtime scanner.
// Files whose path and content hash are recorded clean are not rescanned.
type ScanCache interface {
	IsClean(filePath, fileHash string) bool
	MarkClean(filePath, fileHash string)
	Forget(filePath, fileHash string)
}

// RealtimeScanner watches a filestore and feeds created and modified files to
// a Client for scanning. Events flow watcher → approver → dedup queue →
// batching worker → daemon → scan listener. Deleted files are withdrawn from
// the queue before they are scanned.
type RealtimeScanner struct {
	client        *Client
	mainDir       string
	secondaryDirs []string
	approver      func(watcher.FileEvent) bool
	listener      func(RealtimeScanEvent)
	idleSleep     time.Duration
	queueSize     int
	scanCache     ScanCache
	newWatcher    func(mainDir string) (watcher.FileWatcher, error)

	running atomic.Bool

	mu    sync.Mutex
	fw    watcher.FileWatcher
	queue *queue.Queue
	done  chan struct{}
}

// RealtimeOption configures a RealtimeScanner.
type RealtimeOption func(*RealtimeScanner)

// WithSecondaryDirs registers additional directory trees next to the main
// directory.
func WithSecondaryDirs(dirs ...string) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.secondaryDirs = append(s.secondaryDirs, dirs...)
	}
}

// WithScanApprover sets a predicate consulted for every CREATED and MODIFIED
// event. Only approved paths are queued. A panicking approver counts as a
// rejection.
func WithScanApprover(approver func(watcher.FileEvent) bool) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.approver = approver
	}
}

// WithScanListener sets the callback receiving one event per scanned file.
// Listener panics are swallowed.
func WithScanListener(listener func(RealtimeScanEvent)) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.listener = listener
	}
}

// WithIdleSleep sets how long the worker sleeps when the queue runs empty.
// Values below one second are raised to one second.
func WithIdleSleep(d time.Duration) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.idleSleep = d
	}
}

// WithQueueSize sets the pending-path queue capacity. Defaults to 5000.
func WithQueueSize(n int) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.queueSize = n
	}
}

// WithScanCache attaches a clean-verdict cache. Unchanged files already
// scanned clean are skipped; infected files are evicted so they get rescanned
// on the next event.
func WithScanCache(c ScanCache) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.scanCache = c
	}
}

// WithWatcherFactory replaces the default native watcher backend, e.g. with
// the fswatch subprocess backend:
//
//	aviron.WithWatcherFactory(func(dir string) (watcher.FileWatcher, error) {
//		return watcher.NewFsWatchWatcher(watcher.HomebrewFsWatchProgram, "", dir)
//	})
func WithWatcherFactory(factory func(mainDir string) (watcher.FileWatcher, error)) RealtimeOption {
	return func(s *RealtimeScanner) {
		s.newWatcher = factory
	}
}

// NewRealtimeScanner creates a realtime scanner for the given client and main
// directory. The scanner is inert until Start.
func NewRealtimeScanner(client *Client, mainDir string, opts ...RealtimeOption) (*RealtimeScanner, error) {
	if client == nil {
		return nil, NewConfigError("a client must not be nil")
	}
	info, err := os.Stat(mainDir)
	if err != nil || !info.IsDir() {
		return nil, NewConfigError(fmt.Sprintf("the main directory %q does not exist", mainDir))
	}

	s := &RealtimeScanner{
		client:    client,
		mainDir:   mainDir,
		idleSleep: 5 * time.Second,
		queueSize: queue.DefaultSize,
		newWatcher: func(dir string) (watcher.FileWatcher, error) {
			return watcher.NewNotifyWatcher(dir, true)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.idleSleep < time.Second {
		s.idleSleep = time.Second
	}
	return s, nil
}

// Running reports whether the scanner has been started and not yet stopped.
func (s *RealtimeScanner) Running() bool {
	return s.running.Load()
}

// MainDir returns the watched main directory.
func (s *RealtimeScanner) MainDir() string { return s.mainDir }

// PendingCount returns the number of paths waiting to be scanned.
func (s *RealtimeScanner) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.Size()
}

// OverflowCount returns how many pending paths were dropped because the queue
// ran full.
func (s *RealtimeScanner) OverflowCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue == nil {
		return 0
	}
	return s.queue.OverflowCount()
}

// Start builds the queue and the watcher and launches the scan worker. A
// second Start on a running scanner is a no-op.
func (s *RealtimeScanner) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return nil
	}

	q := queue.New(s.queueSize)
	fw, err := s.newWatcher(s.mainDir)
	if err != nil {
		s.running.Store(false)
		return NewWatcherError(fmt.Sprintf("failed to create watcher for %s", s.mainDir), err)
	}

	fw.SetFileListener(func(ev watcher.FileEvent) { s.handleFileEvent(q, ev) })
	fw.SetErrorListener(func(ev watcher.ErrorEvent) {
		log.Errorf("realtime: watcher error for %s: %v", ev.Path, ev.Err)
	})
	fw.SetTerminationListener(func(ev watcher.TerminationEvent) {
		if ev.Err != nil {
			log.Errorf("realtime: watcher for %s terminated: %v", ev.Path, ev.Err)
		} else {
			log.Debugf("realtime: watcher for %s terminated", ev.Path)
		}
	})

	if len(s.secondaryDirs) > 0 {
		if err := fw.Register(s.secondaryDirs...); err != nil {
			fw.Close()
			s.running.Store(false)
			return NewWatcherError("failed to register secondary directories", err)
		}
	}

	if err := fw.Start(); err != nil {
		s.running.Store(false)
		return NewWatcherError(fmt.Sprintf("failed to start watcher for %s", s.mainDir), err)
	}

	done := make(chan struct{})

	s.mu.Lock()
	s.queue = q
	s.fw = fw
	s.done = done
	s.mu.Unlock()

	tag := fmt.Sprintf("aviron-rtscan-%d", workerCounter.Add(1))
	go s.worker(tag, q, done)
	log.Debugf("realtime: started %s for %s", tag, s.mainDir)
	return nil
}

// Stop halts the worker and closes the watcher. A second Stop is a no-op.
func (s *RealtimeScanner) Stop() error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	s.mu.Lock()
	fw := s.fw
	done := s.done
	s.fw = nil
	s.done = nil
	s.mu.Unlock()

	if done != nil {
		close(done)
	}
	if fw != nil && fw.Running() {
		if err := fw.Close(); err != nil {
			return NewWatcherError(fmt.Sprintf("failed to close watcher for %s", s.mainDir), err)
		}
	}
	return nil
}

func (s *RealtimeScanner) handleFileEvent(q *queue.Queue, ev watcher.FileEvent) {
	switch ev.Type {
	case watcher.Created, watcher.Modified:
		if s.approve(ev) {
			q.Push(ev.Path)
		}
	case watcher.Deleted:
		q.Remove(ev.Path)
	case watcher.Overflow:
		// detail is already lost; the next activity on affected files
		// produces fresh events
	}
}

// approve runs the configured approver. A missing approver approves
// everything; a panicking approver rejects.
func (s *RealtimeScanner) approve(ev watcher.FileEvent) (approved bool) {
	if s.approver == nil {
		return true
	}
	defer func() {
		if recover() != nil {
			approved = false
		}
	}()
	return s.approver(ev)
}

func (s *RealtimeScanner) worker(tag string, q *queue.Queue, done chan struct{}) {
	for s.running.Load() {
		if err := s.drainBatch(q); err != nil {
			log.Errorf("realtime: %s: %v", tag, err)
			s.sleep(done, workerBackoff)
			continue
		}
		if q.IsEmpty() {
			s.idle(done)
		}
	}
	log.Debugf("realtime: %s exited", tag)
}

// drainBatch scans up to scanBatchSize queued paths. Paths that no longer
// name a regular file are skipped silently.
func (s *RealtimeScanner) drainBatch(q *queue.Queue) error {
	for i := 0; i < scanBatchSize && s.running.Load(); i++ {
		path := q.Pop()
		if path == "" {
			return nil
		}

		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		s.scanFile(path)
	}
	return nil
}

// scanFile scans one file, consults the clean cache, applies quarantine via
// the client and notifies the listener. Scan failures are reported through
// the listener event, not returned.
func (s *RealtimeScanner) scanFile(path string) {
	var hash string
	if s.scanCache != nil {
		h, err := util.ComputeFileHash(path)
		if err == nil {
			hash = h
			if s.scanCache.IsClean(path, hash) {
				log.Debugf("realtime: %s unchanged since last clean scan, skipping", path)
				return
			}
		}
	}

	result, err := s.client.Scan(path)
	if s.scanCache != nil && hash != "" && err == nil {
		if result.OK() {
			s.scanCache.MarkClean(path, hash)
		} else {
			s.scanCache.Forget(path, hash)
		}
	}

	s.emit(RealtimeScanEvent{Path: path, Result: result, Err: err})
}

// emit delivers a scan event to the listener, swallowing listener panics.
func (s *RealtimeScanner) emit(ev RealtimeScanEvent) {
	if s.listener == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.listener(ev)
}

// idle sleeps up to the configured idle time in one-second slices so Stop is
// observed promptly.
func (s *RealtimeScanner) idle(done chan struct{}) {
	remaining := s.idleSleep
	for remaining > 0 && s.running.Load() {
		slice := time.Second
		if remaining < slice {
			slice = remaining
		}
		if !s.sleep(done, slice) {
			return
		}
		remaining -= slice
	}
}

// sleep waits for d or until done closes. Reports false when interrupted.
func (s *RealtimeScanner) sleep(done chan struct{}, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-done:
		return false
	}
}

var _ ScanCache = (*cache.ScanCache)(nil)
var _ ScanCache = (*cache.NoopCache)(nil)

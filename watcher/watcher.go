// Package watcher observes directory trees for file changes. Two backends
// present the same event stream: a native fsnotify tree watch and an external
// fswatch subprocess. Deduplication of events is deliberately left to the
// consumer; every raw event is forwarded.
package watcher

import "time"

// EventType classifies a file watch event.
type EventType int

const (
	Created EventType = iota
	Modified
	Deleted

	// Overflow signals kernel-side event loss due to backpressure. Overflow
	// events carry no path.
	Overflow
)

func (t EventType) String() string {
	switch t {
	case Created:
		return "CREATED"
	case Modified:
		return "MODIFIED"
	case Deleted:
		return "DELETED"
	case Overflow:
		return "OVERFLOW"
	default:
		return "UNKNOWN"
	}
}

// Kind tells whether an event's target is a file or a directory.
type Kind int

const (
	KindUnknown Kind = iota
	KindFile
	KindDir
)

// FileEvent is a single observed filesystem change.
type FileEvent struct {
	Path string
	Type EventType
	Kind Kind
	Time time.Time
}

func (e FileEvent) IsFile() bool { return e.Kind == KindFile }
func (e FileEvent) IsDir() bool  { return e.Kind == KindDir }

// RegisterEvent is emitted when a directory is added to the watch, either
// explicitly or through auto-registration of a created subdirectory.
type RegisterEvent struct {
	Path string
}

// ErrorEvent carries a backend failure that did not stop the watcher.
type ErrorEvent struct {
	Path string
	Err  error
}

// TerminationEvent is delivered exactly once per watcher lifecycle, after
// close or on abnormal backend exit.
type TerminationEvent struct {
	Path string
	Err  error
}

// FileWatcher is the capability set shared by both backends. Listeners must
// be set before Start. Start is idempotent; Close must be called exactly
// once and triggers the Termination event.
type FileWatcher interface {
	SetFileListener(func(FileEvent))
	SetRegisterListener(func(RegisterEvent))
	SetErrorListener(func(ErrorEvent))
	SetTerminationListener(func(TerminationEvent))

	// Register adds secondary directories to the watch. Backends that cannot
	// grow their watch set after start reject late registrations.
	Register(dirs ...string) error

	Start() error
	Close() error

	Running() bool
	MainDir() string
	RegisteredPaths() []string
}

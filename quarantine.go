package aviron

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/avironsec/aviron/internal/log"
	"github.com/avironsec/aviron/internal/util"
)

// QuarantineFileAction selects what happens to an infected file after a scan.
type QuarantineFileAction int

const (
	// QuarantineNone records nothing.
	QuarantineNone QuarantineFileAction = iota

	// QuarantineCopy copies the infected file into the quarantine directory.
	QuarantineCopy

	// QuarantineMove copies the infected file into the quarantine directory
	// and deletes the original.
	QuarantineMove

	// QuarantineRemove deletes the infected file without preserving it.
	QuarantineRemove
)

func (a QuarantineFileAction) String() string {
	switch a {
	case QuarantineCopy:
		return "COPY"
	case QuarantineMove:
		return "MOVE"
	case QuarantineRemove:
		return "REMOVE"
	default:
		return "NONE"
	}
}

// QuarantineFile describes one quarantined file.
type QuarantineFile struct {
	// InfectedFile is the original path of the infected file.
	InfectedFile string
	// Viruses lists the virus names the daemon reported.
	Viruses []string
	// Action is the action that was applied.
	Action QuarantineFileAction
	// QuarantineFileName is the name of the file inside the quarantine
	// directory, derived from the salted content hash and the original
	// basename. Empty for REMOVE actions.
	QuarantineFileName string
	// QuarantinedAt is the time the action was applied.
	QuarantinedAt time.Time
}

// VirusListFormatted returns the virus names as a comma separated string.
func (f QuarantineFile) VirusListFormatted() string {
	return strings.Join(f.Viruses, ", ")
}

// QuarantineEvent is delivered to the configured listener on every
// quarantine file action, successful or not.
type QuarantineEvent struct {
	File QuarantineFile
	Err  error
}

// quarantineHashSalt seeds the content hash so quarantine file names do not
// double as verbatim malware signatures.
const quarantineHashSalt = "aviron"

const quarantineMetaExt = ".info"

// quarantineMeta is the TOML sidecar persisted next to each quarantine file.
type quarantineMeta struct {
	InfectedFile  string    `toml:"infected_file"`
	Viruses       []string  `toml:"viruses"`
	Action        string    `toml:"action"`
	QuarantinedAt time.Time `toml:"quarantined_at"`
}

// quarantineStore applies quarantine file actions. Mutating operations are
// serialized.
type quarantineStore struct {
	action   QuarantineFileAction
	dir      string
	listener func(QuarantineEvent)

	mu sync.Mutex
}

func newQuarantineStore(
	action QuarantineFileAction,
	dir string,
	listener func(QuarantineEvent),
) (*quarantineStore, error) {
	if action != QuarantineNone && dir == "" {
		return nil, NewConfigError("a quarantine directory is required if the quarantine file action is not NONE")
	}
	if dir != "" {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			return nil, NewConfigError(fmt.Sprintf("the quarantine directory %q does not exist", dir))
		}
		probe, err := os.CreateTemp(dir, ".aviron-probe-*")
		if err != nil {
			return nil, NewConfigError(fmt.Sprintf("the quarantine directory %q has no write permission", dir))
		}
		probe.Close()
		os.Remove(probe.Name())
	}

	return &quarantineStore{action: action, dir: dir, listener: listener}, nil
}

func (q *quarantineStore) active() bool {
	return q.action != QuarantineNone
}

// handleActions applies the configured action to every infected file of the
// result. Paths in the result are server paths; toLocal rewrites them for
// this host.
func (q *quarantineStore) handleActions(result *ScanResult, toLocal func(string) string) error {
	if !q.active() || !result.HasVirus() {
		return nil
	}

	for _, f := range result.Files() {
		if len(f.Viruses) == 0 {
			continue
		}
		if err := q.quarantineFile(toLocal(f.Path), f.Viruses); err != nil {
			return err
		}
	}
	return nil
}

func (q *quarantineStore) quarantineFile(path string, viruses []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	file := QuarantineFile{
		InfectedFile:  path,
		Viruses:       append([]string(nil), viruses...),
		Action:        q.action,
		QuarantinedAt: time.Now(),
	}

	err := q.applyAction(&file)
	q.emit(QuarantineEvent{File: file, Err: err})
	if err != nil {
		return NewQuarantineError(fmt.Sprintf("quarantine action %s failed for %s", q.action, path), err)
	}
	return nil
}

func (q *quarantineStore) applyAction(file *QuarantineFile) error {
	switch q.action {
	case QuarantineRemove:
		return os.Remove(file.InfectedFile)

	case QuarantineCopy, QuarantineMove:
		hash, err := util.HashFile(quarantineHashSalt, file.InfectedFile)
		if err != nil {
			return err
		}
		file.QuarantineFileName = hash + "_" + filepath.Base(file.InfectedFile)

		dst := filepath.Join(q.dir, file.QuarantineFileName)
		if exists, err := q.contentExists(hash); err != nil {
			return err
		} else if exists {
			log.Debugf("quarantine: content %s already present, skipping copy", hash)
		} else {
			if err := copyFile(file.InfectedFile, dst); err != nil {
				return err
			}
			if err := q.writeMeta(*file); err != nil {
				return err
			}
		}

		if q.action == QuarantineMove {
			return os.Remove(file.InfectedFile)
		}
		return nil

	default:
		return nil
	}
}

// contentExists reports whether a quarantine file with the given content hash
// is already present.
func (q *quarantineStore) contentExists(hash string) (bool, error) {
	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), hash+"_") && !strings.HasSuffix(e.Name(), quarantineMetaExt) {
			return true, nil
		}
	}
	return false, nil
}

func (q *quarantineStore) writeMeta(file QuarantineFile) error {
	meta := quarantineMeta{
		InfectedFile:  file.InfectedFile,
		Viruses:       file.Viruses,
		Action:        file.Action.String(),
		QuarantinedAt: file.QuarantinedAt,
	}

	f, err := os.Create(filepath.Join(q.dir, file.QuarantineFileName+quarantineMetaExt))
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(meta)
}

func (q *quarantineStore) list() ([]QuarantineFile, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return nil, NewQuarantineError(fmt.Sprintf("failed to list quarantine directory %q", q.dir), err)
	}

	var files []QuarantineFile
	for _, e := range entries {
		if !strings.HasSuffix(e.Name(), quarantineMetaExt) {
			continue
		}

		var meta quarantineMeta
		if _, err := toml.DecodeFile(filepath.Join(q.dir, e.Name()), &meta); err != nil {
			log.Errorf("quarantine: skipping unreadable metadata %s: %v", e.Name(), err)
			continue
		}

		files = append(files, QuarantineFile{
			InfectedFile:       meta.InfectedFile,
			Viruses:            meta.Viruses,
			Action:             parseQuarantineAction(meta.Action),
			QuarantineFileName: strings.TrimSuffix(e.Name(), quarantineMetaExt),
			QuarantinedAt:      meta.QuarantinedAt,
		})
	}
	return files, nil
}

func (q *quarantineStore) remove(file QuarantineFile) error {
	if file.QuarantineFileName == "" {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	for _, name := range []string{file.QuarantineFileName, file.QuarantineFileName + quarantineMetaExt} {
		if err := os.Remove(filepath.Join(q.dir, name)); err != nil && !os.IsNotExist(err) {
			return NewQuarantineError(fmt.Sprintf("failed to remove quarantine file %s", name), err)
		}
	}
	return nil
}

func (q *quarantineStore) removeAll() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.dir == "" {
		return nil
	}

	entries, err := os.ReadDir(q.dir)
	if err != nil {
		return NewQuarantineError(fmt.Sprintf("failed to list quarantine directory %q", q.dir), err)
	}
	for _, e := range entries {
		if err := os.Remove(filepath.Join(q.dir, e.Name())); err != nil {
			return NewQuarantineError(fmt.Sprintf("failed to remove quarantine file %s", e.Name()), err)
		}
	}
	return nil
}

func (q *quarantineStore) emit(event QuarantineEvent) {
	if q.listener == nil {
		return
	}
	defer func() {
		// listener panics must not break the scan path
		_ = recover()
	}()
	q.listener(event)
}

func parseQuarantineAction(s string) QuarantineFileAction {
	switch s {
	case "COPY":
		return QuarantineCopy
	case "MOVE":
		return QuarantineMove
	case "REMOVE":
		return QuarantineRemove
	default:
		return QuarantineNone
	}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// Package demofs creates disposable filestore trees with numbered
// subdirectories. It exists to generate realistic file activity for the
// realtime scanning pipeline, both in tests and in the CLI demo mode.
package demofs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Filestore is a directory tree with numbered subdirectories ("000", "001",
// …) that files are spread across round-robin.
type Filestore struct {
	root string
	dirs []string
	seq  int
}

// New creates a filestore rooted at baseDir with subDirCount numbered
// subdirectories. The base directory is created if missing.
func New(baseDir string, subDirCount int) (*Filestore, error) {
	if subDirCount < 1 {
		subDirCount = 1
	}
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	f := &Filestore{root: baseDir}
	for i := 0; i < subDirCount; i++ {
		if _, err := f.AddSubDir(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// NewTemp creates a filestore in a fresh directory under the system temp dir.
// The caller is responsible for RemoveAll.
func NewTemp(subDirCount int) (*Filestore, error) {
	dir, err := os.MkdirTemp("", "aviron-filestore-*")
	if err != nil {
		return nil, err
	}
	return New(dir, subDirCount)
}

// Root returns the filestore's base directory.
func (f *Filestore) Root() string {
	return f.root
}

// SubDirs returns the numbered subdirectories in creation order.
func (f *Filestore) SubDirs() []string {
	return append([]string(nil), f.dirs...)
}

// AddSubDir creates the next numbered subdirectory and returns its path.
func (f *Filestore) AddSubDir() (string, error) {
	dir := filepath.Join(f.root, fmt.Sprintf("%03d", len(f.dirs)))
	if err := os.Mkdir(dir, 0755); err != nil {
		return "", err
	}
	f.dirs = append(f.dirs, dir)
	return dir, nil
}

// CreateFile writes content to a new file in the next subdirectory
// round-robin and returns its path.
func (f *Filestore) CreateFile(content string) (string, error) {
	dir := f.dirs[f.seq%len(f.dirs)]
	path := filepath.Join(dir, fmt.Sprintf("%06d.data", f.seq))
	f.seq++

	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", err
	}
	return path, nil
}

// Append appends content to an existing file.
func (f *Filestore) Append(path, content string) error {
	fh, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer fh.Close()

	_, err = fh.WriteString(content)
	return err
}

// Touch updates a file's modification time, creating it empty if missing.
func (f *Filestore) Touch(path string) error {
	fh, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	if err := fh.Close(); err != nil {
		return err
	}
	now := time.Now()
	return os.Chtimes(path, now, now)
}

// Delete removes a file.
func (f *Filestore) Delete(path string) error {
	return os.Remove(path)
}

// RemoveAll deletes the whole filestore tree.
func (f *Filestore) RemoveAll() error {
	return os.RemoveAll(f.root)
}

package aviron

import (
	"strings"

	"github.com/avironsec/aviron/internal/util"
)

// FileSeparator selects which path separator flavor the remote clamd daemon
// expects. The daemon scans paths on its own filesystem, so the client
// rewrites local paths before putting them on the wire.
type FileSeparator int

const (
	// SeparatorPlatform uses the separator of the platform this client runs
	// on. This is the default.
	SeparatorPlatform FileSeparator = iota

	// SeparatorLocal leaves paths untouched.
	SeparatorLocal

	// SeparatorUnix rewrites paths to forward slashes.
	SeparatorUnix

	// SeparatorWindows rewrites paths to backslashes.
	SeparatorWindows
)

func (s FileSeparator) String() string {
	switch s {
	case SeparatorLocal:
		return "LOCAL"
	case SeparatorUnix:
		return "UNIX"
	case SeparatorWindows:
		return "WINDOWS"
	default:
		return "PLATFORM"
	}
}

func (s FileSeparator) char() byte {
	switch s {
	case SeparatorUnix:
		return '/'
	case SeparatorWindows:
		return '\\'
	default:
		if util.IsWindows() {
			return '\\'
		}
		return '/'
	}
}

// ToServerPath rewrites the slashes of a local path to the separator flavor
// the daemon expects. The original path is not mutated.
func (s FileSeparator) ToServerPath(path string) string {
	if s == SeparatorLocal {
		return path
	}
	return rewrite(path, s.char())
}

// ToLocalPath rewrites a server path back to the local platform separator.
func (s FileSeparator) ToLocalPath(path string) string {
	if s == SeparatorLocal {
		return path
	}
	return rewrite(path, SeparatorPlatform.char())
}

func rewrite(path string, sep byte) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' {
			return rune(sep)
		}
		return r
	}, path)
}

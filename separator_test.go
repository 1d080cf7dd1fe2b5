package aviron

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileSeparatorString(t *testing.T) {
	assert.Equal(t, "PLATFORM", SeparatorPlatform.String())
	assert.Equal(t, "LOCAL", SeparatorLocal.String())
	assert.Equal(t, "UNIX", SeparatorUnix.String())
	assert.Equal(t, "WINDOWS", SeparatorWindows.String())
}

func TestToServerPath(t *testing.T) {
	tests := []struct {
		sep  FileSeparator
		path string
		want string
	}{
		{SeparatorUnix, `C:\data\in\file.txt`, "C:/data/in/file.txt"},
		{SeparatorUnix, "/data/in/file.txt", "/data/in/file.txt"},
		{SeparatorWindows, "/data/in/file.txt", `\data\in\file.txt`},
		{SeparatorWindows, `C:\data\file.txt`, `C:\data\file.txt`},
		{SeparatorLocal, `mixed/and\left alone`, `mixed/and\left alone`},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.want, tc.sep.ToServerPath(tc.path), "%s %s", tc.sep, tc.path)
	}
}

func TestToLocalPath(t *testing.T) {
	local := SeparatorPlatform.char()

	got := SeparatorUnix.ToLocalPath("/srv/scans/file.txt")
	for _, r := range got {
		if r == '/' || r == '\\' {
			assert.Equal(t, rune(local), r)
		}
	}

	assert.Equal(t, `kept\as/is`, SeparatorLocal.ToLocalPath(`kept\as/is`))
}

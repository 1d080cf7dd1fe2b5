package aviron

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseScanReplySingleOK(t *testing.T) {
	result, err := parseScanReply([]byte("/data/report.docx: OK\x00"))
	require.NoError(t, err)
	assert.True(t, result.OK())
	assert.False(t, result.HasVirus())
	assert.False(t, result.HasError())
	require.Len(t, result.Files(), 1)
	assert.Equal(t, "/data/report.docx", result.Files()[0].Path)
}

func TestParseScanReplyFound(t *testing.T) {
	result, err := parseScanReply([]byte("/data/evil.exe: Win.Trojan.Agent FOUND\x00"))
	require.NoError(t, err)
	assert.True(t, result.HasVirus())
	assert.False(t, result.OK())
	assert.Equal(t,
		map[string][]string{"/data/evil.exe": {"Win.Trojan.Agent"}},
		result.VirusesFound())
}

func TestParseScanReplyError(t *testing.T) {
	result, err := parseScanReply([]byte("/data/locked.bin: Access denied. ERROR\x00"))
	require.NoError(t, err)
	assert.True(t, result.HasError())
	assert.False(t, result.HasVirus())
	assert.False(t, result.OK())
	assert.Equal(t, "Access denied.", result.Files()[0].Err)
}

func TestParseScanReplyMultiLine(t *testing.T) {
	reply := "/data/a.txt: OK\n/data/b.exe: Eicar-Test-Signature FOUND\n/data/c.txt: OK\x00"
	result, err := parseScanReply([]byte(reply))
	require.NoError(t, err)
	assert.Len(t, result.Files(), 3)
	assert.True(t, result.HasVirus())
	assert.Equal(t,
		map[string][]string{"/data/b.exe": {"Eicar-Test-Signature"}},
		result.VirusesFound())
}

func TestParseScanReplyFoldsRepeatedFindings(t *testing.T) {
	reply := "/data/x: Virus.A FOUND\x00/data/x: Virus.B FOUND\x00"
	result, err := parseScanReply([]byte(reply))
	require.NoError(t, err)
	require.Len(t, result.Files(), 1)
	assert.Equal(t, []string{"Virus.A", "Virus.B"}, result.Files()[0].Viruses)
}

func TestParseScanReplyPathWithColon(t *testing.T) {
	result, err := parseScanReply([]byte(`C:\data\evil.exe: Win.Trojan FOUND` + "\x00"))
	require.NoError(t, err)
	assert.Equal(t, `C:\data\evil.exe`, result.Files()[0].Path)
	assert.Equal(t, []string{"Win.Trojan"}, result.Files()[0].Viruses)
}

func TestParseScanReplyMalformed(t *testing.T) {
	for _, reply := range []string{"", "\x00", "no verdict here\x00", "/data/x: SOMETHING\x00"} {
		_, err := parseScanReply([]byte(reply))
		require.Error(t, err, "reply %q", reply)
		assert.True(t, IsProtocolError(err))
	}
}

func TestScanResultString(t *testing.T) {
	result, err := parseScanReply([]byte("/a: OK\n/b: V FOUND\n/c: oops ERROR\x00"))
	require.NoError(t, err)
	s := result.String()
	assert.Contains(t, s, "/a: OK")
	assert.Contains(t, s, "/b: V FOUND")
	assert.Contains(t, s, "/c: oops ERROR")

	empty := &ScanResult{}
	assert.Equal(t, "empty scan result", empty.String())
}

func TestVirusesFoundCopies(t *testing.T) {
	result, err := parseScanReply([]byte("/x: V FOUND\x00"))
	require.NoError(t, err)

	found := result.VirusesFound()
	found["/x"][0] = "mutated"
	assert.Equal(t, []string{"V"}, result.Files()[0].Viruses)
}

package aviron

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDaemon is a minimal in-process clamd stand-in. It answers the command
// set over one connection per command, mirroring the daemon's NUL framing.
type fakeDaemon struct {
	ln net.Listener

	mu       sync.Mutex
	infected map[string][]string
	commands string
	requests []string
}

const allCommands = "PING VERSION STATS RELOAD SHUTDOWN VERSIONCOMMANDS SCAN CONTSCAN MULTISCAN INSTREAM"

func newFakeDaemon(t *testing.T) *fakeDaemon {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	d := &fakeDaemon{
		ln:       ln,
		infected: map[string][]string{},
		commands: allCommands,
	}
	go d.serve()
	t.Cleanup(func() { ln.Close() })
	return d
}

func (d *fakeDaemon) port() int {
	return d.ln.Addr().(*net.TCPAddr).Port
}

func (d *fakeDaemon) newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{WithHostname("127.0.0.1"), WithPort(d.port())}, opts...)
	client, err := New(opts...)
	require.NoError(t, err)
	return client
}

// markInfected makes future scans of path report the given viruses.
func (d *fakeDaemon) markInfected(path string, viruses ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.infected[path] = viruses
}

// advertise overrides the VERSIONCOMMANDS command list.
func (d *fakeDaemon) advertise(commands string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.commands = commands
}

func (d *fakeDaemon) seenRequests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}

func (d *fakeDaemon) serve() {
	for {
		conn, err := d.ln.Accept()
		if err != nil {
			return
		}
		go d.handle(conn)
	}
}

func (d *fakeDaemon) handle(conn net.Conn) {
	defer conn.Close()

	r := bufio.NewReader(conn)
	frame, err := r.ReadBytes(0)
	if err != nil {
		return
	}
	cmd := strings.TrimPrefix(strings.TrimRight(string(frame), "\x00"), "z")

	d.mu.Lock()
	d.requests = append(d.requests, cmd)
	d.mu.Unlock()

	switch {
	case cmd == "PING":
		fmt.Fprint(conn, "PONG\x00")
	case cmd == "VERSION":
		fmt.Fprint(conn, "ClamAV 1.3.0/27000\x00")
	case cmd == "STATS":
		fmt.Fprint(conn, "POOLS: 1\n\nSTATE: VALID PRIMARY\nTHREADS: live 1  idle 0\nEND\x00")
	case cmd == "RELOAD":
		fmt.Fprint(conn, "RELOADING\x00")
	case cmd == "SHUTDOWN":
	case cmd == "VERSIONCOMMANDS":
		d.mu.Lock()
		commands := d.commands
		d.mu.Unlock()
		fmt.Fprintf(conn, "ClamAV 1.3.0/27000| COMMANDS: %s\x00", commands)
	case cmd == "INSTREAM":
		d.handleInstream(conn, r)
	default:
		name, path, ok := strings.Cut(cmd, " ")
		if !ok {
			fmt.Fprintf(conn, "%s: COMMAND UNAVAILABLE ERROR\x00", cmd)
			return
		}
		switch name {
		case "SCAN", "CONTSCAN", "MULTISCAN":
			d.replyScan(conn, path)
		default:
			fmt.Fprintf(conn, "%s: COMMAND UNAVAILABLE ERROR\x00", name)
		}
	}
}

func (d *fakeDaemon) replyScan(conn net.Conn, path string) {
	d.mu.Lock()
	viruses := d.infected[path]
	d.mu.Unlock()

	if len(viruses) == 0 {
		fmt.Fprintf(conn, "%s: OK\x00", path)
		return
	}
	var sb strings.Builder
	for i, v := range viruses {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s FOUND", path, v)
	}
	fmt.Fprint(conn, sb.String()+"\x00")
}

// handleInstream consumes length-prefixed chunks until the zero terminator
// and reports an infection when the payload contains the "EVIL" marker.
func (d *fakeDaemon) handleInstream(conn net.Conn, r io.Reader) {
	var data bytes.Buffer
	for {
		var size uint32
		if err := binary.Read(r, binary.BigEndian, &size); err != nil {
			return
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(&data, r, int64(size)); err != nil {
			return
		}
	}

	if bytes.Contains(data.Bytes(), []byte("EVIL")) {
		fmt.Fprint(conn, "stream: Test.Virus.EVIL FOUND\x00")
		return
	}
	fmt.Fprint(conn, "stream: OK\x00")
}

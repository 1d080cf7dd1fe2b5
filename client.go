package aviron

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/avironsec/aviron/internal/proto"
)

// Command names of the clamd command set driven by this client.
const (
	cmdPing            = "PING"
	cmdVersion         = "VERSION"
	cmdStats           = "STATS"
	cmdReload          = "RELOAD"
	cmdShutdown        = "SHUTDOWN"
	cmdVersionCommands = "VERSIONCOMMANDS"
	cmdScan            = "SCAN"
	cmdContScan        = "CONTSCAN"
	cmdMultiScan       = "MULTISCAN"
	cmdInStream        = "INSTREAM"
)

// DefaultChunkSize is the INSTREAM chunk size used by ScanStream.
const DefaultChunkSize = proto.DefaultChunkSize

// Client drives a clamd daemon over TCP. Every command opens a fresh
// connection, sends, reads the full reply and closes. A Client is safe for
// concurrent use from multiple goroutines.
//
//	client, err := aviron.New(
//		aviron.WithHostname("localhost"),
//		aviron.WithFileSeparator(aviron.SeparatorUnix),
//	)
//	if err != nil {
//		return err
//	}
//
//	result, err := client.Scan("/data/summary.docx")
//	if err != nil {
//		return err
//	}
//	if result.HasVirus() {
//		fmt.Println(result.VirusesFound())
//	}
type Client struct {
	hostname           string
	port               int
	separator          FileSeparator
	connectTimeout     time.Duration
	readTimeout        time.Duration
	quarantineAction   QuarantineFileAction
	quarantineDir      string
	quarantineListener func(QuarantineEvent)

	server     *proto.Server
	quarantine *quarantineStore

	// memoized command set advertised by the daemon; loaded lazily, kept
	// only on success so a transient failure does not poison the client
	cmdsMu sync.Mutex
	cmds   map[string]bool
}

// New creates a Client. Invalid parameters are reported eagerly as config
// errors.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		hostname:       "localhost",
		port:           proto.DefaultPort,
		separator:      SeparatorPlatform,
		connectTimeout: proto.DefaultConnectTimeout,
		readTimeout:    proto.DefaultReadTimeout,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.hostname == "" {
		return nil, NewConfigError("the server hostname must not be empty")
	}
	if c.port <= 0 {
		return nil, NewConfigError("the server port must be positive")
	}
	if c.connectTimeout < 0 {
		return nil, NewConfigError("the connection timeout must not be negative")
	}
	if c.readTimeout < 0 {
		return nil, NewConfigError("the read timeout must not be negative")
	}

	q, err := newQuarantineStore(c.quarantineAction, c.quarantineDir, c.quarantineListener)
	if err != nil {
		return nil, err
	}
	c.quarantine = q

	c.server = proto.NewServer(c.hostname, c.port, c.connectTimeout, c.readTimeout)
	return c, nil
}

// Ping sends a PING command. Returns true iff the daemon answers with PONG.
func (c *Client) Ping() (bool, error) {
	reply, err := c.roundtrip(cmdPing)
	if err != nil {
		return false, err
	}
	return strings.TrimSpace(string(reply)) == "PONG", nil
}

// Version returns the daemon's version string.
func (c *Client) Version() (string, error) {
	reply, err := c.roundtrip(cmdVersion)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(reply)), nil
}

// Stats returns the daemon's scan queue and memory statistics as formatted
// multi-line text, verbatim.
func (c *Client) Stats() (string, error) {
	reply, err := c.roundtrip(cmdStats)
	if err != nil {
		return "", err
	}
	return string(reply), nil
}

// Reload makes the daemon reload its virus databases.
func (c *Client) Reload() error {
	_, err := c.roundtrip(cmdReload)
	return err
}

// ShutdownServer shuts the daemon down with a clean exit.
func (c *Client) ShutdownServer() error {
	_, err := c.roundtrip(cmdShutdown)
	return err
}

// AvailableCommands returns the command set advertised by the daemon. The
// set is loaded once and memoized; commands outside of it are rejected
// before a socket is opened.
func (c *Client) AvailableCommands() ([]string, error) {
	cmds, err := c.commandSet()
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, len(cmds))
	for cmd := range cmds {
		list = append(list, cmd)
	}
	return list, nil
}

// Scan scans a single file or directory (recursively) on the daemon host.
// Scanning stops at the first file with a virus. Configured quarantine
// actions are applied to the result.
func (c *Client) Scan(path string) (*ScanResult, error) {
	return c.scanPath(cmdScan, path)
}

// ContScan scans a file or directory recursively and keeps scanning upon
// detecting a virus, one reply line per file.
func (c *Client) ContScan(path string) (*ScanResult, error) {
	return c.scanPath(cmdContScan, path)
}

// ParallelScan scans a file or directory using the daemon's internal thread
// pool. Reply ordering across files is not guaranteed.
func (c *Client) ParallelScan(path string) (*ScanResult, error) {
	return c.scanPath(cmdMultiScan, path)
}

// ScanStream scans in-memory data with the INSTREAM command using the
// default chunk size of 2048 bytes. The caller owns the reader's lifecycle.
// There is no quarantine action for streamed data.
func (c *Client) ScanStream(r io.Reader) (*ScanResult, error) {
	return c.ScanStreamChunked(r, DefaultChunkSize)
}

// ScanStreamChunked scans in-memory data with a caller-chosen chunk size.
func (c *Client) ScanStreamChunked(r io.Reader, chunkSize int) (*ScanResult, error) {
	if r == nil {
		return nil, NewConfigError("an input reader must not be nil")
	}
	if chunkSize <= 0 {
		return nil, NewConfigError("a chunk size must be greater than 0")
	}

	if err := c.checkCommand(cmdInStream); err != nil {
		return nil, err
	}

	reply, err := c.server.RoundtripStream(cmdInStream, r, chunkSize)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to send command %s", cmdInStream), err)
	}
	return parseScanReply(reply)
}

// IsReachable reports whether the daemon accepts TCP connections within the
// default connect timeout. It never returns an error.
func (c *Client) IsReachable() bool {
	return c.IsReachableTimeout(proto.DefaultConnectTimeout)
}

// IsReachableTimeout reports whether the daemon accepts TCP connections
// within the given timeout.
func (c *Client) IsReachableTimeout(timeout time.Duration) bool {
	return c.server.IsReachable(timeout)
}

// LastCommandRunDetails returns the raw command string and reply of the last
// command sent to the daemon. Provided for debugging.
func (c *Client) LastCommandRunDetails() CommandRunDetails {
	cmd, reply, at := c.server.LastCommand()
	return CommandRunDetails{Command: cmd, Reply: reply, At: at}
}

// IsQuarantineActive reports whether a quarantine file action is configured.
func (c *Client) IsQuarantineActive() bool {
	return c.quarantine.active()
}

// ListQuarantineFiles returns the files currently held in quarantine.
func (c *Client) ListQuarantineFiles() ([]QuarantineFile, error) {
	if !c.quarantine.active() {
		return nil, nil
	}
	return c.quarantine.list()
}

// RemoveQuarantineFile deletes a quarantined file and its metadata. Silently
// ignores files that are already gone.
func (c *Client) RemoveQuarantineFile(file QuarantineFile) error {
	return c.quarantine.remove(file)
}

// RemoveAllQuarantineFiles empties the quarantine directory.
func (c *Client) RemoveAllQuarantineFiles() error {
	return c.quarantine.removeAll()
}

func (c *Client) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "serverHostname: %s\n", c.hostname)
	fmt.Fprintf(&sb, "serverPort: %d\n", c.port)
	fmt.Fprintf(&sb, "serverFileSeparator: %s\n", c.separator)
	fmt.Fprintf(&sb, "connectTimeout: %s\n", c.connectTimeout)
	fmt.Fprintf(&sb, "readTimeout: %s\n", c.readTimeout)
	fmt.Fprintf(&sb, "quarantineFileAction: %s\n", c.quarantineAction)
	fmt.Fprintf(&sb, "quarantineDir: %s\n", orDash(c.quarantineDir))
	listener := "-"
	if c.quarantineListener != nil {
		listener = "supplied"
	}
	fmt.Fprintf(&sb, "quarantineListener: %s", listener)
	return sb.String()
}

func (c *Client) scanPath(cmd, path string) (*ScanResult, error) {
	if path == "" {
		return nil, NewConfigError("a path must not be empty")
	}

	serverPath := c.separator.ToServerPath(path)
	reply, err := c.roundtrip(cmd + " " + serverPath)
	if err != nil {
		return nil, err
	}

	result, err := parseScanReply(reply)
	if err != nil {
		return nil, err
	}

	if err := c.quarantine.handleActions(result, c.separator.ToLocalPath); err != nil {
		return result, err
	}
	return result, nil
}

// roundtrip gates the command on the advertised command set and executes one
// connection-per-command exchange.
func (c *Client) roundtrip(cmd string) ([]byte, error) {
	name, _, _ := strings.Cut(cmd, " ")
	if err := c.checkCommand(name); err != nil {
		return nil, err
	}

	reply, err := c.server.Roundtrip(cmd)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to send command %s", name), err)
	}
	return reply, nil
}

func (c *Client) checkCommand(name string) error {
	cmds, err := c.commandSet()
	if err != nil {
		return err
	}
	if !cmds[name] {
		return NewUnknownCommandError(name)
	}
	return nil
}

func (c *Client) commandSet() (map[string]bool, error) {
	c.cmdsMu.Lock()
	defer c.cmdsMu.Unlock()

	if c.cmds != nil {
		return c.cmds, nil
	}

	list, err := c.versionCommands()
	if err != nil {
		return nil, err
	}

	cmds := make(map[string]bool, len(list))
	for _, cmd := range list {
		cmds[cmd] = true
	}
	c.cmds = cmds
	return cmds, nil
}

// versionCommands issues VERSIONCOMMANDS and parses the advertised command
// tokens out of the "VERSION| COMMANDS: C1 C2 …" reply.
func (c *Client) versionCommands() ([]string, error) {
	reply, err := c.server.Roundtrip(cmdVersionCommands)
	if err != nil {
		return nil, NewNetworkError(fmt.Sprintf("failed to send command %s", cmdVersionCommands), err)
	}

	_, commands, ok := strings.Cut(string(reply), "COMMANDS:")
	if !ok {
		return nil, NewProtocolError(
			fmt.Sprintf("missing COMMANDS: marker in VERSIONCOMMANDS reply %q", string(reply)), nil)
	}
	return strings.Fields(commands), nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// Package proto implements the clamd wire protocol: one TCP connection per
// command, z-prefixed NUL-terminated framing, and the INSTREAM chunked upload.
package proto

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/avironsec/aviron/internal/log"
)

const (
	DefaultPort           = 3310
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 20 * time.Second

	// DefaultChunkSize is the INSTREAM chunk size used when the caller does
	// not supply one.
	DefaultChunkSize = 2048
)

// Server holds the clamd endpoint parameters. Each command run dials a fresh
// TCP connection, writes the framed command, reads the full reply and closes.
// There is no connection pooling: this mirrors clamd's per-connection command
// model.
type Server struct {
	host           string
	port           int
	connectTimeout time.Duration
	readTimeout    time.Duration

	mu        sync.Mutex
	lastCmd   string
	lastReply []byte
	lastAt    time.Time
}

func NewServer(host string, port int, connectTimeout, readTimeout time.Duration) *Server {
	return &Server{
		host:           host,
		port:           port,
		connectTimeout: connectTimeout,
		readTimeout:    readTimeout,
	}
}

func (s *Server) Host() string                  { return s.host }
func (s *Server) Port() int                     { return s.port }
func (s *Server) ConnectTimeout() time.Duration { return s.connectTimeout }
func (s *Server) ReadTimeout() time.Duration    { return s.readTimeout }

func (s *Server) addr() string {
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Roundtrip sends a single command and returns the raw reply with the
// trailing NUL stripped. The command goes on the wire as "z<CMD>\x00".
func (s *Server) Roundtrip(cmd string) ([]byte, error) {
	return s.run(cmd, func(conn net.Conn) error {
		_, err := conn.Write(frame(cmd))
		return err
	})
}

// RoundtripStream sends the INSTREAM command followed by length-prefixed
// chunks read from r and a zero-length terminator. The caller owns r's
// lifecycle.
func (s *Server) RoundtripStream(cmd string, r io.Reader, chunkSize int) ([]byte, error) {
	return s.run(cmd, func(conn net.Conn) error {
		if _, err := conn.Write(frame(cmd)); err != nil {
			return err
		}

		buf := make([]byte, chunkSize)
		var lenPrefix [4]byte
		for {
			n, err := io.ReadFull(r, buf)
			if n > 0 {
				binary.BigEndian.PutUint32(lenPrefix[:], uint32(n))
				if _, werr := conn.Write(lenPrefix[:]); werr != nil {
					return werr
				}
				if _, werr := conn.Write(buf[:n]); werr != nil {
					return werr
				}
			}
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			if err != nil {
				return err
			}
		}

		binary.BigEndian.PutUint32(lenPrefix[:], 0)
		_, err := conn.Write(lenPrefix[:])
		return err
	})
}

// IsReachable reports whether a TCP connection to the server can be opened
// within the given timeout. It never returns an error.
func (s *Server) IsReachable(timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", s.addr(), timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// LastCommand returns the most recent command string and raw reply bytes.
func (s *Server) LastCommand() (string, []byte, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCmd, append([]byte(nil), s.lastReply...), s.lastAt
}

func (s *Server) run(cmd string, send func(net.Conn) error) ([]byte, error) {
	log.Debugf("sending command %q to %s", cmd, s.addr())

	dialer := net.Dialer{Timeout: s.connectTimeout}
	conn, err := dialer.Dial("tcp", s.addr())
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", s.addr(), err)
	}
	defer conn.Close()

	if s.readTimeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(s.readTimeout)); err != nil {
			return nil, fmt.Errorf("set deadline: %w", err)
		}
	}

	if err := send(conn); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}

	reply, err := readReply(conn)
	s.record(cmd, reply)
	if err != nil {
		return nil, fmt.Errorf("read %s reply: %w", cmd, err)
	}
	return reply, nil
}

func (s *Server) record(cmd string, reply []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCmd = cmd
	s.lastReply = append([]byte(nil), reply...)
	s.lastAt = time.Now()
}

// frame wraps a command in clamd's z-style framing: z<CMD>\x00.
func frame(cmd string) []byte {
	b := make([]byte, 0, len(cmd)+2)
	b = append(b, 'z')
	b = append(b, cmd...)
	b = append(b, 0)
	return b
}

// readReply reads until the daemon closes the write side. A read timeout with
// a NUL-terminated buffer counts as a complete reply: clamd keeps lingering
// connections open in IDSESSION mode.
func readReply(conn net.Conn) ([]byte, error) {
	var out bytes.Buffer
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		out.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() && terminated(out.Bytes()) {
				break
			}
			return nil, err
		}
	}
	return bytes.TrimRight(out.Bytes(), "\x00"), nil
}

func terminated(reply []byte) bool {
	return len(reply) > 0 && reply[len(reply)-1] == 0
}

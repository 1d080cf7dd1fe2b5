package aviron

import (
	"time"
)

// Option configures a Client.
type Option func(*Client)

// WithHostname sets the clamd server hostname. Defaults to "localhost".
func WithHostname(hostname string) Option {
	return func(c *Client) {
		c.hostname = hostname
	}
}

// WithPort sets the clamd server port. Defaults to 3310.
func WithPort(port int) Option {
	return func(c *Client) {
		c.port = port
	}
}

// WithFileSeparator sets the path separator flavor the daemon expects.
// Defaults to SeparatorPlatform.
func WithFileSeparator(sep FileSeparator) Option {
	return func(c *Client) {
		c.separator = sep
	}
}

// WithConnectTimeout sets the per-command connect timeout. Zero means
// indefinite. Defaults to 3s.
func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.connectTimeout = d
	}
}

// WithReadTimeout sets the per-command read timeout. Zero means indefinite.
// Defaults to 20s.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.readTimeout = d
	}
}

// WithQuarantine sets the action applied to infected files and the directory
// receiving them. The directory must exist and be writable when the action is
// not QuarantineNone.
func WithQuarantine(action QuarantineFileAction, dir string) Option {
	return func(c *Client) {
		c.quarantineAction = action
		c.quarantineDir = dir
	}
}

// WithQuarantineListener sets a listener receiving all quarantine file action
// events.
func WithQuarantineListener(listener func(QuarantineEvent)) Option {
	return func(c *Client) {
		c.quarantineListener = listener
	}
}

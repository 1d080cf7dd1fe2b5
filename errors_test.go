package aviron

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := NewConfigError("bad hostname")
	assert.Equal(t, "bad hostname", plain.Error())

	wrapped := NewNetworkError("failed to send command PING", io.ErrUnexpectedEOF)
	assert.Equal(t, "failed to send command PING: unexpected EOF", wrapped.Error())
}

func TestErrorUnwrap(t *testing.T) {
	cause := io.ErrUnexpectedEOF
	err := NewNetworkError("send failed", cause)
	assert.ErrorIs(t, err, cause)
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{NewConfigError("x"), IsConfigError},
		{NewNetworkError("x", nil), IsNetworkError},
		{NewProtocolError("x", nil), IsProtocolError},
		{NewUnknownCommandError("FOO"), IsUnknownCommandError},
		{NewWatcherError("x", nil), IsWatcherError},
		{NewQuarantineError("x", nil), IsQuarantineError},
	}

	for _, tc := range tests {
		assert.True(t, tc.check(tc.err), tc.err)
		assert.False(t, tc.check(errors.New("unrelated")))
	}
}

func TestErrorClassificationThroughWrapping(t *testing.T) {
	inner := NewProtocolError("malformed reply", nil)
	outer := fmt.Errorf("scan failed: %w", inner)
	assert.True(t, IsProtocolError(outer))
	assert.False(t, IsNetworkError(outer))
}

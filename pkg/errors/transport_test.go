package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestFromTransport(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{"client timeout", &url.Error{Op: "Get", URL: "http://x", Err: timeoutErr{}}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"os deadline", os.ErrDeadlineExceeded, true},
		{"connection reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, true},
		{"truncated body", io.ErrUnexpectedEOF, true},
		{"server closed", &url.Error{Op: "Get", URL: "http://x", Err: io.EOF}, true},
		{"connection refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, false},
		{"dns failure", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, false},
		{"dns timeout", &net.DNSError{Err: "timeout", Name: "slow.example", IsTimeout: true}, true},
		{"other", stderrors.New("tls: bad certificate"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := FromTransport("request failed", tt.err)
			assert.Equal(t, ErrorTypeNetwork, e.Type)
			assert.Equal(t, tt.transient, e.Transient)
			assert.ErrorIs(t, e, tt.err)
		})
	}
}

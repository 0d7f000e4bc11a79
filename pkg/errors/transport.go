package errors

import (
	"context"
	stderrors "errors"
	"io"
	"net"
	"os"
	"syscall"
)

// FromTransport classifies an error returned by an HTTP round trip or a
// body read. Timeouts, resets and truncated bodies are transient; refused
// connections and DNS failures are not.
func FromTransport(message string, err error) *Error {
	return NewNetwork(message, err, isTransientTransport(err))
}

func isTransientTransport(err error) bool {
	var dnsErr *net.DNSError
	if stderrors.As(err, &dnsErr) {
		return dnsErr.IsTimeout
	}
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return false
	}

	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded),
		stderrors.Is(err, os.ErrDeadlineExceeded),
		stderrors.Is(err, syscall.ECONNRESET),
		stderrors.Is(err, syscall.ECONNABORTED),
		stderrors.Is(err, syscall.EPIPE),
		stderrors.Is(err, io.ErrUnexpectedEOF),
		stderrors.Is(err, io.EOF):
		return true
	}
	return false
}

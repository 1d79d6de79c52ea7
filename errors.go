package arkv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

// Error kinds surfaced by the engine. Per-entry errors (ErrLocalIO,
// ErrRemoteIO, ErrPathConflict) never abort a run; pre-flight errors
// (ErrAuthFailed, ErrHostUnreachable, ErrHandshake) abort before any entry
// is attempted; ErrSessionLost aborts the remainder of a run after the one
// automatic reconnect has failed.
var (
	// ErrAuthFailed indicates the server rejected the supplied credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrHostUnreachable indicates the TCP connection could not be
	// established within the connect timeout.
	ErrHostUnreachable = errors.New("host unreachable")

	// ErrHandshake indicates the SSH handshake or SFTP subsystem setup
	// failed after the TCP connection succeeded.
	ErrHandshake = errors.New("ssh handshake failed")

	// ErrSessionLost indicates the transport failed mid-plan.
	ErrSessionLost = errors.New("session lost")

	// ErrPathConflict indicates a remote path exists with the wrong type
	// (a file where a directory is needed).
	ErrPathConflict = errors.New("remote path conflict")

	// ErrLocalIO indicates a local read failure for a single entry.
	ErrLocalIO = errors.New("local i/o error")

	// ErrRemoteIO indicates a remote write failure for a single entry.
	ErrRemoteIO = errors.New("remote i/o error")

	// ErrInvalidPath indicates a computed remote path would escape the
	// destination base path.
	ErrInvalidPath = errors.New("invalid remote path")
)

// transportErrorMessages are substrings that identify a failure of the
// underlying connection rather than of a single file operation. SSH
// libraries surface most of these as opaque string errors, so substring
// matching is the only portable classification.
var transportErrorMessages = []string{
	"connection refused",
	"connection reset",
	"connection lost",
	"broken pipe",
	"no route to host",
	"network is unreachable",
	"i/o timeout",
	"use of closed network connection",
	"ssh: disconnect",
	"ssh: rejected",
	"unexpected eof",
}

// isTransportError reports whether err indicates the session itself is
// unusable, as opposed to a per-entry failure.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, net.ErrClosed) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, s := range transportErrorMessages {
		if strings.Contains(msg, s) {
			return true
		}
	}

	return false
}

// classifyDialError maps a connection-establishment failure to one of the
// pre-flight error kinds: ErrAuthFailed, ErrHostUnreachable or ErrHandshake.
func classifyDialError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrAuthFailed) || errors.Is(err, ErrHostUnreachable) || errors.Is(err, ErrHandshake) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unable to authenticate") ||
		strings.Contains(msg, "permission denied") ||
		strings.Contains(msg, "no supported methods remain") {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", ErrHostUnreachable, err)
	}

	if strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "no route to host") ||
		strings.Contains(msg, "network is unreachable") ||
		strings.Contains(msg, "no such host") {
		return fmt.Errorf("%w: %v", ErrHostUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrHandshake, err)
}

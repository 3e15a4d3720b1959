package mpv

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// successError is the error field value the engine uses for successful replies.
const successError = "success"

// ConnectError indicates the engine socket never became reachable.
type ConnectError struct {
	SocketPath string
	Err        error
}

func (e *ConnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine socket %s not reachable: %v", e.SocketPath, e.Err)
	}
	return fmt.Sprintf("engine socket %s not reachable", e.SocketPath)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// CommandTimeoutError indicates no response arrived within the per-command budget.
type CommandTimeoutError struct {
	Command string
	Timeout time.Duration
}

func (e *CommandTimeoutError) Error() string {
	return fmt.Sprintf("engine command %q timed out after %s", e.Command, e.Timeout)
}

// CommandRejectedError indicates the engine answered with a semantic error.
type CommandRejectedError struct {
	Command string
	Reason  string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("engine rejected %q: %s", e.Command, e.Reason)
}

// ProcessExitError indicates the engine subprocess died or the socket closed
// outside of an orderly shutdown.
type ProcessExitError struct {
	Err error
}

func (e *ProcessExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine process exited: %v", e.Err)
	}
	return "engine process exited"
}

func (e *ProcessExitError) Unwrap() error { return e.Err }

// OptionUnsupportedError marks a property or option the running engine build
// does not expose. It is a soft failure used by fallback chains.
type OptionUnsupportedError struct {
	Property string
	Reason   string
}

func (e *OptionUnsupportedError) Error() string {
	return fmt.Sprintf("engine option %q unsupported: %s", e.Property, e.Reason)
}

// IsOptionUnsupported reports whether err is a soft option failure, either an
// explicit OptionUnsupportedError or a rejection whose reason contains one of
// the allowlisted substrings (case-insensitive).
func IsOptionUnsupported(err error, allowlist []string) bool {
	var opt *OptionUnsupportedError
	if errors.As(err, &opt) {
		return true
	}

	var rej *CommandRejectedError
	if !errors.As(err, &rej) {
		return false
	}
	reason := strings.ToLower(rej.Reason)
	for _, s := range allowlist {
		if s != "" && strings.Contains(reason, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

package sfap

import (
	"fmt"

	"github.com/sweet-bbq-sauce/sfap/protocol"
)

// DenialError reports a non-OK protocol-level result for a command turn:
// CommandResult, AuthResult, or AccessResult (spec §7 kind 3/4). It is
// the client-visible shape of a "denial", as distinct from a transport
// failure (see ClosedError). A result byte outside its enum's range is
// also reported as a DenialError, with Message "invalid result byte".
type DenialError struct {
	Command string
	Kind    string // "command", "auth", or "access"
	Code    uint8
	Message string
}

func (e *DenialError) Error() string {
	return fmt.Sprintf("sfap: %s denied (%s): %s", e.Command, e.Kind, e.Message)
}

func newCommandDenial(cmd string, r protocol.CommandResult) error {
	return &DenialError{Command: cmd, Kind: "command", Code: uint8(r), Message: r.String()}
}

func newAuthDenial(r protocol.AuthResult) error {
	return &DenialError{Command: "auth", Kind: "auth", Code: uint8(r), Message: r.String()}
}

func newAccessDenial(cmd string, r protocol.AccessResult) error {
	return &DenialError{Command: cmd, Kind: "access", Code: uint8(r), Message: r.String()}
}

// ClosedError reports that the connection closed (cleanly or otherwise)
// while a command turn was in flight (spec §7's "distinct
// connection-closed error").
type ClosedError struct {
	Command string
	Err     error
}

func (e *ClosedError) Error() string {
	return fmt.Sprintf("sfap: connection closed during %s: %v", e.Command, e.Err)
}

func (e *ClosedError) Unwrap() error { return e.Err }

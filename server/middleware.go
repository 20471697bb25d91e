package server

import (
	"os"

	"github.com/sweet-bbq-sauce/sfap/protocol"
)

// Credentials is the payload an AUTH turn reads from the client.
type Credentials struct {
	User     string
	Password string
}

// AuthOutcome is what an AuthMiddleware returns for one AUTH attempt. Root
// and Home are host paths; Home is optional (empty means "default to
// root", per spec §4.4.1).
type AuthOutcome struct {
	Result   protocol.AuthResult
	Username string
	Root     string
	Home     string
}

// AuthMiddleware authenticates one set of credentials. It must be safe to
// call from many session goroutines concurrently and must not block
// indefinitely on server-global state (spec §4.5).
type AuthMiddleware func(creds Credentials) AuthOutcome

// CommandMiddleware authorizes a non-always-allowed command for the given
// (possibly anonymous) user. It must be side-effect free with respect to
// session state — it never reads or writes descriptors, sandbox, or
// stream (spec §4.5).
type CommandMiddleware func(id protocol.Command, user *string) protocol.CommandResult

// DefaultAuthMiddleware accepts any credentials, rooting the session at
// the server process's current working directory (spec §4.5's default
// policy). It exists mainly so a Server constructed with no options is
// still usable out of the box; production embedders are expected to
// supply their own (see server/fsauth for a bcrypt-backed example).
func DefaultAuthMiddleware(creds Credentials) AuthOutcome {
	wd, err := os.Getwd()
	if err != nil {
		return AuthOutcome{Result: protocol.AuthMiddlewareError}
	}
	username := creds.User
	if username == "" {
		username = "anonymous"
	}
	return AuthOutcome{
		Result:   protocol.AuthOK,
		Username: username,
		Root:     wd,
		Home:     wd,
	}
}

// DefaultCommandMiddleware allows a command iff the session has an
// authenticated user (spec §4.5's default policy).
func DefaultCommandMiddleware(id protocol.Command, user *string) protocol.CommandResult {
	if user == nil {
		return protocol.ResultAccessDenied
	}
	return protocol.ResultOK
}

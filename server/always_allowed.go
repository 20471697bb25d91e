package server

import (
	"os"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/vfs"
)

// runAlwaysAllowed executes the inline handler for one of the seven
// always-allowed commands (spec §4.4.1). The CommandResult::OK reply has
// already been sent by dispatch before this runs.
func (s *Session) runAlwaysAllowed(id protocol.Command) error {
	switch id {
	case protocol.CmdNone:
		return nil
	case protocol.CmdBye:
		s.finished.Store(true)
		return nil
	case protocol.CmdServerInfo:
		return s.handleServerInfo()
	case protocol.CmdCommands:
		return s.handleCommands()
	case protocol.CmdDescriptors:
		return s.handleDescriptors()
	case protocol.CmdAuth:
		return s.handleAuth()
	case protocol.CmdClear:
		return s.handleClear()
	default:
		return nil
	}
}

func (s *Session) handleServerInfo() error {
	info := s.server.infoTable.snapshot()
	if err := s.stream.SendU16(uint16(len(info))); err != nil {
		return err
	}
	for k, v := range info {
		if err := s.stream.SendString(k); err != nil {
			return err
		}
		if err := s.stream.SendString(v); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleCommands() error {
	list := s.server.registry.CommandList()
	if err := s.stream.SendU16(uint16(len(list))); err != nil {
		return err
	}
	for id, name := range list {
		if err := s.stream.SendU16(uint16(id)); err != nil {
			return err
		}
		if err := s.stream.SendString(name); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) handleDescriptors() error {
	ids := s.descriptors.ids()
	if err := s.stream.SendU32(uint32(len(ids))); err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.stream.SendU32(id); err != nil {
			return err
		}
	}
	return nil
}

// handleAuth implements spec §4.4.1's AUTH handler: the per-user limit
// check runs before the auth middleware is invoked; the middleware's
// outcome is validated (non-empty username, absolute+existing-directory
// root, home normalizing inside that root); and the whole operation is
// transactional — either every one of user/sandbox/home/cwd/descriptors
// is installed, or nothing changes beyond what the middleware itself did.
func (s *Session) handleAuth() (err error) {
	user, err := s.stream.RecvString()
	if err != nil {
		return err
	}
	password, err := s.stream.RecvString()
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if s.server.metrics != nil {
			s.server.metrics.RecordAuthentication(success, user)
		}
	}()

	if s.server.userLimitReached(user) {
		return s.sendAuthResult(protocol.AuthUserLimitReached, "", "", "")
	}

	outcome := s.invokeAuthMiddleware(Credentials{User: user, Password: password})
	if outcome.Result != protocol.AuthOK {
		return s.sendAuthResult(outcome.Result, "", "", "")
	}

	if outcome.Username == "" {
		return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
	}
	info, err := os.Stat(outcome.Root)
	if err != nil || !info.IsDir() {
		return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
	}

	sandbox, err := vfs.New(outcome.Root)
	if err != nil {
		return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
	}
	if outcome.Home != "" {
		home, verr := sandbox.ToVirtual(outcome.Home)
		if verr != nil {
			return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
		}
		if err := sandbox.SetHome(home); err != nil {
			return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
		}
		if err := sandbox.Cd("~"); err != nil {
			return s.sendAuthResult(protocol.AuthMiddlewareError, "", "", "")
		}
	}

	s.identMu.Lock()
	hadUser := s.user != nil
	username := outcome.Username
	s.user = &username
	s.sandbox = sandbox
	s.identMu.Unlock()
	if hadUser {
		s.descriptors.clear()
	}

	success = true
	return s.sendAuthResult(protocol.AuthOK, username, sandbox.Home(), sandbox.Pwd())
}

func (s *Session) invokeAuthMiddleware(creds Credentials) (outcome AuthOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = AuthOutcome{Result: protocol.AuthMiddlewareError}
		}
	}()
	mw := s.server.authMiddleware
	if mw == nil {
		return AuthOutcome{Result: protocol.AuthMiddlewareError}
	}
	return mw(creds)
}

func (s *Session) sendAuthResult(result protocol.AuthResult, username, home, cwd string) error {
	if err := s.stream.SendU8(uint8(result)); err != nil {
		return err
	}
	if result != protocol.AuthOK {
		return nil
	}
	if err := s.stream.SendString(username); err != nil {
		return err
	}
	if err := s.stream.SendPath(home); err != nil {
		return err
	}
	return s.stream.SendPath(cwd)
}

func (s *Session) handleClear() error {
	s.descriptors.clear()
	s.identMu.Lock()
	s.user = nil
	s.sandbox = nil
	s.identMu.Unlock()
	return nil
}

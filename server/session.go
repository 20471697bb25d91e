package server

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/vfs"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

// SessionState is the observable state of a session's command loop
// (spec §3.4, §4.4).
type SessionState int32

const (
	StateWaiting SessionState = iota
	StateProcessing
)

func (s SessionState) String() string {
	if s == StateProcessing {
		return "PROCESSING"
	}
	return "WAITING"
}

// Session is a per-connection state machine: one byte stream, the
// sandbox once AUTH succeeds, a descriptor table, and a dedicated worker
// goroutine running the command loop (spec §3.4, §4.4).
type Session struct {
	id     uint32
	logID  string
	server *Server
	stream *wire.Stream
	logger *slog.Logger

	state    atomic.Int32
	finished atomic.Bool

	identMu sync.RWMutex
	user    *string
	sandbox *vfs.Sandbox

	descriptors *descriptorTable

	wg sync.WaitGroup
}

func newSession(id uint32, srv *Server, stream *wire.Stream) *Session {
	s := &Session{
		id:          id,
		logID:       uuid.NewString(),
		server:      srv,
		stream:      stream,
		logger:      srv.logger,
		descriptors: newDescriptorTable(),
	}
	s.state.Store(int32(StateWaiting))
	return s
}

// ID returns the session's monotonic accept-order id.
func (s *Session) ID() uint32 { return s.id }

// State returns the session's current observable state.
func (s *Session) State() SessionState { return SessionState(s.state.Load()) }

// Finished reports whether the session has been asked to stop (or has
// already stopped).
func (s *Session) Finished() bool { return s.finished.Load() }

// User returns the session's authenticated username, or nil if anonymous.
func (s *Session) User() *string {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.user
}

// Sandbox returns the session's virtual filesystem, or nil before AUTH
// succeeds (spec §3.4's invariant: sandbox existence implies user is Some).
func (s *Session) Sandbox() *vfs.Sandbox {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.sandbox
}

// Descriptors exposes the session's descriptor table to the vanilla
// command handlers (package-internal use only: server is the only
// importer of its own handler functions).
func (s *Session) Descriptors() *descriptorTable { return s.descriptors }

// serve runs the command loop until finished is set or a fatal error
// occurs. It is launched in its own goroutine by the server's acceptor.
func (s *Session) serve() {
	s.wg.Add(1)
	defer s.wg.Done()
	defer s.stream.Close()

	for !s.finished.Load() {
		s.state.Store(int32(StateWaiting))

		magic, err := s.stream.RecvU32()
		if err != nil {
			s.finished.Store(true)
			return
		}
		if magic != protocol.SyncWatchdog {
			s.logger.Debug("sfap: bad magic, desynchronized connection", "session", s.logID)
			s.finished.Store(true)
			return
		}

		idRaw, err := s.stream.RecvU16()
		if err != nil {
			s.finished.Store(true)
			return
		}
		id := protocol.Command(idRaw)

		s.state.Store(int32(StateProcessing))

		if err := s.dispatch(id); err != nil {
			s.logger.Debug("sfap: session turn failed", "session", s.logID, "command", id, "err", err)
			s.finished.Store(true)
			return
		}
	}
}

// dispatch implements steps 4-6 of spec §4.4's normative per-turn
// algorithm: registry lookup, always-allowed fast path, or
// middleware-gated dispatch.
func (s *Session) dispatch(id protocol.Command) error {
	if !s.server.registry.Exists(id) {
		return s.stream.SendU8(uint8(protocol.ResultUnknown))
	}

	if protocol.AlwaysAllowed[id] {
		if err := s.stream.SendU8(uint8(protocol.ResultOK)); err != nil {
			return err
		}
		return s.runAlwaysAllowed(id)
	}

	started := time.Now()
	result := s.invokeCommandMiddleware(id)
	if err := s.stream.SendU8(uint8(result)); err != nil {
		return err
	}
	if result != protocol.ResultOK {
		s.recordCommand(id, false, time.Since(started))
		return nil
	}

	handler, ok := s.server.registry.Get(id)
	if !ok {
		s.recordCommand(id, true, time.Since(started))
		return nil
	}
	err := handler(s, s.stream)
	s.recordCommand(id, err == nil, time.Since(started))
	return err
}

func (s *Session) recordCommand(id protocol.Command, success bool, d time.Duration) {
	if s.server.metrics != nil {
		s.server.metrics.RecordCommand(id.String(), success, d)
	}
}

func (s *Session) invokeCommandMiddleware(id protocol.Command) (result protocol.CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			result = protocol.ResultMiddlewareError
		}
	}()
	mw := s.server.commandMiddleware
	if mw == nil {
		return protocol.ResultMiddlewareError
	}
	return mw(id, s.User())
}

// close implements spec §4.4's cancellation discipline: clean=true only
// closes the stream if the worker is currently WAITING (to unblock a
// pending recv); clean=false always closes immediately. Either way it
// then joins the worker.
func (s *Session) close(clean bool) {
	s.finished.Store(true)
	if !clean || s.State() == StateWaiting {
		_ = s.stream.Close()
	}
	s.wg.Wait()
}

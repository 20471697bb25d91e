// Package server implements SFAP's session state machine and dispatch
// runtime: the command registry (component C), the per-connection
// Session (component D), and the Server/acceptor (component E), along
// with the vanilla command set (component F) and the middleware
// contracts external embedders supply (spec §4.3-§4.6).
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sweet-bbq-sauce/sfap/wire"
)

// Version is the value reported under the server info table's "version"
// key (spec §6.4's SERVER_INFO payload).
const Version = "0.1.0"

const reaperInterval = time.Second

// Server owns the listening socket, the session table, the command
// registry, the middlewares, and the info/user-limit tables (spec §3.6).
type Server struct {
	listener  net.Listener
	tlsConfig *tls.Config
	logger    *slog.Logger

	registry          *CommandRegistry
	authMiddleware    AuthMiddleware
	commandMiddleware CommandMiddleware

	infoTable  *infoTable
	userLimits *userLimitTable

	metrics MetricsCollector

	sessionsMu    sync.RWMutex
	sessions      map[uint32]*Session
	nextSessionID atomic.Uint32
	finishedCount atomic.Uint64
	totalAccepted atomic.Uint64

	shutdownOnce sync.Once
	reaperStop   chan struct{}
	reaperDone   chan struct{}
	acceptorDone chan struct{}
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithTLS installs a tls.Config the acceptor uses to wrap every accepted
// connection. config.MinVersion is forced to tls.VersionTLS13 if unset.
// The embedder is responsible for cert/key/CA loading — TLS context
// construction is an external collaborator (spec §1, §6.5).
func WithTLS(config *tls.Config) Option {
	return func(s *Server) {
		if config != nil && config.MinVersion == 0 {
			config.MinVersion = tls.VersionTLS13
		}
		s.tlsConfig = config
	}
}

// WithLogger installs a *slog.Logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithRegistry replaces the default vanilla command registry. Most
// embedders should instead build on top of DefaultRegistry.
func WithRegistry(reg *CommandRegistry) Option {
	return func(s *Server) { s.registry = reg }
}

// WithAuthMiddleware installs the AuthMiddleware. Defaults to
// DefaultAuthMiddleware (accept-any, rooted at the process cwd).
func WithAuthMiddleware(mw AuthMiddleware) Option {
	return func(s *Server) { s.authMiddleware = mw }
}

// WithCommandMiddleware installs the CommandMiddleware. Defaults to
// DefaultCommandMiddleware (allow iff authenticated).
func WithCommandMiddleware(mw CommandMiddleware) Option {
	return func(s *Server) { s.commandMiddleware = mw }
}

// WithMetrics installs a MetricsCollector; see PrometheusCollector for a
// concrete implementation.
func WithMetrics(m MetricsCollector) Option {
	return func(s *Server) { s.metrics = m }
}

// NewServer constructs a Server around an already-listening net.Listener.
// Use ListenAndServe for the common case of listening on an address.
func NewServer(listener net.Listener, opts ...Option) *Server {
	srv := &Server{
		listener:   listener,
		logger:     slog.Default(),
		registry:   DefaultRegistry(),
		infoTable:  newInfoTable(Version),
		userLimits: newUserLimitTable(),
		sessions:   make(map[uint32]*Session),
		reaperStop: make(chan struct{}),
		reaperDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(srv)
	}
	if srv.authMiddleware == nil {
		srv.authMiddleware = DefaultAuthMiddleware
	}
	if srv.commandMiddleware == nil {
		srv.commandMiddleware = DefaultCommandMiddleware
	}
	return srv
}

// ListenAndServe listens on addr (TCP), starts Serve in a background
// goroutine, and returns the Server at once; serving continues until
// Shutdown or Close. If a tls.Config was installed via WithTLS, the
// acceptor wraps every accepted connection with it (spec §6.5: TLS 1.3
// minimum).
func ListenAndServe(addr string, opts ...Option) (*Server, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := NewServer(l, opts...)
	go srv.Serve()
	return srv, nil
}

// Serve runs the acceptor loop until the listener is closed (spec §4.6).
// It also starts the reaper. Both run until Close/Shutdown.
func (srv *Server) Serve() {
	srv.acceptorDone = make(chan struct{})
	defer close(srv.acceptorDone)

	go srv.reapLoop()

	for {
		conn, err := srv.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			srv.logger.Error("sfap: accept failed", "err", err)
			continue
		}
		srv.accept(conn)
	}
}

func (srv *Server) accept(conn net.Conn) {
	if srv.tlsConfig != nil {
		conn = tls.Server(conn, srv.tlsConfig)
	}

	id := srv.nextSessionID.Add(1)
	srv.totalAccepted.Add(1)

	sess := newSession(id, srv, wire.New(conn))

	srv.sessionsMu.Lock()
	srv.sessions[id] = sess
	srv.sessionsMu.Unlock()

	if srv.metrics != nil {
		srv.metrics.RecordConnection(true, "accepted")
	}

	go sess.serve()
}

// reapLoop wakes every reaperInterval and removes finished sessions from
// the session table, joining their workers and incrementing
// finishedCount (spec §4.6).
func (srv *Server) reapLoop() {
	defer close(srv.reaperDone)
	ticker := time.NewTicker(reaperInterval)
	defer ticker.Stop()

	for {
		select {
		case <-srv.reaperStop:
			return
		case <-ticker.C:
			srv.reapOnce()
		}
	}
}

func (srv *Server) reapOnce() {
	srv.sessionsMu.Lock()
	var dead []*Session
	for id, sess := range srv.sessions {
		if sess.Finished() {
			dead = append(dead, sess)
			delete(srv.sessions, id)
		}
	}
	srv.sessionsMu.Unlock()

	for _, sess := range dead {
		sess.close(false)
		srv.finishedCount.Add(1)
	}
}

// SessionCount returns the number of sessions currently tracked (not yet
// reaped).
func (srv *Server) SessionCount() int {
	srv.sessionsMu.RLock()
	defer srv.sessionsMu.RUnlock()
	return len(srv.sessions)
}

// FinishedCount returns the number of sessions reaped so far.
func (srv *Server) FinishedCount() uint64 { return srv.finishedCount.Load() }

// TotalAccepted returns the number of sessions ever accepted. Spec §8
// invariant 6: FinishedCount()+SessionCount() == TotalAccepted() at all
// times.
func (srv *Server) TotalAccepted() uint64 { return srv.totalAccepted.Load() }

// Registry exposes the server's command registry (e.g. to add commands
// before serving begins).
func (srv *Server) Registry() *CommandRegistry { return srv.registry }

// SetInfo installs a key/value pair in the server info table reported by
// SERVER_INFO.
func (srv *Server) SetInfo(key, value string) { srv.infoTable.set(key, value) }

// Shutdown stops accepting, signals the reaper, joins both, then closes
// every remaining session with clean=false (spec §4.6's "close"
// operation). It ignores ctx beyond logging a timeout notice — session
// workers only block on their own stream I/O, which Shutdown itself
// unblocks by closing every stream.
func (srv *Server) Shutdown(ctx context.Context) error {
	var err error
	srv.shutdownOnce.Do(func() {
		err = srv.listener.Close()
		close(srv.reaperStop)

		done := make(chan struct{})
		go func() {
			if srv.acceptorDone != nil {
				<-srv.acceptorDone
			}
			<-srv.reaperDone
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			srv.logger.Warn("sfap: shutdown context expired before acceptor/reaper joined")
		}

		srv.sessionsMu.Lock()
		remaining := make([]*Session, 0, len(srv.sessions))
		for _, sess := range srv.sessions {
			remaining = append(remaining, sess)
		}
		srv.sessions = make(map[uint32]*Session)
		srv.sessionsMu.Unlock()

		for _, sess := range remaining {
			sess.close(false)
			srv.finishedCount.Add(1)
		}
	})
	return err
}

// Close is a non-graceful alias for Shutdown with an already-expired
// context, matching net.Listener's Close contract for embedders that
// don't need draining semantics.
func (srv *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	return srv.Shutdown(ctx)
}

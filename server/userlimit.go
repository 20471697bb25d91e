package server

import "sync"

// userLimitTable maps a username to its configured maximum concurrent
// session count, guarded by a read/write lock (spec §3.6).
type userLimitTable struct {
	mu     sync.RWMutex
	limits map[string]int
}

func newUserLimitTable() *userLimitTable {
	return &userLimitTable{limits: make(map[string]int)}
}

// Set installs or replaces the concurrent-session cap for user. A limit
// of 0 is treated as "no explicit cap" (removes any existing entry).
func (t *userLimitTable) Set(user string, limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if limit <= 0 {
		delete(t.limits, user)
		return
	}
	t.limits[user] = limit
}

func (t *userLimitTable) limitFor(user string) (int, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	limit, ok := t.limits[user]
	return limit, ok
}

// userLimitReached counts sessions already authenticated as user and
// reports whether admitting one more would meet or exceed the configured
// limit for that name (spec §4.5's "before calling the auth middleware"
// check).
func (srv *Server) userLimitReached(user string) bool {
	limit, ok := srv.userLimits.limitFor(user)
	if !ok {
		return false
	}

	count := 0
	srv.sessionsMu.RLock()
	for _, sess := range srv.sessions {
		if u := sess.User(); u != nil && *u == user {
			count++
		}
	}
	srv.sessionsMu.RUnlock()

	return count >= limit
}

// SetUserLimit installs the concurrent-session cap for user. It is safe
// to call at any time, including while the server is running — the
// ambient cmd/sfapd entry point wires this to an fsnotify watch on a
// user-limits config file (see SPEC_FULL.md §1).
func (srv *Server) SetUserLimit(user string, limit int) {
	srv.userLimits.Set(user, limit)
}

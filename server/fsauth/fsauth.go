// Package fsauth is a reference AuthMiddleware backed by a flat,
// bcrypt-hashed passwd file. It exists as an example implementation of
// the external auth collaborator spec §4.5 describes — SFAP itself
// prescribes no authentication mechanism (spec §1's Non-goals).
package fsauth

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/server"
)

// Entry is one line of a passwd file: a username, its bcrypt password
// hash, and the host directory that becomes that user's sandbox root.
type Entry struct {
	User string
	Hash string
	Root string
	Home string
}

// Store is an in-memory, reloadable table of Entry values keyed by
// username.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewStore reads path (format: "user:bcryptHash:root[:home]" per line,
// blank lines and "#"-prefixed lines ignored).
func NewStore(path string) (*Store, error) {
	s := &Store{entries: make(map[string]Entry)}
	if err := s.Reload(path); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads path, replacing the in-memory table atomically. It is
// the hook cmd/sfapd's fsnotify watch calls on file change.
func (s *Store) Reload(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	entries := make(map[string]Entry)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.SplitN(line, ":", 4)
		if len(fields) < 3 {
			return fmt.Errorf("fsauth: malformed passwd line %q", line)
		}
		e := Entry{User: fields[0], Hash: fields[1], Root: fields[2]}
		if len(fields) == 4 {
			e.Home = fields[3]
		}
		entries[e.User] = e
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = entries
	s.mu.Unlock()
	return nil
}

func (s *Store) lookup(user string) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[user]
	return e, ok
}

// Middleware returns a server.AuthMiddleware that checks credentials
// against s using bcrypt.CompareHashAndPassword.
func (s *Store) Middleware() server.AuthMiddleware {
	return func(creds server.Credentials) server.AuthOutcome {
		entry, ok := s.lookup(creds.User)
		if !ok {
			return server.AuthOutcome{Result: protocol.AuthUnknownUser}
		}
		if err := bcrypt.CompareHashAndPassword([]byte(entry.Hash), []byte(creds.Password)); err != nil {
			return server.AuthOutcome{Result: protocol.AuthWrongPassword}
		}
		return server.AuthOutcome{
			Result:   protocol.AuthOK,
			Username: entry.User,
			Root:     entry.Root,
			Home:     entry.Home,
		}
	}
}

// HashPassword is a convenience wrapper used by cmd/sfap's "mkauth"
// subcommand to generate passwd-file entries.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

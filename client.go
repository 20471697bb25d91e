// Package sfap implements the SFAP client: the symmetric counterpart to
// package server. Client opens one long-lived connection and performs
// turn-based command exchanges over it (spec §4.7).
package sfap

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

// Client is a connected SFAP session from the caller's side. The
// protocol is turn-based: callers must serialize command calls
// themselves (one call in flight at a time), exactly as a single
// session on the server side serializes dispatch.
type Client struct {
	conn   net.Conn
	stream *wire.Stream

	tlsConfig *tls.Config
	timeout   time.Duration
	logger    *slog.Logger
	dialer    *net.Dialer

	mu       sync.Mutex
	username *string
	home     string
	cwd      string
}

// Dial connects to addr and returns a ready Client. The connection
// itself carries no handshake beyond TCP (and TLS, if WithTLS is given)
// — SFAP framing starts fresh on every command turn (spec §6.1).
func Dial(addr string, opts ...Option) (*Client, error) {
	c := &Client{
		logger: slog.Default(),
		dialer: &net.Dialer{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	var conn net.Conn
	var err error
	if c.timeout > 0 {
		c.dialer.Timeout = c.timeout
	}
	conn, err = c.dialer.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	if c.timeout > 0 {
		conn = &deadlineConn{Conn: conn, timeout: c.timeout}
	}

	if c.tlsConfig != nil {
		tconn := tls.Client(conn, c.tlsConfig)
		if err := tconn.HandshakeContext(context.Background()); err != nil {
			conn.Close()
			return nil, err
		}
		conn = tconn
	}

	c.conn = conn
	c.stream = wire.New(conn)
	c.logger.Debug("sfap: connected", "addr", addr, "tls", c.tlsConfig != nil)
	return c, nil
}

// Close sends BYE and closes the underlying connection. It is safe to
// call even if the connection has already failed.
func (c *Client) Close() error {
	_ = c.sendTurn(protocol.CmdBye)
	return c.stream.Close()
}

// sendTurn writes the magic + command id and reads back the
// CommandResult, returning a DenialError if it is not OK. AUTH is
// handled separately by Auth since its result byte is an AuthResult,
// not a CommandResult (spec §7 kind 3 vs kind 4).
func (c *Client) sendTurn(id protocol.Command) error {
	if err := c.stream.SendU32(protocol.SyncWatchdog); err != nil {
		return &ClosedError{Command: id.String(), Err: err}
	}
	if err := c.stream.SendU16(uint16(id)); err != nil {
		return &ClosedError{Command: id.String(), Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return &ClosedError{Command: id.String(), Err: err}
	}
	result := protocol.CommandResult(resultRaw)
	if !result.Valid() {
		return &DenialError{Command: id.String(), Kind: "command", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.ResultOK {
		return newCommandDenial(id.String(), result)
	}
	return nil
}

// Username returns the cached authenticated username, or nil if the
// client has not (yet) successfully authenticated.
func (c *Client) Username() *string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.username
}

// Cwd and Home return the client's cached copies of the session's
// current and home directory, refreshed after Auth, Cd, and Clear.
func (c *Client) Cwd() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cwd
}

func (c *Client) Home() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.home
}

// Noop sends NONE, a no-op ping.
func (c *Client) Noop() error {
	return c.sendTurn(protocol.CmdNone)
}

// Auth authenticates with the given credentials. On success it caches
// the returned username, home, and cwd.
func (c *Client) Auth(user, password string) error {
	if err := c.sendTurn(protocol.CmdAuth); err != nil {
		return err
	}
	if err := c.stream.SendString(user); err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}
	if err := c.stream.SendString(password); err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}

	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}
	result := protocol.AuthResult(resultRaw)
	if !result.Valid() {
		return &DenialError{Command: "auth", Kind: "auth", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AuthOK {
		return newAuthDenial(result)
	}

	username, err := c.stream.RecvString()
	if err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}
	home, err := c.stream.RecvPath()
	if err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}
	cwd, err := c.stream.RecvPath()
	if err != nil {
		return &ClosedError{Command: "auth", Err: err}
	}

	c.mu.Lock()
	c.username = &username
	c.home = home
	c.cwd = cwd
	c.mu.Unlock()
	return nil
}

// Clear drops the server-side identity, sandbox, and open descriptors,
// and resets the client's local cache to match.
func (c *Client) Clear() error {
	if err := c.sendTurn(protocol.CmdClear); err != nil {
		return err
	}
	c.mu.Lock()
	c.username = nil
	c.home = ""
	c.cwd = ""
	c.mu.Unlock()
	return nil
}

// ServerInfo returns the server's info table (key/value pairs).
func (c *Client) ServerInfo() (map[string]string, error) {
	if err := c.sendTurn(protocol.CmdServerInfo); err != nil {
		return nil, err
	}
	count, err := c.stream.RecvU16()
	if err != nil {
		return nil, &ClosedError{Command: "server_info", Err: err}
	}
	out := make(map[string]string, count)
	for i := 0; i < int(count); i++ {
		k, err := c.stream.RecvString()
		if err != nil {
			return nil, &ClosedError{Command: "server_info", Err: err}
		}
		v, err := c.stream.RecvString()
		if err != nil {
			return nil, &ClosedError{Command: "server_info", Err: err}
		}
		out[k] = v
	}
	return out, nil
}

// CommandInfo is one entry of the registry enumeration Commands returns.
type CommandInfo struct {
	ID   uint16
	Name string
}

// Commands returns the server's registered command set.
func (c *Client) Commands() ([]CommandInfo, error) {
	if err := c.sendTurn(protocol.CmdCommands); err != nil {
		return nil, err
	}
	count, err := c.stream.RecvU16()
	if err != nil {
		return nil, &ClosedError{Command: "commands", Err: err}
	}
	out := make([]CommandInfo, 0, count)
	for i := 0; i < int(count); i++ {
		id, err := c.stream.RecvU16()
		if err != nil {
			return nil, &ClosedError{Command: "commands", Err: err}
		}
		name, err := c.stream.RecvString()
		if err != nil {
			return nil, &ClosedError{Command: "commands", Err: err}
		}
		out = append(out, CommandInfo{ID: id, Name: name})
	}
	return out, nil
}

// Descriptors returns the list of currently open descriptor ids.
func (c *Client) Descriptors() ([]uint32, error) {
	if err := c.sendTurn(protocol.CmdDescriptors); err != nil {
		return nil, err
	}
	count, err := c.stream.RecvU32()
	if err != nil {
		return nil, &ClosedError{Command: "descriptors", Err: err}
	}
	out := make([]uint32, 0, count)
	for i := 0; i < int(count); i++ {
		id, err := c.stream.RecvU32()
		if err != nil {
			return nil, &ClosedError{Command: "descriptors", Err: err}
		}
		out = append(out, id)
	}
	return out, nil
}

// Cd changes the remote working directory and returns the new,
// normalized cwd on success.
func (c *Client) Cd(path string) (string, error) {
	if err := c.sendTurn(protocol.CmdCD); err != nil {
		return "", err
	}
	if err := c.stream.SendPath(path); err != nil {
		return "", &ClosedError{Command: "cd", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return "", &ClosedError{Command: "cd", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return "", &DenialError{Command: "cd", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return "", newAccessDenial("cd", result)
	}
	newCwd, err := c.stream.RecvPath()
	if err != nil {
		return "", &ClosedError{Command: "cd", Err: err}
	}
	c.mu.Lock()
	c.cwd = newCwd
	c.mu.Unlock()
	return newCwd, nil
}

// Pwd returns the remote current working directory (a fresh read, not
// the cache).
func (c *Client) Pwd() (string, error) {
	if err := c.sendTurn(protocol.CmdPWD); err != nil {
		return "", err
	}
	path, err := c.stream.RecvPath()
	if err != nil {
		return "", &ClosedError{Command: "pwd", Err: err}
	}
	return path, nil
}

// HomeDir returns the remote home directory (a fresh read).
func (c *Client) HomeDir() (string, error) {
	if err := c.sendTurn(protocol.CmdHome); err != nil {
		return "", err
	}
	path, err := c.stream.RecvPath()
	if err != nil {
		return "", &ClosedError{Command: "home", Err: err}
	}
	return path, nil
}

// Entry is one directory entry returned by Ls.
type Entry struct {
	Type protocol.FileType
	Path string
	Size uint64
}

// Ls lists the directory at path.
func (c *Client) Ls(path string) ([]Entry, error) {
	if err := c.sendTurn(protocol.CmdLS); err != nil {
		return nil, err
	}
	if err := c.stream.SendPath(path); err != nil {
		return nil, &ClosedError{Command: "ls", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return nil, &ClosedError{Command: "ls", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return nil, &DenialError{Command: "ls", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return nil, newAccessDenial("ls", result)
	}

	count, err := c.stream.RecvU32()
	if err != nil {
		return nil, &ClosedError{Command: "ls", Err: err}
	}
	entries := make([]Entry, 0, count)
	for i := 0; i < int(count); i++ {
		typeRaw, err := c.stream.RecvU8()
		if err != nil {
			return nil, &ClosedError{Command: "ls", Err: err}
		}
		p, err := c.stream.RecvPath()
		if err != nil {
			return nil, &ClosedError{Command: "ls", Err: err}
		}
		size, err := c.stream.RecvU64()
		if err != nil {
			return nil, &ClosedError{Command: "ls", Err: err}
		}
		entries = append(entries, Entry{Type: protocol.FileType(typeRaw), Path: p, Size: size})
	}
	return entries, nil
}

// Open opens path in the given mode and returns a RemoteFile bound to
// the resulting server-side descriptor.
func (c *Client) Open(path string, mode protocol.OpenMode) (*RemoteFile, error) {
	if err := c.sendTurn(protocol.CmdOpen); err != nil {
		return nil, err
	}
	if err := c.stream.SendPath(path); err != nil {
		return nil, &ClosedError{Command: "open", Err: err}
	}
	if err := c.stream.SendU32(uint32(mode)); err != nil {
		return nil, &ClosedError{Command: "open", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return nil, &ClosedError{Command: "open", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return nil, &DenialError{Command: "open", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return nil, newAccessDenial("open", result)
	}
	descriptor, err := c.stream.RecvU32()
	if err != nil {
		return nil, &ClosedError{Command: "open", Err: err}
	}
	return &RemoteFile{client: c, descriptor: descriptor, path: path}, nil
}

// RemoteFile is an open server-side file descriptor bound to a single
// Client. It is not safe for concurrent use, same as the underlying
// connection's turn-based discipline.
type RemoteFile struct {
	client     *Client
	descriptor uint32
	path       string
}

// Descriptor returns the server-assigned descriptor id.
func (f *RemoteFile) Descriptor() uint32 { return f.descriptor }

// Path returns the virtual path this descriptor was opened against.
func (f *RemoteFile) Path() string { return f.path }

// Close sends CLOSE for this descriptor. Per spec, CLOSE carries no
// reply payload beyond the turn's CommandResult byte.
func (f *RemoteFile) Close() error {
	c := f.client
	if err := c.sendTurn(protocol.CmdClose); err != nil {
		return err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return &ClosedError{Command: "close", Err: err}
	}
	return nil
}

// Write writes b to the descriptor's current put position.
func (f *RemoteFile) Write(b []byte) (int, error) {
	c := f.client
	if err := c.sendTurn(protocol.CmdWrite); err != nil {
		return 0, err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return 0, &ClosedError{Command: "write", Err: err}
	}
	if err := c.stream.SendBlob(b); err != nil {
		return 0, &ClosedError{Command: "write", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: "write", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return 0, &DenialError{Command: "write", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return 0, newAccessDenial("write", result)
	}
	written, err := c.stream.RecvU32()
	if err != nil {
		return 0, &ClosedError{Command: "write", Err: err}
	}
	return int(written), nil
}

// Read reads up to len(b) bytes from the descriptor's current get
// position. A short read with no error means EOF was reached mid-read;
// call IOState to confirm.
func (f *RemoteFile) Read(b []byte) (int, error) {
	c := f.client
	if err := c.sendTurn(protocol.CmdRead); err != nil {
		return 0, err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return 0, &ClosedError{Command: "read", Err: err}
	}
	if err := c.stream.SendU32(uint32(len(b))); err != nil {
		return 0, &ClosedError{Command: "read", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: "read", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return 0, &DenialError{Command: "read", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return 0, newAccessDenial("read", result)
	}
	data, err := c.stream.RecvBlob()
	if err != nil {
		return 0, &ClosedError{Command: "read", Err: err}
	}
	n := copy(b, data)
	return n, nil
}

// seek issues SEEKG or SEEKP depending on get.
func (f *RemoteFile) seek(get bool, offset int64, whence protocol.SeekWhence) (int64, error) {
	c := f.client
	id := protocol.CmdSeekP
	name := "seekp"
	if get {
		id = protocol.CmdSeekG
		name = "seekg"
	}
	if err := c.sendTurn(id); err != nil {
		return 0, err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	if err := c.stream.SendU64(uint64(offset)); err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	if err := c.stream.SendU8(uint8(whence)); err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return 0, &DenialError{Command: name, Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return 0, newAccessDenial(name, result)
	}
	newPos, err := c.stream.RecvU64()
	if err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	return int64(newPos), nil
}

// tell issues TELLG or TELLP depending on get.
func (f *RemoteFile) tell(get bool) (int64, error) {
	c := f.client
	id := protocol.CmdTellP
	name := "tellp"
	if get {
		id = protocol.CmdTellG
		name = "tellg"
	}
	if err := c.sendTurn(id); err != nil {
		return 0, err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return 0, &DenialError{Command: name, Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return 0, newAccessDenial(name, result)
	}
	pos, err := c.stream.RecvU64()
	if err != nil {
		return 0, &ClosedError{Command: name, Err: err}
	}
	return int64(pos), nil
}

// SeekG repositions the get (read) cursor. SeekP repositions the put
// (write) cursor. The server implements both over a single os.File
// offset (spec §7.1's resolution of Go's single-cursor model vs. the
// original's separate get/put pointers), so the two converge, but the
// client still exposes them distinctly to match the wire protocol.
func (f *RemoteFile) SeekG(offset int64, whence protocol.SeekWhence) (int64, error) {
	return f.seek(true, offset, whence)
}

func (f *RemoteFile) SeekP(offset int64, whence protocol.SeekWhence) (int64, error) {
	return f.seek(false, offset, whence)
}

// TellG and TellP report the current get and put cursor positions.
func (f *RemoteFile) TellG() (int64, error) { return f.tell(true) }
func (f *RemoteFile) TellP() (int64, error) { return f.tell(false) }

// IOState reports the descriptor's sticky EOF/fail bits.
func (f *RemoteFile) IOState() (protocol.IOState, error) {
	c := f.client
	if err := c.sendTurn(protocol.CmdIOState); err != nil {
		return 0, err
	}
	if err := c.stream.SendU32(f.descriptor); err != nil {
		return 0, &ClosedError{Command: "iostate", Err: err}
	}
	resultRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: "iostate", Err: err}
	}
	result := protocol.AccessResult(resultRaw)
	if !result.Valid() {
		return 0, &DenialError{Command: "iostate", Kind: "access", Code: resultRaw, Message: "invalid result byte"}
	}
	if result != protocol.AccessOK {
		return 0, newAccessDenial("iostate", result)
	}
	stateRaw, err := c.stream.RecvU8()
	if err != nil {
		return 0, &ClosedError{Command: "iostate", Err: err}
	}
	return protocol.IOState(stateRaw), nil
}

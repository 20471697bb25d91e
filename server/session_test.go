package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

// testHarness wires a Session's serve loop to one end of a net.Pipe and
// hands back a wire.Stream for the "client" side of the exchange.
func testHarness(t *testing.T, opts ...Option) (*wire.Stream, *Session) {
	t.Helper()
	clientConn, serverConn := net.Pipe()

	srv := NewServer(nil, opts...)
	sess := newSession(1, srv, wire.New(serverConn))
	go sess.serve()

	t.Cleanup(func() { clientConn.Close() })
	return wire.New(clientConn), sess
}

func sendTurn(t *testing.T, client *wire.Stream, id protocol.Command) protocol.CommandResult {
	t.Helper()
	if err := client.SendU32(protocol.SyncWatchdog); err != nil {
		t.Fatalf("send magic: %v", err)
	}
	if err := client.SendU16(uint16(id)); err != nil {
		t.Fatalf("send id: %v", err)
	}
	raw, err := client.RecvU8()
	if err != nil {
		t.Fatalf("recv result: %v", err)
	}
	return protocol.CommandResult(raw)
}

func TestNoneCommandIsAlwaysAllowed(t *testing.T) {
	client, _ := testHarness(t)
	if got := sendTurn(t, client, protocol.CmdNone); got != protocol.ResultOK {
		t.Fatalf("result = %s, want OK", got)
	}
}

func TestUnregisteredCommandIsUnknown(t *testing.T) {
	client, _ := testHarness(t)
	if got := sendTurn(t, client, protocol.Command(0xABCD)); got != protocol.ResultUnknown {
		t.Fatalf("result = %s, want UNKNOWN", got)
	}
}

func TestNonAlwaysAllowedCommandDeniedBeforeAuth(t *testing.T) {
	client, _ := testHarness(t)
	if got := sendTurn(t, client, protocol.CmdCD); got != protocol.ResultAccessDenied {
		t.Fatalf("result = %s, want ACCESS_DENIED (default command middleware, no user yet)", got)
	}
}

func authAs(t *testing.T, client *wire.Stream, user, password string) (username, home, cwd string, result protocol.AuthResult) {
	t.Helper()
	if got := sendTurn(t, client, protocol.CmdAuth); got != protocol.ResultOK {
		t.Fatalf("auth turn result = %s, want OK", got)
	}
	client.SendString(user)
	client.SendString(password)

	raw, err := client.RecvU8()
	if err != nil {
		t.Fatalf("recv auth result: %v", err)
	}
	result = protocol.AuthResult(raw)
	if result != protocol.AuthOK {
		return "", "", "", result
	}
	username, _ = client.RecvString()
	home, _ = client.RecvPath()
	cwd, _ = client.RecvPath()
	return
}

func TestAuthThenCDThenPWD(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	authMW := func(creds Credentials) AuthOutcome {
		return AuthOutcome{Result: protocol.AuthOK, Username: creds.User, Root: root}
	}
	client, _ := testHarness(t, WithAuthMiddleware(authMW))

	username, home, cwd, result := authAs(t, client, "alice", "whatever")
	if result != protocol.AuthOK {
		t.Fatalf("auth result = %s, want OK", result)
	}
	if username != "alice" || home != "/" || cwd != "/" {
		t.Fatalf("got user=%q home=%q cwd=%q", username, home, cwd)
	}

	if got := sendTurn(t, client, protocol.CmdCD); got != protocol.ResultOK {
		t.Fatalf("cd turn result = %s, want OK", got)
	}
	client.SendPath("sub")
	accessRaw, err := client.RecvU8()
	if err != nil {
		t.Fatalf("recv cd access result: %v", err)
	}
	if protocol.AccessResult(accessRaw) != protocol.AccessOK {
		t.Fatalf("cd access result = %d, want OK", accessRaw)
	}
	newCwd, err := client.RecvPath()
	if err != nil || newCwd != "/sub" {
		t.Fatalf("new cwd = %q, err = %v", newCwd, err)
	}

	if got := sendTurn(t, client, protocol.CmdPWD); got != protocol.ResultOK {
		t.Fatalf("pwd turn result = %s, want OK", got)
	}
	pwd, err := client.RecvPath()
	if err != nil || pwd != "/sub" {
		t.Fatalf("pwd = %q, err = %v", pwd, err)
	}
}

func TestAuthRejectedByMiddleware(t *testing.T) {
	authMW := func(creds Credentials) AuthOutcome {
		return AuthOutcome{Result: protocol.AuthWrongPassword}
	}
	client, _ := testHarness(t, WithAuthMiddleware(authMW))

	_, _, _, result := authAs(t, client, "alice", "bad")
	if result != protocol.AuthWrongPassword {
		t.Fatalf("result = %s, want WRONG_PASSWORD", result)
	}
}

func TestUserLimitReachedBeforeMiddleware(t *testing.T) {
	root := t.TempDir()
	calls := 0
	authMW := func(creds Credentials) AuthOutcome {
		calls++
		return AuthOutcome{Result: protocol.AuthOK, Username: creds.User, Root: root}
	}

	clientConn, serverConn := net.Pipe()
	srv := NewServer(nil, WithAuthMiddleware(authMW))
	srv.SetUserLimit("alice", 1)

	sessA := newSession(1, srv, wire.New(serverConn))
	srv.sessionsMu.Lock()
	srv.sessions[1] = sessA
	srv.sessionsMu.Unlock()
	go sessA.serve()

	clientA := wire.New(clientConn)
	t.Cleanup(func() { clientConn.Close() })

	username, _, _, result := authAs(t, clientA, "alice", "x")
	if result != protocol.AuthOK || username != "alice" {
		t.Fatalf("first auth failed: result=%s user=%q", result, username)
	}

	clientConn2, serverConn2 := net.Pipe()
	sessB := newSession(2, srv, wire.New(serverConn2))
	srv.sessionsMu.Lock()
	srv.sessions[2] = sessB
	srv.sessionsMu.Unlock()
	go sessB.serve()

	clientB := wire.New(clientConn2)
	t.Cleanup(func() { clientConn2.Close() })

	_, _, _, result2 := authAs(t, clientB, "alice", "x")
	if result2 != protocol.AuthUserLimitReached {
		t.Fatalf("second auth result = %s, want USER_LIMIT_REACHED", result2)
	}
	if calls != 1 {
		t.Errorf("middleware should not be invoked once the limit is reached, called %d times", calls)
	}
}

func TestClearDropsIdentity(t *testing.T) {
	root := t.TempDir()
	authMW := func(creds Credentials) AuthOutcome {
		return AuthOutcome{Result: protocol.AuthOK, Username: creds.User, Root: root}
	}
	client, sess := testHarness(t, WithAuthMiddleware(authMW))
	authAs(t, client, "alice", "x")

	if sess.User() == nil {
		t.Fatal("expected user to be set after auth")
	}

	if got := sendTurn(t, client, protocol.CmdClear); got != protocol.ResultOK {
		t.Fatalf("clear result = %s, want OK", got)
	}
	// Give the handler a moment to run past the dispatch-side OK reply.
	time.Sleep(10 * time.Millisecond)
	if sess.User() != nil {
		t.Error("expected user to be nil after CLEAR")
	}
	if sess.Sandbox() != nil {
		t.Error("expected sandbox to be nil after CLEAR")
	}
}

func TestBoundaryFileStreamRoundTrip(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello sfap"), 0644); err != nil {
		t.Fatal(err)
	}

	authMW := func(creds Credentials) AuthOutcome {
		return AuthOutcome{Result: protocol.AuthOK, Username: creds.User, Root: root}
	}
	client, _ := testHarness(t, WithAuthMiddleware(authMW))
	authAs(t, client, "alice", "x")

	if got := sendTurn(t, client, protocol.CmdOpen); got != protocol.ResultOK {
		t.Fatalf("open turn result = %s, want OK", got)
	}
	client.SendPath("hello.txt")
	client.SendU32(uint32(protocol.OpenRead))
	accessRaw, err := client.RecvU8()
	if err != nil || protocol.AccessResult(accessRaw) != protocol.AccessOK {
		t.Fatalf("open access = %d, err = %v", accessRaw, err)
	}
	descriptor, err := client.RecvU32()
	if err != nil {
		t.Fatalf("recv descriptor: %v", err)
	}

	if got := sendTurn(t, client, protocol.CmdRead); got != protocol.ResultOK {
		t.Fatalf("read turn result = %s, want OK", got)
	}
	client.SendU32(descriptor)
	client.SendU32(64)
	readAccessRaw, err := client.RecvU8()
	if err != nil || protocol.AccessResult(readAccessRaw) != protocol.AccessOK {
		t.Fatalf("read access = %d, err = %v", readAccessRaw, err)
	}
	data, err := client.RecvBlob()
	if err != nil || string(data) != "hello sfap" {
		t.Fatalf("data = %q, err = %v", data, err)
	}

	if got := sendTurn(t, client, protocol.CmdClose); got != protocol.ResultOK {
		t.Fatalf("close turn result = %s, want OK", got)
	}
	// CLOSE has no reply payload beyond the CommandResult byte: send the
	// descriptor and move on, nothing more to read from this turn.
	if err := client.SendU32(descriptor); err != nil {
		t.Fatalf("send close descriptor: %v", err)
	}
}

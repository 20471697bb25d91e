package wire

import (
	"errors"
	"net"
	"testing"
)

func pipeStreams(t *testing.T) (*Stream, *Stream) {
	t.Helper()
	a, b := net.Pipe()
	return New(a), New(b)
}

func TestU8RoundTrip(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go func() {
		if err := client.SendU8(0x42); err != nil {
			t.Errorf("send: %v", err)
		}
	}()

	got, err := server.RecvU8()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != 0x42 {
		t.Errorf("got %x, want 0x42", got)
	}
}

func TestU16U32U64RoundTrip(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go func() {
		client.SendU16(0xBEEF)
		client.SendU32(0xDEADBEEF)
		client.SendU64(0x1122334455667788)
	}()

	u16, err := server.RecvU16()
	if err != nil || u16 != 0xBEEF {
		t.Fatalf("u16 = %x, err = %v", u16, err)
	}
	u32, err := server.RecvU32()
	if err != nil || u32 != 0xDEADBEEF {
		t.Fatalf("u32 = %x, err = %v", u32, err)
	}
	u64, err := server.RecvU64()
	if err != nil || u64 != 0x1122334455667788 {
		t.Fatalf("u64 = %x, err = %v", u64, err)
	}
}

func TestBoolRoundTrip(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go func() {
		client.SendBool(true)
		client.SendBool(false)
	}()

	v1, err := server.RecvBool()
	if err != nil || !v1 {
		t.Fatalf("want true, got %v err %v", v1, err)
	}
	v2, err := server.RecvBool()
	if err != nil || v2 {
		t.Fatalf("want false, got %v err %v", v2, err)
	}
}

func TestStringBlobRoundTrip(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go func() {
		client.SendString("hello sfap")
		client.SendBlob([]byte{1, 2, 3, 4})
		client.SendBlob(nil)
	}()

	s, err := server.RecvString()
	if err != nil || s != "hello sfap" {
		t.Fatalf("string = %q, err = %v", s, err)
	}
	b, err := server.RecvBlob()
	if err != nil || len(b) != 4 {
		t.Fatalf("blob = %v, err = %v", b, err)
	}
	empty, err := server.RecvBlob()
	if err != nil || len(empty) != 0 {
		t.Fatalf("empty blob = %v, err = %v", empty, err)
	}
}

func TestSendPathNormalizesSeparators(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go client.SendPath(`a\b\c`)

	got, err := server.RecvPath()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != "a/b/c" {
		t.Errorf("got %q, want a/b/c", got)
	}
}

func TestRecvPeerClosedMidFrame(t *testing.T) {
	client, server := pipeStreams(t)
	defer server.Close()

	client.Close()

	_, err := server.RecvU32()
	if err == nil {
		t.Fatal("expected an error after peer closed")
	}
	if !errors.Is(err, ErrPeerClosed) && !errors.Is(err, ErrIO) {
		t.Errorf("expected ErrPeerClosed or ErrIO, got %v", err)
	}
}

type enumKind uint8

const (
	enumA enumKind = iota
	enumB
)

func validEnumKind(v enumKind) bool { return v <= enumB }

func TestEnum8RoundTrip(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go SendEnum8(client, enumB)

	got, err := RecvEnum8(server, validEnumKind)
	if err != nil || got != enumB {
		t.Fatalf("got %v err %v", got, err)
	}
}

func TestEnum8OutOfRangeIsFramingError(t *testing.T) {
	client, server := pipeStreams(t)
	defer client.Close()
	defer server.Close()

	go client.SendU8(0xFF)

	_, err := RecvEnum8(server, validEnumKind)
	var fe *FramingError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FramingError, got %v", err)
	}
}

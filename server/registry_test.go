package server

import (
	"testing"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

func noopHandler(sess *Session, s *wire.Stream) error { return nil }

func TestRegistryAddAndGet(t *testing.T) {
	r := NewCommandRegistry()
	if err := r.Add(protocol.CmdCD, "cd", noopHandler); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !r.Exists(protocol.CmdCD) || !r.ExistsName("cd") {
		t.Error("expected cd to be registered")
	}
	if _, ok := r.Get(protocol.CmdCD); !ok {
		t.Error("expected Get to find the handler")
	}
}

func TestRegistryRejectsDuplicateID(t *testing.T) {
	r := NewCommandRegistry()
	r.Add(protocol.CmdCD, "cd", noopHandler)
	if err := r.Add(protocol.CmdCD, "cd2", noopHandler); err == nil {
		t.Error("expected duplicate id to be rejected")
	}
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	r := NewCommandRegistry()
	r.Add(protocol.CmdCD, "cd", noopHandler)
	if err := r.Add(protocol.CmdPWD, "cd", noopHandler); err == nil {
		t.Error("expected duplicate name to be rejected")
	}
}

func TestRegistryGetNilHandlerIsAbsent(t *testing.T) {
	r := NewCommandRegistry()
	r.Add(protocol.CmdAuth, "auth", nil)
	if !r.Exists(protocol.CmdAuth) {
		t.Error("expected auth id to exist for enumeration")
	}
	if _, ok := r.Get(protocol.CmdAuth); ok {
		t.Error("Get should report nil-handler entries as absent")
	}
}

func TestRegistryMerge(t *testing.T) {
	a := NewCommandRegistry()
	a.Add(protocol.CmdCD, "cd", noopHandler)

	b := NewCommandRegistry()
	b.Add(protocol.CmdPWD, "pwd", noopHandler)

	if err := a.Merge(b); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if a.Size() != 2 {
		t.Errorf("size = %d, want 2", a.Size())
	}
}

func TestRegistryMergeRejectsCollision(t *testing.T) {
	a := NewCommandRegistry()
	a.Add(protocol.CmdCD, "cd", noopHandler)

	b := NewCommandRegistry()
	b.Add(protocol.CmdCD, "cd-again", noopHandler)

	if err := a.Merge(b); err == nil {
		t.Error("expected merge collision on duplicate id to fail")
	}
}

func TestDefaultRegistryHasVanillaCommands(t *testing.T) {
	r := DefaultRegistry()
	for _, id := range []protocol.Command{
		protocol.CmdCD, protocol.CmdPWD, protocol.CmdHome, protocol.CmdLS,
		protocol.CmdOpen, protocol.CmdClose, protocol.CmdWrite, protocol.CmdRead,
		protocol.CmdSeekG, protocol.CmdTellG, protocol.CmdSeekP, protocol.CmdTellP,
		protocol.CmdIOState,
	} {
		if _, ok := r.Get(id); !ok {
			t.Errorf("expected %s to have a usable handler", id)
		}
	}
	for id := range protocol.AlwaysAllowed {
		if !r.Exists(id) {
			t.Errorf("expected always-allowed %s to be registered for enumeration", id)
		}
		if _, ok := r.Get(id); ok {
			t.Errorf("always-allowed %s should have a nil handler in the registry", id)
		}
	}
}

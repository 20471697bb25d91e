package server

import (
	"os"
	"sync"

	"github.com/sweet-bbq-sauce/sfap/protocol"
)

// openFile is the server-side handle behind a session's u32 descriptor. It
// tracks the sticky EOF/fail bits IOSTATE reports, the Go analogue of
// C++'s ios::eofbit/failbit (spec §6.4's addition for SFAP's file-stream
// commands, see SPEC_FULL.md §7.1).
type openFile struct {
	mu      sync.Mutex
	file    *os.File
	virtual string
	state   protocol.IOState
}

func (f *openFile) markEOF() {
	f.mu.Lock()
	f.state |= protocol.IOStateEOF
	f.mu.Unlock()
}

func (f *openFile) markFail() {
	f.mu.Lock()
	f.state |= protocol.IOStateFail
	f.mu.Unlock()
}

func (f *openFile) ioState() protocol.IOState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// descriptorTable is a session's map of open descriptors, guarded by its
// own read/write lock and written only by the session's worker goroutine
// (spec §3.4, §4.4).
type descriptorTable struct {
	mu   sync.RWMutex
	next uint32
	open map[uint32]*openFile
}

func newDescriptorTable() *descriptorTable {
	return &descriptorTable{open: make(map[uint32]*openFile)}
}

// add assigns the next monotonic descriptor id to f and returns it. Ids
// are never reused within a session's lifetime (spec §3.4 invariant).
func (t *descriptorTable) add(f *openFile) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.next++
	id := t.next
	t.open[id] = f
	return id
}

func (t *descriptorTable) get(id uint32) (*openFile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.open[id]
	return f, ok
}

// close removes and closes the descriptor, if present. Per spec §4.4.1,
// CLOSE carries no reply payload and is not an error if the descriptor is
// already gone.
func (t *descriptorTable) close(id uint32) {
	t.mu.Lock()
	f, ok := t.open[id]
	delete(t.open, id)
	t.mu.Unlock()
	if ok {
		_ = f.file.Close()
	}
}

// clear drops every open descriptor, closing the underlying files. Used
// by AUTH (on identity change) and CLEAR (spec §3.4, §4.4.1).
func (t *descriptorTable) clear() {
	t.mu.Lock()
	open := t.open
	t.open = make(map[uint32]*openFile)
	t.mu.Unlock()
	for _, f := range open {
		_ = f.file.Close()
	}
}

// ids returns a snapshot of currently open descriptor ids, for the
// DESCRIPTORS handler.
func (t *descriptorTable) ids() []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]uint32, 0, len(t.open))
	for id := range t.open {
		out = append(out, id)
	}
	return out
}

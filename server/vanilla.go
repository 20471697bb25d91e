package server

import (
	"io"
	"io/fs"
	"os"

	"github.com/sweet-bbq-sauce/sfap/protocol"
	"github.com/sweet-bbq-sauce/sfap/vfs"
	"github.com/sweet-bbq-sauce/sfap/wire"
)

// DefaultRegistry builds the vanilla command set (spec §4.4.1, §6.4):
// the seven always-allowed ids registered with a nil handler (purely for
// COMMANDS enumeration, as original_source's vanilla_commands.cpp does),
// plus real handlers for CD/PWD/HOME/LS/OPEN/CLOSE and the file-stream
// commands added in SPEC_FULL.md §7.1.
func DefaultRegistry() *CommandRegistry {
	r := NewCommandRegistry()

	// Always-allowed ids: registered with nil handlers so they appear in
	// COMMANDS and Exists()/size() accounting, but they are never reached
	// through Get() because the session's dispatch loop special-cases
	// protocol.AlwaysAllowed before consulting the registry's handler.
	mustAdd(r, protocol.CmdNone, "none", nil)
	mustAdd(r, protocol.CmdBye, "bye", nil)
	mustAdd(r, protocol.CmdServerInfo, "server_info", nil)
	mustAdd(r, protocol.CmdCommands, "commands", nil)
	mustAdd(r, protocol.CmdDescriptors, "descriptors", nil)
	mustAdd(r, protocol.CmdAuth, "auth", nil)
	mustAdd(r, protocol.CmdClear, "clear", nil)

	mustAdd(r, protocol.CmdCD, "cd", handleCD)
	mustAdd(r, protocol.CmdPWD, "pwd", handlePWD)
	mustAdd(r, protocol.CmdHome, "home", handleHome)
	mustAdd(r, protocol.CmdLS, "ls", handleLS)
	mustAdd(r, protocol.CmdOpen, "open", handleOpen)
	mustAdd(r, protocol.CmdClose, "close", handleClose)

	mustAdd(r, protocol.CmdWrite, "write", handleWrite)
	mustAdd(r, protocol.CmdRead, "read", handleRead)
	mustAdd(r, protocol.CmdSeekG, "seekg", handleSeekG)
	mustAdd(r, protocol.CmdTellG, "tellg", handleTellG)
	mustAdd(r, protocol.CmdSeekP, "seekp", handleSeekP)
	mustAdd(r, protocol.CmdTellP, "tellp", handleTellP)
	mustAdd(r, protocol.CmdIOState, "iostate", handleIOState)

	return r
}

func mustAdd(r *CommandRegistry, id protocol.Command, name string, h Handler) {
	if err := r.Add(id, name, h); err != nil {
		panic(err)
	}
}

func handleCD(sess *Session, s *wire.Stream) error {
	path, err := s.RecvPath()
	if err != nil {
		return err
	}
	sandbox := sess.Sandbox()
	if sandbox == nil {
		return s.SendU8(uint8(protocol.AccessDenied))
	}

	host := sandbox.ToSystem(path)
	if sandbox.CheckAccess(host) != vfs.AccessOK {
		return s.SendU8(uint8(protocol.AccessDenied))
	}
	if info, statErr := os.Stat(host); statErr == nil && !info.IsDir() {
		return s.SendU8(uint8(protocol.AccessIsNotDirectory))
	}

	if err := sandbox.Cd(path); err != nil {
		return s.SendU8(uint8(protocol.AccessDenied))
	}
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendPath(sandbox.Pwd())
}

func handlePWD(sess *Session, s *wire.Stream) error {
	sandbox := sess.Sandbox()
	if sandbox == nil {
		return s.SendPath("/")
	}
	return s.SendPath(sandbox.Pwd())
}

func handleHome(sess *Session, s *wire.Stream) error {
	sandbox := sess.Sandbox()
	if sandbox == nil {
		return s.SendPath("/")
	}
	return s.SendPath(sandbox.Home())
}

func handleLS(sess *Session, s *wire.Stream) error {
	path, err := s.RecvPath()
	if err != nil {
		return err
	}
	sandbox := sess.Sandbox()
	if sandbox == nil {
		return s.SendU8(uint8(protocol.AccessDenied))
	}

	normalized, ok := sandbox.TryNormalize(path)
	if !ok {
		return s.SendU8(uint8(protocol.AccessDenied))
	}
	host := sandbox.ToSystem(normalized)
	info, err := os.Stat(host)
	if err != nil {
		return s.SendU8(uint8(protocol.AccessInternalError))
	}
	if !info.IsDir() {
		return s.SendU8(uint8(protocol.AccessIsNotDirectory))
	}

	entries, err := os.ReadDir(host)
	if err != nil {
		return s.SendU8(uint8(protocol.AccessInternalError))
	}

	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	if err := s.SendU32(uint32(len(entries))); err != nil {
		return err
	}
	for _, entry := range entries {
		entryHost := host + string(os.PathSeparator) + entry.Name()
		entryVirtual, verr := sandbox.ToVirtual(entryHost)
		if verr != nil {
			entryVirtual = entry.Name()
		}
		entryInfo, ierr := entry.Info()
		ft := convertFileType(entry, ierr)
		var size uint64
		if ierr == nil && ft == protocol.FileRegular {
			size = uint64(entryInfo.Size())
		}
		if err := s.SendU8(uint8(ft)); err != nil {
			return err
		}
		if err := s.SendPath(entryVirtual); err != nil {
			return err
		}
		if err := s.SendU64(size); err != nil {
			return err
		}
	}
	return nil
}

func convertFileType(entry os.DirEntry, err error) protocol.FileType {
	if err != nil {
		return protocol.FileUnknown
	}
	mode := entry.Type()
	switch {
	case mode.IsRegular():
		return protocol.FileRegular
	case mode.IsDir():
		return protocol.FileDirectory
	case mode&fs.ModeSymlink != 0:
		return protocol.FileSymlink
	case mode&fs.ModeDevice != 0 && mode&fs.ModeCharDevice != 0:
		return protocol.FileCharacter
	case mode&fs.ModeDevice != 0:
		return protocol.FileBlock
	case mode&fs.ModeNamedPipe != 0:
		return protocol.FileFIFO
	case mode&fs.ModeSocket != 0:
		return protocol.FileSocket
	default:
		return protocol.FileUnknown
	}
}

func handleOpen(sess *Session, s *wire.Stream) error {
	path, err := s.RecvPath()
	if err != nil {
		return err
	}
	modeRaw, err := s.RecvU32()
	if err != nil {
		return err
	}
	mode := protocol.OpenMode(modeRaw)

	sandbox := sess.Sandbox()
	if sandbox == nil {
		return s.SendU8(uint8(protocol.AccessDenied))
	}
	normalized, ok := sandbox.TryNormalize(path)
	if !ok {
		return s.SendU8(uint8(protocol.AccessDenied))
	}
	host := sandbox.ToSystem(normalized)

	flag := translateOpenMode(mode)
	f, err := os.OpenFile(host, flag, 0644)
	if err != nil {
		return s.SendU8(uint8(protocol.AccessCantOpenFile))
	}
	if mode.Has(protocol.OpenAtEnd) {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			f.Close()
			return s.SendU8(uint8(protocol.AccessCantOpenFile))
		}
	}

	id := sess.Descriptors().add(&openFile{file: f, virtual: path})
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendU32(id)
}

func translateOpenMode(mode protocol.OpenMode) int {
	flag := os.O_RDONLY
	switch {
	case mode.Has(protocol.OpenWrite) && mode.Has(protocol.OpenRead):
		flag = os.O_RDWR
	case mode.Has(protocol.OpenWrite):
		flag = os.O_WRONLY
	}
	if mode.Has(protocol.OpenWrite) {
		flag |= os.O_CREATE
	}
	if mode.Has(protocol.OpenTrunc) {
		flag |= os.O_TRUNC
	}
	if mode.Has(protocol.OpenAppend) {
		flag |= os.O_APPEND
	}
	return flag
}

func handleClose(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	sess.Descriptors().close(id)
	return nil
}

// --- file-stream commands (SPEC_FULL.md §7.1 supplement) ---

func lookupDescriptor(sess *Session, s *wire.Stream, id uint32) (*openFile, bool, error) {
	f, ok := sess.Descriptors().get(id)
	if !ok {
		return nil, false, s.SendU8(uint8(protocol.AccessDenied))
	}
	return f, true, nil
}

func handleWrite(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	data, err := s.RecvBlob()
	if err != nil {
		return err
	}
	f, ok, sendErr := lookupDescriptor(sess, s, id)
	if !ok {
		return sendErr
	}

	f.mu.Lock()
	n, werr := f.file.Write(data)
	f.mu.Unlock()
	if werr != nil {
		f.markFail()
		return s.SendU8(uint8(protocol.AccessInternalError))
	}
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendU32(uint32(n))
}

func handleRead(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	length, err := s.RecvU32()
	if err != nil {
		return err
	}
	f, ok, sendErr := lookupDescriptor(sess, s, id)
	if !ok {
		return sendErr
	}

	buf := make([]byte, length)
	f.mu.Lock()
	n, rerr := io.ReadFull(f.file, buf)
	f.mu.Unlock()
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		f.markFail()
		return s.SendU8(uint8(protocol.AccessInternalError))
	}
	if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
		f.markEOF()
	}

	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendBlob(buf[:n])
}

func seekCommon(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	offset, err := s.RecvU64()
	if err != nil {
		return err
	}
	whenceRaw, err := s.RecvU8()
	if err != nil {
		return err
	}
	whence := protocol.SeekWhence(whenceRaw)
	if !whence.Valid() {
		return &wire.FramingError{Reason: "invalid seek whence"}
	}

	f, ok, sendErr := lookupDescriptor(sess, s, id)
	if !ok {
		return sendErr
	}

	f.mu.Lock()
	pos, serr := f.file.Seek(int64(offset), int(whence))
	f.mu.Unlock()
	if serr != nil {
		f.markFail()
		return s.SendU8(uint8(protocol.AccessInternalError))
	}
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendU64(uint64(pos))
}

// handleSeekG and handleSeekP are aliases over the same descriptor
// offset: Go's os.File, unlike C++'s fstream, has a single cursor shared
// between reads and writes (documented Open Question resolution, see
// SPEC_FULL.md §7.1 and DESIGN.md).
func handleSeekG(sess *Session, s *wire.Stream) error { return seekCommon(sess, s) }
func handleSeekP(sess *Session, s *wire.Stream) error { return seekCommon(sess, s) }

func tellCommon(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	f, ok, sendErr := lookupDescriptor(sess, s, id)
	if !ok {
		return sendErr
	}

	f.mu.Lock()
	pos, serr := f.file.Seek(0, io.SeekCurrent)
	f.mu.Unlock()
	if serr != nil {
		f.markFail()
		return s.SendU8(uint8(protocol.AccessInternalError))
	}
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendU64(uint64(pos))
}

func handleTellG(sess *Session, s *wire.Stream) error { return tellCommon(sess, s) }
func handleTellP(sess *Session, s *wire.Stream) error { return tellCommon(sess, s) }

func handleIOState(sess *Session, s *wire.Stream) error {
	id, err := s.RecvU32()
	if err != nil {
		return err
	}
	f, ok, sendErr := lookupDescriptor(sess, s, id)
	if !ok {
		return sendErr
	}
	if err := s.SendU8(uint8(protocol.AccessOK)); err != nil {
		return err
	}
	return s.SendU8(uint8(f.ioState()))
}

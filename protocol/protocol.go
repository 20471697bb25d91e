// Package protocol defines the wire-level constants of SFAP: the magic
// watchdog value, the command id space, and the result enumerations
// exchanged between client and server. It carries no I/O of its own —
// see package wire for the byte-level stream that moves these values.
package protocol

// SyncWatchdog is the 32-bit magic prefixing every command request.
// Its ASCII spelling is "SFAP".
const SyncWatchdog uint32 = 0x53464150

// Command identifies a request on the wire. Always sent/received as a u16.
type Command uint16

const (
	CmdNone        Command = 0x00
	CmdBye         Command = 0x01
	CmdServerInfo  Command = 0x02
	CmdCommands    Command = 0x03
	CmdDescriptors Command = 0x04
	CmdAuth        Command = 0x05
	CmdClear       Command = 0x06

	CmdCD   Command = 0x10
	CmdPWD  Command = 0x11
	CmdHome Command = 0x12
	CmdLS   Command = 0x13

	CmdOpen  Command = 0x20
	CmdClose Command = 0x21

	CmdWrite   Command = 0x22
	CmdRead    Command = 0x23
	CmdSeekG   Command = 0x24
	CmdTellG   Command = 0x25
	CmdSeekP   Command = 0x26
	CmdTellP   Command = 0x27
	CmdIOState Command = 0x28
)

var commandNames = map[Command]string{
	CmdNone:        "none",
	CmdBye:         "bye",
	CmdServerInfo:  "server_info",
	CmdCommands:    "commands",
	CmdDescriptors: "descriptors",
	CmdAuth:        "auth",
	CmdClear:       "clear",
	CmdCD:          "cd",
	CmdPWD:         "pwd",
	CmdHome:        "home",
	CmdLS:          "ls",
	CmdOpen:        "open",
	CmdClose:       "close",
	CmdWrite:       "write",
	CmdRead:        "read",
	CmdSeekG:       "seekg",
	CmdTellG:       "tellg",
	CmdSeekP:       "seekp",
	CmdTellP:       "tellp",
	CmdIOState:     "iostate",
}

// String returns the canonical lower-case command name, or "" if id is
// not one of the ids defined above. It does not consult a registry.
func (c Command) String() string {
	return commandNames[c]
}

// AlwaysAllowed is the set of command ids that bypass the command
// middleware and are handled inline by the session (spec §4.4 step 5).
var AlwaysAllowed = map[Command]bool{
	CmdNone:        true,
	CmdBye:         true,
	CmdServerInfo:  true,
	CmdCommands:    true,
	CmdDescriptors: true,
	CmdAuth:        true,
	CmdClear:       true,
}

// CommandResult is the one-byte outcome code every command reply begins
// with.
type CommandResult uint8

const (
	ResultOK              CommandResult = 0
	ResultAccessDenied    CommandResult = 1
	ResultUnavailable     CommandResult = 2
	ResultDisabled        CommandResult = 3
	ResultUnsupported     CommandResult = 4
	ResultMiddlewareError CommandResult = 5
	ResultUnknown         CommandResult = 6
)

func (r CommandResult) Valid() bool { return r <= ResultUnknown }

func (r CommandResult) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultAccessDenied:
		return "ACCESS_DENIED"
	case ResultUnavailable:
		return "UNAVAILABLE"
	case ResultDisabled:
		return "DISABLED"
	case ResultUnsupported:
		return "UNSUPPORTED"
	case ResultMiddlewareError:
		return "MIDDLEWARE_ERROR"
	case ResultUnknown:
		return "UNKNOWN"
	default:
		return "INVALID"
	}
}

// AuthResult is the one-byte outcome of an AUTH turn.
type AuthResult uint8

const (
	AuthOK               AuthResult = 0
	AuthUnknownUser      AuthResult = 1
	AuthWrongPassword    AuthResult = 2
	AuthUserDisabled     AuthResult = 3
	AuthUserLimitReached AuthResult = 4
	AuthMiddlewareError  AuthResult = 5
)

func (r AuthResult) Valid() bool { return r <= AuthMiddlewareError }

func (r AuthResult) String() string {
	switch r {
	case AuthOK:
		return "OK"
	case AuthUnknownUser:
		return "UNKNOWN_USER"
	case AuthWrongPassword:
		return "WRONG_PASSWORD"
	case AuthUserDisabled:
		return "USER_DISABLED"
	case AuthUserLimitReached:
		return "USER_LIMIT_REACHED"
	case AuthMiddlewareError:
		return "MIDDLEWARE_ERROR"
	default:
		return "INVALID"
	}
}

// AccessResult is the one-byte outcome of a path- or descriptor-bearing
// command (CD, LS, OPEN, and the file-stream commands).
type AccessResult uint8

const (
	AccessOK             AccessResult = 0
	AccessDenied         AccessResult = 1
	AccessOutsideRoot    AccessResult = 2
	AccessIsNotDirectory AccessResult = 3
	AccessCantOpenFile   AccessResult = 4
	AccessInternalError  AccessResult = 5
)

func (r AccessResult) Valid() bool { return r <= AccessInternalError }

func (r AccessResult) String() string {
	switch r {
	case AccessOK:
		return "OK"
	case AccessDenied:
		return "ACCESS_DENIED"
	case AccessOutsideRoot:
		return "OUTSIDE_ROOT"
	case AccessIsNotDirectory:
		return "IS_NOT_DIRECTORY"
	case AccessCantOpenFile:
		return "CANT_OPEN_FILE"
	case AccessInternalError:
		return "INTERNAL_ERROR"
	default:
		return "INVALID"
	}
}

// FileType is the one-byte file-kind tag sent with each LS entry.
type FileType uint8

const (
	FileNone      FileType = 0
	FileDirectory FileType = 1
	FileRegular   FileType = 2
	FileSymlink   FileType = 3
	FileBlock     FileType = 4
	FileCharacter FileType = 5
	FileFIFO      FileType = 6
	FileSocket    FileType = 7
	FileNotFound  FileType = 8
	FileUnknown   FileType = 9
)

func (t FileType) Valid() bool { return t <= FileUnknown }

func (t FileType) String() string {
	switch t {
	case FileNone:
		return "none"
	case FileDirectory:
		return "dir"
	case FileRegular:
		return "file"
	case FileSymlink:
		return "symlink"
	case FileBlock:
		return "block"
	case FileCharacter:
		return "char"
	case FileFIFO:
		return "fifo"
	case FileSocket:
		return "socket"
	case FileNotFound:
		return "not_found"
	case FileUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// OpenMode is the bitset carried by OPEN's mode field (spec §6.4).
type OpenMode uint32

const (
	OpenRead   OpenMode = 1 << 0
	OpenWrite  OpenMode = 1 << 1
	OpenAppend OpenMode = 1 << 2
	OpenTrunc  OpenMode = 1 << 3
	OpenBinary OpenMode = 1 << 4
	OpenAtEnd  OpenMode = 1 << 5
)

func (m OpenMode) Has(bit OpenMode) bool { return m&bit != 0 }

// SeekWhence mirrors io.Seek{Start,Current,End} on the wire as a u8,
// carried by the SEEKG/SEEKP commands.
type SeekWhence uint8

const (
	SeekStart   SeekWhence = 0
	SeekCurrent SeekWhence = 1
	SeekEnd     SeekWhence = 2
)

func (w SeekWhence) Valid() bool { return w <= SeekEnd }

// IOState is the sticky bitmask reported by IOSTATE.
type IOState uint8

const (
	IOStateGood IOState = 0
	IOStateEOF  IOState = 1 << 0
	IOStateFail IOState = 1 << 1
)

package rpc

// Opcode identifies one RPC routine. Opcodes are partitioned into
// contiguous ranges per surface (spec.md §9 "String-typed dispatch": "an
// ordered array of (range, handler-fn) entries and linear search"). The
// demuxer tries surfaces in a fixed order, so an opcode that collides
// across two ranges always binds to the earlier surface in that order
// (spec.md S6).
type Opcode uint32

// I/O-RPC surface opcodes (spec.md §4.K). This range is tried first by
// the demuxer.
const (
	OpIORead Opcode = 1000 + iota
	OpIOWrite
	OpIOSeek
	OpIOReadable
	OpIOGetOpenModes
	OpIOSetAllOpenModes
	OpIOSetSomeOpenModes
	OpIOClearSomeOpenModes
	OpIOSelect
	OpIOSelectTimeout
	OpIOStat
	OpIOReauthenticate
	OpIORestrictAuth
	OpIODuplicate
	OpIOIdentity
)

// ioRangeLo/ioRangeHi bound the I/O surface's opcode range.
const (
	ioRangeLo = OpIORead
	ioRangeHi = OpIOIdentity
)

// Socket-RPC surface opcodes (spec.md §4.J).
const (
	OpSocketCreate Opcode = 2000 + iota
	OpSocketBind
	OpSocketConnect
	OpSocketListen
	OpSocketShutdown
	OpSocketGetOpt
	OpSocketSetOpt
	OpSocketName
	OpSocketPeerName
	OpSocketAccept
	OpSocketSend
	OpSocketRecv
	OpSocketCreateAddress
	OpSocketWhatIsAddress
)

const (
	socketRangeLo = OpSocketCreate
	socketRangeHi = OpSocketWhatIsAddress
)

// Interface-ioctl surface opcodes (spec.md §4.L).
const (
	OpIfGetAddr Opcode = 3000 + iota
	OpIfSetAddr
	OpIfGetNetmask
	OpIfSetNetmask
	OpIfGetBrdAddr
	OpIfSetBrdAddr
	OpIfGetDstAddr
	OpIfGetFlags
	OpIfSetFlags
	OpIfGetMTU
	OpIfSetMTU
	OpIfGetHWAddr
	OpIfGetMetric
	OpIfGetConf
)

const (
	ifRangeLo = OpIfGetAddr
	ifRangeHi = OpIfGetConf
)

// Root trivfs-control opcodes (spec.md §6): io_read/io_write/stat/goaway
// on the translator's root node, plus append-args.
const (
	OpRootIoRead Opcode = 4000 + iota
	OpRootIoWrite
	OpRootStat
	OpRootGoAway
	OpAppendArgs
)

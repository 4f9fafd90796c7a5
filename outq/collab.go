package outq

// The types in this file are the collaborator contracts this core consumes
// but never owns: the packet builder, congestion controller, per-level
// packet-number map, per-level crypto state, path/MTU state machine, timer
// module, application uplink and socket memory accountant. Each is opaque
// to the core and modeled here as an interface so it compiles and is fully
// testable against fakes, exactly the role separate per-concern agents
// (SendingAgent, AckAgent, ...) play when talking to each other over
// channels instead of direct calls.

// PacketConfigResult is the three-way outcome of PacketBuilder.Config,
// mirroring quic_packet_config's signed-int return convention from
// output.c: proceed (0), filtered out (ret>0, skip the frame and keep
// going), or stop the pass entirely (ret<0).
type PacketConfigResult int

const (
	PacketConfigProceed PacketConfigResult = iota
	PacketConfigFiltered
	PacketConfigStop
)

// PacketBuilder is the opaque packet assembler / transmitter. It accepts
// frames and eventually emits datagrams; this core never encodes bytes.
type PacketBuilder interface {
	// Config asks whether a packet at level/pathAlt may currently be built.
	Config(level Level, alt PathAlt) PacketConfigResult
	// Tail attempts to pack frame into the packet under construction.
	// Returns true if it fit (caller may continue with more frames), false
	// if the current packet is full (caller must Create and retry frame).
	Tail(frame *Frame, isDgram bool) bool
	// Create finalizes and transmits the in-progress packet, moving its
	// frames onto the transmitted list via the enqueue router's
	// TransmittedTail, and starts a fresh packet.
	Create()
	// Flush finalizes any still-open packet. Returns true if at least one
	// packet was sent during this transmit cycle.
	Flush() bool
	// MSSUpdate installs a new path MTU as the packet payload size ceiling.
	MSSUpdate(size uint32)
	// SetFilter restricts packet assembly to a single level (used by the
	// loss-timer-driven TransmitOne to force probing/retransmission at a
	// specific level).
	SetFilter(level Level, on bool)
	// TagLen reports the current AEAD tag length in bytes.
	TagLen() int
	// SetTagLen overrides the AEAD tag length (0 disables it, used when
	// both peers negotiated away 1-RTT encryption).
	SetTagLen(n int)
	// ResetECNProbeCount clears the builder's ECN-capability probe
	// counter, done once a path migration is validated.
	ResetECNProbeCount()
	// Xmit sends a packet that was encrypted asynchronously (off the
	// core's lock) and is already wire-ready, paralleling
	// quic_packet_xmit. payload is opaque to this core.
	Xmit(payload interface{})
}

// CongestionController is the congestion controller collaborator.
type CongestionController interface {
	RTTUpdate(transmitTs uint64, ackDelay uint64)
	RTO() uint64
	Duration() uint64
	Window() uint64
	CwndUpdateAfterSACK(firstAckedNumber int64, firstAckedTransmitTs uint64, ackedBytes uint64, dataInflight uint64)
	CwndUpdateAfterTimeout(number int64, transmitTs uint64, last int64)
}

// PNMap is the per-encryption-level packet-number map collaborator.
type PNMap interface {
	NextNumber() int64
	LossTs() uint64
	SetLossTs(ts uint64)
	Inflight() uint64
	DecInflight(len uint64)
	LastSentTs() uint64
	MaxPnAcked() int64
	SetMaxPnAcked(n int64)
	SetMaxRecordTs(ts uint64)
}

// Crypto is the per-level crypto-state collaborator.
type Crypto interface {
	SendReady() bool
	SetKeyUpdateTs(ts uint64)
}

// Path is the path-address-table / PMTU-discovery collaborator.
type Path interface {
	// PLConfirm reports whether the PMTU probe window [smallest,largest]
	// confirms the in-flight probe.
	PLConfirm(largest, smallest int64) bool
	// PLRecv reads back the probed MTU (0 if none), whether the probe
	// timer should be raised, and whether probing is complete.
	PLRecv() (mtu uint32, raise bool, complete bool)
	// PLSend requests the next probe size for packet number pn and
	// reports the MTU it validates, if any (0 otherwise).
	PLSend(pn int64) uint32
	AddrFree()
	SwapActive()
	SetSentCount(n int)
	// UDPBind reports whether this endpoint initiated (bound) the path,
	// i.e. whether a validated migration is locally driven.
	UDPBind() bool
	// MarkECNEcho records that an ECN-marked packet was acknowledged.
	MarkECNEcho()
	// ProbeTimeout is the current PMTU/path-validation probe timeout.
	// The kernel source reads this off the receive-side inqueue
	// (quic_inq_probe_timeout); since the receive path is out of scope
	// for this core, it is folded into Path, the collaborator already
	// responsible for PMTU/path state.
	ProbeTimeout() uint64
}

// TimerKind identifies which timer instance is being driven. The three loss
// timers are per-level; Path is the PMTU/path-validation timer.
type TimerKind int

const (
	TimerLossInitial TimerKind = TimerKind(LevelInitial)
	TimerLossHandshake TimerKind = TimerKind(LevelHandshake)
	TimerLossApplication TimerKind = TimerKind(LevelApplication)
	TimerPath TimerKind = TimerKind(levelCount)
)

// Timer is the timer module collaborator. Reduce implements the "armed time
// is min(current, new)" monotonic-lowering semantic explicitly -- a plain
// Reset is not a substitute.
type Timer interface {
	Start(kind TimerKind, timeout uint64)
	Reset(kind TimerKind, timeout uint64)
	Reduce(kind TimerKind, timeout uint64)
	Stop(kind TimerKind)
}

// EventKind tags the payload passed to Uplink.EventRecv.
type EventKind int

const (
	EventStreamUpdate EventKind = iota
	EventConnectionClose
	EventConnectionMigration
)

// StreamUpdate is the payload for EventStreamUpdate.
type StreamUpdate struct {
	ID      uint64
	State   SendState
	ErrCode uint64
}

// ConnectionCloseEvent is the payload for EventConnectionClose.
type ConnectionCloseEvent struct {
	ErrCode uint64
	Frame   FrameType
}

// Uplink delivers events to the application. EventRecv returns whether the
// application consumed (accepted) the event; a refusal must leave the
// triggering state transition unapplied -- the single most subtle contract
// in the whole core.
type Uplink interface {
	EventRecv(kind EventKind, payload interface{}) (consumed bool)
}

// MemoryAccountant charges and releases socket send-buffer memory as frames
// enter and leave the system, and sizes the send buffer ceiling itself.
type MemoryAccountant interface {
	Charge(n uint64)
	Release(n uint64)
	// SetLimit sizes the send-buffer ceiling, mirroring sk->sk_sndbuf in
	// quic_outq_set_param.
	SetLimit(n uint64)
}

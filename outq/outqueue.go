package outq

import (
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/sirupsen/logrus"
)

// PacketReorderingThreshold names the kernel's loss-marking heuristic
// `number + 6 > max_pn_acked`, where 6 is a fixed, non-configurable
// packet-reordering threshold. Naming it makes the heuristic testable
// without hard-coding a magic number at every call site.
const PacketReorderingThreshold = 6

// Collaborators bundles every external module this core depends on but does
// not own. All fields are required; NewOutQueue rejects a nil one.
type Collaborators struct {
	Packet PacketBuilder
	Cong   CongestionController
	PNMap  [levelCount]PNMap
	Crypto [levelCount]Crypto
	Path   Path
	Timer  Timer
	Uplink Uplink
	Mem    MemoryAccountant
}

func (c Collaborators) validate() error {
	if c.Packet == nil || c.Cong == nil || c.Path == nil || c.Timer == nil || c.Uplink == nil || c.Mem == nil {
		return ErrNilCollaborator
	}
	for l := 0; l < levelCount; l++ {
		if c.PNMap[l] == nil || c.Crypto[l] == nil {
			return wrapf(ErrNilCollaborator, "level %s", Level(l))
		}
	}
	return nil
}

// Config carries construction-time parameters that are not negotiated with
// the peer (those arrive later through SetParam).
type Config struct {
	// ConnectionID is used only to seed the logger with a hex-encoded
	// connection identifier.
	ConnectionID string
	// DataLevel is the encryption level at which fresh application data
	// (as opposed to control/retransmitted frames) is sent. Normally
	// LevelApplication; a connection still completing its handshake while
	// allowed to send 0-RTT-equivalent data could start lower.
	DataLevel Level
	Logger    *logrus.Logger
}

// OutQueue is the aggregate outbound-transmission state for one QUIC
// connection. Every exported method acquires mu for its duration -- the Go
// rendering of a per-socket exclusion lock -- except EncryptedTail, which
// only takes asyncMu and leaves mu to its worker. No method blocks on I/O.
type OutQueue struct {
	mu sync.Mutex

	streamList      *frameList
	controlList     *frameList
	datagramList    *frameList
	transmittedList *frameList

	dataInflight uint64
	inflight     uint64
	window       uint64

	bytes        uint64
	maxBytes     uint64
	lastMaxBytes uint64
	dataBlocked  bool

	rtxCount uint32

	dataLevel Level

	// connState mirrors the three handshake phases TransmitProbe and
	// TransmitAppClose gate on (quic_is_established / quic_is_establishing).
	// The full connection state machine is out of scope for this core; the
	// caller mirrors its phase in via SetConnState.
	connState connState

	// activeSendStream mirrors the kernel's quic_stream_send_active: the
	// stream currently favored for scheduling fresh application data, if
	// any. -1 means none.
	activeSendStream int64

	maxDatagramFrameSize  uint64
	maxUDPPayloadSize     uint64
	ackDelayExponent      uint64
	maxIdleTimeout        uint64
	maxAckDelay           uint64
	greaseQUICBit         bool
	disable1RTTEncryption bool

	closePhrase    string
	closeErrCode   uint64
	closeFrameType FrameType

	// dirty is a bounded re-entry flag standing in for literal recursive
	// control-pass re-entry from the flow-control gate: flowControlGateLocked
	// sets it when it emits a BLOCKED frame, and Transmit runs one extra
	// control pass at the end of a cycle if it's set.
	dirty bool

	collab Collaborators
	log    *logrus.Entry

	// asyncPending is the async crypto tail's single-flight guard, a
	// pending-task flag that prevents duplicate scheduling. asyncItems is
	// the FIFO of encrypted packets waiting for the worker, the Go
	// stand-in for the kernel's sk_write_queue.
	asyncPending atomic.Bool
	asyncMu      sync.Mutex
	asyncItems   []pendingEncrypted

	// streamTable lets purge-by-id and accounting helpers look streams up;
	// the core only ever holds weak (by id) references to streams.
	streamTable map[uint64]*StreamSend

	// startedAt anchors nowUs, the Go stand-in for the kernel's
	// jiffies_to_usecs(jiffies) free-running clock. The teacher's agents
	// read time.Now() directly with no injected clock abstraction
	// (rtt_agent.go, ack_agent.go); this follows the same texture.
	startedAt time.Time
}

// nowUs returns microseconds elapsed since the queue was constructed, the
// same units frame.TransmitTs and every loss-timer calculation use.
func (q *OutQueue) nowUs() uint64 {
	return uint64(time.Since(q.startedAt) / time.Microsecond)
}

// NewOutQueue constructs an OutQueue ready to accept enqueue calls. The
// congestion window starts at collab.Cong.Window().
func NewOutQueue(cfg Config, collab Collaborators) (*OutQueue, error) {
	if err := collab.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	q := &OutQueue{
		streamList:      newFrameList(),
		controlList:     newFrameList(),
		datagramList:    newFrameList(),
		transmittedList: newFrameList(),
		dataLevel:       cfg.DataLevel,
		collab:          collab,
		log:             logger.WithField("cid", cfg.ConnectionID),
		streamTable:      make(map[uint64]*StreamSend),
		activeSendStream: -1,
		startedAt:        time.Now(),
	}
	q.window = collab.Cong.Window()
	return q, nil
}

// connState is the minimal handshake-phase signal this core needs from the
// (out of scope) connection state machine.
type connState int

const (
	connIdle connState = iota
	connEstablishing
	connEstablished
)

// SetConnState records the connection's handshake phase, gating
// TransmitProbe and TransmitAppClose the way quic_is_established /
// quic_is_establishing do in output.c.
func (q *OutQueue) SetConnState(established, establishing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	switch {
	case established:
		q.connState = connEstablished
	case establishing:
		q.connState = connEstablishing
	default:
		q.connState = connIdle
	}
}

// Stream returns the send-state tracker for id, creating it in SEND_READY
// on first reference.
func (q *OutQueue) Stream(id uint64) *StreamSend {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.streamTable[id]
	if !ok {
		s = NewStreamSend(id)
		q.streamTable[id] = s
	}
	return s
}

// InflightStreamIDs returns the distinct set of stream IDs with at least one
// frame currently on transmittedList, a small observability helper built on
// top of the same queue walk TransmittedSACK and RetransmitMark already do.
func (q *OutQueue) InflightStreamIDs() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	set := mapset.NewThreadUnsafeSet[uint64]()
	for e := q.transmittedList.Front(); e != nil; e = e.Next() {
		if s := e.Value.Stream; s != nil {
			set.Add(s.ID)
		}
	}
	return set.ToSlice()
}

// Stats is a point-in-time snapshot useful for tests and observability.
type Stats struct {
	DataInflight    uint64
	Inflight        uint64
	Window          uint64
	Bytes           uint64
	MaxBytes        uint64
	DataBlocked     bool
	RtxCount        uint32
	StreamQueued    int
	ControlQueued   int
	DatagramQueued  int
	TransmittedSize int
}

func (q *OutQueue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		DataInflight:    q.dataInflight,
		Inflight:        q.inflight,
		Window:          q.window,
		Bytes:           q.bytes,
		MaxBytes:        q.maxBytes,
		DataBlocked:     q.dataBlocked,
		RtxCount:        q.rtxCount,
		StreamQueued:    q.streamList.Len(),
		ControlQueued:   q.controlList.Len(),
		DatagramQueued:  q.datagramList.Len(),
		TransmittedSize: q.transmittedList.Len(),
	}
}

// PeerTransportParams carries the peer's advertised transport parameters
// into SetParam.
type PeerTransportParams struct {
	MaxDatagramFrameSize  uint64
	MaxUDPPayloadSize     uint64
	AckDelayExponent      uint64
	MaxIdleTimeout        uint64
	MaxAckDelay           uint64
	GreaseQUICBit         bool
	Disable1RTTEncryption bool
	MaxData               uint64
}

// SetParam merges peer-advertised transport parameters, sizes the send
// buffer at 2x max_data, reconciles idle timeout to the smaller of the two
// sides, and disables the AEAD tag length when both sides opted out of
// 1-RTT encryption. Grounded on quic_outq_set_param in output.c.
//
// localIdleTimeout and localDisable1RTT are read from the inbound
// queue's side of the connection, the "local value" set_param reconciles
// against. They're passed in explicitly since the inbound queue itself is
// out of scope for this core.
func (q *OutQueue) SetParam(p PeerTransportParams, localIdleTimeout uint64, localDisable1RTT bool) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.maxDatagramFrameSize = p.MaxDatagramFrameSize
	q.maxUDPPayloadSize = p.MaxUDPPayloadSize
	q.ackDelayExponent = p.AckDelayExponent
	q.maxIdleTimeout = p.MaxIdleTimeout
	q.maxAckDelay = p.MaxAckDelay
	q.greaseQUICBit = p.GreaseQUICBit
	q.disable1RTTEncryption = p.Disable1RTTEncryption

	q.maxBytes = p.MaxData
	sendBuf := 2 * p.MaxData
	q.collab.Mem.SetLimit(sendBuf)

	newIdle := q.maxIdleTimeout
	if newIdle == 0 || (localIdleTimeout != 0 && localIdleTimeout < newIdle) {
		newIdle = localIdleTimeout
	}

	if localDisable1RTT && q.disable1RTTEncryption {
		q.collab.Packet.SetTagLen(0)
	}

	q.log.WithFields(logrus.Fields{
		"max_data": p.MaxData,
		"sndbuf":   sendBuf,
		"idle":     newIdle,
	}).Debug("merged peer transport parameters")

	return newIdle
}

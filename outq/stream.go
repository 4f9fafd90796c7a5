package outq

// SendState is the per-stream send-side state machine driven by the
// enqueue router (§4.1) and the ACK processor (§4.4).
type SendState int

const (
	SendReady SendState = iota
	SendSend
	SendSent
	SendRecvd
	SendResetSent
	SendResetRecvd
)

func (s SendState) String() string {
	switch s {
	case SendReady:
		return "READY"
	case SendSend:
		return "SEND"
	case SendSent:
		return "SENT"
	case SendRecvd:
		return "RECVD"
	case SendResetSent:
		return "RESET_SENT"
	case SendResetRecvd:
		return "RESET_RECVD"
	default:
		return "UNKNOWN"
	}
}

// StreamSend is the send-side slice of stream state this core needs. The
// receive path, stream ingress and the rest of a real Stream object are out
// of scope; frames only ever hold a weak reference to this struct.
type StreamSend struct {
	ID    uint64
	State SendState

	Frags int    // number of bytes-bearing frames for this stream handed to the packet builder and not yet acked or declared lost
	Bytes uint64 // bytes handed to the packet builder so far, less any declared lost; counted against MaxBytes

	MaxBytes     uint64 // peer-advertised per-stream flow control limit
	LastMaxBytes uint64 // MaxBytes value at which a STREAM_DATA_BLOCKED was last emitted
	DataBlocked  bool   // a STREAM_DATA_BLOCKED for this stream is outstanding

	ErrCode uint64 // application error code set before a RESET_STREAM is queued
}

// NewStreamSend returns a stream send-state tracker in SEND_READY with no
// flow-control limit yet known.
func NewStreamSend(id uint64) *StreamSend {
	return &StreamSend{ID: id, State: SendReady}
}

package outq

// This file queues the transport- or
// application-level CONNECTION_CLOSE frame once the connection decides to
// close. Grounded on quic_outq_transmit_close / quic_outq_transmit_app_close
// in output.c.

// TransmitClose reports a fatal error to the application and, if accepted,
// records the close reason and queues a CONNECTION_CLOSE at level. A zero
// errCode is a no-op (nothing to report). triggerType is the frame type
// that provoked the close, carried to the application as context, not the
// type of the frame actually queued here.
func (q *OutQueue) TransmitClose(triggerType FrameType, errCode uint64, level Level) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transmitCloseLocked(triggerType, errCode, level)
}

func (q *OutQueue) transmitCloseLocked(triggerType FrameType, errCode uint64, level Level) {
	if errCode == 0 {
		return
	}

	event := ConnectionCloseEvent{ErrCode: errCode, Frame: triggerType}
	if !q.collab.Uplink.EventRecv(EventConnectionClose, event) {
		return
	}

	q.closeErrCode = errCode
	q.closeFrameType = triggerType

	frame := newControlFrame(FrameTypeConnectionClose, level)
	frame.ErrCode = errCode
	q.ctrlTailLocked(frame)
	q.transmitLocked()

	// The connection's own CLOSED transition (quic_set_state) is the
	// state machine's job, out of scope here; the caller drives it.
}

// TransmitAppClose queues the close frame appropriate to how far the
// handshake has progressed: CONNECTION_CLOSE_APP at Application level once
// established, plain CONNECTION_CLOSE at Initial level while still
// establishing (recording an application-error close reason since no prior
// TransmitClose will have), and nothing at all before a handshake has even
// started.
func (q *OutQueue) TransmitAppClose(appErrorCode uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transmitAppCloseLocked(appErrorCode)
}

func (q *OutQueue) transmitAppCloseLocked(appErrorCode uint64) {
	var level Level
	frameType := FrameTypeConnectionClose

	switch q.connState {
	case connEstablished:
		level = LevelApplication
		frameType = FrameTypeConnectionCloseApp
	case connEstablishing:
		level = LevelInitial
		q.closeErrCode = appErrorCode
	default:
		return
	}

	frame := newControlFrame(frameType, level)
	frame.ErrCode = appErrorCode
	q.ctrlTailLocked(frame)
	q.transmitLocked()
}

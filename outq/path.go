package outq

// This file implements PMTU probing and path-migration
// validation. Grounded on quic_outq_transmit_probe and
// quic_outq_validate_path in output.c.

// TransmitProbe queues and sends a bare PING at Application level to carry
// an in-flight PMTU probe, and arms the path timer for the probe's timeout.
// A no-op before the handshake completes.
func (q *OutQueue) TransmitProbe() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transmitProbeLocked()
}

func (q *OutQueue) transmitProbeLocked() {
	if q.connState != connEstablished {
		return
	}

	level := LevelApplication
	number := q.collab.PNMap[level].NextNumber()

	frame := newControlFrame(FrameTypePing, level)
	q.ctrlTailLocked(frame)
	q.transmitLocked()

	if mtu := q.collab.Path.PLSend(number); mtu != 0 {
		taglen := q.collab.Packet.TagLen()
		q.collab.Packet.MSSUpdate(mtu + uint32(taglen))
	}

	q.collab.Timer.Reset(TimerPath, q.collab.Path.ProbeTimeout())
}

// ValidatePath commits a path migration once the peer's response confirms
// the alternate 5-tuple: it flips the active path (for a locally-initiated
// migration), clears the validated alt-path bit from every still-queued and
// in-flight frame (including the frame that triggered validation), resets
// the path's sent counter and ECN probe state, and re-arms the path timer.
// A refused QUIC_EVENT_CONNECTION_MIGRATION leaves everything untouched.
func (q *OutQueue) ValidatePath(frame *Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.validatePathLocked(frame)
}

func (q *OutQueue) validatePathLocked(frame *Frame) {
	path := q.collab.Path
	local := path.UDPBind()
	alt := PathAltDst

	if !q.collab.Uplink.EventRecv(EventConnectionMigration, local) {
		return
	}

	if local {
		path.SwapActive()
		alt = PathAltSrc
	}

	path.AddrFree()
	path.SetSentCount(0)

	q.collab.Timer.Stop(TimerPath)
	q.collab.Timer.Reset(TimerPath, path.ProbeTimeout())

	for e := q.controlList.Front(); e != nil; e = e.Next() {
		e.Value.PathAlt &^= alt
	}
	for e := q.transmittedList.Front(); e != nil; e = e.Next() {
		e.Value.PathAlt &^= alt
	}
	if frame != nil {
		frame.PathAlt &^= alt
	}

	q.collab.Packet.ResetECNProbeCount()
}

package outq

// This file runs the loss-detection sweep over
// transmitted_list plus its loss-timer bookkeeping. Grounded on
// quic_outq_retransmit_{mark,one,list}, quic_outq_update_loss_timer and
// quic_outq_transmit_one in output.c.

func isDatagramFrame(t FrameType) bool {
	return t == FrameTypeDatagram
}

// RetransmitMark walks transmitted_list at level, declaring anything older
// than the loss window lost: datagram frames are dropped outright (QUIC
// datagrams are never retransmitted), everything else is spliced back onto
// its originating queue for resending. immediate forces every inflight
// frame at level to be marked regardless of how recently it was sent;
// TransmitOne passes false. Returns the count of non-datagram frames marked.
func (q *OutQueue) RetransmitMark(level Level, immediate bool) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.retransmitMarkLocked(level, immediate)
}

func (q *OutQueue) retransmitMarkLocked(level Level, immediate bool) int {
	pnmap := q.collab.PNMap[level]
	cong := q.collab.Cong

	pnmap.SetLossTs(0)
	last := pnmap.NextNumber() - 1
	now := q.nowUs()

	var count int
	var freedBytes uint64

	e := q.transmittedList.Front()
	for e != nil {
		frame := e.Value
		if frame.Level != level {
			e = e.Next()
			continue
		}

		transmitTs := frame.TransmitTs
		number := frame.Number
		rto := cong.RTO()
		if !immediate && transmitTs+rto > now && number+PacketReorderingThreshold > pnmap.MaxPnAcked() {
			pnmap.SetLossTs(transmitTs + rto)
			break
		}

		pnmap.DecInflight(frame.Len)
		q.dataInflight -= frame.Bytes
		q.inflight -= frame.Len

		next := e.Next()
		q.transmittedList.Remove(e)

		if isDatagramFrame(frame.Type) {
			freedBytes += frame.Bytes
		} else {
			q.retransmitOneLocked(frame)
			count++
		}

		if frame.Bytes > 0 {
			cong.CwndUpdateAfterTimeout(number, transmitTs, last)
			q.window = cong.Window()
		}

		e = next
	}

	q.collab.Mem.Release(freedBytes)
	q.updateLossTimerLocked(level)
	return count
}

// retransmitOneLocked splices a declared-lost frame back onto the queue it
// originally came from (stream_list for a bytes-bearing frame, control_list
// otherwise), finding the position a level/offset-ordered scan would have
// put it at had it been freshly queued. Grounded on quic_outq_retransmit_one.
func (q *OutQueue) retransmitOneLocked(frame *Frame) {
	list := q.controlList
	if frame.Bytes > 0 {
		list = q.streamList
		s := frame.Stream
		s.Frags--
		s.Bytes -= frame.Bytes
		q.bytes -= frame.Bytes
	}

	var insertBefore *frameElement
	for e := list.Front(); e != nil; e = e.Next() {
		pos := e.Value
		if frame.Level > pos.Level {
			continue
		}
		if frame.Level < pos.Level {
			insertBefore = e
			break
		}
		if pos.Offset == 0 || frame.Offset < pos.Offset {
			insertBefore = e
			break
		}
	}

	if insertBefore != nil {
		list.InsertBefore(frame, insertBefore)
	} else {
		list.PushBack(frame)
	}
}

// RetransmitList tears down an arbitrary frame list -- used when a whole
// queue must be redriven at once rather than swept frame-by-frame -- moving
// every non-datagram frame back through retransmitOneLocked and freeing the
// rest. Mirrors the standalone quic_outq_retransmit_list entry point in
// output.c; it is kept separate from the loss sweep because callers outside
// it (e.g. a future path-abandonment routine) need it as a primitive of its
// own.
func (q *OutQueue) RetransmitList(list *frameList) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.retransmitListLocked(list)
}

func (q *OutQueue) retransmitListLocked(list *frameList) {
	var freedBytes uint64
	e := list.Front()
	for e != nil {
		frame := e.Value
		next := e.Next()
		list.Remove(e)
		q.dataInflight -= frame.Bytes

		if isDatagramFrame(frame.Type) {
			freedBytes += frame.Bytes
		} else {
			q.retransmitOneLocked(frame)
		}
		e = next
	}
	q.collab.Mem.Release(freedBytes)
}

// UpdateLossTimer re-arms (or stops) level's loss timer from the pnmap's
// recorded loss deadline, or a backoff of Cong.Duration() x (1 + rtxCount)
// past the last send if no loss deadline is set and frames are still
// inflight. Grounded on quic_outq_update_loss_timer.
func (q *OutQueue) UpdateLossTimer(level Level) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.updateLossTimerLocked(level)
}

func (q *OutQueue) updateLossTimerLocked(level Level) {
	pnmap := q.collab.PNMap[level]
	now := q.nowUs()

	timeout := pnmap.LossTs()
	if timeout == 0 {
		if pnmap.Inflight() == 0 {
			q.collab.Timer.Stop(TimerKind(level))
			return
		}
		timeout = q.collab.Cong.Duration()
		timeout *= uint64(1 + q.rtxCount)
		timeout += pnmap.LastSentTs()
	}

	if timeout < now {
		timeout = now + 1
	}
	q.collab.Timer.Reduce(TimerKind(level), timeout-now)
}

// TransmitOne drives a single loss-timer-driven retransmission cycle at
// level: it first tries a plain transmit restricted to level, then runs the
// non-immediate loss sweep and retries if that marked any frame lost, and
// only if that still sends
// nothing does it fall back to a bare PING to keep the path alive. Grounded
// on quic_outq_transmit_one.
func (q *OutQueue) TransmitOne(level Level) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.transmitOneLocked(level)
}

func (q *OutQueue) transmitOneLocked(level Level) {
	q.collab.Packet.SetFilter(level, true)
	if !q.transmitLocked() {
		sent := false
		if q.retransmitMarkLocked(level, false) > 0 {
			q.collab.Packet.SetFilter(level, true)
			sent = q.transmitLocked()
		}
		if !sent {
			// A bare keepalive/probe PING; its wire padding target is the
			// packet builder's concern (it pads to the path's minimum UDP
			// payload the same way the MTU prober does), not something
			// this core's flow control needs to know about.
			frame := newControlFrame(FrameTypePing, level)
			q.ctrlTailLocked(frame)
			q.transmitLocked()
		}
	}

	q.rtxCount++
	q.updateLossTimerLocked(level)
}

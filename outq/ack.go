package outq

// TransmittedSACK retires every frame in
// [smallest, largest] at level from transmitted_list, folds RTT and PMTU
// feedback from the packet number the peer's largest-acknowledged field
// names, and reports the newly acknowledged byte count to the congestion
// controller. Grounded on quic_outq_transmitted_sack in output.c.
func (q *OutQueue) TransmittedSACK(level Level, smallest, largest, ackLargest int64, ackDelay uint64) uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.transmittedSACKLocked(level, smallest, largest, ackLargest, ackDelay)
}

func (q *OutQueue) transmittedSACKLocked(level Level, smallest, largest, ackLargest int64, ackDelay uint64) uint64 {
	path := q.collab.Path
	if path.PLConfirm(largest, smallest) {
		mtu, raise, complete := path.PLRecv()
		if mtu != 0 {
			q.collab.Packet.MSSUpdate(mtu + uint32(q.collab.Packet.TagLen()))
		}
		if !complete {
			q.transmitProbeLocked()
		}
		if raise {
			q.collab.Timer.Reset(TimerPath, path.ProbeTimeout()*30)
		}
	}

	pnmap := q.collab.PNMap[level]
	cong := q.collab.Cong

	var (
		ackedBytes      uint64
		haveFirst       bool
		firstNumber     int64
		firstTransmitTs uint64
	)

	e := q.transmittedList.Back()
	for e != nil {
		frame := e.Value
		prev := e.Prev()

		if frame.Level != level {
			e = prev
			continue
		}
		if frame.Number > largest {
			e = prev
			continue
		}
		if frame.Number < smallest {
			break
		}

		if frame.Number == ackLargest {
			cong.RTTUpdate(frame.TransmitTs, ackDelay)
			rto := cong.RTO()
			pnmap.SetMaxRecordTs(rto * 2)
			q.collab.Crypto[level].SetKeyUpdateTs(rto * 2)
		}

		if !haveFirst {
			haveFirst = true
			firstNumber = frame.Number
			firstTransmitTs = frame.TransmitTs
		}

		if frame.ECN {
			path.MarkECNEcho()
		}

		stream := frame.Stream
		refused := false

		switch {
		case frame.Bytes > 0 && stream != nil:
			stream.Frags--
			if stream.Frags == 0 && stream.State == SendSent {
				upd := StreamUpdate{ID: stream.ID, State: SendRecvd}
				if !q.collab.Uplink.EventRecv(EventStreamUpdate, upd) {
					stream.Frags++
					refused = true
				} else {
					stream.State = SendRecvd
				}
			}
		case frame.Type == FrameTypeResetStream && stream != nil:
			upd := StreamUpdate{ID: stream.ID, State: SendResetRecvd, ErrCode: stream.ErrCode}
			if !q.collab.Uplink.EventRecv(EventStreamUpdate, upd) {
				refused = true
			} else {
				stream.State = SendResetRecvd
			}
		case frame.Type == FrameTypeStreamDataBlocked && stream != nil:
			stream.DataBlocked = false
		case frame.Type == FrameTypeDataBlocked:
			q.dataBlocked = false
		}

		if refused {
			// The application hasn't consumed the event yet: leave the
			// frame linked and its accounting untouched until it does.
			e = prev
			continue
		}

		if frame.Number > pnmap.MaxPnAcked() {
			pnmap.SetMaxPnAcked(frame.Number)
		}
		ackedBytes += frame.Bytes

		pnmap.DecInflight(frame.Len)
		q.dataInflight -= frame.Bytes
		q.inflight -= frame.Len

		q.transmittedList.Remove(e)
		e = prev
	}

	q.rtxCount = 0
	if ackedBytes > 0 {
		cong.CwndUpdateAfterSACK(firstNumber, firstTransmitTs, ackedBytes, q.dataInflight)
		q.window = cong.Window()
	}
	return ackedBytes
}

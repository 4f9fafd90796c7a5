package outq

// This file discards a stream's or a whole
// queue's frames outright, releasing their send-buffer memory without
// retransmitting anything. Grounded on quic_outq_stream_purge /
// quic_outq_list_purge in output.c.

// StreamPurge drops every frame belonging to stream from both
// transmitted_list and stream_list -- used when a stream is reset or the
// connection is tearing down and its data no longer needs to be sent or
// retransmitted.
func (q *OutQueue) StreamPurge(stream *StreamSend) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.streamPurgeLocked(stream)
}

func (q *OutQueue) streamPurgeLocked(stream *StreamSend) {
	var freedBytes uint64

	e := q.transmittedList.Front()
	for e != nil {
		frame := e.Value
		next := e.Next()
		if frame.Stream == stream {
			pnmap := q.collab.PNMap[frame.Level]
			pnmap.DecInflight(frame.Len)
			q.dataInflight -= frame.Bytes
			q.inflight -= frame.Len
			q.transmittedList.Remove(e)
			freedBytes += frame.Bytes
		}
		e = next
	}

	e = q.streamList.Front()
	for e != nil {
		frame := e.Value
		next := e.Next()
		if frame.Stream == stream {
			q.streamList.Remove(e)
			freedBytes += frame.Bytes
		}
		e = next
	}

	q.collab.Mem.Release(freedBytes)
}

// ListPurge empties list outright, freeing every frame's accounted bytes
// without touching pnmap/inflight counters -- the generic teardown helper
// quic_outq_free uses on all four queues when the connection is closed.
func (q *OutQueue) ListPurge(list *frameList) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listPurgeLocked(list)
}

func (q *OutQueue) listPurgeLocked(list *frameList) {
	var freedBytes uint64
	e := list.Front()
	for e != nil {
		frame := e.Value
		next := e.Next()
		list.Remove(e)
		freedBytes += frame.Bytes
		e = next
	}
	q.collab.Mem.Release(freedBytes)
}

// Close tears down every queue, releasing all accounted send-buffer memory.
// Grounded on quic_outq_free.
func (q *OutQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.listPurgeLocked(q.transmittedList)
	q.listPurgeLocked(q.datagramList)
	q.listPurgeLocked(q.controlList)
	q.listPurgeLocked(q.streamList)
}

package outq

// This file hands an already-encrypted packet
// back to the send path from a background crypto worker, off the core's
// main lock for as long as possible. Grounded on quic_outq_encrypted_tail /
// quic_outq_encrypted_work in output.c, which defer the same hand-off to a
// workqueue item guarded by the socket lock instead of a direct call.
//
// The kernel leans on schedule_work's own dedup (a second schedule_work
// while one is already pending is a no-op); Go has no equivalent, so
// asyncPending plays that role explicitly as a single-flight guard.

// pendingEncrypted is one already-encrypted packet waiting for the async
// worker to hand it to the packet builder.
type pendingEncrypted struct {
	Level   Level
	PathAlt PathAlt
	Payload interface{}
}

// EncryptedTail queues payload for transmission and ensures exactly one
// worker goroutine is draining the queue. Safe to call from any goroutine;
// it never blocks on q.mu.
func (q *OutQueue) EncryptedTail(level Level, alt PathAlt, payload interface{}) {
	q.asyncMu.Lock()
	q.asyncItems = append(q.asyncItems, pendingEncrypted{Level: level, PathAlt: alt, Payload: payload})
	q.asyncMu.Unlock()

	if q.asyncPending.CompareAndSwap(false, true) {
		go q.drainEncrypted()
	}
}

// drainEncrypted processes queued packets until the queue is empty, then
// flushes the builder once per batch -- the same shape as
// quic_outq_encrypted_work's dequeue loop followed by a single trailing
// quic_packet_flush. It re-checks for a race-refilled queue before
// releasing the single-flight flag, mirroring schedule_work's dedup.
func (q *OutQueue) drainEncrypted() {
	for {
		processed := false
		for {
			q.asyncMu.Lock()
			if len(q.asyncItems) == 0 {
				q.asyncMu.Unlock()
				break
			}
			item := q.asyncItems[0]
			q.asyncItems = q.asyncItems[1:]
			q.asyncMu.Unlock()

			q.mu.Lock()
			q.collab.Packet.Config(item.Level, item.PathAlt)
			q.collab.Packet.Xmit(item.Payload)
			q.mu.Unlock()
			processed = true
		}

		if processed {
			q.mu.Lock()
			q.collab.Packet.Flush()
			q.mu.Unlock()
		}

		q.asyncPending.Store(false)

		q.asyncMu.Lock()
		empty := len(q.asyncItems) == 0
		q.asyncMu.Unlock()
		if empty || !q.asyncPending.CompareAndSwap(false, true) {
			return
		}
	}
}

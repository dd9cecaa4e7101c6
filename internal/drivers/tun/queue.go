package tun

import "sync"

// maxQueueLen is the bounded TUN TX queue depth (spec.md §4.F): on
// overflow the oldest packet is dropped, never the newest.
const maxQueueLen = 128

// Queue is the producer/consumer buffer between the stack's link-output
// callback (the producer, via Enqueue) and a client's blocking/cancellable
// read or select (the consumer, via Dequeue/Len). Grounded on
// internal/netio/overlay.go's OverlayConn receive-loop shape, generalized
// here to an in-process bounded ring instead of a socket read.
type Queue struct {
	mu   sync.Mutex
	data chan struct{} // broadcast-on-enqueue notification, closed+replaced each signal
	sel  chan struct{} // select-wake notification, same discipline as data

	packets     [][]byte
	readBlocked bool
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		data: make(chan struct{}),
		sel:  make(chan struct{}),
	}
}

// Enqueue appends a packet copy, dropping the oldest element first if the
// queue is already at capacity (spec.md §4.F TX). Returns true if an
// element was dropped to make room.
func (q *Queue) Enqueue(pkt []byte) (dropped bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.packets) >= maxQueueLen {
		q.packets = q.packets[1:]
		dropped = true
	}
	q.packets = append(q.packets, pkt)
	q.readBlocked = false
	q.broadcastLocked()
	return dropped
}

// broadcastLocked wakes every waiter on both condvar-equivalents. Must be
// called with mu held.
func (q *Queue) broadcastLocked() {
	close(q.data)
	q.data = make(chan struct{})
	close(q.sel)
	q.sel = make(chan struct{})
}

// Dequeue blocks (unless nonBlocking) until a packet is available or
// cancel is closed, then removes and returns the oldest packet. The
// queue mutex is not held while it waits.
func (q *Queue) Dequeue(nonBlocking bool, cancel <-chan struct{}) ([]byte, error) {
	for {
		q.mu.Lock()
		if len(q.packets) > 0 {
			pkt := q.packets[0]
			q.packets = q.packets[1:]
			q.mu.Unlock()
			return pkt, nil
		}
		if nonBlocking {
			q.mu.Unlock()
			return nil, ErrWouldBlock
		}
		q.readBlocked = true
		wait := q.data
		q.mu.Unlock()

		select {
		case <-wait:
			continue
		case <-cancel:
			return nil, ErrInterrupted
		}
	}
}

// Len reports the current packet count.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.packets)
}

// Readable reports whether a client read would proceed without blocking.
func (q *Queue) Readable() bool {
	return q.Len() > 0
}

// Wait blocks until data becomes available, a select-wake signal fires, or
// cancel fires, used by Select's read-bit evaluation.
func (q *Queue) Wait(cancel <-chan struct{}, timeout <-chan struct{}) {
	q.mu.Lock()
	wait := q.sel
	q.mu.Unlock()

	select {
	case <-wait:
	case <-cancel:
	case <-timeout:
	}
}

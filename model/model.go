package model

import "sync"

// Kind discriminates items travelling through a peer's outbound queue.
type Kind int

const (
	KindText Kind = iota
	KindClose
)

// Message is one pending outbound item: either a text payload to relay
// or an instruction for the writer to perform the close handshake.
type Message struct {
	Kind Kind
	Text string
}

// Queue is the unbounded FIFO between a session's producers (other peers'
// reader duties) and its single consumer (its own writer duty).
//
// Unlike a channel it never blocks producers and tolerates pushes after
// close: a broadcaster that raced with session teardown simply loses the
// message, which is fine since the recipient is gone anyway.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []Message
	closed bool
}

func NewQueue() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends msg to the queue. It is a no-op once the queue is closed.
func (q *Queue) Push(msg Message) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, msg)
	q.cond.Signal()
}

// Pop blocks until an item is available or the queue is closed and drained.
// The second return value is false only in the latter case.
func (q *Queue) Pop() (Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return Message{}, false
	}
	msg := q.items[0]
	q.items = q.items[1:]
	return msg, true
}

// Close marks the queue closed and wakes the consumer. Safe to call twice.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.cond.Broadcast()
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

package camera

import (
	"sync"
	"time"
)

// ExchangeQueue is the thread-safe FIFO pair that moves buffers between a
// capture engine and its consumer. The input side holds buffers available
// for capture; the output side holds completed (or reclaimed) buffers ready
// for the consumer. Consumers push buffers back to the input side once done
// with the frame data.
type ExchangeQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	input  []*Buffer
	output []*Buffer
}

// NewExchangeQueue returns an empty queue.
func NewExchangeQueue() *ExchangeQueue {
	q := &ExchangeQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// PushInput makes a buffer available for capture.
func (q *ExchangeQueue) PushInput(b *Buffer) {
	q.mu.Lock()
	q.input = append(q.input, b)
	q.mu.Unlock()
}

// TryPopInput takes the oldest available-for-capture buffer, or nil when
// none is queued.
func (q *ExchangeQueue) TryPopInput() *Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.input) == 0 {
		return nil
	}
	b := q.input[0]
	q.input = q.input[1:]
	return b
}

// PushOutput delivers a buffer to the consumer side and wakes any blocked
// PopOutput.
func (q *ExchangeQueue) PushOutput(b *Buffer) {
	q.mu.Lock()
	q.output = append(q.output, b)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// TryPopOutput takes the oldest delivered buffer, or nil when none is
// queued.
func (q *ExchangeQueue) TryPopOutput() *Buffer {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.popOutputLocked()
}

// PopOutput blocks until a delivered buffer is available or the timeout
// elapses. A non-positive timeout makes it non-blocking.
func (q *ExchangeQueue) PopOutput(timeout time.Duration) *Buffer {
	deadline := time.Now().Add(timeout)

	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.output) == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		timer := time.AfterFunc(remaining, q.cond.Broadcast)
		q.cond.Wait()
		timer.Stop()
	}
	return q.popOutputLocked()
}

func (q *ExchangeQueue) popOutputLocked() *Buffer {
	if len(q.output) == 0 {
		return nil
	}
	b := q.output[0]
	q.output = q.output[1:]
	return b
}

// Counts reports the number of buffers on each side.
func (q *ExchangeQueue) Counts() (input, output int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.input), len(q.output)
}

// File: netio/writer.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Writer is grounded on the teacher's pool.BufferBatch (a plain queue of
// buffers accumulated for batched I/O), generalized into a two-lane
// back-pressure queue and backed by github.com/eapache/queue, which the
// teacher declares in go.mod but never wires into any component.
package netio

import (
	"errors"
	"net"
	"sync"

	"github.com/eapache/queue"
)

var ErrWriterClosed = errors.New("netio: writer closed")

// BufferState summarizes how full the pending-write queue is.
type BufferState int

const (
	Empty BufferState = iota
	Pending
	Overflowed
)

// ResultKind tags the outcome of a Send/SendPriority call.
type ResultKind int

const (
	Sent ResultKind = iota
	Buffered
	Closed
)

// SendResult reports what happened to one Send/SendPriority call.
type SendResult struct {
	Kind          ResultKind
	BufferedBytes int // meaningful only when Kind == Buffered
}

// RawWriteFunc performs one non-blocking write attempt, returning the number
// of bytes actually accepted by the socket.
type RawWriteFunc func(b []byte) (int, error)

// ArmWrite is called with want=true when the writer has bytes pending and
// needs an EventWrite readiness notification, and want=false once it has
// fully drained and no longer needs one.
type ArmWrite func(want bool) error

// writerQueue is a FIFO of byte chunks with head-of-line partial-consume
// tracking, so a short write never needs to push a chunk back onto the
// front of the underlying queue.
type writerQueue struct {
	q          *queue.Queue
	headOffset int
}

func newWriterQueue() *writerQueue {
	return &writerQueue{q: queue.New()}
}

func (wq *writerQueue) push(b []byte) {
	wq.q.Add(b)
}

func (wq *writerQueue) length() int {
	return wq.q.Length()
}

func (wq *writerQueue) front() []byte {
	chunk := wq.q.Peek().([]byte)
	return chunk[wq.headOffset:]
}

// advance records that n bytes of the front chunk were written,
// dequeuing it entirely once consumed.
func (wq *writerQueue) advance(n int) {
	wq.headOffset += n
	if wq.headOffset >= len(wq.q.Peek().([]byte)) {
		wq.q.Remove()
		wq.headOffset = 0
	}
}

// Writer buffers outbound bytes for one connection.
type Writer struct {
	mu sync.Mutex

	rawWrite RawWriteFunc
	arm      ArmWrite

	data     *writerQueue
	priority *writerQueue

	bufferedBytes int
	highWaterMark int
	armed         bool
	closed        bool
	draining      bool
}

// NewWriter builds a Writer. highWaterMark <= 0 defaults to 1 MiB.
func NewWriter(rawWrite RawWriteFunc, arm ArmWrite, highWaterMark int) *Writer {
	if highWaterMark <= 0 {
		highWaterMark = 1 << 20
	}
	return &Writer{
		rawWrite:      rawWrite,
		arm:           arm,
		data:          newWriterQueue(),
		priority:      newWriterQueue(),
		highWaterMark: highWaterMark,
	}
}

// Send queues a data frame's bytes, writing immediately when the queue is
// otherwise empty.
func (w *Writer) Send(data []byte) (SendResult, error) {
	return w.enqueue(data, false)
}

// SendPriority queues a control-frame reply ahead of pending data frames.
// Permitted even after BeginClose, since the close handshake itself must
// still be able to flush.
func (w *Writer) SendPriority(data []byte) (SendResult, error) {
	return w.enqueue(data, true)
}

// BeginClose marks the writer as draining: further Send calls are
// rejected, but already-buffered bytes and SendPriority calls still
// flush normally so the close handshake can complete.
func (w *Writer) BeginClose() {
	w.mu.Lock()
	w.draining = true
	w.mu.Unlock()
}

func (w *Writer) enqueue(data []byte, priority bool) (SendResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return SendResult{Kind: Closed}, ErrWriterClosed
	}
	if w.draining && !priority {
		return SendResult{Kind: Closed}, ErrWriterClosed
	}

	if w.data.length() == 0 && w.priority.length() == 0 {
		n, err := w.rawWrite(data)
		if err != nil && !isWouldBlock(err) {
			w.closed = true
			return SendResult{Kind: Closed}, err
		}
		if n == len(data) {
			return SendResult{Kind: Sent}, nil
		}
		data = data[n:]
	}

	wq := w.data
	if priority {
		wq = w.priority
	}
	wq.push(data)
	w.bufferedBytes += len(data)

	if w.bufferedBytes >= w.highWaterMark {
		// Overflowed is terminal: no further Send/SendPriority call
		// ever succeeds again, and the caller is expected to tear the
		// connection down on seeing Kind == Closed.
		w.closed = true
		return SendResult{Kind: Closed}, ErrWriterClosed
	}

	if !w.armed {
		if err := w.arm(true); err != nil {
			return SendResult{Kind: Closed}, err
		}
		w.armed = true
	}
	return SendResult{Kind: Buffered, BufferedBytes: w.bufferedBytes}, nil
}

// OnWritable drains as much of the pending queues as the socket currently
// accepts. Call this from the fiber's handler when EventWrite fires.
func (w *Writer) OnWritable() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		wq := w.priority
		if wq.length() == 0 {
			wq = w.data
		}
		if wq.length() == 0 {
			break
		}

		chunk := wq.front()
		n, err := w.rawWrite(chunk)
		if n > 0 {
			w.bufferedBytes -= n
			wq.advance(n)
		}
		if err != nil {
			if isWouldBlock(err) {
				break
			}
			w.closed = true
			return err
		}
		if n < len(chunk) {
			break
		}
	}

	if w.data.length() == 0 && w.priority.length() == 0 && w.armed {
		if err := w.arm(false); err != nil {
			return err
		}
		w.armed = false
	}
	return nil
}

// State reports how full the pending-write buffer is.
func (w *Writer) State() BufferState {
	w.mu.Lock()
	defer w.mu.Unlock()
	switch {
	case w.bufferedBytes == 0:
		return Empty
	case w.bufferedBytes >= w.highWaterMark:
		return Overflowed
	default:
		return Pending
	}
}

// Close marks the writer permanently closed; further Send/SendPriority
// calls fail with ErrWriterClosed.
func (w *Writer) Close() {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
}

// IsWouldBlock reports whether err is the "try again" signal from a
// non-blocking raw read/write syscall, exported for callers (wsclient,
// acceptor) that drive their own RawRead/RawWrite loop instead of going
// through a Writer.
func IsWouldBlock(err error) bool {
	return isWouldBlock(err)
}

// isWouldBlock reports whether err represents a non-blocking socket
// saying "try again later" rather than a genuine I/O failure. The
// errno comparison is platform-specific (see wouldblock_unix.go /
// wouldblock_windows.go); net.Error.Timeout() covers net.Conn-based
// writers that never reach the raw errno path.
func isWouldBlock(err error) bool {
	if err == nil {
		return false
	}
	if isWouldBlockErrno(err) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}

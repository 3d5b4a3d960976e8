// Package tcp implements the non-blocking TCP endpoint of spec §4.3
// (C3): per-connection RX/TX byte buffers with a "bytes available"
// callback carrying the batch's monotonic receive timestamp, and a
// server wrapping a listener plus the accepted-connection set, driven by
// a level-triggered readiness mechanism — epoll on Linux, kqueue on
// Darwin.
//
// Grounded on codewanderer42820/evm_triarb's main_linux.go/main_darwin.go
// for the epoll-create/ctl/wait and kqueue-create/register/wait shapes
// (there driving a single outbound WebSocket read loop; here driving a
// server's many accepted connections), generalized using
// golang.org/x/sys/unix rather than raw syscall, which also supplies the
// non-blocking setup (SetNonblock) applied to every socket. SO_REUSEADDR
// on the listener and TCP_NODELAY on accepted connections are the net
// package's defaults; this package sets no socket options itself.
package tcp

import (
	"exchange-core/clock"
)

const (
	rxBufferSize = 64 * 1024
	txBufferSize = 64 * 1024
)

// ReceiveCallback is invoked once per readiness-driven receive that
// yielded at least one byte, carrying the socket that received and the
// monotonic-clock timestamp of the batch.
type ReceiveCallback func(sock *Socket, rxTimeNanos clock.Nanos)

// Socket is a single non-blocking TCP connection: an RX buffer fed by
// the readiness poller, a TX buffer drained on flush, and fixed-size
// compaction semantics matching §4.3.
type Socket struct {
	fd int

	rx         [rxBufferSize]byte
	rxValidEnd int

	tx         [txBufferSize]byte
	txValidEnd int

	onReceive ReceiveCallback

	readable bool
	writable bool
	closed   bool
}

func newSocket(fd int, onReceive ReceiveCallback) *Socket {
	return &Socket{fd: fd, onReceive: onReceive}
}

// FD returns the socket's underlying file descriptor, for use by the
// platform-specific poller.
func (s *Socket) FD() int { return s.fd }

// Send appends bytes to the TX buffer. Never blocks; the bytes are
// flushed on the next sendAndRecv/poll cycle.
func (s *Socket) Send(b []byte) {
	n := copy(s.tx[s.txValidEnd:], b)
	s.txValidEnd += n
}

// compactRX shifts the unconsumed suffix [k, rxValidEnd) to the front of
// the RX buffer and shrinks rxValidEnd accordingly, per §4.3.
func (s *Socket) compactRX(k int) {
	remaining := s.rxValidEnd - k
	if remaining > 0 {
		copy(s.rx[:remaining], s.rx[k:s.rxValidEnd])
	}
	s.rxValidEnd = remaining
}

// RXBytes returns the currently valid, unconsumed prefix of the RX
// buffer. The returned slice aliases the socket's internal buffer and is
// only valid until the next sendAndRecv call.
func (s *Socket) RXBytes() []byte {
	return s.rx[:s.rxValidEnd]
}

// Consume marks the first k bytes of the RX buffer as processed,
// compacting the buffer.
func (s *Socket) Consume(k int) {
	s.compactRX(k)
}

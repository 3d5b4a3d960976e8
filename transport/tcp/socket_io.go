//go:build linux || darwin

package tcp

import (
	"golang.org/x/sys/unix"

	"exchange-core/clock"
)

// sendAndRecv attempts one non-blocking receive into the RX buffer at
// rxValidEnd; if any bytes were received, it invokes onReceive with the
// batch's timestamp. It then flushes any pending TX bytes non-blocking.
// Returns whether any bytes were received, per §4.3.
func (s *Socket) sendAndRecv(now clock.Clock) bool {
	received := false

	if s.rxValidEnd < len(s.rx) {
		n, err := unix.Read(s.fd, s.rx[s.rxValidEnd:])
		switch {
		case n > 0:
			s.rxValidEnd += n
			received = true
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			// nothing to read right now
		case n == 0 || err != nil:
			s.closed = true
		}
	}

	if received {
		s.onReceive(s, now.Now())
	}

	if s.txValidEnd > 0 {
		s.flushTX()
	}

	return received
}

func (s *Socket) flushTX() {
	written := 0
	for written < s.txValidEnd {
		n, err := unix.Write(s.fd, s.tx[written:s.txValidEnd])
		if n > 0 {
			written += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			break
		}
		if err != nil {
			s.closed = true
			break
		}
	}
	remaining := s.txValidEnd - written
	if remaining > 0 {
		copy(s.tx[:remaining], s.tx[written:s.txValidEnd])
	}
	s.txValidEnd = remaining
}

func setNonblocking(fd int) error {
	return unix.SetNonblock(fd, true)
}

//go:build darwin

package tcp

import (
	"time"

	"golang.org/x/sys/unix"
)

// poller wraps a kqueue instance, grounded on evm_triarb's
// main_darwin.go kqueue read/register/wait sequence, generalized to
// track many fds instead of one outbound connection.
type poller struct {
	kq     int
	events [256]unix.Kevent_t
}

func newPoller() (*poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &poller{kq: kq}, nil
}

func (p *poller) add(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_ADD},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *poller) remove(fd int) error {
	changes := []unix.Kevent_t{
		{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE},
	}
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

// wait returns the fds ready for reading, polling with a zero timeout so
// it never blocks, per §5.
func (p *poller) wait(readable []int) []int {
	ts := unix.NsecToTimespec(time.Duration(0).Nanoseconds())
	n, err := unix.Kevent(p.kq, nil, p.events[:], &ts)
	if err != nil {
		return readable[:0]
	}
	out := readable[:0]
	for i := 0; i < n; i++ {
		out = append(out, int(p.events[i].Ident))
	}
	return out
}

func (p *poller) close() error {
	return unix.Close(p.kq)
}

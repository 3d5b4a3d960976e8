//go:build linux

package tcp

import "golang.org/x/sys/unix"

// poller wraps an epoll instance, grounded on evm_triarb's
// EpollCreate1/EpollCtl/EpollWait sequence (main_linux.go) but
// level-triggered and tracking many fds (a listener plus every accepted
// client), rather than one outbound connection.
type poller struct {
	epfd   int
	events [256]unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: epfd}, nil
}

func (p *poller) add(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN | unix.EPOLLOUT, Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (p *poller) remove(fd int) error {
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// wait returns the fds reported ready, with a zero timeout (never
// blocks), per §5's "blocks only inside the OS event mechanism with a
// zero timeout". Since add registers EPOLLIN|EPOLLOUT, this includes fds
// that are only writable; Server.Poll marks every returned socket
// readable.
func (p *poller) wait(readable []int) []int {
	n, err := unix.EpollWait(p.epfd, p.events[:], 0)
	if err != nil {
		return readable[:0]
	}
	out := readable[:0]
	for i := 0; i < n; i++ {
		out = append(out, int(p.events[i].Fd))
	}
	return out
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}

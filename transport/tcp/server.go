package tcp

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"exchange-core/clock"
)

// BatchFinishedCallback is invoked exactly once per poll/sendAndReceive
// cycle in which at least one socket received bytes, after all readable
// sockets have been drained, per §4.3.
type BatchFinishedCallback func()

// Server wraps a listening socket and the set of accepted connections,
// driven by a level-triggered readiness mechanism (epoll on Linux,
// kqueue on Darwin). Single-owner: only the gateway thread calls Poll
// and SendAndReceive, per §5.
type Server struct {
	listener     *net.TCPListener
	listenerFD   int
	poller       *poller
	sockets      map[int]*Socket
	onReceive    ReceiveCallback
	onBatchDone  BatchFinishedCallback
	clock        clock.Clock
	readableBuf  []int
}

// Config gives the interface and port the server listens on; it carries
// no per-socket options. Grounded on the original implementation's
// SocketConfig (socket_utils.h).
type Config struct {
	Interface string
	Port      int
}

// Listen starts a TCP server on cfg.Interface:cfg.Port. onReceive fires
// per readable socket per batch; onBatchDone fires once per batch that
// received any bytes at all.
func Listen(cfg Config, onReceive ReceiveCallback, onBatchDone BatchFinishedCallback, clk clock.Clock) (*Server, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Interface, cfg.Port)
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, err
	}
	ln, err := net.ListenTCP("tcp", tcpAddr)
	if err != nil {
		return nil, err
	}

	rawConn, err := ln.SyscallConn()
	if err != nil {
		ln.Close()
		return nil, err
	}
	var listenerFD int
	ctrlErr := rawConn.Control(func(fd uintptr) { listenerFD = int(fd) })
	if ctrlErr != nil {
		ln.Close()
		return nil, ctrlErr
	}
	if err := setNonblocking(listenerFD); err != nil {
		ln.Close()
		return nil, err
	}

	p, err := newPoller()
	if err != nil {
		ln.Close()
		return nil, err
	}
	if err := p.add(listenerFD); err != nil {
		ln.Close()
		p.close()
		return nil, err
	}

	return &Server{
		listener:    ln,
		listenerFD:  listenerFD,
		poller:      p,
		sockets:     make(map[int]*Socket),
		onReceive:   onReceive,
		onBatchDone: onBatchDone,
		clock:       clk,
		readableBuf: make([]int, 0, 256),
	}, nil
}

// Close tears down the listener, the poller and every accepted socket.
func (s *Server) Close() error {
	for fd := range s.sockets {
		unix.Close(fd)
	}
	s.poller.close()
	return s.listener.Close()
}

// Poll drains readiness events: new connections on the listener are
// accepted and configured non-blocking, and each socket's readiness is
// recorded.
func (s *Server) Poll() {
	ready := s.poller.wait(s.readableBuf)
	for _, fd := range ready {
		if fd == s.listenerFD {
			s.acceptAll()
			continue
		}
		if sock, ok := s.sockets[fd]; ok {
			sock.readable = true
		}
	}
}

func (s *Server) acceptAll() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		tcpConn := conn.(*net.TCPConn)
		rawConn, err := tcpConn.SyscallConn()
		if err != nil {
			conn.Close()
			continue
		}
		var fd int
		ctrlErr := rawConn.Control(func(f uintptr) { fd = int(f) })
		if ctrlErr != nil {
			conn.Close()
			continue
		}
		if err := setNonblocking(fd); err != nil {
			conn.Close()
			continue
		}

		sock := newSocket(fd, s.onReceive)
		s.sockets[fd] = sock
		if err := s.poller.add(fd); err != nil {
			delete(s.sockets, fd)
			conn.Close()
		}
	}
}

// SendAndReceive calls sendAndRecv on every socket that is readable or
// has pending TX bytes (each call reads once, then flushes that socket's
// TX buffer), and afterwards invokes onBatchDone exactly once if any of
// them received bytes. Sockets that the peer closed are pruned from the
// set.
func (s *Server) SendAndReceive() {
	batchReceived := false
	var dead []int

	for fd, sock := range s.sockets {
		if !sock.readable && sock.txValidEnd == 0 {
			continue
		}
		sock.readable = false
		if sock.sendAndRecv(s.clock) {
			batchReceived = true
		}
		if sock.closed {
			dead = append(dead, fd)
		}
	}

	if batchReceived {
		s.onBatchDone()
	}

	for _, fd := range dead {
		s.poller.remove(fd)
		unix.Close(fd)
		delete(s.sockets, fd)
	}
}

// Socket looks up an accepted connection by file descriptor.
func (s *Server) Socket(fd int) (*Socket, bool) {
	sock, ok := s.sockets[fd]
	return sock, ok
}

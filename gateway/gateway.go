// Package gateway implements the order gateway of spec §4.7 (C7): the
// client-facing edge of the system. It binds each client to the socket
// it first connects on, validates the per-client sequence number on
// every inbound record, feeds validated requests to a FIFO sequencer,
// and drains the engine's response queue back out to the right client
// socket with its own outbound sequence number.
package gateway

import (
	"runtime"

	"go.uber.org/zap"

	"exchange-core/clock"
	"exchange-core/domain"
	"exchange-core/internal/fatal"
	"exchange-core/internal/ringqueue"
	"exchange-core/sequencer"
	"exchange-core/transport/tcp"
	"exchange-core/wire"
)

// Gateway owns every client socket, the FIFO sequencer, and all TX/RX
// sequence counters. Not safe for concurrent use: per §5, only its own
// worker thread touches it.
type Gateway struct {
	logger *zap.Logger
	clock  clock.Clock

	server    *tcp.Server
	sequencer *sequencer.Sequencer

	responseQueue *ringqueue.Queue[wire.ClientResponse]

	expectedRxSeq map[domain.ClientId]uint64
	expectedTxSeq map[domain.ClientId]uint64
	clientSocket  map[domain.ClientId]*tcp.Socket

	cpuAffinity int
	stop        chan struct{}
	done        chan struct{}
}

// New constructs a gateway listening per cfg, feeding requestQueue
// through its own sequencer and draining responseQueue back to clients.
func New(
	cfg tcp.Config,
	requestQueue *ringqueue.Queue[wire.ClientRequest],
	responseQueue *ringqueue.Queue[wire.ClientResponse],
	cpuAffinity int,
	clk clock.Clock,
	logger *zap.Logger,
) (*Gateway, error) {
	g := &Gateway{
		logger:        logger,
		clock:         clk,
		responseQueue: responseQueue,
		expectedRxSeq: make(map[domain.ClientId]uint64),
		expectedTxSeq: make(map[domain.ClientId]uint64),
		clientSocket:  make(map[domain.ClientId]*tcp.Socket),
		cpuAffinity:   cpuAffinity,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	g.sequencer = sequencer.New(requestQueue, logger)

	server, err := tcp.Listen(cfg, g.onSocketReceive, g.sequencer.SequenceAndPublish, clk)
	if err != nil {
		return nil, err
	}
	g.server = server
	return g, nil
}

// onSocketReceive is the per-socket read callback of §4.7: it interprets
// every complete GwRequest record currently buffered on sock, validating
// binding and sequence before handing the wrapped ClientRequest to the
// sequencer.
func (g *Gateway) onSocketReceive(sock *tcp.Socket, rxTimeNanos clock.Nanos) {
	consumed := 0
	buf := sock.RXBytes()

	for len(buf)-consumed >= wire.GwRequestSize {
		record, err := wire.DecodeGwRequest(buf[consumed:])
		if err != nil {
			break
		}
		consumed += wire.GwRequestSize

		clientId := record.Req.ClientId
		bound, hasBinding := g.clientSocket[clientId]
		if !hasBinding {
			g.clientSocket[clientId] = sock
		} else if bound != sock {
			g.logger.Error("gateway: client sent request on an unbound socket",
				zap.Uint32("clientId", uint32(clientId)))
			continue
		}

		expected := g.expectedRxSeq[clientId]
		if expected == 0 {
			expected = 1 // sequence numbers start at 1, per §6
		}
		if record.Seq != expected {
			g.logger.Error("gateway: out-of-sequence request dropped",
				zap.Uint32("clientId", uint32(clientId)),
				zap.Uint64("expected", expected),
				zap.Uint64("got", record.Seq))
			continue
		}

		g.expectedRxSeq[clientId] = expected + 1
		g.sequencer.PushClientRequest(record.Req, int64(rxTimeNanos))
	}

	sock.Consume(consumed)
}

// Start spawns the gateway's dedicated worker goroutine, pinned to its
// configured CPU core, and returns immediately.
func (g *Gateway) Start() {
	go g.run()
}

// Stop closes the listener and joins the worker.
func (g *Gateway) Stop() {
	close(g.stop)
	<-g.done
	g.server.Close()
}

func (g *Gateway) run() {
	defer close(g.done)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	if g.cpuAffinity >= 0 {
		if err := pinCurrentThread(g.cpuAffinity); err != nil {
			g.logger.Warn("gateway: failed to set CPU affinity", zap.Int("cpu", g.cpuAffinity), zap.Error(err))
		}
	}

	for {
		select {
		case <-g.stop:
			return
		default:
		}

		g.server.Poll()
		g.server.SendAndReceive()
		g.drainResponses()
	}
}

// drainResponses sends every pending engine response to its client,
// framed with the client's next outbound sequence number.
func (g *Gateway) drainResponses() {
	var buf [wire.GwResponseSize]byte
	for {
		resp, ok := g.responseQueue.Pop()
		if !ok {
			return
		}

		sock, found := g.clientSocket[resp.ClientId]
		fatal.Check(found, g.logger, "gateway: response for client %d with no bound socket", resp.ClientId)

		seq := g.expectedTxSeq[resp.ClientId]
		if seq == 0 {
			seq = 1 // sequence numbers start at 1, per §6
		}
		gwResp := wire.GwResponse{Seq: seq, Resp: resp}
		wire.EncodeGwResponse(buf[:], &gwResp)
		sock.Send(buf[:])
		g.expectedTxSeq[resp.ClientId] = seq + 1
	}
}

// Command benchmark drives synthetic order flow directly against a
// matching engine, bypassing the gateway and sequencer the way the
// teacher's own benchmark tool bypasses its gateway layer, and reports
// throughput over a fixed duration.
package main

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"exchange-core/domain"
	"exchange-core/internal/ringqueue"
	"exchange-core/logging"
	"exchange-core/matching"
	"exchange-core/wire"
)

const testDuration = 5 * time.Second

const producerQueueCapacity = 1 << 14

func main() {
	fmt.Println("=== matching engine throughput benchmark ===")

	logger, err := logging.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	requestQueue := ringqueue.New[wire.ClientRequest](domain.RequestQueueCapacity)
	responseQueue := ringqueue.New[wire.ClientResponse](domain.ClientUpdateQueueCapacity)
	marketUpdateQueue := ringqueue.New[wire.MarketUpdate](domain.MarketUpdateQueueCapacity)

	engine := matching.New(requestQueue, responseQueue, marketUpdateQueue, 1<<16, -1, logger)
	engine.Start()
	defer engine.Stop()

	var ordersSent, responsesSeen, updatesSeen atomic.Int64

	go drain(responseQueue.Pop, &responsesSeen)
	go drainUpdates(marketUpdateQueue, &updatesSeen)

	numCPU := runtime.NumCPU()
	numProducers := numCPU - 1
	if numProducers < 1 {
		numProducers = 1
	}

	fmt.Printf("cpus: %d, producers: %d, duration: %v\n", numCPU, numProducers, testDuration)

	// Each producer gets its own SPSC queue — internal/ringqueue allows
	// exactly one producer and one consumer per queue (§5) — and a single
	// feeder goroutine round-robins them into the engine's requestQueue,
	// remaining requestQueue's sole producer.
	producerQueues := make([]*ringqueue.Queue[wire.ClientRequest], numProducers)
	for i := range producerQueues {
		producerQueues[i] = ringqueue.New[wire.ClientRequest](producerQueueCapacity)
	}

	stop := make(chan struct{})
	for w := 0; w < numProducers; w++ {
		go produce(w, producerQueues[w], stop)
	}
	go feed(producerQueues, requestQueue, stop, &ordersSent)

	start := time.Now()
	time.Sleep(testDuration)
	close(stop)
	elapsed := time.Since(start)

	time.Sleep(100 * time.Millisecond) // let the queues drain

	fmt.Printf("orders sent:     %d (%.0f/s)\n", ordersSent.Load(), float64(ordersSent.Load())/elapsed.Seconds())
	fmt.Printf("responses seen:  %d\n", responsesSeen.Load())
	fmt.Printf("updates seen:    %d\n", updatesSeen.Load())
}

func produce(workerID int, out *ringqueue.Queue[wire.ClientRequest], stop <-chan struct{}) {
	var orderId domain.OrderId
	for {
		select {
		case <-stop:
			return
		default:
		}

		orderId++
		side := domain.SideBuy
		if orderId%2 == 0 {
			side = domain.SideSell
		}
		req := wire.ClientRequest{
			Type:     wire.RequestNew,
			ClientId: domain.ClientId(workerID),
			TickerId: 0,
			OrderId:  orderId,
			Side:     side,
			Price:    domain.Price(50000 + int64(orderId%200)),
			Qty:      10,
		}
		if !out.Push(req) {
			runtime.Gosched()
		}
	}
}

// feed is the sole producer to requestQueue: it round-robins each
// producer's own SPSC queue into the shared engine-facing one.
func feed(producerQueues []*ringqueue.Queue[wire.ClientRequest], requestQueue *ringqueue.Queue[wire.ClientRequest], stop <-chan struct{}, sent *atomic.Int64) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		idle := true
		for _, q := range producerQueues {
			req, ok := q.Pop()
			if !ok {
				continue
			}
			idle = false
			if requestQueue.Push(req) {
				sent.Add(1)
			}
		}
		if idle {
			runtime.Gosched()
		}
	}
}

func drain(pop func() (wire.ClientResponse, bool), counter *atomic.Int64) {
	for {
		if _, ok := pop(); ok {
			counter.Add(1)
		} else {
			runtime.Gosched()
		}
	}
}

func drainUpdates(q *ringqueue.Queue[wire.MarketUpdate], counter *atomic.Int64) {
	for {
		if _, ok := q.Pop(); ok {
			counter.Add(1)
		} else {
			runtime.Gosched()
		}
	}
}

// Command profile runs the same synthetic order flow as cmd/benchmark
// under pprof.StartCPUProfile, the way the teacher's own profile tool
// wraps its benchmark loop, for flame-graph analysis of the matching
// hot path.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"exchange-core/domain"
	"exchange-core/internal/ringqueue"
	"exchange-core/logging"
	"exchange-core/matching"
	"exchange-core/wire"
)

func main() {
	out := flag.String("out", "exchange.prof", "CPU profile output path")
	duration := flag.Duration("duration", 5*time.Second, "profiling duration")
	flag.Parse()

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintln(os.Stderr, "profile:", err)
		os.Exit(1)
	}
	defer f.Close()

	if err := pprof.StartCPUProfile(f); err != nil {
		fmt.Fprintln(os.Stderr, "profile:", err)
		os.Exit(1)
	}
	defer pprof.StopCPUProfile()

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

	go func() {
		for {
			if _, ok := responseQueue.Pop(); !ok {
				runtime.Gosched()
			}
		}
	}()
	go func() {
		for {
			if _, ok := marketUpdateQueue.Pop(); !ok {
				runtime.Gosched()
			}
		}
	}()

	deadline := time.Now().Add(*duration)
	var orderId domain.OrderId
	for time.Now().Before(deadline) {
		orderId++
		side := domain.SideBuy
		if orderId%2 == 0 {
			side = domain.SideSell
		}
		req := wire.ClientRequest{
			Type:     wire.RequestNew,
			ClientId: 0,
			TickerId: 0,
			OrderId:  orderId,
			Side:     side,
			Price:    domain.Price(50000 + int64(orderId%200)),
			Qty:      10,
		}
		if !requestQueue.Push(req) {
			runtime.Gosched()
		}
	}

	fmt.Printf("profiled %d orders over %v\n", orderId, *duration)
}

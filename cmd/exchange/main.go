// Command exchange runs the production binary: a gateway thread and a
// matching-engine thread, cooperating through the three SPSC ring
// queues described in §5, each pinned to its own configured CPU core.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"exchange-core/clock"
	"exchange-core/config"
	"exchange-core/domain"
	"exchange-core/gateway"
	"exchange-core/internal/ringqueue"
	"exchange-core/logging"
	"exchange-core/matching"
	"exchange-core/transport/tcp"
	"exchange-core/wire"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "exchange:", err)
		return config.ExitConfigError
	}

	logger, err := logging.New()
	if err != nil {
		fmt.Fprintln(os.Stderr, "exchange: failed to build logger:", err)
		return config.ExitConfigError
	}
	defer logger.Sync()

	requestQueue := ringqueue.New[wire.ClientRequest](domain.RequestQueueCapacity)
	responseQueue := ringqueue.New[wire.ClientResponse](domain.ClientUpdateQueueCapacity)
	marketUpdateQueue := ringqueue.New[wire.MarketUpdate](domain.MarketUpdateQueueCapacity)

	engine := matching.New(requestQueue, responseQueue, marketUpdateQueue, cfg.OrderCapacity, cfg.EngineCPU, logger)

	gw, err := gateway.New(tcp.Config{Interface: cfg.Interface, Port: cfg.Port}, requestQueue, responseQueue, cfg.GatewayCPU, clock.System{}, logger)
	if err != nil {
		logger.Error("exchange: failed to start gateway", zap.Error(err))
		return config.ExitConfigError
	}

	engine.Start()
	gw.Start()

	logger.Info("exchange: listening", zap.String("interface", cfg.Interface), zap.Int("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	gw.Stop()
	engine.Stop()
	return config.ExitOK
}

// Package config parses the CLI surface of spec §6: listening interface,
// listening port, and optional CPU affinities for the gateway and
// matching-engine threads.
//
// No example repo in the retrieval pack imports a CLI/flag-parsing
// library (the closest, cobra/pflag-style parsing, never appears), so
// this stays on the standard library's flag package rather than
// fabricating a dependency the pack gives no grounding for.
package config

import (
	"errors"
	"flag"
)

// ExitCode values per §6: 0 normal, 1 configuration/startup failure, 2
// fatal invariant violation at runtime.
const (
	ExitOK                 = 0
	ExitConfigError        = 1
	ExitInvariantViolation = 2
)

// Config holds the parsed CLI surface.
type Config struct {
	Interface     string
	Port          int
	GatewayCPU    int // -1 if unset
	EngineCPU     int // -1 if unset
	OrderCapacity int
}

// Parse parses args (typically os.Args[1:]) into a Config, applying
// defaults for anything not given.
func Parse(args []string) (Config, error) {
	fs := flag.NewFlagSet("exchange", flag.ContinueOnError)
	iface := fs.String("interface", "0.0.0.0", "listening interface")
	port := fs.Int("port", 9999, "listening port")
	gatewayCPU := fs.Int("gateway-cpu", -1, "CPU core to pin the gateway thread to, or -1 to leave unpinned")
	engineCPU := fs.Int("engine-cpu", -1, "CPU core to pin the matching-engine thread to, or -1 to leave unpinned")
	orderCapacity := fs.Int("order-capacity", 1<<16, "per-ticker order pool capacity")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Interface:     *iface,
		Port:          *port,
		GatewayCPU:    *gatewayCPU,
		EngineCPU:     *engineCPU,
		OrderCapacity: *orderCapacity,
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, errors.New("config: port must be between 1 and 65535")
	}
	if cfg.Interface == "" {
		return Config{}, errors.New("config: interface must not be empty")
	}
	return cfg, nil
}

//go:build !linux

package gateway

import "errors"

func pinCurrentThread(cpu int) error {
	return errors.New("gateway: CPU affinity is not supported on this platform")
}

package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/grandcat/zeroconf"
)

// portFromAddr extracts the numeric port from a "host:port" or ":port"
// listen address, for handing to zeroconf.Register.
func portFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(p)
}

// mdnsServiceType deliberately advertises only the metrics/readiness HTTP
// endpoint, never the tarpit's own trap port: advertising the trap port
// would hand scanners an easy way to identify and skip it.
const mdnsServiceType = "_endlessh-metrics._tcp"

// startMDNS registers the metrics endpoint via mDNS and returns a cleanup
// function. It always registers; whether mDNS is enabled is decided by the
// caller.
func startMDNS(ctx context.Context, port int) (func(), error) {
	host, _ := os.Hostname()
	instance := fmt.Sprintf("endlessh-%s", host)
	meta := []string{
		"version=" + version,
		"commit=" + commit,
	}
	svc, err := zeroconf.Register(instance, mdnsServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("mdns register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() { close(done); svc.Shutdown(); time.Sleep(50 * time.Millisecond) }, nil
}

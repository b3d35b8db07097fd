package discovery

import (
	"context"
	"fmt"
	"net/netip"
	"runtime"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// Reachability is the answer a gateway gave to a short echo burst.
type Reachability struct {
	Gateway  netip.Addr
	Sent     int
	Received int
	AvgRTT   time.Duration
	// Reason says why nothing came back; empty when the gateway answered.
	Reason string
}

func (r Reachability) Reachable() bool {
	return r.Received > 0
}

// Checker tests whether the gateway answers. A silent gateway is a result,
// not an error; errors mean the check itself could not run.
type Checker interface {
	Check(ctx context.Context, gateway netip.Addr) (Reachability, error)
}

// ICMPChecker pings the gateway with pro-bing. Unprivileged (UDP) pings are
// used except on Windows, which only supports raw sockets.
type ICMPChecker struct {
	timeout time.Duration
	count   int
}

func NewICMPChecker(timeout time.Duration, count int) *ICMPChecker {
	if count < 1 {
		count = 1
	}
	return &ICMPChecker{timeout: timeout, count: count}
}

func (c *ICMPChecker) Check(ctx context.Context, gateway netip.Addr) (Reachability, error) {
	pinger, err := probing.NewPinger(gateway.String())
	if err != nil {
		return Reachability{Gateway: gateway}, fmt.Errorf("ping %s: %w", gateway, err)
	}
	pinger.Count = c.count
	pinger.Timeout = c.timeout
	pinger.SetPrivileged(runtime.GOOS == "windows")

	if err := pinger.RunWithContext(ctx); err != nil {
		if ctx.Err() != nil {
			return Reachability{Gateway: gateway, Sent: c.count, Reason: "check cancelled"}, nil
		}
		return Reachability{Gateway: gateway}, fmt.Errorf("ping %s: %w", gateway, err)
	}
	return reachabilityFrom(gateway, pinger.Statistics()), nil
}

func reachabilityFrom(gateway netip.Addr, stats *probing.Statistics) Reachability {
	r := Reachability{Gateway: gateway}
	if stats == nil {
		r.Reason = "no statistics"
		return r
	}
	r.Sent = stats.PacketsSent
	r.Received = stats.PacketsRecv
	if r.Received > 0 {
		r.AvgRTT = stats.AvgRtt
	} else {
		r.Reason = fmt.Sprintf("no reply to %d echo request(s)", r.Sent)
	}
	return r
}

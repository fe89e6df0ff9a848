// Package registry is the service directory used to find hello peers.
//
// A server registers one Instance per exposed service; a client resolves the
// instances of a service once, picks one and binds its transport to it.
package registry

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("registry")

// Instance is one reachable peer of a service.
type Instance struct {
	Addr    string `json:"addr"` // "host:port", IPv4
	Weight  int    `json:"weight,omitempty"`
	Version string `json:"version,omitempty"`
}

// HostPort splits Addr into the IPv4 host and port a transport is configured with.
func (i Instance) HostPort() (string, uint16, error) {
	ap, err := netip.ParseAddrPort(i.Addr)
	if err != nil {
		return "", 0, fmt.Errorf("registry: instance address %q: %w", i.Addr, err)
	}
	if !ap.Addr().Is4() {
		return "", 0, fmt.Errorf("registry: instance address %q is not IPv4", i.Addr)
	}
	return ap.Addr().String(), ap.Port(), nil
}

type Registry interface {
	// Register publishes instance under serviceName; it disappears at the latest
	// ttlSeconds after the owner stops renewing it.
	Register(ctx context.Context, serviceName string, instance Instance, ttlSeconds int64) error
	Deregister(ctx context.Context, serviceName string, addr string) error
	Discover(ctx context.Context, serviceName string) ([]Instance, error)
	Close() error
}

// key is the directory entry of one instance.
func key(serviceName, addr string) string {
	return prefix(serviceName) + addr
}

func prefix(serviceName string) string {
	return "/hello-rpc/" + serviceName + "/"
}

// Package loadbalance chooses the peer a client binds to among the instances the
// registry returned.
//
//   - RoundRobin:      equal-capacity instances
//   - WeightedRandom:  instances of different capacity, by Instance.Weight
//   - ConsistentHash:  the same key always lands on the same instance
package loadbalance

import (
	"errors"
	"fmt"
	"hello-rpc/registry"
)

var ErrNoInstances = errors.New("no instances available")

// Balancer picks one instance. Implementations are goroutine-safe.
type Balancer interface {
	// Pick selects one of instances. key is only meaningful to key-affine strategies.
	Pick(key string, instances []registry.Instance) (registry.Instance, error)

	// Name returns the strategy name as accepted by New.
	Name() string
}

// New returns the strategy called name: "round_robin", "weighted_random" or
// "consistent_hash".
func New(name string) (Balancer, error) {
	switch name {
	case "round_robin", "":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(), nil
	default:
		return nil, fmt.Errorf("loadbalance: unknown strategy %q", name)
	}
}

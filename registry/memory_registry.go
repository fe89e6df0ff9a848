package registry

import (
	"context"
	"sort"

	"github.com/puzpuzpuz/xsync/v3"
)

// MemoryRegistry is a process-local Registry. Entries never expire; ttl is ignored.
// It backs tests and single-process setups that have no etcd.
type MemoryRegistry struct {
	entries *xsync.MapOf[string, Instance]
}

var _ Registry = (*MemoryRegistry)(nil)

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{entries: xsync.NewMapOf[string, Instance]()}
}

func (r *MemoryRegistry) Register(ctx context.Context, serviceName string, instance Instance, ttlSeconds int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.entries.Store(key(serviceName, instance.Addr), instance)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.entries.Delete(key(serviceName, addr))
	return nil
}

// Discover returns the instances of serviceName ordered by key, like an etcd prefix scan.
func (r *MemoryRegistry) Discover(ctx context.Context, serviceName string) ([]Instance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := prefix(serviceName)
	keys := make([]string, 0)
	r.entries.Range(func(k string, _ Instance) bool {
		if len(k) > len(p) && k[:len(p)] == p {
			keys = append(keys, k)
		}
		return true
	})
	sort.Strings(keys)

	instances := make([]Instance, 0, len(keys))
	for _, k := range keys {
		if inst, ok := r.entries.Load(k); ok {
			instances = append(instances, inst)
		}
	}
	return instances, nil
}

func (r *MemoryRegistry) Close() error {
	r.entries.Clear()
	return nil
}

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdRegistry keeps instances in etcd under /hello-rpc/<service>/<addr>, each entry
// bound to a lease kept alive until Deregister or Close.
type EtcdRegistry struct {
	client *clientv3.Client
	leases *xsync.MapOf[string, clientv3.LeaseID]
}

var _ Registry = (*EtcdRegistry)(nil)

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd %v: %w", endpoints, err)
	}
	return &EtcdRegistry{client: c, leases: xsync.NewMapOf[string, clientv3.LeaseID]()}, nil
}

// Register puts the instance with a TTL lease and keeps renewing it in the background.
// The lease ID lives in the lease map, not on the struct, so one registry can serve
// several servers.
func (r *EtcdRegistry) Register(ctx context.Context, serviceName string, instance Instance, ttlSeconds int64) error {
	lease, err := r.client.Grant(ctx, ttlSeconds)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	k := key(serviceName, instance.Addr)
	if _, err := r.client.Put(ctx, k, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", k, err)
	}

	// The keep-alive must outlive ctx, which usually only bounds registration itself
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keep alive %s: %w", k, err)
	}
	go func() {
		for range ch {
		}
		Logger.Debugf("keep-alive for %s stopped", k)
	}()

	if old, loaded := r.leases.LoadAndStore(k, lease.ID); loaded {
		r.revoke(ctx, old)
	}
	Logger.Infof("registered %s (ttl %ds)", k, ttlSeconds)
	return nil
}

// Deregister deletes the entry and revokes its lease, which also stops the keep-alive.
func (r *EtcdRegistry) Deregister(ctx context.Context, serviceName string, addr string) error {
	k := key(serviceName, addr)
	if _, err := r.client.Delete(ctx, k); err != nil {
		return fmt.Errorf("registry: delete %s: %w", k, err)
	}
	if id, ok := r.leases.LoadAndDelete(k); ok {
		r.revoke(ctx, id)
	}
	Logger.Infof("deregistered %s", k)
	return nil
}

// Discover returns all instances currently registered for serviceName.
// Entries that do not decode are skipped.
func (r *EtcdRegistry) Discover(ctx context.Context, serviceName string) ([]Instance, error) {
	resp, err := r.client.Get(ctx, prefix(serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("registry: discover %s: %w", serviceName, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			Logger.Warningf("skipping malformed entry %s: %v", kv.Key, err)
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close revokes every lease still held and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r.leases.Range(func(k string, id clientv3.LeaseID) bool {
		r.revoke(ctx, id)
		r.leases.Delete(k)
		return true
	})
	return r.client.Close()
}

func (r *EtcdRegistry) revoke(ctx context.Context, id clientv3.LeaseID) {
	if _, err := r.client.Revoke(ctx, id); err != nil {
		Logger.Warningf("revoke lease %x: %v", int64(id), err)
	}
}

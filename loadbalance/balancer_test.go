package loadbalance

import (
	"errors"
	"fmt"
	"hello-rpc/registry"
	"testing"
)

var testInstances = []registry.Instance{
	{Addr: "127.0.0.1:8001", Weight: 10, Version: "1.0"},
	{Addr: "127.0.0.1:8002", Weight: 5, Version: "1.0"},
	{Addr: "127.0.0.1:8003", Weight: 10, Version: "1.0"},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobinBalancer{}

	for i := 0; i < 2*len(testInstances); i++ {
		inst, err := b.Pick("", testInstances)
		if err != nil {
			t.Fatal(err)
		}
		if want := testInstances[i%len(testInstances)].Addr; inst.Addr != want {
			t.Fatalf("pick %d: expect %s, got %s", i, want, inst.Addr)
		}
	}
}

func TestEmptyInstances(t *testing.T) {
	for _, name := range []string{"round_robin", "weighted_random", "consistent_hash"} {
		b, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Pick("k", nil); !errors.Is(err, ErrNoInstances) {
			t.Errorf("%s: expect ErrNoInstances, got %v", name, err)
		}
		if b.Name() != name {
			t.Errorf("expect name %s, got %s", name, b.Name())
		}
	}
}

func TestNewUnknown(t *testing.T) {
	if _, err := New("random"); err == nil {
		t.Fatal("expect error for unknown strategy")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandomBalancer{}

	counts := map[string]int{}
	n := 10000
	for i := 0; i < n; i++ {
		inst, err := b.Pick("", testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}

	// 10:5:10, so 8001 should be picked about twice as often as 8002
	ratio := float64(counts["127.0.0.1:8001"]) / float64(counts["127.0.0.1:8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio 8001/8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandomBalancer{}
	if _, err := b.Pick("", []registry.Instance{{Addr: "127.0.0.1:1"}}); err != nil {
		t.Fatalf("zero weight must still be pickable: %v", err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHashBalancer()

	inst1, _ := b.Pick("user-123", testInstances)
	inst2, _ := b.Pick("user-123", testInstances)
	if inst1.Addr != inst2.Addr {
		t.Fatalf("same key mapped to different instances: %s vs %s", inst1.Addr, inst2.Addr)
	}

	// order of the instance list must not matter
	reversed := []registry.Instance{testInstances[2], testInstances[1], testInstances[0]}
	inst3, _ := b.Pick("user-123", reversed)
	if inst3.Addr != inst1.Addr {
		t.Fatalf("reordered instances moved key: %s vs %s", inst1.Addr, inst3.Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Pick(fmt.Sprintf("key-%d", i), testInstances)
		seen[inst.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

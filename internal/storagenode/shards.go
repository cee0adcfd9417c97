package storagenode

import (
	"hash/fnv"
	"sync"
)

// shardCount is the fixed cardinality of the per-key lock table and
// replication-worker pool. This replaces the original design's unbounded
// map[string]*sync.Mutex, created lazily per key and never reclaimed — the
// re-architecture flagged in the spec's design notes. A fixed table bounds
// memory at the cost of two unrelated keys occasionally sharing a shard;
// that's an acceptable trade because the correctness requirement is
// per-key serialization, not per-key-pair independence.
const shardCount = 256

func shardFor(key string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % shardCount)
}

// lockTable is the fixed-cardinality mutex shard table guarding per-key
// state in Store.
type lockTable struct {
	mus [shardCount]sync.Mutex
}

func newLockTable() *lockTable {
	return &lockTable{}
}

func (t *lockTable) Lock(key string) {
	t.mus[shardFor(key)].Lock()
}

func (t *lockTable) Unlock(key string) {
	t.mus[shardFor(key)].Unlock()
}

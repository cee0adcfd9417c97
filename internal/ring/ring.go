// Package ring implements the consistent-hash ring used to decide which
// storage node owns a given key.
//
// Key idea: instead of hash(key) % N, which remaps almost every key when a
// node joins or leaves, every physical node is placed at V points ("virtual
// nodes") on a circle of hash values. A key is owned by the first node found
// walking clockwise from the key's own hash. Adding or removing a node only
// disturbs the keys that land near its virtual nodes, not the whole keyspace.
package ring

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"sort"
)

// DefaultVirtualNodes is the number of ring entries contributed by each
// physical node. 150 is the value used by the reference implementation this
// package must stay placement-compatible with.
const DefaultVirtualNodes = 150

// Hash128 is an MD5 digest, treated as a big-endian 128-bit unsigned integer.
// Comparing the raw bytes lexicographically gives the same ordering as
// comparing the numbers would, so there's no need for math/big here.
type Hash128 [16]byte

func less(a, b Hash128) bool {
	return bytes.Compare(a[:], b[:]) < 0
}

func hash(s string) Hash128 {
	return md5.Sum([]byte(s))
}

// Ring is a sorted hash ring mapping virtual node names to physical node ids.
// It is NOT safe for concurrent mutation — callers that need concurrent
// readers and writers (the coordinator) build a new Ring under a writer lock
// and publish it atomically instead of locking every read; see
// internal/coordinator/state.go.
type Ring struct {
	vnodes int
	// entries maps a ring position to the physical node id that owns it.
	entries map[Hash128]string
	// sorted holds the same keys as entries, kept in ascending order for
	// binary search.
	sorted []Hash128
}

// New creates an empty ring. vnodes <= 0 falls back to DefaultVirtualNodes.
func New(vnodes int) *Ring {
	if vnodes <= 0 {
		vnodes = DefaultVirtualNodes
	}
	return &Ring{
		vnodes:  vnodes,
		entries: make(map[Hash128]string),
	}
}

func vnodeName(nodeID string, i int) string {
	return fmt.Sprintf("%s:%d", nodeID, i)
}

// AddNode inserts a physical node's virtual entries. It is idempotent: a
// node id already present is removed first, so re-registering never
// accumulates duplicate ring entries (see DESIGN.md — this closes the
// open question about REGISTER not being idempotent at the sorted-hash
// layer).
func (r *Ring) AddNode(nodeID string) {
	r.removeNodeLocked(nodeID)
	for i := 0; i < r.vnodes; i++ {
		pos := hash(vnodeName(nodeID, i))
		r.entries[pos] = nodeID
	}
	r.rebuild()
}

// RemoveNode deletes all of a physical node's virtual entries.
func (r *Ring) RemoveNode(nodeID string) {
	r.removeNodeLocked(nodeID)
	r.rebuild()
}

func (r *Ring) removeNodeLocked(nodeID string) {
	for i := 0; i < r.vnodes; i++ {
		delete(r.entries, hash(vnodeName(nodeID, i)))
	}
}

func (r *Ring) rebuild() {
	r.sorted = make([]Hash128, 0, len(r.entries))
	for pos := range r.entries {
		r.sorted = append(r.sorted, pos)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return less(r.sorted[i], r.sorted[j]) })
}

// search returns the index of the first ring position >= target, wrapping to
// 0 when target is past every entry.
func (r *Ring) search(target Hash128) int {
	idx := sort.Search(len(r.sorted), func(i int) bool {
		return !less(r.sorted[i], target)
	})
	if idx == len(r.sorted) {
		idx = 0
	}
	return idx
}

// GetNode returns the node responsible for key. ok is false for an empty ring.
func (r *Ring) GetNode(key string) (nodeID string, ok bool) {
	if len(r.sorted) == 0 {
		return "", false
	}
	idx := r.search(hash(key))
	return r.entries[r.sorted[idx]], true
}

// GetNodes walks forward from key's ring position, collecting up to count
// distinct physical node ids in encounter order. It wraps at most once; if
// the cluster has fewer than count distinct nodes, fewer are returned.
func (r *Ring) GetNodes(key string, count int) []string {
	if len(r.sorted) == 0 || count <= 0 {
		return nil
	}

	start := r.search(hash(key))
	seen := make(map[string]bool, count)
	nodes := make([]string, 0, count)

	for i := 0; i < len(r.sorted) && len(nodes) < count; i++ {
		pos := r.sorted[(start+i)%len(r.sorted)]
		id := r.entries[pos]
		if !seen[id] {
			seen[id] = true
			nodes = append(nodes, id)
		}
	}
	return nodes
}

// NodeCount returns the number of distinct physical nodes on the ring.
func (r *Ring) NodeCount() int {
	return len(r.Nodes())
}

// Nodes returns the distinct physical node ids currently on the ring, sorted
// for deterministic output.
func (r *Ring) Nodes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, id := range r.entries {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// EntryCount returns the raw number of ring entries (V * distinct nodes),
// used by tests to check the ring-balance invariant.
func (r *Ring) EntryCount() int {
	return len(r.sorted)
}

// Clone returns a deep copy of the ring, used by the coordinator to build a
// new immutable cluster snapshot without mutating the one readers may still
// be holding (see internal/coordinator/state.go).
func (r *Ring) Clone() *Ring {
	c := &Ring{
		vnodes:  r.vnodes,
		entries: make(map[Hash128]string, len(r.entries)),
		sorted:  make([]Hash128, len(r.sorted)),
	}
	for k, v := range r.entries {
		c.entries[k] = v
	}
	copy(c.sorted, r.sorted)
	return c
}

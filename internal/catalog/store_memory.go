package catalog

import (
	"iter"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// shardCount must stay a power of two.
const shardCount = 32

type shard struct {
	mu sync.RWMutex
	m  map[string]Product
}

func (sh *shard) snapshot() []Product {
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	out := make([]Product, 0, len(sh.m))
	for _, p := range sh.m {
		out = append(out, p)
	}
	return out
}

// MemStore spreads products over independently locked shards so that
// operations on different ids rarely contend.
//
// FindAll snapshots one shard at a time: each shard is read consistently, and
// writes to shards not yet visited are observed by the traversal.
type MemStore struct {
	shards [shardCount]shard
}

func NewMemStore(seed ...Product) *MemStore {
	s := &MemStore{}
	for i := range s.shards {
		s.shards[i].m = make(map[string]Product)
	}
	for _, p := range seed {
		s.Save(p)
	}
	return s
}

func (s *MemStore) shardFor(id string) *shard {
	return &s.shards[xxhash.Sum64String(id)&(shardCount-1)]
}

func (s *MemStore) FindAll() iter.Seq[Product] {
	return func(yield func(Product) bool) {
		for i := range s.shards {
			for _, p := range s.shards[i].snapshot() {
				if !yield(p) {
					return
				}
			}
		}
	}
}

func (s *MemStore) FindByID(id string) (Product, bool) {
	sh := s.shardFor(id)
	sh.mu.RLock()
	defer sh.mu.RUnlock()

	p, ok := sh.m[id]
	return p, ok
}

func (s *MemStore) Save(p Product) Product {
	sh := s.shardFor(p.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	sh.m[p.ID] = p
	return p
}

func (s *MemStore) DeleteByID(id string) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	delete(sh.m, id)
}

func (s *MemStore) Len() int {
	n := 0
	for i := range s.shards {
		sh := &s.shards[i]
		sh.mu.RLock()
		n += len(sh.m)
		sh.mu.RUnlock()
	}
	return n
}

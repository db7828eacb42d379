package catalog

import (
	"cmp"
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"CatalogFeed/internal/feed"
)

const keyStripes = 64

// Service is the only way callers read or change the catalog. Every committed
// mutation is published on the feed hub; reads go straight to the store.
type Service struct {
	store Store
	hub   *feed.Hub[Product]
	log   *zap.Logger

	// keys serializes check-then-act sequences per id.
	keys  [keyStripes]sync.Mutex
	newID func() string
}

func NewService(store Store, hub *feed.Hub[Product], log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		hub:   hub,
		log:   log,
		newID: uuid.NewString,
	}
}

func (s *Service) lock(id string) func() {
	m := &s.keys[xxhash.Sum64String(id)%keyStripes]
	m.Lock()
	return m.Unlock
}

func (s *Service) collect(keep func(Product) bool) []Product {
	out := make([]Product, 0, s.store.Len())
	for p := range s.store.FindAll() {
		if keep == nil || keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (s *Service) List() []Product {
	return s.collect(nil)
}

// ListSorted orders by name, byte-wise ascending. Equal names fall back to id.
func (s *Service) ListSorted() []Product {
	out := s.collect(nil)
	slices.SortFunc(out, func(a, b Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out
}

// ListCheaperThan returns products priced strictly below maxPrice.
func (s *Service) ListCheaperThan(maxPrice float64) []Product {
	return s.collect(func(p Product) bool { return p.Price < maxPrice })
}

func (s *Service) GetByID(id string) (Product, bool) {
	return s.store.FindByID(id)
}

// Create assigns a fresh id when p has none, stores p and announces it.
func (s *Service) Create(p Product) Product {
	if p.ID == "" {
		p.ID = s.freshID()
	}

	unlock := s.lock(p.ID)
	defer unlock()

	saved := s.store.Save(p)
	ev := s.hub.Publish(feed.Created, saved)

	s.log.Info("product created", zap.String("id", saved.ID), zap.Uint64("seq", ev.Seq))
	return saved
}

func (s *Service) freshID() string {
	for {
		id := s.newID()
		if _, taken := s.store.FindByID(id); !taken {
			return id
		}
	}
}

// Update replaces the product stored under id. The id embedded in p is
// ignored. It reports false, without side effects, when id is unknown.
func (s *Service) Update(id string, p Product) (Product, bool) {
	unlock := s.lock(id)
	defer unlock()

	if _, ok := s.store.FindByID(id); !ok {
		return Product{}, false
	}

	p.ID = id
	saved := s.store.Save(p)
	ev := s.hub.Publish(feed.Updated, saved)

	s.log.Info("product updated", zap.String("id", id), zap.Uint64("seq", ev.Seq))
	return saved, true
}

// Delete announces the product's last state and then removes it. It reports
// false when id is unknown.
func (s *Service) Delete(id string) bool {
	unlock := s.lock(id)
	defer unlock()

	p, ok := s.store.FindByID(id)
	if !ok {
		return false
	}

	ev := s.hub.Publish(feed.Deleted, p)
	s.store.DeleteByID(id)

	s.log.Info("product deleted", zap.String("id", id), zap.Uint64("seq", ev.Seq))
	return true
}

// Subscribe attaches a new feed consumer. Callers must Close it.
func (s *Service) Subscribe() *feed.Subscription[Product] {
	return s.hub.Subscribe()
}

func (s *Service) Subscribers() int { return s.hub.Len() }

// Closed reports whether the feed has been shut down.
func (s *Service) Closed() bool { return s.hub.Closed() }

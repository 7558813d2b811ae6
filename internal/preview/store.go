package preview

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

// PathPrefix is the URL prefix every preview URI starts with.
const PathPrefix = "/preview/"

// Item is the payload behind one preview URI
type Item struct {
	MIMEType string
	Data     []byte
}

// Store holds image bytes behind short-lived display URIs.
// A URI stays valid until Release is called with it.
type Store struct {
	items map[string]Item
	mu    sync.RWMutex
}

func NewStore() *Store {
	return &Store{
		items: make(map[string]Item),
	}
}

// Create registers data and returns its display URI.
func (s *Store) Create(mimeType string, data []byte) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = Item{MIMEType: mimeType, Data: data}
	return PathPrefix + id
}

// Get looks up a preview by bare ID or by full URI.
func (s *Store) Get(id string) (Item, bool) {
	id = strings.TrimPrefix(id, PathPrefix)

	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	return item, ok
}

// Release frees the bytes behind uri. Unknown URIs are ignored.
func (s *Store) Release(uri string) {
	id := strings.TrimPrefix(uri, PathPrefix)

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

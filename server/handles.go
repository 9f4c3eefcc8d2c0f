package server

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/scopeproxy/proxy"
)

// errHandleNotFound is returned for unknown or swept handles.
var errHandleNotFound = errors.New("handle not found")

// handle is a server-side reference to a live proxy. Proxies are not safe
// for concurrent use, so calls on one handle are serialized by mu.
type handle struct {
	mu       sync.Mutex
	id       string
	proxy    *proxy.Proxy
	typeID   string
	created  time.Time
	lastUsed time.Time
}

// HandleStore maps opaque string IDs to proxies created over RPC.
type HandleStore struct {
	mu      sync.Mutex
	handles map[string]*handle
}

// NewHandleStore creates a new handle store.
func NewHandleStore() *HandleStore {
	return &HandleStore{
		handles: make(map[string]*handle),
	}
}

// handlePrefix starts every handle ID.
const handlePrefix = "proxy_"

// Create registers a proxy and returns an opaque handle ID. IDs are random,
// so a client cannot guess the handles of other clients.
func (s *HandleStore) Create(p *proxy.Proxy) string {
	id := handlePrefix + uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	s.handles[id] = &handle{
		id:       id,
		proxy:    p,
		typeID:   p.Type().Model().TypeID(),
		created:  now,
		lastUsed: now,
	}
	return id
}

// Lookup retrieves the proxy for a handle and marks it used.
func (s *HandleStore) Lookup(id string) (*proxy.Proxy, bool) {
	h, ok := s.get(id)
	if !ok {
		return nil, false
	}
	return h.proxy, true
}

// Do runs fn with exclusive use of the proxy behind id.
func (s *HandleStore) Do(id string, fn func(p *proxy.Proxy) error) error {
	h, ok := s.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", errHandleNotFound, id)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.proxy)
}

func (s *HandleStore) get(id string) (*handle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.handles[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = time.Now()
	return h, true
}

// Release removes a handle. Releasing an unknown handle is a no-op.
func (s *HandleStore) Release(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.handles[id]
	delete(s.handles, id)
	return ok
}

// Len returns the number of live handles.
func (s *HandleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

// Sweep removes handles that haven't been accessed within the TTL.
func (s *HandleStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	removed := 0
	for id, h := range s.handles {
		if h.lastUsed.Before(cutoff) {
			log.Debugf("sweeping %s (%s)", id, h.typeID)
			delete(s.handles, id)
			removed++
		}
	}
	return removed
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *HandleStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

package cache

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps proximity state in process memory
type MemoryStore struct {
	c *gocache.Cache
}

// NewMemoryStore creates a store whose entries expire after ttl
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{c: gocache.New(ttl, 2*ttl)}
}

// InRange reports the last stored state; unknown alerts are out of range
func (s *MemoryStore) InRange(_ context.Context, alertID string) (bool, error) {
	v, ok := s.c.Get(stateKey(alertID))
	if !ok {
		return false, nil
	}
	in, _ := v.(bool)
	return in, nil
}

// SetInRange stores the state and restarts its expiry
func (s *MemoryStore) SetInRange(_ context.Context, alertID string, inRange bool) error {
	s.c.Set(stateKey(alertID), inRange, gocache.DefaultExpiration)
	return nil
}

// Forget drops the state of an alert
func (s *MemoryStore) Forget(_ context.Context, alertID string) error {
	s.c.Delete(stateKey(alertID))
	return nil
}

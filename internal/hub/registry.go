package hub

import "sync"

// registry maps a user ID to that user's live connections. Buckets carry
// their own lock so Accept/Remove/Publish for different users never
// contend; operations on the same user serialize on the bucket.
type registry struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
}

type bucket struct {
	mu    sync.Mutex
	conns map[string]*connection
	// dead marks a bucket that has been unlinked from the registry; an
	// add that raced the unlink retries against a fresh bucket.
	dead bool
}

func newRegistry() *registry {
	return &registry{
		buckets: make(map[string]*bucket),
	}
}

func (r *registry) bucketFor(userID string) *bucket {
	r.mu.RLock()
	b, ok := r.buckets[userID]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok = r.buckets[userID]
	if !ok {
		b = &bucket{conns: make(map[string]*connection)}
		r.buckets[userID] = b
	}
	return b
}

func (r *registry) add(userID string, c *connection) {
	for {
		b := r.bucketFor(userID)
		b.mu.Lock()
		if b.dead {
			b.mu.Unlock()
			continue
		}
		b.conns[c.id] = c
		b.mu.Unlock()
		return
	}
}

func (r *registry) remove(userID, connID string) {
	r.mu.Lock()
	b, ok := r.buckets[userID]
	if !ok {
		r.mu.Unlock()
		return
	}

	b.mu.Lock()
	delete(b.conns, connID)
	if len(b.conns) == 0 {
		b.dead = true
		delete(r.buckets, userID)
	}
	b.mu.Unlock()
	r.mu.Unlock()
}

// connections returns a snapshot of the user's live connections. Fan-out
// iterates the snapshot, never the live map.
func (r *registry) connections(userID string) []*connection {
	r.mu.RLock()
	b, ok := r.buckets[userID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	snapshot := make([]*connection, 0, len(b.conns))
	for _, c := range b.conns {
		snapshot = append(snapshot, c)
	}
	return snapshot
}

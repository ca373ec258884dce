package images

import "sync"

// resultCache memoizes Process results by source content hash.
type resultCache struct {
	mu      sync.RWMutex
	results map[string]Result
}

func newResultCache() *resultCache {
	return &resultCache{results: make(map[string]Result)}
}

// getOrCreate returns the cached result for key. It tries a read lock first
// and only takes the write lock when the result has to be produced.
func (c *resultCache) getOrCreate(key string, create func() (Result, error)) (Result, error) {
	c.mu.RLock()
	if r, ok := c.results[key]; ok {
		c.mu.RUnlock()
		return r, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if r, ok := c.results[key]; ok {
		return r, nil
	}
	r, err := create()
	if err != nil {
		return Result{}, err
	}
	c.results[key] = r
	return r, nil
}

// Len reports the number of memoized sources.
func (c *resultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.results)
}

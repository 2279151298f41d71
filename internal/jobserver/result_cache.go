package jobserver

import (
	"container/list"
	"sync"
	"time"

	"github.com/masa-finance/unified-scraper/api/types"
)

// Default values
const (
	defaultMaxSize = 1000
	defaultMaxAge  = 600 * time.Second
)

// BatchEntry is what the cache holds for one batch. Done is false while the batch is still running.
type BatchEntry struct {
	Done   bool
	Report types.BatchReport
}

type cacheEntry struct {
	key       string
	result    BatchEntry
	timestamp time.Time
	element   *list.Element // pointer to the element in the list
}

type ResultCache struct {
	lock    sync.Mutex
	entries map[string]*cacheEntry
	order   *list.List // oldest at Front, newest at Back
	maxSize int
	maxAge  time.Duration
	stop    chan struct{}
	once    sync.Once
}

// NewResultCache creates a new ResultCache with the specified maxSize and maxAge
func NewResultCache(maxSize int, maxAge time.Duration) *ResultCache {
	if maxSize <= 0 {
		maxSize = defaultMaxSize
	}
	if maxAge <= 0 {
		maxAge = defaultMaxAge
	}
	rc := &ResultCache{
		entries: make(map[string]*cacheEntry),
		order:   list.New(),
		maxSize: maxSize,
		maxAge:  maxAge,
		stop:    make(chan struct{}),
	}
	go rc.periodicCleanup()
	return rc
}

func (rc *ResultCache) Set(key string, result BatchEntry) {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	if entry, exists := rc.entries[key]; exists {
		// Update and move to back
		entry.result = result
		entry.timestamp = time.Now()
		rc.order.MoveToBack(entry.element)
		return
	}
	entry := &cacheEntry{
		key:       key,
		result:    result,
		timestamp: time.Now(),
	}
	entry.element = rc.order.PushBack(entry)
	rc.entries[key] = entry
	for len(rc.entries) > rc.maxSize {
		oldest := rc.order.Front()
		if oldest != nil {
			oldestEntry := oldest.Value.(*cacheEntry)
			delete(rc.entries, oldestEntry.key)
			rc.order.Remove(oldest)
		}
	}
}

func (rc *ResultCache) Get(key string) (BatchEntry, bool) {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	entry, exists := rc.entries[key]
	if !exists {
		return BatchEntry{}, false
	}
	if time.Since(entry.timestamp) > rc.maxAge {
		rc.order.Remove(entry.element)
		delete(rc.entries, key)
		return BatchEntry{}, false
	}
	return entry.result, true
}

// Len returns the number of cached batches, expired ones included until the next cleanup.
func (rc *ResultCache) Len() int {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	return len(rc.entries)
}

// Close stops the cleanup goroutine.
func (rc *ResultCache) Close() {
	rc.once.Do(func() { close(rc.stop) })
}

func (rc *ResultCache) periodicCleanup() {
	ticker := time.NewTicker(rc.maxAge / 2)
	defer ticker.Stop()
	for {
		select {
		case <-rc.stop:
			return
		case <-ticker.C:
			rc.cleanupExpired()
		}
	}
}

func (rc *ResultCache) cleanupExpired() {
	rc.lock.Lock()
	defer rc.lock.Unlock()
	now := time.Now()
	for e := rc.order.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*cacheEntry)
		if now.Sub(entry.timestamp) > rc.maxAge {
			delete(rc.entries, entry.key)
			rc.order.Remove(e)
		}
		e = next
	}
}

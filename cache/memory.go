package cache

import (
	"context"
	"sync"
	"time"

	"ecommerce_recommend/models"
)

// MemoryCache 是进程内的推荐缓存，未配置Redis时使用，也用于测试。
// 读写锁保护map，整条目替换，过期条目在读取时惰性清除。
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[int64]*memoryEntry
	ttl     time.Duration // 0表示不过期
}

type memoryEntry struct {
	recs     []models.Recommendation
	expireAt time.Time // 零值表示不过期
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[int64]*memoryEntry),
		ttl:     ttl,
	}
}

func (c *MemoryCache) Get(_ context.Context, userID int64) ([]models.Recommendation, bool, error) {
	c.mu.RLock()
	entry, ok := c.entries[userID]
	c.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expireAt.IsZero() && time.Now().After(entry.expireAt) {
		c.mu.Lock()
		// 重查后再删，Get和Put之间条目可能已被替换
		if cur, ok := c.entries[userID]; ok && cur == entry {
			delete(c.entries, userID)
		}
		c.mu.Unlock()
		return nil, false, nil
	}

	// 返回副本，调用方的修改不会影响缓存内容
	recs := make([]models.Recommendation, len(entry.recs))
	copy(recs, entry.recs)
	return recs, true, nil
}

func (c *MemoryCache) Put(_ context.Context, userID int64, recs []models.Recommendation) error {
	stored := make([]models.Recommendation, len(recs))
	copy(stored, recs)

	entry := &memoryEntry{recs: stored}
	if c.ttl > 0 {
		entry.expireAt = time.Now().Add(c.ttl)
	}

	c.mu.Lock()
	c.entries[userID] = entry
	c.mu.Unlock()
	return nil
}

func (c *MemoryCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	delete(c.entries, userID)
	c.mu.Unlock()
	return nil
}

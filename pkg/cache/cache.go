// Package cache 提供了一个简单的进程内 TTL 缓存，用于加速高频读取路径。
// 缓存只是优化层：调用方必须能在未命中时自行重新计算数据。
package cache

import (
	"sync"
	"time"
)

// DefaultTTL 是未显式指定 TTL 时条目的默认存活时间。
const DefaultTTL = 5 * time.Minute

// entry 是缓存中的一个条目，值为不透明负载，归插入它的调用方所有。
type entry struct {
	value     interface{}
	expiresAt time.Time
}

// MemoryCache 是一个带过期时间的内存键值缓存。
// 所有操作都持有互斥锁，可以被多个 goroutine 并发使用；
// 但不保证 Get 与并发 Set/Delete 之间的事务可见性。
type MemoryCache struct {
	mu         sync.Mutex
	items      map[string]entry
	defaultTTL time.Duration
}

// NewMemoryCache 创建一个新的 MemoryCache。
// defaultTTL <= 0 时使用 DefaultTTL。
func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemoryCache{
		items:      make(map[string]entry),
		defaultTTL: defaultTTL,
	}
}

// Set 以给定 TTL 存入一个值，无条件覆盖同 key 的旧条目。
// 不传 ttl 或传入非正值时使用默认 TTL。
func (c *MemoryCache) Set(key string, value interface{}, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}
	c.mu.Lock()
	c.items[key] = entry{value: value, expiresAt: time.Now().Add(d)}
	c.mu.Unlock()
}

// Get 返回 key 对应的值。未命中或已过期时返回 (nil, false)；
// 过期条目会在读取时被顺带删除（惰性淘汰）。
func (c *MemoryCache) Get(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.items[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		delete(c.items, key)
		return nil, false
	}
	return item.value, true
}

// Delete 删除一个条目，key 不存在时为空操作。
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	delete(c.items, key)
	c.mu.Unlock()
}

// Clear 清空所有条目。
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.items = make(map[string]entry)
	c.mu.Unlock()
}

// Len 返回当前条目数（包含尚未被淘汰的过期条目）。
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Cleanup 扫描一遍所有条目，删除其中已过期的。
// 用于兜底清理那些写入后再也不会被读到的条目。
func (c *MemoryCache) Cleanup() {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, item := range c.items {
		if now.After(item.expiresAt) {
			delete(c.items, key)
		}
	}
}

// StartCleanupLoop 启动一个后台 goroutine，按固定间隔执行 Cleanup。
// 返回的函数用于停止该 goroutine（停机或测试收尾时调用）。
func (c *MemoryCache) StartCleanupLoop(interval time.Duration) (stop func()) {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				c.Cleanup()
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

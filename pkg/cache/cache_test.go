package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGet(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", "v", time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "v", got)
}

func TestGetMiss(t *testing.T) {
	c := NewMemoryCache(0)

	_, ok := c.Get("missing")
	assert.False(t, ok)
}

func TestExpiredGetIsAbsentAndLazilyEvicted(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", "v", 10*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.Get("k")
	assert.False(t, ok)

	// 过期读取应当顺带删除条目
	c.mu.Lock()
	_, present := c.items["k"]
	c.mu.Unlock()
	assert.False(t, present)
}

func TestSetOverwritesValueAndExpiry(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("k", "old", 10*time.Millisecond)
	c.Set("k", "new", time.Minute)
	time.Sleep(20 * time.Millisecond)

	// 第二次 Set 刷新了过期时间，旧的短 TTL 不再生效
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", got)
}

func TestDeleteAndClear(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("a", 1)
	c.Set("b", 2)

	c.Delete("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	// 删除不存在的 key 是空操作
	c.Delete("missing")

	c.Clear()
	_, ok = c.Get("b")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCleanupRemovesOnlyExpiredEntries(t *testing.T) {
	c := NewMemoryCache(0)

	c.Set("expired1", 1, 10*time.Millisecond)
	c.Set("expired2", 2, 10*time.Millisecond)
	c.Set("fresh", 3, time.Minute)
	time.Sleep(20 * time.Millisecond)

	c.Cleanup()

	assert.Equal(t, 1, c.Len())
	got, ok := c.Get("fresh")
	require.True(t, ok)
	assert.Equal(t, 3, got)
}

func TestDefaultTTLApplied(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)

	c.Set("k", "v") // 未指定 TTL，使用默认值
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestStartCleanupLoop(t *testing.T) {
	c := NewMemoryCache(0)
	c.Set("k", "v", 10*time.Millisecond)

	stop := c.StartCleanupLoop(20 * time.Millisecond)
	defer stop()

	// 等待后台清理跑过至少一轮，未被读取的过期条目也应被移除
	assert.Eventually(t, func() bool {
		return c.Len() == 0
	}, 500*time.Millisecond, 10*time.Millisecond)

	// 重复调用 stop 不应 panic
	stop()
	stop()
}

package core

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"
)

func newTestCache(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	logger := zaptest.NewLogger(t).Sugar()
	cache := NewRedisCache(mr.Addr(), "", 0, 10, logger)
	t.Cleanup(func() { cache.Close() })

	return mr, cache
}

func TestRedisCache_SetGet(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	type TestStruct struct {
		Name  string `json:"name"`
		Value int    `json:"value"`
	}

	testData := TestStruct{Name: "test", Value: 42}
	key := "test_key"

	if err := cache.Set(ctx, key, testData, time.Minute); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}

	var result TestStruct
	found, err := cache.Get(ctx, key, &result)
	if err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if !found {
		t.Fatal("Expected key to be found")
	}
	if result.Name != testData.Name || result.Value != testData.Value {
		t.Errorf("Expected %+v, got %+v", testData, result)
	}
}

func TestRedisCache_Get_NotFound(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	var result string
	found, err := cache.Get(ctx, "nonexistent_key", &result)
	if err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if found {
		t.Error("Expected key to not be found")
	}
}

func TestRedisCache_Delete(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()
	key := "test_key"

	if err := cache.Set(ctx, key, "test_value", time.Minute); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}

	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Failed to delete key: %v", err)
	}

	var result string
	found, err := cache.Get(ctx, key, &result)
	if err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if found {
		t.Error("Key should not exist after deletion")
	}
}

func TestRedisCache_Expiration(t *testing.T) {
	mr, cache := newTestCache(t)
	ctx := context.Background()
	key := CacheKeyTopThreats

	if err := cache.Set(ctx, key, []string{"10.0.0.1"}, 15*time.Second); err != nil {
		t.Fatalf("Failed to set cache value: %v", err)
	}

	// miniredis only expires keys when the clock is advanced explicitly
	mr.FastForward(16 * time.Second)

	var result []string
	found, err := cache.Get(ctx, key, &result)
	if err != nil {
		t.Fatalf("Failed to get cache value: %v", err)
	}
	if found {
		t.Error("Expected key to expire")
	}
}

func TestRedisCache_DeleteMultiple(t *testing.T) {
	_, cache := newTestCache(t)
	ctx := context.Background()

	keys := []string{CacheKeyActiveBlocklist, CacheKeyTopThreats}
	for _, key := range keys {
		if err := cache.Set(ctx, key, "cached", time.Minute); err != nil {
			t.Fatalf("Failed to set cache value: %v", err)
		}
	}

	if err := cache.Delete(ctx, keys...); err != nil {
		t.Fatalf("Failed to delete keys: %v", err)
	}

	for _, key := range keys {
		var result string
		if found, _ := cache.Get(ctx, key, &result); found {
			t.Errorf("Key %s should not exist after deletion", key)
		}
	}
}

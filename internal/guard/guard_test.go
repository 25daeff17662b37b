package guard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestMemoryGuardBeginOnce(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	ok, err := g.Begin(ctx, "org-1", "prop-1")
	if err != nil || !ok {
		t.Fatalf("first Begin: ok=%v err=%v", ok, err)
	}
	ok, _ = g.Begin(ctx, "org-1", "prop-1")
	if ok {
		t.Error("second Begin on a held claim must return false")
	}

	// Different proposal and different org are independent claims.
	if ok, _ := g.Begin(ctx, "org-1", "prop-2"); !ok {
		t.Error("unrelated proposal should claim")
	}
	if ok, _ := g.Begin(ctx, "org-2", "prop-1"); !ok {
		t.Error("same proposal in another org should claim")
	}

	if err := g.Remove(ctx, "org-1", "prop-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.Begin(ctx, "org-1", "prop-1"); !ok {
		t.Error("Begin after Remove must claim again")
	}
}

func TestMemoryGuardConcurrentBegin(t *testing.T) {
	ctx := context.Background()
	g := NewMemoryGuard()

	const attempts = 50
	var wg sync.WaitGroup
	wins := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := g.Begin(ctx, "org-1", "prop-1")
			if err != nil {
				t.Error(err)
				return
			}
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	if won != 1 {
		t.Errorf("exactly one goroutine must claim, got %d", won)
	}
}

func newRedisGuard(t *testing.T, ttl time.Duration) (*RedisGuard, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	g := NewRedisGuardWithClient(client, ttl)
	t.Cleanup(func() { g.Close() })
	return g, mr
}

func TestRedisGuardBeginOnce(t *testing.T) {
	ctx := context.Background()
	g, _ := newRedisGuard(t, time.Minute)

	ok, err := g.Begin(ctx, "org-1", "prop-1")
	if err != nil || !ok {
		t.Fatalf("first Begin: ok=%v err=%v", ok, err)
	}
	if ok, _ := g.Begin(ctx, "org-1", "prop-1"); ok {
		t.Error("held claim must not be reclaimed")
	}

	if err := g.Remove(ctx, "org-1", "prop-1"); err != nil {
		t.Fatal(err)
	}
	if ok, _ := g.Begin(ctx, "org-1", "prop-1"); !ok {
		t.Error("Begin after Remove must claim again")
	}
}

func TestRedisGuardClaimExpires(t *testing.T) {
	ctx := context.Background()
	g, mr := newRedisGuard(t, time.Minute)

	if ok, _ := g.Begin(ctx, "org-1", "prop-1"); !ok {
		t.Fatal("claim failed")
	}
	mr.FastForward(2 * time.Minute)
	if ok, _ := g.Begin(ctx, "org-1", "prop-1"); !ok {
		t.Error("claim must lapse after the TTL")
	}
}

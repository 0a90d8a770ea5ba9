//go:build !integration

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"music-taste-agent/internal/config"
	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
)

// newTestClient connects to REDIS_ADDR (default localhost:6379) or skips.
func newTestClient(t *testing.T) *Client {
	t.Helper()
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	c, err := NewClient(ctx, config.RedisConfig{URL: addr, DB: 15})
	if err != nil {
		t.Skipf("redis not available at %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestStateRepo_RoundTrip(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	repo := NewStateRepo(c)
	id := "test_" + uuid.NewString()
	t.Cleanup(func() { _ = c.Del(ctx, stateKey(id)) })

	if _, err := repo.Load(ctx, id); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	st := model.NewAgentState(time.Now())
	st.AddSession(model.NewListeningSession("s1", "Blue", "X", "Jazz", "Chill", nil, time.Now()))
	st.AddTurn(model.RoleUser, "hi")
	if err := repo.Save(ctx, id, st); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := repo.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got.ListeningSessions) != 1 || got.ConversationHistory[0].Content != "hi" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestRedisLocker(t *testing.T) {
	c := newTestClient(t)
	nop := zerolog.Nop()
	l := NewLocker(c, 5*time.Second, &nop)
	id := "test_" + uuid.NewString()

	_, release, err := l.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, _, err := l.Acquire(ctx, id); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	release()
	_, release2, err := l.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	release2()
}

type fakeCounter struct {
	RedisClient
	n       int64
	expires int
}

func (f *fakeCounter) Incr(ctx context.Context, key string) (int64, error) {
	f.n++
	return f.n, nil
}

func (f *fakeCounter) Expire(ctx context.Context, key string, d time.Duration) error {
	f.expires++
	return nil
}

func TestRateLimiter_Allow(t *testing.T) {
	fc := &fakeCounter{}
	rl := NewRateLimiter(fc)
	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		ok, err := rl.Allow(ctx, ChatKey(7), 3, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		if want := i <= 3; ok != want {
			t.Fatalf("call %d: expected allow=%v", i, want)
		}
	}
	if fc.expires != 1 {
		t.Errorf("expected a single EXPIRE, got %d", fc.expires)
	}
}

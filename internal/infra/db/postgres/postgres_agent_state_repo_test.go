//go:build integration

package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"music-taste-agent/internal/domain"
	"music-taste-agent/internal/domain/model"
	"music-taste-agent/internal/infra/db/snapshot"
	"music-taste-agent/internal/infra/security"
	"music-taste-agent/internal/usecase"
)

func TestAgentStateRepo_SaveLoad(t *testing.T) {
	cleanup(t)
	ctx := context.Background()
	enc, err := security.NewEncryptionService("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatal(err)
	}

	for name, codec := range map[string]snapshot.Codec{
		"plain":     snapshot.NewCodec(nil),
		"encrypted": snapshot.NewCodec(enc),
	} {
		t.Run(name, func(t *testing.T) {
			repo := NewPostgresAgentStateRepo(testPool, codec)
			id := agentID(t)

			if _, err := repo.Load(ctx, id); !errors.Is(err, domain.ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}

			st := model.NewAgentState(time.Now())
			st.AddSession(model.NewListeningSession("s1", "Blue", "X", "Jazz", "Chill", nil, time.Now()))
			if err := repo.Save(ctx, id, st); err != nil {
				t.Fatalf("Save: %v", err)
			}
			st.AddTurn(model.RoleUser, "hello")
			if err := repo.Save(ctx, id, st); err != nil {
				t.Fatalf("Save (update): %v", err)
			}

			got, err := repo.Load(ctx, id)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got.ListeningSessions) != 1 || len(got.ConversationHistory) != 1 {
				t.Fatalf("unexpected snapshot: %+v", got)
			}

			var encrypted bool
			if err := testPool.QueryRow(ctx, `SELECT encrypted FROM agent_states WHERE agent_id=$1`, id).Scan(&encrypted); err != nil {
				t.Fatal(err)
			}
			if encrypted != codec.Encrypted() {
				t.Errorf("encrypted flag = %v, want %v", encrypted, codec.Encrypted())
			}
		})
	}
}

func TestAdvisoryLocker_Exclusive(t *testing.T) {
	locker := NewAdvisoryLocker(testPool, nil)
	id := agentID(t)

	_, release, err := locker.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, _, err := locker.Acquire(ctx, id); !errors.Is(err, domain.ErrLockTimeout) {
		t.Fatalf("expected ErrLockTimeout while held, got %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	acquired := make(chan struct{})
	go func() {
		defer wg.Done()
		_, r, err := locker.Acquire(context.Background(), id)
		if err != nil {
			t.Errorf("Acquire after release: %v", err)
			return
		}
		close(acquired)
		r()
	}()

	time.Sleep(50 * time.Millisecond)
	release()
	select {
	case <-acquired:
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not granted the lock after release")
	}
	wg.Wait()
}

// More concurrent writers than pool connections: each lock holder must do its
// load and save on the connection it already pinned.
func TestAgentStateRepo_LockedWritesDoNotStarvePool(t *testing.T) {
	cleanup(t)
	const maxConns = 2

	pc := testPool.Config()
	pc.MaxConns = maxConns
	pool, err := pgxpool.ConnectConfig(context.Background(), pc)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	uc := usecase.NewMusicAgentUseCase(
		NewPostgresAgentStateRepo(pool, snapshot.NewCodec(nil)),
		NewAdvisoryLocker(pool, nil),
		nil, nil, usecase.AgentOptions{}, nil,
	)

	agents := []string{agentID(t) + "_a", agentID(t) + "_b", agentID(t) + "_c"}
	const perAgent = 3

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, len(agents)*perAgent)
	for _, id := range agents {
		for i := 0; i < perAgent; i++ {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := uc.LogSong(ctx, id, usecase.LogSongInput{Song: "Blue", Artist: "X", Genre: "Jazz", Mood: "Chill"})
				errs <- err
			}(id)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("LogSong: %v", err)
		}
	}

	for _, id := range agents {
		sessions, err := uc.GetListeningSessions(ctx, id)
		if err != nil {
			t.Fatalf("GetListeningSessions(%s): %v", id, err)
		}
		if len(sessions) != perAgent {
			t.Errorf("agent %s: expected %d sessions, got %d", id, perAgent, len(sessions))
		}
	}
}

func TestAdvisoryLocker_ContextCarriesConn(t *testing.T) {
	locker := NewAdvisoryLocker(testPool, nil)
	locked, release, err := locker.Acquire(context.Background(), agentID(t))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer release()

	if _, ok := connFrom(locked); !ok {
		t.Fatal("expected the locked context to carry the pinned connection")
	}
	if _, ok := connFrom(context.Background()); ok {
		t.Fatal("plain context must not carry a connection")
	}
}

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"campfire/api/internal/store"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	sessions, err := NewRedisStore("redis://" + mr.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore() error = %v", err)
	}
	return sessions, mr
}

func TestSaveAndLookupRefreshSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	defer mr.Close()

	ctx := context.Background()
	profile := store.Profile{ID: "prof_1", DisplayName: "Avery", Role: "mentor"}

	if err := sessions.SaveRefreshSession(ctx, "hash-1", profile, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	got, err := sessions.LookupRefreshSession(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRefreshSession() error = %v", err)
	}
	if got.ID != "prof_1" || got.DisplayName != "Avery" || got.Role != "mentor" {
		t.Fatalf("unexpected session profile: %+v", got)
	}
}

func TestLookupExpiredSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	defer mr.Close()

	ctx := context.Background()
	profile := store.Profile{ID: "prof_1", Role: "user"}
	if err := sessions.SaveRefreshSession(ctx, "hash-1", profile, time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	mr.FastForward(2 * time.Millisecond)

	if _, err := sessions.LookupRefreshSession(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestLookupNonExistentSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	defer mr.Close()

	if _, err := sessions.LookupRefreshSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession() error = %v, want ErrSessionNotFound", err)
	}
}

func TestRevokeRefreshSession(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	defer mr.Close()

	ctx := context.Background()
	profile := store.Profile{ID: "prof_1", Role: "user"}
	if err := sessions.SaveRefreshSession(ctx, "hash-1", profile, time.Now().Add(24*time.Hour)); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	if err := sessions.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession() error = %v", err)
	}
	if _, err := sessions.LookupRefreshSession(ctx, "hash-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("LookupRefreshSession() after revoke error = %v, want ErrSessionNotFound", err)
	}

	// Revoking again is a no-op.
	if err := sessions.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession() repeat error = %v", err)
	}
}

func TestSessionIsolation(t *testing.T) {
	sessions, mr := setupTestRedis(t)
	defer sessions.Close()
	defer mr.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := sessions.SaveRefreshSession(ctx, "hash-1", store.Profile{ID: "prof_1", Role: "user"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}
	if err := sessions.SaveRefreshSession(ctx, "hash-2", store.Profile{ID: "prof_2", Role: "user"}, expiresAt); err != nil {
		t.Fatalf("SaveRefreshSession() error = %v", err)
	}

	if err := sessions.RevokeRefreshSession(ctx, "hash-1"); err != nil {
		t.Fatalf("RevokeRefreshSession() error = %v", err)
	}

	if _, err := sessions.LookupRefreshSession(ctx, "hash-1"); err == nil {
		t.Fatal("expected revoked session to be gone")
	}
	got, err := sessions.LookupRefreshSession(ctx, "hash-2")
	if err != nil {
		t.Fatalf("LookupRefreshSession() error = %v", err)
	}
	if got.ID != "prof_2" {
		t.Fatalf("expected prof_2, got %s", got.ID)
	}
}

package idempotency_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/clock"
	"github.com/aruspay/aruspay/internal/idempotency"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE idempotency_keys (
			id BIGINT PRIMARY KEY,
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			response TEXT,
			created_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_idempotency_scope_key ON idempotency_keys(scope, key)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

func newStore(t *testing.T) (idempotency.Store, *clock.FakeClock) {
	t.Helper()
	db := setupTestDB(t)
	node, err := snowflake.NewNode(13)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	fc := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := idempotency.NewStore(idempotency.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fc,
	})
	return store, fc
}

func TestRememberAndReplay(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	if record, err := store.Get(ctx, "deposit:1", "key-a"); err != nil || record != nil {
		t.Fatalf("expected empty store, got %+v err %v", record, err)
	}

	stored, ok, err := store.Remember(ctx, "deposit:1", "key-a", 201, []byte(`{"id":"42"}`))
	if err != nil {
		t.Fatalf("Remember: %v", err)
	}
	if !ok {
		t.Fatal("expected the first write to win")
	}
	if stored.StatusCode != 201 {
		t.Fatalf("expected status 201, got %d", stored.StatusCode)
	}

	replay, err := store.Get(ctx, "deposit:1", "key-a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if replay == nil || replay.ID != stored.ID {
		t.Fatalf("expected replay of stored record, got %+v", replay)
	}
	if string(replay.Response) != `{"id":"42"}` {
		t.Fatalf("unexpected response body %s", replay.Response)
	}
}

func TestRememberLosesRaceToFirstWriter(t *testing.T) {
	ctx := context.Background()
	store, fc := newStore(t)

	first, ok, err := store.Remember(ctx, "withdrawal:1", "key-b", 201, []byte(`{"attempt":1}`))
	if err != nil || !ok {
		t.Fatalf("first Remember: %v ok=%v", err, ok)
	}

	fc.Advance(5 * time.Minute)
	second, ok, err := store.Remember(ctx, "withdrawal:1", "key-b", 201, []byte(`{"attempt":2}`))
	if err != nil {
		t.Fatalf("second Remember: %v", err)
	}
	if ok {
		t.Fatal("expected the second write to lose")
	}
	if second.ID != first.ID {
		t.Fatalf("expected the first record to win, got %+v", second)
	}
	if string(second.Response) != `{"attempt":1}` {
		t.Fatalf("unexpected canonical response %s", second.Response)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Fatalf("expected the first writer's timestamp, got %v", second.CreatedAt)
	}
}

func TestScopesAreIndependent(t *testing.T) {
	ctx := context.Background()
	store, _ := newStore(t)

	if _, ok, err := store.Remember(ctx, "deposit:1", "key-c", 201, []byte(`{}`)); err != nil || !ok {
		t.Fatalf("Remember deposit: %v ok=%v", err, ok)
	}
	if _, ok, err := store.Remember(ctx, "withdrawal:1", "key-c", 201, []byte(`{}`)); err != nil || !ok {
		t.Fatalf("expected the same key in another scope to store: %v ok=%v", err, ok)
	}
}

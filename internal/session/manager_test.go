package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"uploadflow/internal/logging"
	"uploadflow/internal/services"
	"uploadflow/internal/testsupport"
)

func newTestManager(t *testing.T, ttl time.Duration) *Manager {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	return NewManager(cfg.Paths.UploadsRoot, store, ttl, logging.NewNop())
}

func TestValidateID(t *testing.T) {
	valid := []string{"0f8fad5b-d9cb-469f-a165-70867728950e"}
	invalid := []string{"", "..", "../etc", "0f8fad5b-d9cb-469f-a165-70867728950e/..", "0f8fad5bd9cb469fa16570867728950e", "urn:uuid:0f8fad5b-d9cb-469f-a165-70867728950e", "0F8FAD5B-D9CB-469F-A165-70867728950E"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Fatalf("ValidateID(%q): %v", id, err)
		}
	}
	for _, id := range invalid {
		if err := ValidateID(id); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("ValidateID(%q) should fail, got %v", id, err)
		}
	}
}

func TestCreateAndResolve(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()

	s, err := m.Create(ctx, "/home/me/clip.mov")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Dir != filepath.Join(m.Root(), s.ID) {
		t.Fatalf("unexpected dir %s", s.Dir)
	}
	if info, err := os.Stat(s.Dir); err != nil || !info.IsDir() {
		t.Fatalf("session dir missing: %v", err)
	}

	resolved, err := m.Resolve(ctx, s.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if resolved != s {
		t.Fatalf("resolved %+v, want %+v", resolved, s)
	}

	sessions, err := m.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].OriginalName != "clip.mov" {
		t.Fatalf("unexpected index %+v", sessions)
	}
}

func TestResolveUnknownSession(t *testing.T) {
	m := newTestManager(t, time.Hour)
	_, err := m.Resolve(context.Background(), "0f8fad5b-d9cb-469f-a165-70867728950e")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestResolveReindexesOrphanDirectory(t *testing.T) {
	m := newTestManager(t, time.Hour)
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	if err := os.MkdirAll(filepath.Join(m.Root(), id), 0o755); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Resolve(context.Background(), id); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	sessions, err := m.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].ID != id {
		t.Fatalf("expected orphan to be indexed, got %+v", sessions)
	}
}

func TestLockIsExclusive(t *testing.T) {
	m := newTestManager(t, time.Hour)
	s, err := m.Create(context.Background(), "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	unlock, err := m.Lock(s)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, err := m.Lock(s); !errors.Is(err, ErrBusy) {
		t.Fatalf("second Lock should report busy, got %v", err)
	}
	if err := m.Delete(context.Background(), s.ID); !errors.Is(err, ErrBusy) {
		t.Fatalf("Delete of a locked session should report busy, got %v", err)
	}
	unlock()

	again, err := m.Lock(s)
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	again()
}

func TestDelete(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()
	s, err := m.Create(ctx, "a.mp4")
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(s.Dir); !os.IsNotExist(err) {
		t.Fatalf("session dir should be gone, stat err=%v", err)
	}
	if err := m.Delete(ctx, s.ID); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("second Delete should report not found, got %v", err)
	}
	if err := m.Delete(ctx, "../../etc"); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("traversal should be rejected, got %v", err)
	}
}

func TestReapRemovesIdleSessions(t *testing.T) {
	m := newTestManager(t, time.Hour)
	ctx := context.Background()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return start }

	stale, err := m.Create(ctx, "stale.mp4")
	if err != nil {
		t.Fatal(err)
	}
	busy, err := m.Create(ctx, "busy.mp4")
	if err != nil {
		t.Fatal(err)
	}

	m.now = func() time.Time { return start.Add(50 * time.Minute) }
	fresh, err := m.Create(ctx, "fresh.mp4")
	if err != nil {
		t.Fatal(err)
	}

	unlock, err := m.Lock(busy)
	if err != nil {
		t.Fatal(err)
	}
	defer unlock()

	m.now = func() time.Time { return start.Add(90 * time.Minute) }
	removed, err := m.Reap(ctx)
	if err != nil {
		t.Fatalf("Reap: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one session reaped, got %d", removed)
	}
	if _, err := os.Stat(stale.Dir); !os.IsNotExist(err) {
		t.Fatal("stale session should be removed")
	}
	if _, err := os.Stat(busy.Dir); err != nil {
		t.Fatal("busy session must survive the pass")
	}
	if _, err := m.Resolve(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh session should remain: %v", err)
	}
}

func TestReapDisabledWithoutTTL(t *testing.T) {
	m := newTestManager(t, 0)
	removed, err := m.Reap(context.Background())
	if err != nil || removed != 0 {
		t.Fatalf("Reap = %d, %v", removed, err)
	}
}

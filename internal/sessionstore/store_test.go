package sessionstore_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"uploadflow/internal/services"
	"uploadflow/internal/sessionstore"
	"uploadflow/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	if store.Path() != filepath.Join(cfg.Paths.LogDir, sessionstore.FileName) {
		t.Fatalf("unexpected path %s", store.Path())
	}

	version, err := store.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion: %v", err)
	}
	if version != 2 {
		t.Fatalf("expected schema version 2, got %d", version)
	}

	// Reopening must not re-apply migrations.
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	reopened, err := sessionstore.OpenForConfig(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if version, err := reopened.SchemaVersion(context.Background()); err != nil || version != 2 {
		t.Fatalf("reopened schema version = %d, %v", version, err)
	}
}

func TestCreateGetTouch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	err := store.Create(ctx, sessionstore.Session{
		ID:           "b3c1f4e2-3d7a-4a43-9f3e-2f1d7c9b8a11",
		Dir:          "/uploads/b3c1",
		OriginalName: "holiday.mov",
		CreatedAt:    created,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := store.Get(ctx, "b3c1f4e2-3d7a-4a43-9f3e-2f1d7c9b8a11")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OriginalName != "holiday.mov" || !got.CreatedAt.Equal(created) || !got.LastAccess.Equal(created) {
		t.Fatalf("unexpected session %+v", got)
	}
	if got.UploadedAt != nil {
		t.Fatal("new session should not be uploaded")
	}

	later := created.Add(time.Hour)
	if err := store.Touch(ctx, got.ID, later); err != nil {
		t.Fatalf("Touch: %v", err)
	}
	if err := store.MarkUploaded(ctx, got.ID, later); err != nil {
		t.Fatalf("MarkUploaded: %v", err)
	}
	got, err = store.Get(ctx, got.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !got.LastAccess.Equal(later) || got.UploadedAt == nil || !got.UploadedAt.Equal(later) {
		t.Fatalf("unexpected session after update %+v", got)
	}
}

func TestMissingSession(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	if _, err := store.Get(ctx, "missing"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Get: expected not found, got %v", err)
	}
	if err := store.Touch(ctx, "missing", time.Now()); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("Touch: expected not found, got %v", err)
	}
	if err := store.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete of unknown id should succeed: %v", err)
	}
}

func TestExpiredAndList(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		at := base.Add(time.Duration(i) * 24 * time.Hour)
		if err := store.Create(ctx, sessionstore.Session{ID: id, Dir: "/u/" + id, CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}

	expired, err := store.Expired(ctx, base.Add(36*time.Hour))
	if err != nil {
		t.Fatalf("Expired: %v", err)
	}
	if len(expired) != 2 || expired[0].ID != "old" || expired[1].ID != "mid" {
		t.Fatalf("unexpected expired set %+v", expired)
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].ID != "new" {
		t.Fatalf("unexpected list order %+v", all)
	}

	if err := store.Delete(ctx, "old"); err != nil {
		t.Fatal(err)
	}
	all, err = store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected two sessions after delete, got %d", len(all))
	}
}

func TestCreateRequiresID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	if err := store.Create(context.Background(), sessionstore.Session{}); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

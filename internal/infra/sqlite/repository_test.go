package sqlite

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/vidfetch/vidfetch/internal/domain"
)

func testRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestCreateAndRecent(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := domain.NewDownloadRecord(fmt.Sprintf("rec-%d", i), "vid", "https://youtu.be/x", "mp4", "720p")
		rec.CreatedAt = time.Now().UTC().Add(time.Duration(i) * time.Second)
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	records, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].ID != "rec-2" {
		t.Errorf("first record = %s, want newest", records[0].ID)
	}
}

func TestUpdateLifecycle(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	rec := domain.NewDownloadRecord("rec-1", "vid", "https://youtu.be/x", "mp3", "highest")
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatal(err)
	}

	rec.MarkDone(domain.MethodExternalTool, true)
	if err := repo.Update(ctx, rec); err != nil {
		t.Fatal(err)
	}

	records, err := repo.Recent(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	got := records[0]
	if got.Status != domain.DownloadStatusDone {
		t.Errorf("status = %s", got.Status)
	}
	if got.Method != domain.MethodExternalTool {
		t.Errorf("method = %s", got.Method)
	}
	if !got.Translated {
		t.Error("translated flag lost")
	}
	if got.CompletedAt == nil {
		t.Error("completed_at missing")
	}
}

func TestUpdateMissingRecord(t *testing.T) {
	repo := testRepo(t)
	rec := domain.NewDownloadRecord("ghost", "vid", "u", "mp4", "720p")
	if err := repo.Update(context.Background(), rec); err == nil {
		t.Fatal("updating a missing record must fail")
	}
}

func TestDeleteOlderThan(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	old := domain.NewDownloadRecord("old", "vid", "u", "mp4", "720p")
	old.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)
	fresh := domain.NewDownloadRecord("fresh", "vid", "u", "mp4", "720p")

	for _, rec := range []*domain.DownloadRecord{old, fresh} {
		if err := repo.Create(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := repo.DeleteOlderThan(ctx, time.Now().UTC().Add(-24*time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	records, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].ID != "fresh" {
		t.Errorf("records = %+v, want only the fresh one", records)
	}
}

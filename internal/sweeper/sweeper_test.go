package sweeper

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"m5chat/pkg/blob"
	"m5chat/pkg/models"
	"m5chat/pkg/store"
)

func newFixtures(t *testing.T, ttl time.Duration) (*store.Store, *blob.FS) {
	t.Helper()
	st, err := store.Open(t.TempDir(), ttl)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	blobs, err := blob.New(t.TempDir(), 1<<20)
	if err != nil {
		t.Fatalf("blob.New: %v", err)
	}
	return st, blobs
}

func TestNewRejectsBadSchedule(t *testing.T) {
	st, blobs := newFixtures(t, time.Minute)
	if _, err := New(st, blobs, 0, ""); err == nil {
		t.Fatalf("zero interval accepted")
	}
	if _, err := New(st, blobs, 0, "not a cron"); err == nil {
		t.Fatalf("bad cron accepted")
	}
	if _, err := New(st, blobs, time.Minute, ""); err != nil {
		t.Fatalf("interval schedule rejected: %v", err)
	}
	if _, err := New(st, blobs, 0, "* * * * *"); err != nil {
		t.Fatalf("cron schedule rejected: %v", err)
	}
}

func TestRunOnceDeletesRowsAndFiles(t *testing.T) {
	st, blobs := newFixtures(t, time.Minute)

	url, path, err := blobs.Save(models.TypeImage, "cat.png", strings.NewReader("png bytes"))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	withFile, err := st.AppendMessage(store.AppendParams{
		Room: "pics", Username: "alice", Type: models.TypeImage,
		ImageURL: url, StoragePath: path,
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}
	plain, err := st.AppendMessage(store.AppendParams{
		Room: "pics", Username: "alice", Content: "hi", Type: models.TypeText,
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	sw, err := New(st, blobs, time.Minute, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// before expiry nothing moves
	sw.RunOnce(time.Unix(0, withFile.TS))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("file removed too early: %v", err)
	}

	sw.RunOnce(time.Unix(0, plain.ExpiresAt))
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("attachment file still present: %v", err)
	}
	live, err := st.ListLive("pics", time.Unix(0, plain.ExpiresAt))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("messages survived sweep: %+v", live)
	}
}

func TestRunOnceSurvivesMissingFile(t *testing.T) {
	st, blobs := newFixtures(t, time.Minute)

	m, err := st.AppendMessage(store.AppendParams{
		Room: "pics", Username: "alice", Type: models.TypeImage,
		ImageURL: "/uploads/gone.png", StoragePath: "/nonexistent/gone.png",
	})
	if err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	sw, err := New(st, blobs, time.Minute, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sw.RunOnce(time.Unix(0, m.ExpiresAt))

	live, err := st.ListLive("pics", time.Unix(0, m.ExpiresAt))
	if err != nil {
		t.Fatalf("ListLive: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("row survived sweep despite missing file")
	}
}

func TestStartHonorsCancel(t *testing.T) {
	st, blobs := newFixtures(t, time.Minute)
	sw, err := New(st, blobs, 10*time.Millisecond, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	cancel := sw.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	cancel()
}

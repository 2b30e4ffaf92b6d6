package audit

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := NewStorage(":memory:", "")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	entries := []Entry{
		{RequestID: "r1", Operation: "A3", Verb: "write", Paths: []string{"dates.txt", "dates-wednesdays.txt"}, Allowed: true, Status: 200},
		{RequestID: "r2", Operation: "B3", Verb: "read", Paths: []string{"../etc/passwd"}, Reason: "outside_sandbox", Detail: "path resolves outside the sandbox", Status: 403},
		{RequestID: "r3", Verb: "delete", Reason: "restricted_operation", Status: 400},
	}
	for _, e := range entries {
		if err := s.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := s.Recent(ctx, 60, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("Recent returned %d entries, want 3", len(got))
	}
	// Newest first.
	if got[0].RequestID != "r3" || got[2].RequestID != "r1" {
		t.Errorf("order = %s,%s,%s", got[0].RequestID, got[1].RequestID, got[2].RequestID)
	}
	first := got[2]
	if !first.Allowed || first.Operation != "A3" || len(first.Paths) != 2 || first.Paths[1] != "dates-wednesdays.txt" {
		t.Errorf("round-tripped entry = %+v", first)
	}
	if got[0].Paths == nil || len(got[0].Paths) != 0 {
		t.Errorf("nil paths should read back as empty, got %v", got[0].Paths)
	}
	if got[1].Reason != "outside_sandbox" || got[1].Status != 403 {
		t.Errorf("deny entry = %+v", got[1])
	}
	if got[1].Timestamp.IsZero() {
		t.Error("timestamp should be set by the database")
	}

	limited, err := s.Recent(ctx, 60, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d entries", len(limited))
	}
}

func TestStats(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for _, e := range []Entry{
		{RequestID: "a", Allowed: true},
		{RequestID: "b", Allowed: true},
		{RequestID: "c", Reason: "outside_sandbox"},
		{RequestID: "d", Reason: "outside_sandbox"},
		{RequestID: "e", Reason: "file_too_large"},
	} {
		if err := s.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 5 || stats.Allowed != 2 || stats.Denied != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.ByReason["outside_sandbox"] != 2 || stats.ByReason["file_too_large"] != 1 {
		t.Errorf("by reason = %v", stats.ByReason)
	}
}

func TestStats_Empty(t *testing.T) {
	s := newTestStorage(t)
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 0 || len(stats.ByReason) != 0 {
		t.Errorf("empty stats = %+v", stats)
	}
}

func TestCleanupOldData(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if err := s.Record(ctx, Entry{RequestID: "fresh", Allowed: true}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.DB().Exec(`INSERT INTO decisions (timestamp, request_id, allowed) VALUES ('2000-01-01 00:00:00', 'stale', 1)`); err != nil {
		t.Fatal(err)
	}

	deleted, err := s.CleanupOldData(7)
	if err != nil {
		t.Fatalf("CleanupOldData: %v", err)
	}
	if deleted != 1 {
		t.Errorf("deleted = %d, want 1", deleted)
	}

	if n, _ := s.CleanupOldData(0); n != 0 {
		t.Errorf("retention 0 should keep everything, deleted %d", n)
	}

	stats, _ := s.Stats(ctx)
	if stats.Total != 1 {
		t.Errorf("remaining = %d, want 1", stats.Total)
	}
}

func TestNewStorage_ShortKeyRejected(t *testing.T) {
	if _, err := NewStorage(":memory:", "short"); err == nil {
		t.Error("short encryption key should be rejected")
	}
}

func TestNewStorage_Encrypted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "audit.db")
	s, err := NewStorage(path, "0123456789abcdef-key")
	if err != nil {
		t.Fatalf("NewStorage: %v", err)
	}
	if !s.IsEncrypted() {
		t.Error("IsEncrypted should be true")
	}
	if err := s.Record(context.Background(), Entry{RequestID: "x", Allowed: true}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	// Reopening with the wrong key fails.
	if s2, err := NewStorage(path, "a-different-key-entirely"); err == nil {
		s2.Close()
		t.Error("opening with the wrong key should fail")
	}
}

func TestRecord_Concurrent(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.Record(ctx, Entry{RequestID: "c", Allowed: i%2 == 0}); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	stats, _ := s.Stats(ctx)
	if stats.Total != 20 {
		t.Errorf("total = %d, want 20", stats.Total)
	}
}

func TestManager(t *testing.T) {
	m, err := Open(Config{DBPath: ":memory:", RetentionDays: 30})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := m.Record(context.Background(), Entry{RequestID: "m", Allowed: true}); err != nil {
		t.Fatal(err)
	}
	stats, err := m.Storage().Stats(context.Background())
	if err != nil || stats.Total != 1 {
		t.Errorf("stats = %+v, err = %v", stats, err)
	}
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
	// Second shutdown is a no-op.
	if err := m.Shutdown(context.Background()); err != nil {
		t.Errorf("second Shutdown: %v", err)
	}

	var nilManager *Manager
	if err := nilManager.Record(context.Background(), Entry{}); err != nil {
		t.Errorf("nil manager Record = %v", err)
	}
	if nilManager.Storage() != nil {
		t.Error("nil manager Storage should be nil")
	}
}

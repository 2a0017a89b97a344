package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"igcomments/pkg/instagram"
)

func TestManager(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	t.Run("CreatesLayout", func(t *testing.T) {
		for _, sub := range []string{"ig_comments", "raw_responses"} {
			if _, err := os.Stat(filepath.Join(dir, sub)); err != nil {
				t.Errorf("Expected %s directory: %v", sub, err)
			}
		}
	})

	t.Run("SaveResult", func(t *testing.T) {
		result := &instagram.Result{
			Post:         instagram.Post{Shortcode: "ABC123xyz"},
			CommentCount: 1,
			Comments:     []*instagram.Comment{{ID: "c1", Text: "hello"}},
			Pages:        1,
			StopReason:   instagram.StopNoMorePages,
		}

		path, err := mgr.SaveResult("ABC123xyz", result)
		if err != nil {
			t.Fatalf("SaveResult failed: %v", err)
		}
		if !strings.HasPrefix(filepath.Base(path), "ABC123xyz_") {
			t.Errorf("Expected filename prefixed with shortcode, got %s", path)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("Failed to read result file: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("Result file is not valid JSON: %v", err)
		}
		if decoded["stop_reason"] != "no_more_pages" {
			t.Errorf("Expected stop_reason no_more_pages, got %v", decoded["stop_reason"])
		}
	})
}

func TestRawStoreModes(t *testing.T) {
	countFiles := func(t *testing.T, dir string) int {
		t.Helper()
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("Failed to list dir: %v", err)
		}
		return len(entries)
	}

	t.Run("NoneNeverPersists", func(t *testing.T) {
		dir := t.TempDir()
		store := NewRawStore(dir, "none", 10, 0)
		store.Record("response", "http://x", nil, 500, map[string]any{"error": "x"})
		if n := countFiles(t, dir); n != 0 {
			t.Errorf("Expected no files in none mode, got %d", n)
		}
	})

	t.Run("ErrorsSkips200", func(t *testing.T) {
		dir := t.TempDir()
		store := NewRawStore(dir, "errors", 10, 0)
		store.Record("response", "http://x", nil, 200, map[string]any{"data": "y"})
		if n := countFiles(t, dir); n != 0 {
			t.Errorf("Expected 200 skipped in errors mode, got %d files", n)
		}
		store.Record("response", "http://x", nil, 429, map[string]any{"error": "z"})
		if n := countFiles(t, dir); n != 1 {
			t.Errorf("Expected non-200 persisted in errors mode, got %d files", n)
		}
	})

	t.Run("AllPersistsEverything", func(t *testing.T) {
		dir := t.TempDir()
		store := NewRawStore(dir, "all", 10, 0)
		store.Record("response", "http://x", map[string]any{"params": "a=b"}, 200, map[string]any{"data": "y"})
		if n := countFiles(t, dir); n != 1 {
			t.Fatalf("Expected 1 file in all mode, got %d", n)
		}

		entries, _ := os.ReadDir(dir)
		data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
		if err != nil {
			t.Fatalf("Failed to read raw file: %v", err)
		}
		var envelope map[string]any
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatalf("Raw file is not valid JSON: %v", err)
		}
		for _, key := range []string{"url", "timestamp", "status", "data"} {
			if _, ok := envelope[key]; !ok {
				t.Errorf("Expected %s in raw envelope", key)
			}
		}
	})
}

func TestRawStoreRetention(t *testing.T) {
	t.Run("KeepCount", func(t *testing.T) {
		dir := t.TempDir()
		store := NewRawStore(dir, "all", 3, 0)

		for i := 0; i < 6; i++ {
			store.Record("response", "http://x", nil, 500, map[string]any{"n": i})
			time.Sleep(5 * time.Millisecond) // distinct mtimes
		}

		matches, _ := filepath.Glob(filepath.Join(dir, "*_response.json"))
		if len(matches) != 3 {
			t.Errorf("Expected 3 files after sweep, got %d", len(matches))
		}
	})

	t.Run("ByteBudget", func(t *testing.T) {
		dir := t.TempDir()
		store := NewRawStore(dir, "all", -1, 400)

		large := strings.Repeat("x", 200)
		for i := 0; i < 5; i++ {
			store.Record("response", "http://x", nil, 500, map[string]any{"blob": large})
			time.Sleep(5 * time.Millisecond)
		}

		matches, _ := filepath.Glob(filepath.Join(dir, "*_response.json"))
		var total int64
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil {
				continue
			}
			total += info.Size()
		}
		if total > 400 {
			t.Errorf("Expected total size within budget, got %d bytes in %d files", total, len(matches))
		}
	})

	t.Run("SweepIgnoresOtherFiles", func(t *testing.T) {
		dir := t.TempDir()
		keeper := filepath.Join(dir, "note.json")
		if err := os.WriteFile(keeper, []byte("{}"), 0644); err != nil {
			t.Fatalf("Failed to write file: %v", err)
		}

		store := NewRawStore(dir, "all", 0, 0)
		store.Record("response", "http://x", nil, 500, nil)

		if _, err := os.Stat(keeper); err != nil {
			t.Errorf("Sweep removed unrelated file: %v", err)
		}
	})
}

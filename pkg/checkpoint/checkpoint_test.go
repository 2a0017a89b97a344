package checkpoint

import (
	"os"
	"path/filepath"
	"testing"

	"igcomments/pkg/instagram"
)

func TestManager(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewManager(dir, nil)
	if err != nil {
		t.Fatalf("Failed to create manager: %v", err)
	}

	shortcode := "ABC123xyz"

	t.Run("LoadMissingReturnsNil", func(t *testing.T) {
		cp, err := mgr.Load(shortcode)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cp != nil {
			t.Errorf("Expected nil checkpoint, got %+v", cp)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		count := 40
		cp := &Checkpoint{
			Post:         instagram.Post{Shortcode: shortcode, MediaID: "4593314372787"},
			CommentCount: 2,
			Comments: []*instagram.Comment{
				{ID: "c1", Text: "first"},
				{ID: "c2", Text: "second"},
			},
			SeenCommentIDs:       []string{"c1", "c2"},
			Cursor:               "cursor-2",
			LastCursor:           "cursor-2",
			Pages:                2,
			ExpectedCommentCount: &count,
			StopReason:           "",
		}
		if err := mgr.Save(shortcode, cp); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		if cp.UpdatedAt.IsZero() {
			t.Error("Expected Save to set UpdatedAt")
		}

		loaded, err := mgr.Load(shortcode)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if loaded == nil {
			t.Fatal("Expected checkpoint, got nil")
		}
		if loaded.Cursor != "cursor-2" || loaded.Pages != 2 {
			t.Errorf("Unexpected checkpoint: %+v", loaded)
		}
		if len(loaded.Comments) != 2 || loaded.Comments[0].ID != "c1" {
			t.Errorf("Comments not round-tripped: %+v", loaded.Comments)
		}
		if loaded.ExpectedCommentCount == nil || *loaded.ExpectedCommentCount != 40 {
			t.Errorf("Expected count 40, got %v", loaded.ExpectedCommentCount)
		}
	})

	t.Run("ExistsAndClear", func(t *testing.T) {
		if !mgr.Exists(shortcode) {
			t.Error("Expected checkpoint to exist")
		}
		if err := mgr.Clear(shortcode); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		if mgr.Exists(shortcode) {
			t.Error("Expected checkpoint gone after Clear")
		}
		// Clearing again is not an error
		if err := mgr.Clear(shortcode); err != nil {
			t.Errorf("Clear on missing checkpoint failed: %v", err)
		}
	})

	t.Run("CorruptFileTreatedAsMissing", func(t *testing.T) {
		path := filepath.Join(dir, shortcode+"_resume.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatalf("Failed to write corrupt file: %v", err)
		}

		cp, err := mgr.Load(shortcode)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if cp != nil {
			t.Errorf("Expected nil for corrupt checkpoint, got %+v", cp)
		}
	})
}

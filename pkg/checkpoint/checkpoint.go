package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"igcomments/pkg/instagram"
	"igcomments/pkg/logger"
)

// Checkpoint is the persisted resumable state of one post's crawl. Exactly
// one checkpoint exists per shortcode at a time; it is overwritten after
// every successfully processed page and deleted only when the crawl drains
// every page.
type Checkpoint struct {
	Post                 instagram.Post        `json:"post"`
	CommentCount         int                   `json:"comment_count"`
	Comments             []*instagram.Comment  `json:"comments"`
	SeenCommentIDs       []string              `json:"seen_comment_ids"`
	Cursor               string                `json:"cursor"`
	LastCursor           string                `json:"last_cursor"`
	Pages                int                   `json:"pages"`
	ExpectedCommentCount *int                  `json:"expected_comment_count,omitempty"`
	StopReason           instagram.StopReason  `json:"stop_reason,omitempty"`
	Complete             bool                  `json:"complete"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// Manager handles checkpoint operations for a data directory
type Manager struct {
	dir    string
	logger logger.Logger
}

// NewManager creates a checkpoint manager rooted at dir
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint directory: %w", err)
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Manager{dir: dir, logger: log}, nil
}

func (m *Manager) path(shortcode string) string {
	return filepath.Join(m.dir, fmt.Sprintf("%s_resume.json", shortcode))
}

// Load reads the checkpoint for a shortcode. A missing or unparseable file
// yields (nil, nil): corruption is treated as absence so the crawl restarts
// fresh instead of failing.
func (m *Manager) Load(shortcode string) (*Checkpoint, error) {
	data, err := os.ReadFile(m.path(shortcode))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, nil
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		m.logger.WarnWithFields("discarding corrupt checkpoint", map[string]interface{}{
			"shortcode": shortcode,
			"error":     err.Error(),
		})
		return nil, nil
	}

	m.logger.InfoWithFields("checkpoint loaded", map[string]interface{}{
		"shortcode":  shortcode,
		"comments":   cp.CommentCount,
		"pages":      cp.Pages,
		"updated_at": cp.UpdatedAt,
	})
	return &cp, nil
}

// Save writes the checkpoint atomically and refreshes its timestamp
func (m *Manager) Save(shortcode string, cp *Checkpoint) error {
	cp.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.path(shortcode) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write checkpoint file: %w", err)
	}
	if err := os.Rename(tempPath, m.path(shortcode)); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("checkpoint saved", map[string]interface{}{
		"shortcode": shortcode,
		"comments":  cp.CommentCount,
		"pages":     cp.Pages,
	})
	return nil
}

// Clear removes the checkpoint file for a shortcode
func (m *Manager) Clear(shortcode string) error {
	if err := os.Remove(m.path(shortcode)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	return nil
}

// Exists checks if a checkpoint file exists for a shortcode
func (m *Manager) Exists(shortcode string) bool {
	_, err := os.Stat(m.path(shortcode))
	return err == nil
}

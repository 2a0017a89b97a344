package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"igcomments/pkg/instagram"
)

// Manager lays out the data directory: crawl results under ig_comments/ and
// raw-response debug files under raw_responses/.
type Manager struct {
	dataDir string
}

// NewManager creates the data directory structure
func NewManager(dataDir string) (*Manager, error) {
	for _, sub := range []string{"ig_comments", "raw_responses"} {
		if err := os.MkdirAll(filepath.Join(dataDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	return &Manager{dataDir: dataDir}, nil
}

// CommentsDir returns the directory crawl results and checkpoints live in
func (m *Manager) CommentsDir() string {
	return filepath.Join(m.dataDir, "ig_comments")
}

// RawDir returns the raw-response directory
func (m *Manager) RawDir() string {
	return filepath.Join(m.dataDir, "raw_responses")
}

// SaveResult writes one crawl result as a single full-document JSON file
// named by shortcode and UTC timestamp, and returns its path.
func (m *Manager) SaveResult(shortcode string, result *instagram.Result) (string, error) {
	filename := fmt.Sprintf("%s_%s.json", shortcode, time.Now().UTC().Format("20060102_150405"))
	path := filepath.Join(m.CommentsDir(), filename)

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode result: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write result file: %w", err)
	}
	return path, nil
}

// RawStore persists raw API responses for debugging, bounded by a file-count
// cap and a total byte budget.
type RawStore struct {
	dir      string
	mode     string
	keep     int
	maxBytes int64
}

// NewRawStore creates a raw-response store. Mode "none" disables persistence
// entirely, "errors" keeps only non-200 responses, anything else keeps all.
func NewRawStore(dir, mode string, keep int, maxBytes int64) *RawStore {
	return &RawStore{dir: dir, mode: mode, keep: keep, maxBytes: maxBytes}
}

// rawEnvelope is the persisted document wrapping one response
type rawEnvelope struct {
	URL       string         `json:"url"`
	Timestamp string         `json:"timestamp"`
	Status    int            `json:"status"`
	Params    map[string]any `json:"params"`
	Data      any            `json:"data"`
}

// Record persists one observed response according to the store's mode, then
// runs the retention sweep.
func (s *RawStore) Record(label, requestURL string, params map[string]any, status int, payload any) {
	switch s.mode {
	case "none", "off", "false", "0":
		return
	case "errors", "error":
		if status == 200 {
			return
		}
	}

	now := time.Now().UTC()
	filename := fmt.Sprintf("%s_%03d_%s.json", now.Format("20060102_150405"), now.Nanosecond()/1e6, label)
	envelope := rawEnvelope{
		URL:       requestURL,
		Timestamp: now.Format(time.RFC3339),
		Status:    status,
		Params:    params,
		Data:      payload,
	}

	data, err := json.MarshalIndent(envelope, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(filepath.Join(s.dir, filename), data, 0644); err != nil {
		return
	}

	s.sweep()
}

// sweep enforces both retention bounds independently: keep only the newest
// `keep` response files, then trim oldest files until total size fits the
// byte budget. Individual file errors (e.g. already deleted) are swallowed.
// Only files matching the *_response.json pattern are considered.
func (s *RawStore) sweep() {
	files := s.responseFiles()

	if s.keep >= 0 && len(files) > s.keep {
		for _, f := range files[s.keep:] {
			_ = os.Remove(f.path)
		}
	}

	if s.maxBytes > 0 {
		files = s.responseFiles()
		var total int64
		for _, f := range files {
			total += f.size
		}
		if total > s.maxBytes {
			for i := len(files) - 1; i >= 0; i-- {
				_ = os.Remove(files[i].path)
				total -= files[i].size
				if total <= s.maxBytes {
					break
				}
			}
		}
	}
}

type rawFile struct {
	path    string
	size    int64
	modTime time.Time
}

// responseFiles lists *_response.json files newest first
func (s *RawStore) responseFiles() []rawFile {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*_response.json"))
	if err != nil {
		return nil
	}

	files := make([]rawFile, 0, len(matches))
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, rawFile{path: path, size: info.Size(), modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	return files
}

package crawler

import (
	"context"
	"testing"
	"time"

	"igcomments/pkg/checkpoint"
	"igcomments/pkg/config"
	"igcomments/pkg/instagram"
	"igcomments/pkg/storage"
)

const (
	commentsDocID = "100"
	repliesDocID  = "200"
	testPostURL   = "https://www.instagram.com/p/ABC123xyz/"
	testShortcode = "ABC123xyz"
)

// fakeExecutor serves scripted comment pages keyed by cursor and reply pages
// keyed by comment ID.
type fakeExecutor struct {
	pages      map[string]map[string]any
	replies    map[string]map[string]any
	failures   map[string]int
	pageCalls  int
	replyCalls int
}

func (f *fakeExecutor) Execute(ctx context.Context, endpoint *config.Endpoint, variables map[string]any) map[string]any {
	cursor, _ := variables["after"].(string)

	switch endpoint.DocID {
	case commentsDocID:
		f.pageCalls++
		if f.failures[cursor] > 0 {
			f.failures[cursor]--
			return nil
		}
		return f.pages[cursor]
	case repliesDocID:
		f.replyCalls++
		commentID, _ := variables["comment_id"].(string)
		return f.replies[commentID+"|"+cursor]
	}
	return nil
}

func (f *fakeExecutor) GetText(ctx context.Context, target string) (string, error) {
	return "", nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Crawl.RequestsPerMinute = 0
	cfg.Crawl.MaxComments = 0
	cfg.Crawl.FetchReplies = false
	cfg.Crawl.PageRetryAttempts = 1
	cfg.Crawl.PageRetryDelay = time.Millisecond
	cfg.Endpoints.Comments = &config.Endpoint{
		Type:  "graphql",
		URL:   "https://www.instagram.com/graphql/query",
		DocID: commentsDocID,
		Variables: map[string]any{
			"media_id": "{media_id}",
			"after":    "{cursor}",
			"first":    20,
		},
	}
	return cfg
}

func enableReplies(cfg *config.Config) {
	cfg.Crawl.FetchReplies = true
	cfg.Endpoints.CommentReplies = &config.Endpoint{
		Type:  "graphql",
		URL:   "https://www.instagram.com/graphql/query",
		DocID: repliesDocID,
		Variables: map[string]any{
			"comment_id": "{comment_id}",
			"after":      "{cursor}",
			"first":      20,
		},
	}
}

func newTestCrawler(t *testing.T, cfg *config.Config, exec *fakeExecutor) (*Crawler, *checkpoint.Manager) {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	checkpoints, err := checkpoint.NewManager(store.CommentsDir(), nil)
	if err != nil {
		t.Fatalf("Failed to create checkpoint manager: %v", err)
	}
	return New(cfg, exec, checkpoints, store, nil), checkpoints
}

func page(ids []string, hasNext bool, endCursor string, count int) map[string]any {
	var edges []any
	for _, id := range ids {
		edges = append(edges, map[string]any{
			"node": map[string]any{"id": id, "text": "comment " + id},
		})
	}
	return map[string]any{
		"data": map[string]any{
			"xdt_api__v1__media__media_id__comments__connection": map[string]any{
				"edges": edges,
				"page_info": map[string]any{
					"has_next_page": hasNext,
					"end_cursor":    endCursor,
				},
				"count": float64(count),
			},
		},
	}
}

func commentIDs(comments []*instagram.Comment) []string {
	var ids []string
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return ids
}

func TestCrawlCompletes(t *testing.T) {
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"":     page([]string{"c1", "c2"}, true, "cur1", 3),
			"cur1": page([]string{"c2", "c3"}, false, "", 3),
		},
	}
	crawler, checkpoints := newTestCrawler(t, testConfig(), exec)

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	if result.StopReason != instagram.StopNoMorePages {
		t.Errorf("Expected no_more_pages, got %s", result.StopReason)
	}
	if result.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", result.Pages)
	}
	if got := commentIDs(result.Comments); len(got) != 3 {
		t.Errorf("Expected c2 deduplicated across pages, got %v", got)
	}
	if result.ExpectedCommentCount == nil || *result.ExpectedCommentCount != 3 {
		t.Errorf("Expected count 3 from first page, got %v", result.ExpectedCommentCount)
	}
	if result.Post.MediaID != "4593314372787" {
		t.Errorf("Expected media ID from shortcode decode, got %q", result.Post.MediaID)
	}
	if result.OutputPath == "" {
		t.Error("Expected output path in result")
	}
	if checkpoints.Exists(testShortcode) {
		t.Error("Expected checkpoint cleared after complete crawl")
	}
}

func TestCrawlStopReasons(t *testing.T) {
	t.Run("NoPayload", func(t *testing.T) {
		exec := &fakeExecutor{pages: map[string]map[string]any{}}
		crawler, checkpoints := newTestCrawler(t, testConfig(), exec)

		result, err := crawler.Crawl(context.Background(), testPostURL)
		if err != nil {
			t.Fatalf("Crawl failed: %v", err)
		}
		if result.StopReason != instagram.StopNoPayload {
			t.Errorf("Expected no_payload, got %s", result.StopReason)
		}
		if result.Pages != 0 {
			t.Errorf("Expected 0 pages, got %d", result.Pages)
		}
		if !checkpoints.Exists(testShortcode) {
			t.Error("Expected checkpoint kept after incomplete crawl")
		}
	})

	t.Run("MissingCursor", func(t *testing.T) {
		exec := &fakeExecutor{
			pages: map[string]map[string]any{
				"": page([]string{"c1"}, true, "", 1),
			},
		}
		crawler, _ := newTestCrawler(t, testConfig(), exec)

		result, _ := crawler.Crawl(context.Background(), testPostURL)
		if result.StopReason != instagram.StopMissingCursor {
			t.Errorf("Expected missing_cursor, got %s", result.StopReason)
		}
	})

	t.Run("CursorStalled", func(t *testing.T) {
		exec := &fakeExecutor{
			pages: map[string]map[string]any{
				"":     page([]string{"c1"}, true, "X", 2),
				"X":    page([]string{"c2"}, true, "X", 2),
			},
		}
		crawler, checkpoints := newTestCrawler(t, testConfig(), exec)

		result, _ := crawler.Crawl(context.Background(), testPostURL)
		if result.StopReason != instagram.StopCursorStalled {
			t.Errorf("Expected cursor_stalled, got %s", result.StopReason)
		}
		if len(result.Comments) != 2 {
			t.Errorf("Expected both pages collected, got %v", commentIDs(result.Comments))
		}
		if !checkpoints.Exists(testShortcode) {
			t.Error("Expected checkpoint kept after stalled cursor")
		}
	})

	t.Run("MaxReached", func(t *testing.T) {
		cfg := testConfig()
		cfg.Crawl.MaxComments = 2
		exec := &fakeExecutor{
			pages: map[string]map[string]any{
				"": page([]string{"c1", "c2", "c3"}, true, "cur1", 10),
			},
		}
		crawler, checkpoints := newTestCrawler(t, cfg, exec)

		result, _ := crawler.Crawl(context.Background(), testPostURL)
		if result.StopReason != instagram.StopMaxReached {
			t.Errorf("Expected max_reached, got %s", result.StopReason)
		}
		if got := commentIDs(result.Comments); len(got) != 2 {
			t.Errorf("Expected crawl to stop at the cap, got %v", got)
		}
		if !checkpoints.Exists(testShortcode) {
			t.Error("Expected checkpoint kept when cap reached")
		}
	})

	t.Run("Interrupted", func(t *testing.T) {
		exec := &fakeExecutor{
			pages: map[string]map[string]any{
				"": page([]string{"c1"}, false, "", 1),
			},
		}
		crawler, _ := newTestCrawler(t, testConfig(), exec)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		result, err := crawler.Crawl(ctx, testPostURL)
		if err != nil {
			t.Fatalf("Crawl failed: %v", err)
		}
		if result.StopReason != instagram.StopInterrupted {
			t.Errorf("Expected interrupted, got %s", result.StopReason)
		}
		if result.OutputPath == "" {
			t.Error("Expected partial result saved on interruption")
		}
	})
}

func TestCrawlInvalidURL(t *testing.T) {
	crawler, _ := newTestCrawler(t, testConfig(), &fakeExecutor{})
	if _, err := crawler.Crawl(context.Background(), "https://www.instagram.com/someuser/"); err == nil {
		t.Error("Expected error for URL without shortcode")
	}
}

func TestCrawlPageRetry(t *testing.T) {
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"": page([]string{"c1"}, false, "", 1),
		},
		failures: map[string]int{"": 1},
	}
	crawler, _ := newTestCrawler(t, testConfig(), exec)

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if result.StopReason != instagram.StopNoMorePages {
		t.Errorf("Expected page retry to recover, got %s", result.StopReason)
	}
	if exec.pageCalls != 2 {
		t.Errorf("Expected 2 fetch attempts, got %d", exec.pageCalls)
	}
}

func TestCrawlBacktrack(t *testing.T) {
	cfg := testConfig()
	cfg.Crawl.PageRetryAttempts = 0 // isolate the backtrack path
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"":     page([]string{"c1"}, true, "cur1", 3),
			"cur1": page([]string{"c2"}, true, "cur2", 3),
		},
		failures: map[string]int{"cur2": 1},
	}
	crawler, _ := newTestCrawler(t, cfg, exec)

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	// After cur2 fails the crawler retries the previous cursor once. The
	// refetched page repeats its end cursor, which the stall guard catches.
	if exec.pageCalls != 4 {
		t.Errorf("Expected a backtrack refetch (4 calls), got %d", exec.pageCalls)
	}
	if result.StopReason != instagram.StopCursorStalled {
		t.Errorf("Expected cursor_stalled after backtrack, got %s", result.StopReason)
	}
	if got := commentIDs(result.Comments); len(got) != 2 {
		t.Errorf("Expected no duplicates from the refetched page, got %v", got)
	}
}

func TestCrawlResume(t *testing.T) {
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"cur1": page([]string{"c1", "c2"}, false, "", 2),
		},
	}
	crawler, checkpoints := newTestCrawler(t, testConfig(), exec)

	count := 2
	err := checkpoints.Save(testShortcode, &checkpoint.Checkpoint{
		Post:                 instagram.Post{URL: testPostURL, Shortcode: testShortcode, MediaID: "4593314372787"},
		CommentCount:         1,
		Comments:             []*instagram.Comment{{ID: "c1", Text: "comment c1"}},
		SeenCommentIDs:       []string{"c1"},
		Cursor:               "cur1",
		LastCursor:           "cur1",
		Pages:                1,
		ExpectedCommentCount: &count,
	})
	if err != nil {
		t.Fatalf("Failed to seed checkpoint: %v", err)
	}

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	if result.Pages != 2 {
		t.Errorf("Expected page count continued from checkpoint, got %d", result.Pages)
	}
	if got := commentIDs(result.Comments); len(got) != 2 {
		t.Errorf("Expected c1 deduplicated against checkpoint, got %v", got)
	}
	if exec.pageCalls != 1 {
		t.Errorf("Expected resume to fetch only the remaining page, got %d calls", exec.pageCalls)
	}
	if checkpoints.Exists(testShortcode) {
		t.Error("Expected checkpoint cleared after completing resumed crawl")
	}
}

func TestCrawlIgnoresCompleteCheckpoint(t *testing.T) {
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"": page([]string{"c1"}, false, "", 1),
		},
	}
	crawler, checkpoints := newTestCrawler(t, testConfig(), exec)

	err := checkpoints.Save(testShortcode, &checkpoint.Checkpoint{
		Post:     instagram.Post{Shortcode: testShortcode},
		Cursor:   "stale",
		Complete: true,
	})
	if err != nil {
		t.Fatalf("Failed to seed checkpoint: %v", err)
	}

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if len(result.Comments) != 1 || result.Pages != 1 {
		t.Errorf("Expected fresh crawl from first page, got %d comments over %d pages",
			len(result.Comments), result.Pages)
	}
}

func TestCrawlReplies(t *testing.T) {
	inlineReply := map[string]any{
		"edges": []any{
			map[string]any{"node": map[string]any{"id": "r1", "text": "inline"}},
		},
		"page_info": map[string]any{"has_next_page": false, "end_cursor": ""},
	}
	pageWithReplies := map[string]any{
		"data": map[string]any{
			"xdt_api__v1__media__media_id__comments__connection": map[string]any{
				"edges": []any{
					map[string]any{"node": map[string]any{
						"id":                     "c1",
						"text":                   "parent",
						"child_comment_count":    float64(3),
						"edge_threaded_comments": inlineReply,
					}},
				},
				"page_info": map[string]any{"has_next_page": false, "end_cursor": ""},
				"count":     float64(1),
			},
		},
	}
	replyPage := map[string]any{
		"data": map[string]any{
			"comment": map[string]any{
				"edge_threaded_comments": map[string]any{
					"edges": []any{
						map[string]any{"node": map[string]any{"id": "r1", "text": "dup"}},
						map[string]any{"node": map[string]any{"id": "r2", "text": "fetched"}},
						map[string]any{"node": map[string]any{"id": "r3", "text": "fetched"}},
					},
					"page_info": map[string]any{"has_next_page": false, "end_cursor": ""},
				},
			},
		},
	}

	cfg := testConfig()
	enableReplies(cfg)
	exec := &fakeExecutor{
		pages:   map[string]map[string]any{"": pageWithReplies},
		replies: map[string]map[string]any{"c1|": replyPage},
	}
	crawler, _ := newTestCrawler(t, cfg, exec)

	result, err := crawler.Crawl(context.Background(), testPostURL)
	if err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}

	if len(result.Comments) != 1 {
		t.Fatalf("Expected 1 top-level comment, got %d", len(result.Comments))
	}
	c1 := result.Comments[0]
	if len(c1.Replies) != 3 {
		t.Fatalf("Expected 3 unique replies, got %v", commentIDs(c1.Replies))
	}
	for _, r := range c1.Replies {
		if r.ParentID != "c1" {
			t.Errorf("Expected parent ID c1 on reply %s, got %q", r.ID, r.ParentID)
		}
	}
	if exec.replyCalls != 1 {
		t.Errorf("Expected one reply fetch, got %d", exec.replyCalls)
	}
}

func TestCrawlSkipsRepliesWhenDisabled(t *testing.T) {
	cfg := testConfig()
	exec := &fakeExecutor{
		pages: map[string]map[string]any{
			"": page([]string{"c1"}, false, "", 1),
		},
	}
	crawler, _ := newTestCrawler(t, cfg, exec)

	if _, err := crawler.Crawl(context.Background(), testPostURL); err != nil {
		t.Fatalf("Crawl failed: %v", err)
	}
	if exec.replyCalls != 0 {
		t.Errorf("Expected no reply fetches when disabled, got %d", exec.replyCalls)
	}
}

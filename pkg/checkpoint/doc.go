// Package checkpoint provides saving and resuming of crawl progress.
//
// A checkpoint holds everything needed to continue an interrupted crawl:
// the collected comments, the set of seen comment IDs, the pagination
// cursors and the page count. Checkpoints live next to the crawl results as
// <shortcode>_resume.json and are written atomically to prevent corruption.
// A missing or unreadable checkpoint simply means starting fresh.
package checkpoint

package instagram

import (
	"math/big"
	"regexp"
	"strings"
)

// shortcodeAlphabet is the base-64 alphabet Instagram encodes media IDs with
const shortcodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"

var shortcodePattern = regexp.MustCompile(`instagram\.com/(p|reel|tv)/([^/?#]+)/?`)

// ExtractShortcode pulls the shortcode out of a post URL of the form
// /p/<code>/, /reel/<code>/ or /tv/<code>/. Returns "" when the URL does not
// contain a post path.
func ExtractShortcode(postURL string) string {
	match := shortcodePattern.FindStringSubmatch(postURL)
	if match == nil {
		return ""
	}
	return match[2]
}

// ShortcodeToMediaID decodes a shortcode into its numeric media ID. Any
// character outside the alphabet yields "". Shortcodes can encode values
// beyond 64 bits, so the accumulation uses big.Int.
func ShortcodeToMediaID(shortcode string) string {
	if shortcode == "" {
		return ""
	}
	mediaID := new(big.Int)
	base := big.NewInt(64)
	for _, ch := range shortcode {
		idx := strings.IndexRune(shortcodeAlphabet, ch)
		if idx < 0 {
			return ""
		}
		mediaID.Mul(mediaID, base)
		mediaID.Add(mediaID, big.NewInt(int64(idx)))
	}
	return mediaID.String()
}

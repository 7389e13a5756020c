// Package textutil holds the text cleanup helpers shared by the segmenter,
// the intent layer, and command matching: punctuation/emoji stripping, JSON
// extraction from model output, and fuzzy title matching.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
)

// Full-width and half-width punctuation stripped from segment boundaries and
// command text. The full-width set covers the CJK forms block; the half-width
// set is its ASCII counterpart.
const (
	fullWidthPunct = "！＂＃＄％＆＇（）＊＋，－。、／：；＜＝＞？＠［＼］＾＿｀｛｜｝～·《》「」『』…‘’“”"
	halfWidthPunct = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"
)

// jsonPattern matches the outermost brace-delimited span in model output.
// (?s) lets it cross newlines inside markdown code fences.
var jsonPattern = regexp.MustCompile(`(?s)(\{.*\})`)

// IsEmoji reports whether r falls in one of the standard emoji blocks.
func IsEmoji(r rune) bool {
	switch {
	case r >= 0x1F600 && r <= 0x1F64F, // emoticons
		r >= 0x1F300 && r <= 0x1F5FF, // symbols & pictographs
		r >= 0x1F680 && r <= 0x1F6FF, // transport & map symbols
		r >= 0x1F900 && r <= 0x1F9FF, // supplemental symbols
		r >= 0x1FA70 && r <= 0x1FAFF, // symbols & pictographs extended
		r >= 0x2600 && r <= 0x26FF, // miscellaneous symbols
		r >= 0x2700 && r <= 0x27BF: // dingbats
		return true
	}
	return false
}

// isStrippable reports whether r is trimmed from segment boundaries.
func isStrippable(r rune) bool {
	return unicode.IsSpace(r) ||
		IsEmoji(r) ||
		strings.ContainsRune(fullWidthPunct, r) ||
		strings.ContainsRune(halfWidthPunct, r)
}

// TrimSegment strips leading and trailing whitespace, punctuation (both
// full- and half-width) and emoji from a reply segment before it is handed
// to TTS. Interior punctuation is preserved.
func TrimSegment(s string) string {
	return strings.TrimFunc(s, isStrippable)
}

// Normalize removes punctuation, whitespace and emoji everywhere in s, for
// literal command matching. The bare filler "Yeah" normalizes to empty, which
// keeps one-word acknowledgement transcripts from triggering a turn.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isStrippable(r) {
			continue
		}
		b.WriteRune(r)
	}
	out := b.String()
	if out == "Yeah" {
		return ""
	}
	return out
}

// ExtractJSON returns the outermost brace-delimited span of s, or "" when no
// braces are present. Model replies often wrap JSON in prose or markdown
// fences; this recovers the object without caring about the wrapping.
func ExtractJSON(s string) string {
	m := jsonPattern.FindString(s)
	return m
}

// LCSRatio returns a similarity score in [0, 1] between a and b based on the
// length of their longest common subsequence: 2*lcs/(len(a)+len(b)), computed
// over runes. Returns 0 when either string is empty.
func LCSRatio(a, b string) float64 {
	ra := []rune(a)
	rb := []rune(b)
	if len(ra) == 0 || len(rb) == 0 {
		return 0
	}

	// Single-row DP over rb.
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			if ra[i-1] == rb[j-1] {
				cur[j] = prev[j-1] + 1
			} else if prev[j] >= cur[j-1] {
				cur[j] = prev[j]
			} else {
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	lcs := prev[len(rb)]
	return 2 * float64(lcs) / float64(len(ra)+len(rb))
}

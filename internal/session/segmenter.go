package session

import "github.com/voxhive/voxhive/internal/textutil"

// sentenceTerminators end a speakable segment. Mid-sentence punctuation such
// as commas never splits, so synthesis input stays prosodically complete.
var sentenceTerminators = map[rune]bool{
	'。': true,
	'？': true,
	'！': true,
	'；': true,
	'：': true,
}

// Segment is one speakable unit cut from the streamed reply.
type Segment struct {
	// Index is 1-based and strictly increasing within a reply.
	Index int

	// Text has leading/trailing punctuation and emoji stripped.
	Text string
}

// Segmenter incrementally cuts a streamed reply into speakable segments. It
// tracks how many runes of the accumulated text have been consumed, so each
// delta is scanned only once regardless of how the stream is chunked.
//
// Not safe for concurrent use; the dispatcher owns one per reply.
type Segmenter struct {
	processed int // runes consumed from the accumulated text
	index     int // last emitted segment index
}

// Feed scans the full accumulated reply text and returns the segment newly
// completed since the last call, if any. When several terminators arrived in
// one delta the segment spans up to the latest one, keeping segment count
// (and synthesis round-trips) low.
func (g *Segmenter) Feed(accumulated string) []Segment {
	runes := []rune(accumulated)
	if g.processed >= len(runes) {
		return nil
	}

	last := -1
	for i := g.processed; i < len(runes); i++ {
		if sentenceTerminators[runes[i]] {
			last = i
		}
	}
	if last < 0 {
		return nil
	}

	text := string(runes[g.processed : last+1])
	g.processed = last + 1

	text = textutil.TrimSegment(text)
	if text == "" {
		return nil
	}
	g.index++
	return []Segment{{Index: g.index, Text: text}}
}

// Flush returns the unterminated tail as a final segment, if any text
// remains after the stream finished.
func (g *Segmenter) Flush(accumulated string) []Segment {
	runes := []rune(accumulated)
	if g.processed >= len(runes) {
		return nil
	}
	text := textutil.TrimSegment(string(runes[g.processed:]))
	g.processed = len(runes)
	if text == "" {
		return nil
	}
	g.index++
	return []Segment{{Index: g.index, Text: text}}
}

// Next wraps out-of-band text (tool results, announcements) as the next
// segment without scanning, keeping indices monotonic across sources.
func (g *Segmenter) Next(text string) Segment {
	g.index++
	return Segment{Index: g.index, Text: text}
}

// Count returns how many segments have been emitted so far.
func (g *Segmenter) Count() int { return g.index }

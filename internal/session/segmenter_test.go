package session

import "testing"

func TestSegmenter_CutsOnTerminator(t *testing.T) {
	t.Parallel()

	var g Segmenter
	if segs := g.Feed("今天天气"); len(segs) != 0 {
		t.Fatalf("segments before terminator = %v", segs)
	}
	segs := g.Feed("今天天气很好。我们")
	if len(segs) != 1 || segs[0].Index != 1 || segs[0].Text != "今天天气很好" {
		t.Fatalf("segments = %v", segs)
	}
	segs = g.Feed("今天天气很好。我们出去玩吧！")
	if len(segs) != 1 || segs[0].Index != 2 || segs[0].Text != "我们出去玩吧" {
		t.Fatalf("segments = %v", segs)
	}
}

func TestSegmenter_LatestTerminatorWins(t *testing.T) {
	t.Parallel()

	// Two sentences arriving in one delta produce a single segment spanning
	// both, cut at the latest terminator.
	var g Segmenter
	segs := g.Feed("第一句。第二句！第三")
	if len(segs) != 1 {
		t.Fatalf("segments = %v", segs)
	}
	if segs[0].Text != "第一句。第二句" {
		t.Errorf("text = %q", segs[0].Text)
	}
}

func TestSegmenter_AllTerminators(t *testing.T) {
	t.Parallel()

	for _, term := range []string{"。", "？", "！", "；", "："} {
		var g Segmenter
		if segs := g.Feed("测试" + term); len(segs) != 1 {
			t.Errorf("terminator %q did not cut: %v", term, segs)
		}
	}
}

func TestSegmenter_CommaDoesNotCut(t *testing.T) {
	t.Parallel()

	var g Segmenter
	if segs := g.Feed("你好，世界，朋友"); len(segs) != 0 {
		t.Errorf("comma cut a segment: %v", segs)
	}
}

func TestSegmenter_FlushTail(t *testing.T) {
	t.Parallel()

	var g Segmenter
	g.Feed("完整的一句。然后没说完")
	segs := g.Flush("完整的一句。然后没说完")
	if len(segs) != 1 || segs[0].Index != 2 || segs[0].Text != "然后没说完" {
		t.Fatalf("flush = %v", segs)
	}
	if again := g.Flush("完整的一句。然后没说完"); len(again) != 0 {
		t.Errorf("second flush = %v", again)
	}
}

func TestSegmenter_FlushEmptyTail(t *testing.T) {
	t.Parallel()

	var g Segmenter
	g.Feed("只有一句。")
	if segs := g.Flush("只有一句。"); len(segs) != 0 {
		t.Errorf("flush = %v, want nothing after a fully terminated reply", segs)
	}
	if g.Count() != 1 {
		t.Errorf("count = %d", g.Count())
	}
}

func TestSegmenter_PunctuationOnlySegmentDropped(t *testing.T) {
	t.Parallel()

	var g Segmenter
	if segs := g.Feed("……。"); len(segs) != 0 {
		t.Errorf("segments = %v, want punctuation-only segment dropped", segs)
	}
	// The dropped span is still consumed and does not bump the index.
	segs := g.Feed("……。真正的内容。")
	if len(segs) != 1 || segs[0].Index != 1 || segs[0].Text != "真正的内容" {
		t.Errorf("segments = %v", segs)
	}
}

func TestSegmenter_IndicesStrictlyIncrease(t *testing.T) {
	t.Parallel()

	var g Segmenter
	text := ""
	want := 1
	for _, sentence := range []string{"一。", "二。", "三。"} {
		text += sentence
		segs := g.Feed(text)
		if len(segs) != 1 || segs[0].Index != want {
			t.Fatalf("segments = %v, want index %d", segs, want)
		}
		want++
	}
}

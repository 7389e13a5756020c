package textutil

import (
	"math"
	"testing"
)

func TestTrimSegment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "你好世界", "你好世界"},
		{"trailing full-width", "你好世界。", "你好世界"},
		{"leading and trailing", "，你好！", "你好"},
		{"half-width", "!!hello...", "hello"},
		{"whitespace", "  你好\t", "你好"},
		{"emoji", "😊你好🚀", "你好"},
		{"interior punctuation kept", "你好，世界", "你好，世界"},
		{"only punctuation", "。。！！", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := TrimSegment(tt.in); got != tt.want {
				t.Errorf("TrimSegment(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"interior punctuation removed", "退，出", "退出"},
		{"spaces removed", "退 出", "退出"},
		{"emoji removed", "退出😊", "退出"},
		{"yeah filler", "Yeah", ""},
		{"yeah with punctuation", "Yeah!", ""},
		{"not yeah", "Yeah right", "Yeahright"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtractJSON(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"intent": "继续聊天"}`, `{"intent": "继续聊天"}`},
		{"wrapped in prose", `好的，结果是 {"intent": "结束聊天"} 以上`, `{"intent": "结束聊天"}`},
		{"markdown fence", "```json\n{\"name\":\"set_volume\",\"arguments\":{\"value\":50}}\n```", `{"name":"set_volume","arguments":{"value":50}}`},
		{"no braces", "没有结构化内容", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractJSON(tt.in); got != tt.want {
				t.Errorf("ExtractJSON(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestLCSRatio(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "春天", "春天", 1},
		{"disjoint", "abc", "xyz", 0},
		{"subsequence", "春天", "春天的故事", 4.0 / 7.0},
		{"empty", "", "春天", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := LCSRatio(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("LCSRatio(%q, %q) = %f, want %f", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestLCSRatio_Symmetric(t *testing.T) {
	t.Parallel()

	if LCSRatio("周杰伦晴天", "晴天") != LCSRatio("晴天", "周杰伦晴天") {
		t.Error("LCSRatio should be symmetric")
	}
}

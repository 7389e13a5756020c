package localshort

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/voxhive/voxhive/internal/lockfile"
	"github.com/voxhive/voxhive/pkg/provider/llm"
	llmmock "github.com/voxhive/voxhive/pkg/provider/llm/mock"
	"github.com/voxhive/voxhive/pkg/types"
)

func newTestStore(t *testing.T, reply string) *Store {
	t.Helper()
	model := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: reply},
	}
	s, err := New(filepath.Join(t.TempDir(), ".memory.yaml"), model, lockfile.NewManager())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func sampleTranscript() []types.Message {
	return []types.Message{
		{Role: "system", Content: "你是助手"},
		{Role: "user", Content: "我喜欢爵士乐"},
		{Role: "assistant", Content: "记住了"},
	}
}

func TestSaveAndQuery(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, `{"memories": ["用户喜欢爵士乐"]}`)
	ctx := context.Background()

	if err := s.Save(ctx, "dev-1", sampleTranscript()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Query(ctx, "dev-1", "随便")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != `{"memories": ["用户喜欢爵士乐"]}` {
		t.Errorf("Query = %q", got)
	}
}

func TestQuery_UnknownDevice(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, "{}")
	got, err := s.Query(context.Background(), "nobody", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != "" {
		t.Errorf("Query = %q, want empty", got)
	}
}

func TestSave_NonJSONSummaryIsKept(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, "用户喜欢爵士乐（非 JSON）")
	ctx := context.Background()

	if err := s.Save(ctx, "dev-1", sampleTranscript()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := s.Query(ctx, "dev-1", "")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != "用户喜欢爵士乐（非 JSON）" {
		t.Errorf("raw non-JSON summary should be retained, got %q", got)
	}
}

func TestSave_ReplacesPreviousValue(t *testing.T) {
	t.Parallel()

	model := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "第一次"},
	}
	s, err := New(filepath.Join(t.TempDir(), ".memory.yaml"), model, lockfile.NewManager())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	if err := s.Save(ctx, "dev-1", sampleTranscript()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	model.CompleteResponse = &llm.CompletionResponse{Content: "第二次"}
	if err := s.Save(ctx, "dev-1", sampleTranscript()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, _ := s.Query(ctx, "dev-1", "")
	if got != "第二次" {
		t.Errorf("Query = %q, want 第二次", got)
	}
}

func TestSave_EmptyTranscriptWritesNothing(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".memory.yaml")
	model := &llmmock.Provider{CompleteResponse: &llm.CompletionResponse{Content: "x"}}
	s, _ := New(path, model, lockfile.NewManager())

	if err := s.Save(context.Background(), "dev-1", nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("store file should not be created for an empty transcript")
	}
}

func TestSave_ConcurrentDevices(t *testing.T) {
	t.Parallel()

	s := newTestStore(t, `{"memories": []}`)
	ctx := context.Background()

	var wg sync.WaitGroup
	for _, dev := range []string{"a", "b", "c", "d"} {
		wg.Add(1)
		go func(dev string) {
			defer wg.Done()
			for i := 0; i < 5; i++ {
				if err := s.Save(ctx, dev, sampleTranscript()); err != nil {
					t.Errorf("Save(%s): %v", dev, err)
				}
			}
		}(dev)
	}
	wg.Wait()

	for _, dev := range []string{"a", "b", "c", "d"} {
		got, err := s.Query(ctx, dev, "")
		if err != nil || got == "" {
			t.Errorf("Query(%s) = %q, %v", dev, got, err)
		}
	}
}

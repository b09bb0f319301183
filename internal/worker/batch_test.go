package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type mockRunner struct {
	failOn string
}

func (m *mockRunner) RunPrompt(ctx context.Context, prompt string) (map[string]string, error) {
	time.Sleep(5 * time.Millisecond)
	if prompt == m.failOn {
		return nil, errors.New("provider error")
	}
	return map[string]string{"gpt": strings.ToUpper(prompt)}, nil
}

func writePromptFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write prompt file: %v", err)
	}
	return path
}

func TestBatchProcessor_ProcessPrompts_Order(t *testing.T) {
	processor := NewBatchProcessor(&mockRunner{}, 3, 0, 0)

	prompts := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l", "m"}
	results := processor.ProcessPrompts(context.Background(), prompts)

	if len(results) != len(prompts) {
		t.Fatalf("expected %d results, got %d", len(prompts), len(results))
	}
	for i, res := range results {
		if res.Index != i || res.Prompt != prompts[i] {
			t.Errorf("result %d out of order: %+v", i, res)
		}
		if res.Responses["gpt"] != strings.ToUpper(prompts[i]) {
			t.Errorf("unexpected response for %s: %v", prompts[i], res.Responses)
		}
	}
}

func TestBatchProcessor_ProcessPrompts_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockRunner{failOn: "bad"}, 2, 100, 5)
	results := processor.ProcessPrompts(context.Background(), []string{"good", "bad"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].GetError() != nil {
		t.Errorf("unexpected error: %v", results[0].Error)
	}
	if results[1].GetError() == nil {
		t.Error("expected error for failing prompt")
	}
}

func TestBatchProcessor_ProcessPrompts_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockRunner{}, 2, 0, 0)
	results := processor.ProcessPrompts(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadPromptsFromFile(t *testing.T) {
	path := writePromptFile(t, "# header\nwhat is go?\n\n  explain channels  \nwhat is go?\n")

	prompts, err := ReadPromptsFromFile(path)
	if err != nil {
		t.Fatalf("ReadPromptsFromFile failed: %v", err)
	}
	want := []string{"what is go?", "explain channels"}
	if len(prompts) != len(want) {
		t.Fatalf("expected %v, got %v", want, prompts)
	}
	for i := range want {
		if prompts[i] != want[i] {
			t.Errorf("prompt %d: expected %q, got %q", i, want[i], prompts[i])
		}
	}
}

func TestReadPromptsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPromptsFromFile("/nonexistent/prompts.txt"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writePromptFile(t, "one\ntwo\n")
	processor := NewBatchProcessor(&mockRunner{}, 2, 0, 0)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 || results[1].Responses["gpt"] != "TWO" {
		t.Errorf("unexpected results %+v", results)
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockRunner{}, 2, 0, 0)
	_, err := processor.ProcessFile(context.Background(), "/nonexistent/prompts.txt")
	if err == nil || !strings.Contains(err.Error(), "read prompts") {
		t.Errorf("expected wrapped read error, got %v", err)
	}
}

type cancellingRunner struct {
	cancel context.CancelFunc
}

func (r *cancellingRunner) RunPrompt(ctx context.Context, prompt string) (map[string]string, error) {
	if prompt == "first" {
		r.cancel()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return map[string]string{"gpt": prompt}, nil
}

func TestBatchProcessor_ProcessPrompts_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	processor := NewBatchProcessor(&cancellingRunner{cancel: cancel}, 1, 0, 0)
	prompts := []string{"first", "second", "third", "fourth", "fifth", "sixth"}
	results := processor.ProcessPrompts(ctx, prompts)

	if len(results) != len(prompts) {
		t.Fatalf("expected %d results, got %d", len(prompts), len(results))
	}
	for i, res := range results {
		if res == nil {
			t.Fatalf("result %d missing", i)
		}
		if res.Index != i || res.Prompt != prompts[i] {
			t.Errorf("result %d out of order: %+v", i, res)
		}
	}
	if !errors.Is(results[0].Error, context.Canceled) {
		t.Errorf("expected context.Canceled for the running prompt, got %v", results[0].Error)
	}
	for _, res := range results[1:] {
		if res.Error != nil && !errors.Is(res.Error, context.Canceled) {
			t.Errorf("prompt %q: unexpected error %v", res.Prompt, res.Error)
		}
	}
}

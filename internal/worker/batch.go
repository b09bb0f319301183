package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// PromptRunner answers one prompt, returning each provider's response text
type PromptRunner interface {
	RunPrompt(ctx context.Context, prompt string) (map[string]string, error)
}

// PromptJob runs one prompt of a batch
type PromptJob struct {
	Index   int
	Prompt  string
	Runner  PromptRunner
	Limiter *Limiter
}

// Execute executes the prompt job
func (j *PromptJob) Execute(ctx context.Context) Result {
	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, "batch"); err != nil {
			return &PromptResult{Index: j.Index, Prompt: j.Prompt, Error: err}
		}
	}

	responses, err := j.Runner.RunPrompt(ctx, j.Prompt)
	return &PromptResult{
		Index:     j.Index,
		Prompt:    j.Prompt,
		Responses: responses,
		Error:     err,
	}
}

// PromptResult is the outcome of one batch prompt
type PromptResult struct {
	Index     int
	Prompt    string
	Responses map[string]string
	Error     error
}

// GetError returns the error from the prompt result
func (r *PromptResult) GetError() error {
	return r.Error
}

// BatchProcessor fans a list of prompts out with bounded concurrency
type BatchProcessor struct {
	runner      PromptRunner
	concurrency int
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor.
// A positive rps throttles how fast prompts are started.
func NewBatchProcessor(runner PromptRunner, concurrency int, rps float64, burst int) *BatchProcessor {
	b := &BatchProcessor{
		runner:      runner,
		concurrency: concurrency,
	}
	if rps > 0 {
		b.limiter = NewLimiter(rps, burst)
	}
	return b
}

// ProcessPrompts runs every prompt and returns results in input order
func (b *BatchProcessor) ProcessPrompts(ctx context.Context, prompts []string) []*PromptResult {
	if len(prompts) == 0 {
		return []*PromptResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	jobs := make([]Job, len(prompts))
	for i, prompt := range prompts {
		jobs[i] = &PromptJob{
			Index:   i,
			Prompt:  prompt,
			Runner:  b.runner,
			Limiter: b.limiter,
		}
	}
	pool.Go(jobs)

	results := pool.Wait()

	promptResults := make([]*PromptResult, len(prompts))
	for _, result := range results {
		r := result.(*PromptResult)
		promptResults[r.Index] = r
	}
	// Prompts the pool dropped after cancellation still get a result
	for i, r := range promptResults {
		if r == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			promptResults[i] = &PromptResult{Index: i, Prompt: prompts[i], Error: err}
		}
	}

	return promptResults
}

// ProcessFile reads prompts from a file and processes them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*PromptResult, error) {
	prompts, err := ReadPromptsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}

	return b.ProcessPrompts(ctx, prompts), nil
}

// ReadPromptsFromFile reads prompts from a file, one per line.
// Blank lines and # comments are skipped and duplicates dropped.
func ReadPromptsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var prompts []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !seen[line] {
			seen[line] = true
			prompts = append(prompts, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return prompts, nil
}

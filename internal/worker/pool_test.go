package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
)

// fakeRunner records extractions and fails for inputs containing "bad".
type fakeRunner struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeRunner) ExtractFile(_ context.Context, inputPath, _ string) error {
	f.mu.Lock()
	f.calls = append(f.calls, inputPath)
	f.mu.Unlock()

	if strings.Contains(inputPath, "bad") {
		return errors.New("decode failed")
	}
	return nil
}

func TestPoolRunsAllTasks(t *testing.T) {
	runner := &fakeRunner{}
	pool := New(Config{Workers: 4, Runner: runner})

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = Task{InputPath: fmt.Sprintf("img-%d.png", i), OutputPath: fmt.Sprintf("out-%d.png", i)}
	}

	results := pool.Run(context.Background(), tasks)
	if len(results) != len(tasks) {
		t.Fatalf("expected %d results, got %d", len(tasks), len(results))
	}
	for _, r := range results {
		if r.Err != nil {
			t.Fatalf("unexpected error for %s: %v", r.Task.InputPath, r.Err)
		}
	}
	if len(runner.calls) != len(tasks) {
		t.Fatalf("expected %d extractions, got %d", len(tasks), len(runner.calls))
	}
}

func TestPoolCountsFailures(t *testing.T) {
	pool := New(Config{Workers: 2, Runner: &fakeRunner{}})

	tasks := []Task{
		{InputPath: "ok-1.png"},
		{InputPath: "bad-1.png"},
		{InputPath: "ok-2.png"},
		{InputPath: "bad-2.png"},
	}

	results := pool.Run(context.Background(), tasks)

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed != 2 {
		t.Fatalf("expected 2 failures, got %d", failed)
	}
}

func TestPoolReportsProgress(t *testing.T) {
	var mu sync.Mutex
	var lastCompleted, lastTotal, lastFailed int

	pool := New(Config{
		Workers: 2,
		Runner:  &fakeRunner{},
		OnProgress: func(completed, total, failed int) {
			mu.Lock()
			lastCompleted, lastTotal, lastFailed = completed, total, failed
			mu.Unlock()
		},
	})

	tasks := []Task{
		{InputPath: "ok.png"},
		{InputPath: "bad.png"},
		{InputPath: "ok-2.png"},
	}
	pool.Run(context.Background(), tasks)

	if lastCompleted != 3 || lastTotal != 3 {
		t.Fatalf("expected final progress 3/3, got %d/%d", lastCompleted, lastTotal)
	}
	if lastFailed != 1 {
		t.Fatalf("expected 1 failure reported, got %d", lastFailed)
	}
}

func TestPoolEmptyTaskList(t *testing.T) {
	pool := New(Config{Workers: 2, Runner: &fakeRunner{}})
	if results := pool.Run(context.Background(), nil); results != nil {
		t.Fatalf("expected nil results for empty task list, got %v", results)
	}
}

func TestNewDefaultsWorkerCount(t *testing.T) {
	pool := New(Config{Workers: 0, Runner: &fakeRunner{}})
	if pool.workers != 1 {
		t.Fatalf("expected at least one worker, got %d", pool.workers)
	}
}

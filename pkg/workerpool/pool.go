// Package workerpool runs independent backend calls with bounded parallelism
// and an all-settled join.
package workerpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum outstanding calls (default: 8)
}

// DefaultConfig returns the roster's defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 8}
}

// Pool bounds how many items run at once. A Pool carries no state between
// calls to Process and may be shared.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool. MaxConcurrent below 1 falls back to the default.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("worker-pool"),
	}
}

// MaxConcurrent returns the effective concurrency bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is one unit of work.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the settled outcome of one Item.
type Result[T any] struct {
	ID    string
	Value T
	Err   error
	Index int // position of the item in the submitted slice
}

// Process runs every item and returns once all have settled.
// Results arrive in completion order; Index maps each back to its item.
// A failing item never stops the others. Items still waiting for a slot when
// ctx is cancelled settle with ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *Pool,
	items []Item[T],
	onProgress func(completed, total int),
) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	resultsChan := make(chan Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				resultsChan <- Result[T]{ID: item.ID, Index: i, Err: ctx.Err()}
				return
			}

			value, err := item.Execute(ctx)
			resultsChan <- Result[T]{ID: item.ID, Index: i, Value: value, Err: err}
		}(i, item)
	}

	go func() {
		wg.Wait()
		close(resultsChan)
	}()

	results := make([]Result[T], 0, len(items))
	failed := 0
	for result := range resultsChan {
		results = append(results, result)
		if result.Err != nil {
			failed++
		}
		if onProgress != nil {
			onProgress(len(results), len(items))
		}
	}

	if failed > 0 {
		pool.logger.Debug("Work items settled with failures",
			zap.Int("total", len(items)),
			zap.Int("failed", failed))
	}

	return results
}

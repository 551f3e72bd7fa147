package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// BatchProcessor splits row ranges into chunks and runs them on a bounded
// worker pool. Each chunk writes only its own slice of the output, so
// results land in input order regardless of scheduling.
type BatchProcessor struct {
	maxWorkers int
	chunkSize  int
	timeout    time.Duration
}

// NewBatchProcessor creates a new batch processor.
func NewBatchProcessor(maxWorkers, chunkSize int, timeout time.Duration) *BatchProcessor {
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	if chunkSize <= 0 {
		chunkSize = 256
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &BatchProcessor{
		maxWorkers: maxWorkers,
		chunkSize:  chunkSize,
		timeout:    timeout,
	}
}

// Chunk is a half-open row range [From, To).
type Chunk struct {
	Index int
	From  int
	To    int
}

// Chunks returns the ranges n rows are split into.
func (bp *BatchProcessor) Chunks(n int) []Chunk {
	var chunks []Chunk
	for from := 0; from < n; from += bp.chunkSize {
		to := min(from+bp.chunkSize, n)
		chunks = append(chunks, Chunk{Index: len(chunks), From: from, To: to})
	}
	return chunks
}

// Run calls fn once per chunk of n rows. progress, when set, receives the
// row count of every finished chunk. When chunks fail, the error of the
// earliest chunk is returned.
func (bp *BatchProcessor) Run(ctx context.Context, n int, fn func(ctx context.Context, c Chunk) error, progress func(rows int)) error {
	chunks := bp.Chunks(n)
	if len(chunks) == 0 {
		return nil
	}

	processCtx, cancel := context.WithTimeout(ctx, bp.timeout)
	defer cancel()

	workChan := make(chan Chunk, len(chunks))
	for _, c := range chunks {
		workChan <- c
	}
	close(workChan)

	errs := make([]error, len(chunks))
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < bp.maxWorkers && i < len(chunks); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range workChan {
				if err := processCtx.Err(); err != nil {
					errs[c.Index] = err
					continue
				}
				errs[c.Index] = fn(processCtx, c)
				if errs[c.Index] == nil && progress != nil {
					mu.Lock()
					progress(c.To - c.From)
					mu.Unlock()
				}
			}
		}()
	}

	wg.Wait()

	for _, err := range errs {
		if err == nil {
			continue
		}
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("batch processing timeout after %v: %w", bp.timeout, err)
		}
		return err
	}
	return nil
}

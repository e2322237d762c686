package generator

import (
	"context"
	"errors"
	"sync"

	"github.com/tanvi/payboard/internal/domain"
	"github.com/tanvi/payboard/internal/store"
)

// TaskError accumulates multiple errors produced during bulk loading.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Loader inserts generated transactions into a store using a worker pool.
type Loader struct {
	txns    store.TransactionStore
	workers int
}

// NewLoader creates a Loader with the provided concurrency.
func NewLoader(txns store.TransactionStore, workers int) *Loader {
	if workers <= 0 {
		workers = 4
	}
	return &Loader{
		txns:    txns,
		workers: workers,
	}
}

// Load inserts the provided transactions concurrently.
func (l *Loader) Load(ctx context.Context, txns []domain.Transaction) error {
	total := len(txns)
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if err := l.txns.Insert(ctx, txns[idx]); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < l.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}

// Seeder couples a Generator with a Loader so callers can populate the
// store in one call. It backs both the seed binary and the convenience
// seed endpoint.
type Seeder struct {
	gen    *Generator
	loader *Loader
}

// NewSeeder constructs a Seeder.
func NewSeeder(gen *Generator, loader *Loader) *Seeder {
	return &Seeder{gen: gen, loader: loader}
}

// Seed generates and inserts count transactions, returning how many were
// written.
func (s *Seeder) Seed(ctx context.Context, count int) (int, error) {
	txns, err := s.gen.Generate(ctx, count)
	if err != nil {
		return 0, err
	}
	if err := s.loader.Load(ctx, txns); err != nil {
		return 0, err
	}
	return len(txns), nil
}

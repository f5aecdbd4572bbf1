// Package async provides helpers for running named tasks concurrently.
package async

import (
	"context"
	"errors"
	"fmt"
)

// Task represents an asynchronous operation with a name and function.
type Task struct {
	Name string
	Func func(context.Context) error
}

// RunAll executes all tasks concurrently, each labelled with its name,
// and waits for every one to finish. The returned error joins every task
// failure; a single failed task never hides or cancels its siblings.
func RunAll(ctx context.Context, tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}

	type result struct {
		name string
		err  error
	}

	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			err := task.Func(ctx)
			resultChan <- result{name: task.Name, err: err}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}

// RunBounded executes the tasks with at most limit running concurrently,
// collecting all failures like RunAll. A non-positive limit runs the
// tasks unbounded.
func RunBounded(ctx context.Context, limit int, tasks []Task) error {
	if limit <= 0 || limit >= len(tasks) {
		return RunAll(ctx, tasks)
	}

	sem := make(chan struct{}, limit)
	type result struct {
		name string
		err  error
	}
	resultChan := make(chan result, len(tasks))

	for _, task := range tasks {
		go func() {
			sem <- struct{}{}
			defer func() { <-sem }()
			resultChan <- result{name: task.Name, err: task.Func(ctx)}
		}()
	}

	var errs []error
	for range len(tasks) {
		res := <-resultChan
		if res.err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", res.name, res.err))
		}
	}

	return errors.Join(errs...)
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package fixedpool runs a fixed set of tasks which live and die together.
package fixedpool

import (
	"context"

	"github.com/z5labs/minihttpd/internal/try"

	"golang.org/x/sync/errgroup"
)

// Task is a unit of work which should return once ctx is cancelled.
type Task func(context.Context) error

// Wait runs every task in its own goroutine and blocks until all of them
// return. The first task to fail, or panic, cancels the context handed to
// the others. The returned error is the first failure.
func Wait(ctx context.Context, tasks ...Task) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, task := range tasks {
		task := task
		g.Go(func() (err error) {
			defer try.Recover(&err)
			return task(gctx)
		})
	}
	return g.Wait()
}

// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package app provides wrappers around a [minihttpd.App] for panic
// recovery, signal handling and lifecycle hooks.
package app

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/z5labs/minihttpd"
	"github.com/z5labs/minihttpd/internal/try"
)

// RunFunc is a functional implementation of [minihttpd.App].
type RunFunc func(context.Context) error

// Run implements the [minihttpd.App] interface.
func (f RunFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Recover wraps app so a panic from app.Run is returned as a [try.PanicError].
func Recover(app minihttpd.App) minihttpd.App {
	return RunFunc(func(ctx context.Context) (err error) {
		defer try.Recover(&err)

		return app.Run(ctx)
	})
}

// WithSignalNotifications cancels the context passed to app.Run
// once any of the given signals is received.
func WithSignalNotifications(app minihttpd.App, signals ...os.Signal) minihttpd.App {
	return RunFunc(func(ctx context.Context) error {
		sigCtx, cancel := signal.NotifyContext(ctx, signals...)
		defer cancel()

		return app.Run(sigCtx)
	})
}

// LifecycleHook represents functionality that needs to be performed
// at a specific "time" relative to the execution of app.Run.
type LifecycleHook interface {
	Run(context.Context) error
}

// LifecycleHookFunc is a functional implementation of [LifecycleHook].
type LifecycleHookFunc func(context.Context) error

// Run implements the [LifecycleHook] interface.
func (f LifecycleHookFunc) Run(ctx context.Context) error {
	return f(ctx)
}

// Lifecycle
type Lifecycle struct {
	// PreRun is executed before app.Run. If it fails the app is never run.
	PreRun LifecycleHook

	// PostRun always runs, even if app.Run fails or panics.
	PostRun LifecycleHook
}

// WithLifecycleHooks wraps app so the hooks in lifecycle run around app.Run.
func WithLifecycleHooks(app minihttpd.App, lifecycle Lifecycle) minihttpd.App {
	return RunFunc(func(ctx context.Context) (err error) {
		defer runPostRunHook(ctx, lifecycle.PostRun, &err)

		err = runHook(ctx, lifecycle.PreRun)
		if err != nil {
			return err
		}
		return app.Run(ctx)
	})
}

// ComposeHooks runs each hook in order and joins their errors.
// Every hook runs even if an earlier one fails.
func ComposeHooks(hooks ...LifecycleHook) LifecycleHook {
	return LifecycleHookFunc(func(ctx context.Context) error {
		var errs []error
		for _, hook := range hooks {
			errs = append(errs, runHook(ctx, hook))
		}
		return errors.Join(errs...)
	})
}

func runHook(ctx context.Context, hook LifecycleHook) error {
	if hook == nil {
		return nil
	}
	return hook.Run(ctx)
}

func runPostRunHook(ctx context.Context, hook LifecycleHook, err *error) {
	// errors.Join returns nil if both are nil.
	*err = errors.Join(*err, runHook(ctx, hook))
}

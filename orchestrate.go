// Copyright 2024 The Loom Authors
// This file is part of Loom.
//
// Loom is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.

package loom

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunInstances runs each work function against its own freshly created
// Instance concurrently, returning the first error any of them return
// (spec §5: language instances are independent and safe to run on
// separate goroutines simultaneously; only a single Instance's own
// internals are not safe for concurrent use). This is host-side
// orchestration across instances, never intra-instance concurrency —
// nothing inside a single Instance's Machine/Scheduler ever runs on
// more than one goroutine at a time.
//
// Canceling ctx, or any work function returning an error, cancels the
// remaining in-flight instances' context (available to a work function
// that wants to check it, though core itself never reads ctx).
func RunInstances(ctx context.Context, opts []Option, work ...func(ctx context.Context, ins *Instance) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range work {
		fn := fn
		g.Go(func() error {
			ins := New(opts...)
			return fn(gctx, ins)
		})
	}
	return g.Wait()
}

// Package batch runs independent operations concurrently and collects every failure.
//
// Unlike a plain errgroup, a failing operation never cancels its siblings:
// Run always waits for every operation to settle and reports all failures
// together.
package batch

import (
	"context"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/midasapp/midas-server/internal/errors"
)

// DefaultLimit bounds concurrency when the caller passes a non-positive limit.
const DefaultLimit = 4

// Op is one independent unit of work.
type Op struct {
	// Name is a short verb for error reporting ("associate", "dissociate", "unlink").
	Name string
	// Target is the id the operation acts on.
	Target string
	Run    func(ctx context.Context) error
}

// Result reports which operations succeeded and which failed, in submission order.
type Result struct {
	Succeeded []Op
	Failed    []apperrors.OpFailure
}

// Err returns a *errors.PartialBatchError listing every failure, or nil.
func (r Result) Err() error {
	return apperrors.NewPartialBatch(len(r.Succeeded)+len(r.Failed), r.Failed)
}

// Run executes ops with at most limit in flight and waits for all of them.
// The context is passed to every operation unchanged; a cancelled context
// surfaces as per-operation failures rather than aborting the batch.
func Run(ctx context.Context, limit int, ops []Op) Result {
	if limit <= 0 {
		limit = DefaultLimit
	}

	errs := make([]error, len(ops))

	var g errgroup.Group
	g.SetLimit(limit)
	for i, op := range ops {
		g.Go(func() error {
			// Each slot is written by exactly one goroutine.
			errs[i] = op.Run(ctx)
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors

	var res Result
	for i, op := range ops {
		if errs[i] != nil {
			res.Failed = append(res.Failed, apperrors.OpFailure{Op: op.Name, Target: op.Target, Err: errs[i]})
			continue
		}
		res.Succeeded = append(res.Succeeded, op)
	}
	return res
}

package batch

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	apperrors "github.com/midasapp/midas-server/internal/errors"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func op(name, target string, err error) Op {
	return Op{Name: name, Target: target, Run: func(context.Context) error { return err }}
}

func TestRun_AllSucceed(t *testing.T) {
	res := Run(context.Background(), 2, []Op{
		op("associate", "tag-1", nil),
		op("associate", "tag-2", nil),
	})

	assert.Len(t, res.Succeeded, 2)
	assert.Empty(t, res.Failed)
	assert.NoError(t, res.Err())
}

func TestRun_FailureDoesNotStopSiblings(t *testing.T) {
	var ran atomic.Int32
	boom := errors.New("boom")

	ops := []Op{
		{Name: "associate", Target: "tag-1", Run: func(context.Context) error { ran.Add(1); return boom }},
		{Name: "associate", Target: "tag-2", Run: func(context.Context) error {
			time.Sleep(10 * time.Millisecond)
			ran.Add(1)
			return nil
		}},
		{Name: "dissociate", Target: "tga-9", Run: func(context.Context) error { ran.Add(1); return nil }},
	}

	res := Run(context.Background(), 3, ops)

	assert.Equal(t, int32(3), ran.Load())
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "associate", res.Failed[0].Op)
	assert.Equal(t, "tag-1", res.Failed[0].Target)
	assert.Len(t, res.Succeeded, 2)

	err := res.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, apperrors.ErrPartialFailure))
}

func TestRun_ReportsEveryFailureInOrder(t *testing.T) {
	res := Run(context.Background(), 1, []Op{
		op("dissociate", "tga-1", errors.New("a")),
		op("dissociate", "tga-2", nil),
		op("dissociate", "tga-3", errors.New("c")),
	})

	require.Len(t, res.Failed, 2)
	assert.Equal(t, "tga-1", res.Failed[0].Target)
	assert.Equal(t, "tga-3", res.Failed[1].Target)

	var batchErr *apperrors.PartialBatchError
	require.ErrorAs(t, res.Err(), &batchErr)
	assert.Equal(t, 3, batchErr.Attempted)
}

func TestRun_RespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	ops := make([]Op, 10)
	for i := range ops {
		ops[i] = Op{Name: "associate", Target: "tag", Run: func(context.Context) error {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			inFlight.Add(-1)
			return nil
		}}
	}

	Run(context.Background(), 2, ops)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_EmptyBatch(t *testing.T) {
	res := Run(context.Background(), 0, nil)
	assert.Empty(t, res.Succeeded)
	assert.NoError(t, res.Err())
}

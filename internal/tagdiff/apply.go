package tagdiff

import (
	"context"

	"github.com/midasapp/midas-server/internal/batch"
	"github.com/midasapp/midas-server/internal/domain"
)

// Operation names reported in partial failures.
const (
	OpAssociate  = "associate"
	OpDissociate = "dissociate"
)

// Mutator creates and deletes tag associations.
type Mutator interface {
	CreateTagAssociation(ctx context.Context, owner domain.Owner, tagID string) (*domain.TagAssociation, error)
	DeleteTagAssociation(ctx context.Context, id string) error
}

// Outcome lists what Apply actually changed.
type Outcome struct {
	// Added holds the tag ids that were associated.
	Added []string `json:"added"`
	// Removed holds the association ids that were deleted.
	Removed []string `json:"removed"`
	// Failed counts operations that did not complete.
	Failed int `json:"failed"`
}

// Apply performs every add and remove in res as an independent operation, with
// at most limit running at once. It waits for all of them to settle. When any
// failed, the returned error is an *errors.PartialBatchError describing each
// failure; the Outcome still reflects what succeeded.
func Apply(ctx context.Context, m Mutator, owner domain.Owner, res Result, limit int) (Outcome, error) {
	ops := make([]batch.Op, 0, len(res.ToAdd)+len(res.ToRemove))
	for _, tagID := range res.ToAdd {
		ops = append(ops, batch.Op{
			Name:   OpAssociate,
			Target: tagID,
			Run: func(ctx context.Context) error {
				_, err := m.CreateTagAssociation(ctx, owner, tagID)
				return err
			},
		})
	}
	for _, assocID := range res.ToRemove {
		ops = append(ops, batch.Op{
			Name:   OpDissociate,
			Target: assocID,
			Run: func(ctx context.Context) error {
				return m.DeleteTagAssociation(ctx, assocID)
			},
		})
	}

	out := Outcome{Added: []string{}, Removed: []string{}}
	if len(ops) == 0 {
		return out, nil
	}

	result := batch.Run(ctx, limit, ops)
	for _, op := range result.Succeeded {
		if op.Name == OpAssociate {
			out.Added = append(out.Added, op.Target)
		} else {
			out.Removed = append(out.Removed, op.Target)
		}
	}
	out.Failed = len(result.Failed)

	return out, result.Err()
}

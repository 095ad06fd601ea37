// Package tagdiff reconciles an owner's existing tag associations against a
// submitted selection of tag ids grouped by type.
//
// Diff is pure: it decides which tags to add, which associations to remove and
// which to keep. Apply executes a Result against a store.
package tagdiff

import (
	"slices"

	"github.com/midasapp/midas-server/internal/domain"
)

// Duplicates selects how repeated tag ids within one type are treated.
type Duplicates int

const (
	// DuplicatesIndependent treats every occurrence as its own lookup. A second
	// occurrence can match another existing association with the same tag id,
	// or becomes a second add.
	DuplicatesIndependent Duplicates = iota
	// DuplicatesCollapse drops every occurrence after the first.
	DuplicatesCollapse
)

// Options scopes a diff.
type Options struct {
	// Types limits reconciliation to these tag types, in this order. Nil means domain.TagTypes.
	Types      []domain.TagType
	Duplicates Duplicates
}

func (o Options) types() []domain.TagType {
	if o.Types == nil {
		return domain.TagTypes
	}
	return o.Types
}

// Result classifies every existing association into exactly one of ToRemove
// or Unchanged, and lists the tag ids that need a new association.
type Result struct {
	// ToAdd holds tag ids.
	ToAdd []string `json:"toAdd"`
	// ToRemove holds association ids.
	ToRemove []string `json:"toRemove"`
	// Unchanged holds association ids, including associations whose type is out of scope.
	Unchanged []string `json:"unchanged"`
	// Ignored lists selected types that are out of scope.
	Ignored []domain.TagType `json:"ignored,omitempty"`
}

// Empty reports whether applying the result would change nothing.
func (r Result) Empty() bool {
	return len(r.ToAdd) == 0 && len(r.ToRemove) == 0
}

// Diff matches selected against existing, one type at a time.
//
// For each selected tag id, the first not yet consumed existing association of
// the same type with that tag id is kept and consumed; otherwise the id is
// added. Whatever existing associations of the type remain unconsumed are
// removed. Associations of types outside opts.Types are left alone and
// reported as unchanged.
func Diff(existing []domain.TagAssociation, selected domain.Selection, opts Options) Result {
	types := opts.types()

	res := Result{
		ToAdd:     []string{},
		ToRemove:  []string{},
		Unchanged: []string{},
	}

	byType := make(map[domain.TagType][]domain.TagAssociation, len(types))
	for _, a := range existing {
		if !slices.Contains(types, a.Tag.Type) {
			res.Unchanged = append(res.Unchanged, a.ID)
			continue
		}
		byType[a.Tag.Type] = append(byType[a.Tag.Type], a)
	}

	seenType := make(map[domain.TagType]bool, len(types))
	for _, t := range types {
		if seenType[t] {
			continue
		}
		seenType[t] = true

		candidates := byType[t]
		consumed := make([]bool, len(candidates))

		for _, tagID := range prepare(selected[t], opts.Duplicates) {
			match := -1
			for i, a := range candidates {
				if !consumed[i] && a.TagID == tagID {
					match = i
					break
				}
			}
			if match < 0 {
				res.ToAdd = append(res.ToAdd, tagID)
				continue
			}
			consumed[match] = true
			res.Unchanged = append(res.Unchanged, candidates[match].ID)
		}

		for i, a := range candidates {
			if !consumed[i] {
				res.ToRemove = append(res.ToRemove, a.ID)
			}
		}
	}

	for t, ids := range selected {
		if len(ids) > 0 && !seenType[t] {
			res.Ignored = append(res.Ignored, t)
		}
	}
	slices.Sort(res.Ignored)

	return res
}

// prepare drops blank ids and applies the duplicate policy.
func prepare(ids []string, policy Duplicates) []string {
	out := make([]string, 0, len(ids))
	var seen map[string]bool
	if policy == DuplicatesCollapse {
		seen = make(map[string]bool, len(ids))
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if seen != nil {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, id)
	}
	return out
}

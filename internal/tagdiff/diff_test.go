package tagdiff

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/midasapp/midas-server/internal/domain"
)

func assoc(id, tagID string, t domain.TagType) domain.TagAssociation {
	a := domain.TagAssociation{TagID: tagID, Tag: domain.Tag{Type: t}}
	a.ID = id
	a.Tag.ID = tagID
	return a
}

// classified checks that every existing association landed in exactly one of
// ToRemove or Unchanged and that adds and removes never overlap.
func classified(t *testing.T, existing []domain.TagAssociation, res Result) {
	t.Helper()
	counts := map[string]int{}
	for _, id := range res.ToRemove {
		counts[id]++
	}
	for _, id := range res.Unchanged {
		counts[id]++
	}
	for _, a := range existing {
		assert.Equal(t, 1, counts[a.ID], "association %s classified %d times", a.ID, counts[a.ID])
	}
	assert.Len(t, counts, len(existing))

	for _, tagID := range res.ToAdd {
		assert.NotContains(t, res.ToRemove, tagID)
	}
}

func TestDiff_ReplaceSingleSkill(t *testing.T) {
	existing := []domain.TagAssociation{assoc("1", "10", domain.TagTypeSkill)}

	res := Diff(existing, domain.Selection{domain.TagTypeSkill: {"20"}}, Options{})

	assert.Equal(t, []string{"20"}, res.ToAdd)
	assert.Equal(t, []string{"1"}, res.ToRemove)
	assert.Empty(t, res.Unchanged)
	classified(t, existing, res)
}

func TestDiff_EmptySelectionRemovesEverything(t *testing.T) {
	existing := []domain.TagAssociation{
		assoc("1", "10", domain.TagTypeSkill),
		assoc("2", "11", domain.TagTypeTopic),
		assoc("3", "12", domain.TagTypeTaskPeople),
	}

	res := Diff(existing, domain.Selection{}, Options{})

	assert.Empty(t, res.ToAdd)
	assert.ElementsMatch(t, []string{"1", "2", "3"}, res.ToRemove)
	assert.Empty(t, res.Unchanged)
	classified(t, existing, res)
}

func TestDiff_EmptyExistingAddsEverything(t *testing.T) {
	res := Diff(nil, domain.Selection{
		domain.TagTypeSkill:    {"10", "11"},
		domain.TagTypeLocation: {"30"},
	}, Options{})

	assert.Equal(t, []string{"10", "11", "30"}, res.ToAdd)
	assert.Empty(t, res.ToRemove)
	assert.Empty(t, res.Unchanged)
}

func TestDiff_SameSelectionIsNoop(t *testing.T) {
	existing := []domain.TagAssociation{
		assoc("1", "10", domain.TagTypeSkill),
		assoc("2", "11", domain.TagTypeSkill),
		assoc("3", "20", domain.TagTypeTopic),
	}

	res := Diff(existing, domain.Selection{
		domain.TagTypeSkill: {"11", "10"},
		domain.TagTypeTopic: {"20"},
	}, Options{})

	assert.True(t, res.Empty())
	assert.ElementsMatch(t, []string{"1", "2", "3"}, res.Unchanged)
	classified(t, existing, res)
}

func TestDiff_MatchingIsScopedByType(t *testing.T) {
	// The same tag id under a different type must not match.
	existing := []domain.TagAssociation{assoc("1", "10", domain.TagTypeSkill)}

	res := Diff(existing, domain.Selection{domain.TagTypeTopic: {"10"}}, Options{})

	assert.Equal(t, []string{"10"}, res.ToAdd)
	assert.Equal(t, []string{"1"}, res.ToRemove)
	classified(t, existing, res)
}

func TestDiff_OutOfScopeTypesAreUntouched(t *testing.T) {
	existing := []domain.TagAssociation{
		assoc("1", "10", domain.TagTypeSkill),
		assoc("2", "50", domain.TagTypeAgency),
	}

	res := Diff(existing, domain.Selection{
		domain.TagTypeSkill:  {},
		domain.TagTypeAgency: {"51"},
	}, Options{Types: domain.TaskTagTypes})

	assert.Empty(t, res.ToAdd)
	assert.Equal(t, []string{"1"}, res.ToRemove)
	assert.Equal(t, []string{"2"}, res.Unchanged)
	assert.Equal(t, []domain.TagType{domain.TagTypeAgency}, res.Ignored)
	classified(t, existing, res)
}

func TestDiff_AssociationWithoutLoadedTagIsUnchanged(t *testing.T) {
	existing := []domain.TagAssociation{assoc("1", "10", "")}

	res := Diff(existing, domain.Selection{}, Options{})

	assert.Equal(t, []string{"1"}, res.Unchanged)
	assert.Empty(t, res.ToRemove)
}

func TestDiff_BlankIDsAreSkipped(t *testing.T) {
	res := Diff(nil, domain.Selection{domain.TagTypeSkill: {"", "10", ""}}, Options{})
	assert.Equal(t, []string{"10"}, res.ToAdd)
}

func TestDiff_DuplicatesIndependent(t *testing.T) {
	t.Run("second occurrence becomes a second add", func(t *testing.T) {
		res := Diff(nil, domain.Selection{domain.TagTypeSkill: {"10", "10"}}, Options{})
		assert.Equal(t, []string{"10", "10"}, res.ToAdd)
	})

	t.Run("each occurrence consumes one association", func(t *testing.T) {
		existing := []domain.TagAssociation{
			assoc("1", "10", domain.TagTypeSkill),
			assoc("2", "10", domain.TagTypeSkill),
		}
		res := Diff(existing, domain.Selection{domain.TagTypeSkill: {"10", "10", "10"}}, Options{})

		assert.Equal(t, []string{"10"}, res.ToAdd)
		assert.Equal(t, []string{"1", "2"}, res.Unchanged)
		assert.Empty(t, res.ToRemove)
		classified(t, existing, res)
	})

	t.Run("one occurrence keeps one duplicate association", func(t *testing.T) {
		existing := []domain.TagAssociation{
			assoc("1", "10", domain.TagTypeSkill),
			assoc("2", "10", domain.TagTypeSkill),
		}
		res := Diff(existing, domain.Selection{domain.TagTypeSkill: {"10"}}, Options{})

		assert.Empty(t, res.ToAdd)
		assert.Equal(t, []string{"1"}, res.Unchanged)
		assert.Equal(t, []string{"2"}, res.ToRemove)
		classified(t, existing, res)
	})
}

func TestDiff_DuplicatesCollapse(t *testing.T) {
	res := Diff(nil, domain.Selection{domain.TagTypeSkill: {"10", "10", "11"}}, Options{Duplicates: DuplicatesCollapse})
	assert.Equal(t, []string{"10", "11"}, res.ToAdd)

	existing := []domain.TagAssociation{
		assoc("1", "10", domain.TagTypeSkill),
		assoc("2", "10", domain.TagTypeSkill),
	}
	res = Diff(existing, domain.Selection{domain.TagTypeSkill: {"10", "10"}}, Options{Duplicates: DuplicatesCollapse})
	assert.Empty(t, res.ToAdd)
	assert.Equal(t, []string{"1"}, res.Unchanged)
	assert.Equal(t, []string{"2"}, res.ToRemove)
	classified(t, existing, res)
}

func TestDiff_DoesNotMutateInputs(t *testing.T) {
	existing := []domain.TagAssociation{assoc("1", "10", domain.TagTypeSkill)}
	selected := domain.Selection{domain.TagTypeSkill: {"10", "11"}}

	Diff(existing, selected, Options{})

	assert.Equal(t, "1", existing[0].ID)
	assert.Equal(t, []string{"10", "11"}, selected[domain.TagTypeSkill])
}

func TestDiff_MixedTaskForm(t *testing.T) {
	existing := []domain.TagAssociation{
		assoc("a1", "skill-go", domain.TagTypeTaskSkillsRequired),
		assoc("a2", "people-2", domain.TagTypeTaskPeople),
		assoc("a3", "len-short", domain.TagTypeTaskLength),
		assoc("a4", "loc-remote", domain.TagTypeLocation),
	}
	selected := domain.Selection{
		domain.TagTypeTaskSkillsRequired: {"skill-go", "skill-sql"},
		domain.TagTypeTaskPeople:         {"people-3"},
		domain.TagTypeLocation:           {"loc-remote"},
	}

	res := Diff(existing, selected, Options{Types: domain.TaskTagTypes})

	assert.Equal(t, []string{"skill-sql", "people-3"}, res.ToAdd)
	assert.ElementsMatch(t, []string{"a2", "a3"}, res.ToRemove)
	assert.ElementsMatch(t, []string{"a1", "a4"}, res.Unchanged)
	classified(t, existing, res)
}

package search

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/midasapp/midas-server/internal/domain"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50
)

// AutocompleteParams configures a tag lookup.
type AutocompleteParams struct {
	Type  domain.TagType // empty = all types
	Query string
	Limit int
}

// Hit is one autocomplete suggestion.
type Hit struct {
	ID    string         `json:"id"`
	Type  domain.TagType `json:"type"`
	Name  string         `json:"name"`
	Score float64        `json:"score"`
}

// Autocomplete returns tags whose name words start with every word of the query.
// Results are ordered by score, then name.
func (s *TagIndex) Autocomplete(ctx context.Context, params AutocompleteParams) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	req := bleve.NewSearchRequestOptions(buildAutocompleteQuery(params), limit, 0, false)
	req.SortBy([]string{"-_score", "name_sort"})
	req.Fields = []string{"type", "name"}

	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	hits := make([]Hit, 0, len(result.Hits))
	for _, h := range result.Hits {
		hit := Hit{ID: h.ID, Score: h.Score}
		if t, ok := h.Fields["type"].(string); ok {
			hit.Type = domain.TagType(t)
		}
		if n, ok := h.Fields["name"].(string); ok {
			hit.Name = n
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// queryTerms splits q the way the name analyzer splits tag names.
func queryTerms(q string) []string {
	return strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsMark(r)
	})
}

func buildAutocompleteQuery(params AutocompleteParams) query.Query {
	var queries []query.Query

	for _, term := range queryTerms(params.Query) {
		prefix := bleve.NewPrefixQuery(term)
		prefix.SetField("name")

		// An exact word match ranks above a bare prefix.
		exact := bleve.NewTermQuery(term)
		exact.SetField("name")
		exact.SetBoost(2.0)

		queries = append(queries, bleve.NewDisjunctionQuery(prefix, exact))
	}

	if params.Type != "" {
		tq := bleve.NewTermQuery(string(params.Type))
		tq.SetField("type")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

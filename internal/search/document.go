// Package search provides tag autocomplete backed by a Bleve full-text index.
package search

import (
	"strings"

	"github.com/midasapp/midas-server/internal/domain"
)

// TagDocument is the indexed form of a tag.
type TagDocument struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
	// NameSort is the lowercased name, used as the tie-breaker when scores are equal.
	NameSort string `json:"name_sort"`
}

// TagToDocument converts a domain tag to its index document.
func TagToDocument(tag *domain.Tag) *TagDocument {
	return &TagDocument{
		ID:       tag.ID,
		Type:     string(tag.Type),
		Name:     tag.Name,
		NameSort: strings.ToLower(tag.Name),
	}
}

// ToMap keeps field names aligned with the mapping.
func (d *TagDocument) ToMap() map[string]any {
	return map[string]any{
		"id":        d.ID,
		"type":      d.Type,
		"name":      d.Name,
		"name_sort": d.NameSort,
	}
}

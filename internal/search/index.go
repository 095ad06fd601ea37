package search

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/blevesearch/bleve/v2"

	"github.com/midasapp/midas-server/internal/domain"
	"github.com/midasapp/midas-server/internal/store"
)

var _ store.TagIndexer = (*TagIndex)(nil)

// TagIndex wraps a Bleve index of tags.
//
// All public methods are safe for concurrent use; Rebuild takes the write lock.
type TagIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the tag index.
type Options struct {
	// Path is the index directory. Empty opens a memory-only index.
	Path   string
	Logger *slog.Logger
}

// mappingVersion is bumped whenever buildIndexMapping changes; a mismatch
// on startup drops and recreates the index.
const mappingVersion = "1"

// Open creates or opens the tag index at opts.Path.
// A corrupted or outdated index is removed and recreated empty; callers
// repopulate it with IndexTags.
func Open(opts Options) (*TagIndex, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	indexMapping, err := buildIndexMapping()
	if err != nil {
		return nil, fmt.Errorf("build mapping: %w", err)
	}

	if opts.Path == "" {
		index, err := bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create memory index: %w", err)
		}
		return &TagIndex{index: index, logger: logger}, nil
	}

	versionPath := opts.Path + ".version"
	var index bleve.Index

	if _, statErr := os.Stat(opts.Path); statErr == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil || string(existing) != mappingVersion:
			logger.Info("tag index mapping changed, recreating",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		default:
			index, err = bleve.Open(opts.Path)
			if err != nil {
				logger.Warn("failed to open tag index, recreating", "path", opts.Path, "error", err)
				index = nil
			}
		}
		if index == nil {
			if err := os.RemoveAll(opts.Path); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if index == nil {
		if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
		index, err = bleve.New(opts.Path, indexMapping)
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write tag index version file", "error", err)
		}
		logger.Info("created tag index", "path", opts.Path, "mapping_version", mappingVersion)
	} else {
		logger.Info("opened tag index", "path", opts.Path)
	}

	return &TagIndex{index: index, path: opts.Path, logger: logger}, nil
}

// Close releases the index.
func (s *TagIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexTag adds or replaces a single tag.
func (s *TagIndex) IndexTag(_ context.Context, tag *domain.Tag) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc := TagToDocument(tag)
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexTags indexes tags in batches of 500.
func (s *TagIndex) IndexTags(_ context.Context, tags []*domain.Tag) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500

	for i := 0; i < len(tags); i += batchSize {
		end := min(i+batchSize, len(tags))

		batch := s.index.NewBatch()
		for _, tag := range tags[i:end] {
			doc := TagToDocument(tag)
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", i, end, err)
		}
	}
	return nil
}

// DeleteTag removes a tag from the index.
func (s *TagIndex) DeleteTag(_ context.Context, tagID string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(tagID)
}

// DocumentCount returns the number of indexed tags.
func (s *TagIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and repopulates it from tags.
func (s *TagIndex) Rebuild(ctx context.Context, tags []*domain.Tag) error {
	indexMapping, err := buildIndexMapping()
	if err != nil {
		return fmt.Errorf("build mapping: %w", err)
	}

	s.mu.Lock()
	if err := s.index.Close(); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("close index: %w", err)
	}

	var index bleve.Index
	if s.path == "" {
		index, err = bleve.NewMemOnly(indexMapping)
	} else {
		if err := os.RemoveAll(s.path); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("remove index: %w", err)
		}
		index, err = bleve.New(s.path, indexMapping)
	}
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.mu.Unlock()

	if err := s.IndexTags(ctx, tags); err != nil {
		return err
	}
	s.logger.Info("rebuilt tag index", "path", s.path, "tags", len(tags))
	return nil
}

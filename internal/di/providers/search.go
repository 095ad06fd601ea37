package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/midasapp/midas-server/internal/config"
	"github.com/midasapp/midas-server/internal/logger"
	"github.com/midasapp/midas-server/internal/search"
)

// SearchIndexHandle wraps the tag index with shutdown capability.
type SearchIndexHandle struct {
	*search.TagIndex
}

// Shutdown implements do.Shutdownable.
func (h *SearchIndexHandle) Shutdown() error {
	return h.Close()
}

// ProvideSearchIndex provides the Bleve tag index and wires it to the store
// so new tags are indexed as they are created.
func ProvideSearchIndex(i do.Injector) (*SearchIndexHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	index, err := search.Open(search.Options{
		Path:   cfg.Data.SearchPath(),
		Logger: log.Logger,
	})
	if err != nil {
		return nil, err
	}
	storeHandle.SetTagIndexer(index)

	docCount, _ := index.DocumentCount()
	log.Info("Search index initialized", "documents", docCount)

	return &SearchIndexHandle{TagIndex: index}, nil
}

// TriggerSearchReindexIfNeeded rebuilds the tag index in the background when
// it is empty but the catalogue is not.
func TriggerSearchReindexIfNeeded(i do.Injector) {
	indexHandle := do.MustInvoke[*SearchIndexHandle](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	docCount, _ := indexHandle.DocumentCount()
	if docCount > 0 {
		return
	}

	ctx := context.Background()
	tags, err := storeHandle.ListTags(ctx, "")
	if err != nil || len(tags) == 0 {
		return
	}

	log.Info("Search index is empty but tags exist, triggering reindex", "tag_count", len(tags))

	go func() {
		if err := indexHandle.Rebuild(context.Background(), tags); err != nil {
			log.Error("Tag reindex failed", "error", err)
			return
		}
		count, _ := indexHandle.DocumentCount()
		log.Info("Tag reindex completed", "documents", count)
	}()
}

package memory

import (
	"time"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
)

// SnapshotCache keeps recently loaded document snapshots in memory so a
// session reopening shortly after closing skips the database round trip.
type SnapshotCache struct {
	cache *cache.Cache
}

func NewSnapshotCache() *SnapshotCache {
	// Snapshots expire after 15 minutes, with expired entries purged every
	// 5 minutes
	c := cache.New(15*time.Minute, 5*time.Minute)
	return &SnapshotCache{
		cache: c,
	}
}

func (r *SnapshotCache) Save(doc *model.Document) {
	r.cache.Set(doc.Id.String(), doc.Clone(), cache.DefaultExpiration)
}

func (r *SnapshotCache) Get(documentId uuid.UUID) (*model.Document, bool) {
	if x, found := r.cache.Get(documentId.String()); found {
		return x.(*model.Document).Clone(), true
	}
	return nil, false
}

func (r *SnapshotCache) Delete(documentId uuid.UUID) {
	r.cache.Delete(documentId.String())
}

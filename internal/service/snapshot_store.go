package service

import (
	"context"

	"realtime-collab-be/internal/mapper"
	"realtime-collab-be/internal/model"
	"realtime-collab-be/internal/pkg/logger"
	"realtime-collab-be/internal/repository/memory"
	"realtime-collab-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// SnapshotStoreService backs sessions with Postgres, fronted by an
// in-memory cache for documents that reopen shortly after closing.
type SnapshotStoreService struct {
	uowFactory unitofwork.RepositoryFactory
	cache      *memory.SnapshotCache
	mapper     *mapper.SnapshotMapper
	logger     logger.ILogger
}

func NewSnapshotStoreService(uowFactory unitofwork.RepositoryFactory, cache *memory.SnapshotCache, log logger.ILogger) *SnapshotStoreService {
	return &SnapshotStoreService{
		uowFactory: uowFactory,
		cache:      cache,
		mapper:     mapper.NewSnapshotMapper(),
		logger:     log,
	}
}

func (s *SnapshotStoreService) LoadSnapshot(ctx context.Context, documentId uuid.UUID) (*model.Document, error) {
	if doc, ok := s.cache.Get(documentId); ok {
		return doc, nil
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	row, err := uow.SnapshotRepository().Find(ctx, documentId)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}

	doc, err := s.mapper.ToDocument(row)
	if err != nil {
		return nil, err
	}
	s.cache.Save(doc)
	return doc, nil
}

func (s *SnapshotStoreService) SaveSnapshot(ctx context.Context, doc *model.Document) error {
	row, err := s.mapper.ToRow(doc)
	if err != nil {
		return err
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.SnapshotRepository().Upsert(ctx, row); err != nil {
		return err
	}
	s.cache.Save(doc)

	s.logger.Info("SnapshotStore", "Snapshot persisted", map[string]interface{}{
		"document_id": doc.Id, "version": doc.Version,
	})
	return nil
}

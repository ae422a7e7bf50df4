package implementation

import (
	"context"
	"errors"

	"realtime-collab-be/internal/entity"
	"realtime-collab-be/internal/repository/contract"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SnapshotRepositoryImpl struct {
	db *gorm.DB
}

func NewSnapshotRepository(db *gorm.DB) contract.SnapshotRepository {
	return &SnapshotRepositoryImpl{db: db}
}

func (r *SnapshotRepositoryImpl) Upsert(ctx context.Context, snap *entity.DocumentSnapshot) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "document_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"version", "blocks", "checksum", "updated_at"}),
	}).Create(snap).Error
}

func (r *SnapshotRepositoryImpl) Find(ctx context.Context, documentId uuid.UUID) (*entity.DocumentSnapshot, error) {
	var snap entity.DocumentSnapshot
	err := r.db.WithContext(ctx).Where("document_id = ?", documentId).First(&snap).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

func (r *SnapshotRepositoryImpl) Delete(ctx context.Context, documentId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("document_id = ?", documentId).Delete(&entity.DocumentSnapshot{}).Error
}

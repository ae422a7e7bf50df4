package contract

import (
	"context"

	"realtime-collab-be/internal/entity"

	"github.com/google/uuid"
)

type SnapshotRepository interface {
	// Upsert writes the snapshot, replacing any previous version.
	Upsert(ctx context.Context, snap *entity.DocumentSnapshot) error
	// Find returns nil without error when no snapshot exists yet.
	Find(ctx context.Context, documentId uuid.UUID) (*entity.DocumentSnapshot, error)
	Delete(ctx context.Context, documentId uuid.UUID) error
}

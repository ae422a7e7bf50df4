package unitofwork

import (
	"context"

	"realtime-collab-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	SnapshotRepository() contract.SnapshotRepository
	CommentRepository() contract.CommentRepository
}

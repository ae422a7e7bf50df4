package mapper

import (
	"encoding/json"
	"fmt"
	"time"

	"realtime-collab-be/internal/entity"
	"realtime-collab-be/internal/model"
)

type SnapshotMapper struct{}

func NewSnapshotMapper() *SnapshotMapper {
	return &SnapshotMapper{}
}

func (m *SnapshotMapper) ToDocument(row *entity.DocumentSnapshot) (*model.Document, error) {
	if row == nil {
		return nil, nil
	}

	var blocks []*model.Block
	if err := json.Unmarshal([]byte(row.Blocks), &blocks); err != nil {
		return nil, fmt.Errorf("decoding blocks for document %s: %w", row.DocumentId, err)
	}

	return &model.Document{
		Id:       row.DocumentId,
		Version:  row.Version,
		Blocks:   blocks,
		Checksum: row.Checksum,
	}, nil
}

func (m *SnapshotMapper) ToRow(doc *model.Document) (*entity.DocumentSnapshot, error) {
	if doc == nil {
		return nil, nil
	}

	blocks, err := json.Marshal(doc.Blocks)
	if err != nil {
		return nil, fmt.Errorf("encoding blocks for document %s: %w", doc.Id, err)
	}

	now := time.Now()
	return &entity.DocumentSnapshot{
		DocumentId: doc.Id,
		Version:    doc.Version,
		Blocks:     string(blocks),
		Checksum:   doc.Checksum,
		UpdatedAt:  &now,
	}, nil
}

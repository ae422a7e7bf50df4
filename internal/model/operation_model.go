package model

import (
	"time"

	"github.com/google/uuid"
)

// OpType is a closed set. The transform engine and the document model both
// switch exhaustively over it; adding a member means touching those switches.
type OpType string

const (
	OpInsert OpType = "insert"
	OpDelete OpType = "delete"
	OpRetain OpType = "retain"
	OpFormat OpType = "format"
	OpMove   OpType = "move"
	OpSplit  OpType = "split"
	OpMerge  OpType = "merge"
)

// Operation is a single edit composed against BaseVersion of the document.
// The payload fields are interpreted per type:
//
//	insert: BlockId, Position, Text
//	delete: BlockId, Position, Length
//	retain: BlockId (read marker, no mutation)
//	format: BlockId, Position, Length, Attrs
//	move:   BlockId, TargetIndex
//	split:  BlockId, Position, NewBlockId (chosen by the author so that
//	        every replica materialises the same id)
//	merge:  BlockId (survivor), TargetBlockId (the following block it absorbs)
type Operation struct {
	Id       uuid.UUID `json:"id"`
	Type     OpType    `json:"type"`
	AuthorId uuid.UUID `json:"author_id"`
	// BaseVersion is the version the operation currently applies against;
	// rebasing advances it. ComposedVersion is the version the author
	// actually saw when composing and never moves, which is what
	// last-write-wins compares. The session sets it on submit.
	BaseVersion     int64       `json:"base_version"`
	ComposedVersion int64       `json:"composed_version,omitempty"`
	BlockId         uuid.UUID   `json:"block_id"`
	Position        int         `json:"position"`
	Text            string      `json:"text,omitempty"`
	Length          int         `json:"length,omitempty"`
	Attrs           Formatting  `json:"attrs,omitempty"`
	TargetIndex     int         `json:"target_index,omitempty"`
	NewBlockId      *uuid.UUID  `json:"new_block_id,omitempty"`
	TargetBlockId   *uuid.UUID  `json:"target_block_id,omitempty"`
	CausalParents   []uuid.UUID `json:"causal_parents,omitempty"`
	Applied         bool        `json:"applied"`
	CommittedAt     time.Time   `json:"committed_at,omitempty"`
}

func (op *Operation) Clone() *Operation {
	clone := *op
	clone.Attrs = op.Attrs.Clone()
	if op.NewBlockId != nil {
		id := *op.NewBlockId
		clone.NewBlockId = &id
	}
	if op.TargetBlockId != nil {
		id := *op.TargetBlockId
		clone.TargetBlockId = &id
	}
	if op.CausalParents != nil {
		clone.CausalParents = append([]uuid.UUID(nil), op.CausalParents...)
	}
	return &clone
}

// RangeEnd returns the exclusive end offset of the operation's target range.
func (op *Operation) RangeEnd() int {
	switch op.Type {
	case OpInsert:
		return op.Position + len(op.Text)
	case OpDelete, OpFormat:
		return op.Position + op.Length
	default:
		return op.Position
	}
}

// IsStructural reports whether the operation changes block topology rather
// than block content.
func (op *Operation) IsStructural() bool {
	return op.Type == OpMove || op.Type == OpSplit || op.Type == OpMerge
}

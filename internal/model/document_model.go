package model

import (
	"github.com/google/uuid"
)

type BlockKind string

const (
	BlockKindText       BlockKind = "text"
	BlockKindMediaRef   BlockKind = "media-ref"
	BlockKindLinkRef    BlockKind = "link-ref"
	BlockKindMentionRef BlockKind = "mention-ref"
	BlockKindHashtagRef BlockKind = "hashtag-ref"
)

// Position locates a block inside the document. Offset is the cumulative
// rune offset of the block start from the document start.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
	Offset int `json:"offset"`
}

// Formatting holds attribute -> value pairs (e.g. "bold" -> "true",
// "color" -> "#ff0000"). A map keeps per-attribute merging simple.
type Formatting map[string]string

// Block is the unit of document structure. Block ids are stable for the
// lifetime of a document and never reused: a deleted block is tombstoned
// (Removed=true) instead of reclaimed, so position references never dangle.
type Block struct {
	Id         uuid.UUID  `json:"id"`
	Kind       BlockKind  `json:"kind"`
	Content    string     `json:"content"`
	Position   Position   `json:"position"`
	Formatting Formatting `json:"formatting,omitempty"`
	Version    int64      `json:"version"`
	LockId     *uuid.UUID `json:"lock_id,omitempty"`
	Removed    bool       `json:"removed,omitempty"`
}

// Document is the versioned, block-structured document. It is owned by
// exactly one session coordinator and mutated only by committed operations.
type Document struct {
	Id       uuid.UUID `json:"id"`
	Version  int64     `json:"version"`
	Blocks   []*Block  `json:"blocks"`
	Checksum string    `json:"checksum"`
}

func (f Formatting) Clone() Formatting {
	if f == nil {
		return nil
	}
	out := make(Formatting, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

func (b *Block) Clone() *Block {
	clone := *b
	clone.Formatting = b.Formatting.Clone()
	if b.LockId != nil {
		id := *b.LockId
		clone.LockId = &id
	}
	return &clone
}

func (d *Document) Clone() *Document {
	clone := *d
	clone.Blocks = make([]*Block, len(d.Blocks))
	for i, b := range d.Blocks {
		clone.Blocks[i] = b.Clone()
	}
	return &clone
}

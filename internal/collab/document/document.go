package document

import (
	"errors"
	"fmt"

	"realtime-collab-be/internal/model"

	"github.com/google/uuid"
)

var (
	// ErrVersionBehind means the operation was composed against an older
	// document version and must be rebased before apply.
	ErrVersionBehind = errors.New("operation base version is behind document version")

	// ErrVersionAhead means the operation claims a base version the document
	// has not reached yet. That violates the apply invariant outright.
	ErrVersionAhead = errors.New("operation base version exceeds document version")

	// ErrOutOfBounds covers malformed positions, unknown blocks and removed
	// blocks. Apply never panics on bad input; it returns this instead.
	ErrOutOfBounds = errors.New("operation position out of bounds")

	// ErrChecksumMismatch signals a corrupted log or snapshot. The session
	// treats it as fatal.
	ErrChecksumMismatch = errors.New("checksum mismatch after replay")
)

// Model wraps the document and applies committed operations to it. It is not
// safe for concurrent use; the session coordinator serializes access.
type Model struct {
	doc *model.Document
}

// New builds a document at version 0 from the given blocks.
func New(id uuid.UUID, blocks []*model.Block) *Model {
	doc := &model.Document{Id: id, Version: 0, Blocks: blocks}
	m := &Model{doc: doc}
	m.reindex()
	doc.Checksum = m.computeChecksum()
	return m
}

// FromSnapshot adopts a previously persisted document as-is.
func FromSnapshot(doc *model.Document) *Model {
	m := &Model{doc: doc}
	m.reindex()
	return m
}

// Replay rebuilds a document by applying ops in order on top of base blocks,
// then verifies the result against wantChecksum (skipped when empty).
func Replay(id uuid.UUID, base []*model.Block, ops []*model.Operation, wantChecksum string) (*Model, error) {
	m := New(id, base)
	for _, op := range ops {
		if err := m.Apply(op); err != nil {
			return nil, fmt.Errorf("replay stopped at op %s: %w", op.Id, err)
		}
	}
	if wantChecksum != "" && m.doc.Checksum != wantChecksum {
		return nil, fmt.Errorf("replayed %d ops: %w", len(ops), ErrChecksumMismatch)
	}
	return m, nil
}

func (m *Model) Version() int64   { return m.doc.Version }
func (m *Model) Checksum() string { return m.doc.Checksum }
func (m *Model) Id() uuid.UUID    { return m.doc.Id }

// Snapshot returns a deep copy safe to hand to other goroutines.
func (m *Model) Snapshot() *model.Document {
	return m.doc.Clone()
}

// Block returns the block with the given id, tombstoned blocks included.
func (m *Model) Block(id uuid.UUID) (*model.Block, bool) {
	for _, b := range m.doc.Blocks {
		if b.Id == id {
			return b, true
		}
	}
	return nil, false
}

// Content concatenates the content of all live blocks, in order.
func (m *Model) Content() string {
	var out string
	for _, b := range m.doc.Blocks {
		if !b.Removed {
			out += b.Content
		}
	}
	return out
}

// Apply mutates the document with a committed operation. The fast path is
// op.BaseVersion == current version; anything behind must be rebased by the
// transform engine first. On success the document version increments by one
// and the checksum is recomputed.
func (m *Model) Apply(op *model.Operation) error {
	if op.BaseVersion > m.doc.Version {
		return fmt.Errorf("op %s base %d, doc %d: %w", op.Id, op.BaseVersion, m.doc.Version, ErrVersionAhead)
	}
	if op.BaseVersion < m.doc.Version {
		return fmt.Errorf("op %s base %d, doc %d: %w", op.Id, op.BaseVersion, m.doc.Version, ErrVersionBehind)
	}

	var err error
	switch op.Type {
	case model.OpInsert:
		err = m.applyInsert(op)
	case model.OpDelete:
		err = m.applyDelete(op)
	case model.OpRetain:
		// Read marker. Commits for log alignment but touches nothing.
	case model.OpFormat:
		err = m.applyFormat(op)
	case model.OpMove:
		err = m.applyMove(op)
	case model.OpSplit:
		err = m.applySplit(op)
	case model.OpMerge:
		err = m.applyMerge(op)
	default:
		err = fmt.Errorf("unknown op type %q: %w", op.Type, ErrOutOfBounds)
	}
	if err != nil {
		return err
	}

	m.doc.Version++
	m.reindex()
	m.doc.Checksum = m.computeChecksum()
	return nil
}

func (m *Model) liveBlock(op *model.Operation) (*model.Block, error) {
	b, ok := m.Block(op.BlockId)
	if !ok {
		return nil, fmt.Errorf("op %s: block %s not found: %w", op.Id, op.BlockId, ErrOutOfBounds)
	}
	if b.Removed {
		return nil, fmt.Errorf("op %s: block %s removed: %w", op.Id, op.BlockId, ErrOutOfBounds)
	}
	return b, nil
}

func (m *Model) applyInsert(op *model.Operation) error {
	b, err := m.liveBlock(op)
	if err != nil {
		return err
	}
	if op.Position < 0 || op.Position > len(b.Content) {
		return fmt.Errorf("op %s: insert at %d in block of %d: %w", op.Id, op.Position, len(b.Content), ErrOutOfBounds)
	}
	b.Content = b.Content[:op.Position] + op.Text + b.Content[op.Position:]
	b.Version++
	return nil
}

func (m *Model) applyDelete(op *model.Operation) error {
	b, err := m.liveBlock(op)
	if err != nil {
		return err
	}
	if op.Length == 0 {
		// A delete fully subsumed by a concurrent delete transforms to a
		// no-op but still commits, so replicas stay version-aligned.
		return nil
	}
	if op.Position < 0 || op.Length < 0 || op.Position+op.Length > len(b.Content) {
		return fmt.Errorf("op %s: delete [%d,%d) in block of %d: %w", op.Id, op.Position, op.Position+op.Length, len(b.Content), ErrOutOfBounds)
	}
	b.Content = b.Content[:op.Position] + b.Content[op.Position+op.Length:]
	b.Version++
	return nil
}

func (m *Model) applyFormat(op *model.Operation) error {
	b, err := m.liveBlock(op)
	if err != nil {
		return err
	}
	// Formatting never spans a block boundary, so the range must fit the
	// target block entirely.
	if op.Position < 0 || op.Length < 0 || op.Position+op.Length > len(b.Content) {
		return fmt.Errorf("op %s: format [%d,%d) in block of %d: %w", op.Id, op.Position, op.Position+op.Length, len(b.Content), ErrOutOfBounds)
	}
	if b.Formatting == nil {
		b.Formatting = model.Formatting{}
	}
	for k, v := range op.Attrs {
		b.Formatting[k] = v
	}
	b.Version++
	return nil
}

func (m *Model) applyMove(op *model.Operation) error {
	if _, err := m.liveBlock(op); err != nil {
		return err
	}
	from := -1
	live := 0
	for i, b := range m.doc.Blocks {
		if b.Id == op.BlockId {
			from = i
		}
		if !b.Removed {
			live++
		}
	}
	if op.TargetIndex < 0 || op.TargetIndex >= live {
		return fmt.Errorf("op %s: move target %d of %d live blocks: %w", op.Id, op.TargetIndex, live, ErrOutOfBounds)
	}
	moved := m.doc.Blocks[from]
	rest := append(m.doc.Blocks[:from:from], m.doc.Blocks[from+1:]...)

	// TargetIndex counts live blocks only; find the slice index it maps to.
	at := len(rest)
	seen := 0
	for i, b := range rest {
		if b.Removed {
			continue
		}
		if seen == op.TargetIndex {
			at = i
			break
		}
		seen++
	}
	rest = append(rest[:at:at], append([]*model.Block{moved}, rest[at:]...)...)
	m.doc.Blocks = rest
	moved.Version++
	return nil
}

func (m *Model) applySplit(op *model.Operation) error {
	b, err := m.liveBlock(op)
	if err != nil {
		return err
	}
	if op.NewBlockId == nil {
		return fmt.Errorf("op %s: split without new block id: %w", op.Id, ErrOutOfBounds)
	}
	if op.Position < 0 || op.Position > len(b.Content) {
		return fmt.Errorf("op %s: split at %d in block of %d: %w", op.Id, op.Position, len(b.Content), ErrOutOfBounds)
	}
	if _, exists := m.Block(*op.NewBlockId); exists {
		return fmt.Errorf("op %s: split block id %s already used: %w", op.Id, *op.NewBlockId, ErrOutOfBounds)
	}
	tail := &model.Block{
		Id:         *op.NewBlockId,
		Kind:       b.Kind,
		Content:    b.Content[op.Position:],
		Formatting: b.Formatting.Clone(),
	}
	b.Content = b.Content[:op.Position]
	b.Version++

	for i, cur := range m.doc.Blocks {
		if cur.Id == b.Id {
			rest := append(m.doc.Blocks[:i+1:i+1], append([]*model.Block{tail}, m.doc.Blocks[i+1:]...)...)
			m.doc.Blocks = rest
			break
		}
	}
	return nil
}

func (m *Model) applyMerge(op *model.Operation) error {
	b, err := m.liveBlock(op)
	if err != nil {
		return err
	}
	var next *model.Block
	found := false
	for _, cur := range m.doc.Blocks {
		if found && !cur.Removed {
			next = cur
			break
		}
		if cur.Id == b.Id {
			found = true
		}
	}
	if next == nil {
		return fmt.Errorf("op %s: merge has no following block: %w", op.Id, ErrOutOfBounds)
	}
	if op.TargetBlockId == nil || *op.TargetBlockId != next.Id {
		// The author composed the merge against a different neighbour; the
		// transform engine should have escalated this.
		return fmt.Errorf("op %s: merge target moved: %w", op.Id, ErrOutOfBounds)
	}
	b.Content += next.Content
	b.Version++
	// Tombstone, never reuse: ids must stay stable for position references.
	next.Removed = true
	next.Content = ""
	next.Version++
	return nil
}

// reindex recomputes the line/column/offset triple of every live block.
func (m *Model) reindex() {
	line := 0
	offset := 0
	for _, b := range m.doc.Blocks {
		if b.Removed {
			continue
		}
		b.Position = model.Position{Line: line, Column: 0, Offset: offset}
		line++
		offset += len(b.Content)
	}
}

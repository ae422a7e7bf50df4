package transform

import (
	"errors"
	"fmt"
	"strings"

	"realtime-collab-be/internal/model"
)

// ErrUnresolvable means no transform can preserve the operation's intent
// (e.g. its target block was merged away). The session coordinator escalates
// it to a structure_change conflict instead of dropping the operation.
var ErrUnresolvable = errors.New("transform unresolvable")

// TieBreak decides ordering for concurrent inserts at the same position.
// It returns true when the incoming operation keeps its slot (its text ends
// up before the committed one's). The policy must be a pure function of the
// two operations so every replica breaks the tie identically.
type TieBreak func(incoming, committed *model.Operation) bool

// AuthorAscending is the default policy: the lexicographically smaller
// author id wins the slot. Deterministic, never wall-clock.
func AuthorAscending(incoming, committed *model.Operation) bool {
	return strings.Compare(incoming.AuthorId.String(), committed.AuthorId.String()) < 0
}

// Engine rebases operations composed against stale versions so they apply
// cleanly against the current one while preserving intent.
type Engine struct {
	tieBreak TieBreak
}

func NewEngine(tieBreak TieBreak) *Engine {
	if tieBreak == nil {
		tieBreak = AuthorAscending
	}
	return &Engine{tieBreak: tieBreak}
}

// Rebase transforms op across every committed operation it has not seen,
// in commit order, and returns a copy valid against the version after the
// last committed op. The pairwise walk is the classic OT diamond: each step
// rewrites op's coordinates in terms of one committed operation's effect.
func (e *Engine) Rebase(op *model.Operation, committed []*model.Operation) (*model.Operation, error) {
	out := op.Clone()
	for _, c := range committed {
		next, err := e.transform(out, c)
		if err != nil {
			return nil, fmt.Errorf("rebasing %s across %s: %w", op.Id, c.Id, err)
		}
		out = next
	}
	out.BaseVersion = op.BaseVersion + int64(len(committed))
	return out, nil
}

// transform rewrites incoming against one committed operation. The committed
// op is never modified; it is already part of history.
func (e *Engine) transform(incoming, committed *model.Operation) (*model.Operation, error) {
	a := incoming.Clone()
	b := committed

	if a.Type == model.OpRetain || b.Type == model.OpRetain {
		return a, nil
	}

	// Structural committed ops first; they can retarget or kill a.
	switch b.Type {
	case model.OpSplit:
		return e.transformAgainstSplit(a, b)
	case model.OpMerge:
		if b.TargetBlockId != nil && *b.TargetBlockId == a.BlockId {
			// a's block was absorbed; the offset shift into the survivor
			// is unknowable here. Escalate.
			return nil, fmt.Errorf("block %s merged away: %w", a.BlockId, ErrUnresolvable)
		}
		return a, nil
	case model.OpMove:
		// Reordering blocks never changes in-block offsets.
		return a, nil
	}

	if a.BlockId != b.BlockId {
		// Content edits on different blocks commute.
		return a, nil
	}

	switch a.Type {
	case model.OpInsert:
		switch b.Type {
		case model.OpInsert:
			return e.transformInsertInsert(a, b), nil
		case model.OpDelete:
			return transformInsertDelete(a, b), nil
		case model.OpFormat:
			return a, nil
		}
	case model.OpDelete:
		switch b.Type {
		case model.OpInsert:
			return transformDeleteInsert(a, b), nil
		case model.OpDelete:
			return transformDeleteDelete(a, b), nil
		case model.OpFormat:
			return a, nil
		}
	case model.OpFormat:
		switch b.Type {
		case model.OpInsert:
			return transformRangeInsert(a, b), nil
		case model.OpDelete:
			return transformRangeDelete(a, b), nil
		case model.OpFormat:
			// Attribute merge is order-independent; value disagreements are
			// the conflict detector's business, not a coordinate problem.
			return a, nil
		}
	case model.OpSplit:
		switch b.Type {
		case model.OpInsert:
			if b.Position <= a.Position {
				a.Position += len(b.Text)
			}
			return a, nil
		case model.OpDelete:
			return transformPointDelete(a, b), nil
		case model.OpFormat:
			return a, nil
		}
	case model.OpMove, model.OpMerge:
		// Positions are block-level; in-block edits do not disturb them.
		return a, nil
	}
	return nil, fmt.Errorf("no transform for %s over %s: %w", a.Type, b.Type, ErrUnresolvable)
}

// transformInsertInsert: when positions collide the tie-break decides whose
// text comes first; the loser shifts past the winner's insertion.
func (e *Engine) transformInsertInsert(a, b *model.Operation) *model.Operation {
	if b.Position < a.Position {
		a.Position += len(b.Text)
	} else if b.Position == a.Position && !e.tieBreak(a, b) {
		a.Position += len(b.Text)
	}
	return a
}

// transformInsertDelete: an insert inside an already-committed deletion has
// nothing left to attach to and collapses to an empty insert at the
// deletion point.
func transformInsertDelete(a, b *model.Operation) *model.Operation {
	switch {
	case a.Position <= b.Position:
		// Insert before the deleted range; untouched.
	case a.Position >= b.Position+b.Length:
		a.Position -= b.Length
	default:
		a.Position = b.Position
		a.Text = ""
	}
	return a
}

// transformDeleteInsert: a committed insert inside the delete range expands
// the deletion to cover the inserted text, keeping the author's "remove this
// span" intent.
func transformDeleteInsert(a, b *model.Operation) *model.Operation {
	switch {
	case b.Position <= a.Position:
		a.Position += len(b.Text)
	case b.Position >= a.Position+a.Length:
		// Insert after the range; untouched.
	default:
		a.Length += len(b.Text)
	}
	return a
}

// transformDeleteDelete shrinks overlapping deletions to the non-overlapping
// remainder; a fully subsumed delete becomes a zero-length no-op.
func transformDeleteDelete(a, b *model.Operation) *model.Operation {
	aEnd := a.Position + a.Length
	bEnd := b.Position + b.Length
	switch {
	case aEnd <= b.Position:
		// Disjoint, a first; untouched.
	case bEnd <= a.Position:
		a.Position -= b.Length
	default:
		overlap := minInt(aEnd, bEnd) - maxInt(a.Position, b.Position)
		a.Position = minInt(a.Position, b.Position)
		a.Length -= overlap
	}
	return a
}

// transformRangeInsert shifts or grows a format range across an insert.
func transformRangeInsert(a, b *model.Operation) *model.Operation {
	switch {
	case b.Position <= a.Position:
		a.Position += len(b.Text)
	case b.Position >= a.Position+a.Length:
		// After the range; untouched.
	default:
		a.Length += len(b.Text)
	}
	return a
}

// transformRangeDelete shrinks a format range across a delete.
func transformRangeDelete(a, b *model.Operation) *model.Operation {
	aEnd := a.Position + a.Length
	bEnd := b.Position + b.Length
	switch {
	case bEnd <= a.Position:
		a.Position -= b.Length
	case b.Position >= aEnd:
		// After the range; untouched.
	default:
		overlap := minInt(aEnd, bEnd) - maxInt(a.Position, b.Position)
		a.Position = minInt(a.Position, b.Position)
		a.Length -= overlap
	}
	return a
}

// transformPointDelete shifts a single point (split position) across a
// delete; a point inside the deleted range snaps to its start.
func transformPointDelete(a, b *model.Operation) *model.Operation {
	switch {
	case a.Position <= b.Position:
		// Before the range; untouched.
	case a.Position >= b.Position+b.Length:
		a.Position -= b.Length
	default:
		a.Position = b.Position
	}
	return a
}

// transformAgainstSplit retargets offsets at or beyond the split point into
// the new tail block. Ranges straddling the boundary cannot be expressed as
// a single operation and are escalated.
func (e *Engine) transformAgainstSplit(a, b *model.Operation) (*model.Operation, error) {
	if a.BlockId != b.BlockId {
		return a, nil
	}
	switch a.Type {
	case model.OpInsert, model.OpSplit:
		if a.Position >= b.Position {
			a.BlockId = *b.NewBlockId
			a.Position -= b.Position
		}
		return a, nil
	case model.OpDelete, model.OpFormat:
		aEnd := a.Position + a.Length
		switch {
		case aEnd <= b.Position:
			return a, nil
		case a.Position >= b.Position:
			a.BlockId = *b.NewBlockId
			a.Position -= b.Position
			return a, nil
		default:
			return nil, fmt.Errorf("range [%d,%d) straddles split at %d: %w", a.Position, aEnd, b.Position, ErrUnresolvable)
		}
	case model.OpMove, model.OpMerge:
		return a, nil
	}
	return a, nil
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

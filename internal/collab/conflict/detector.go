package conflict

import (
	"time"

	"github.com/google/uuid"

	"realtime-collab-be/internal/model"
)

// Detector classifies collisions between a transformed incoming operation
// and the committed operations it was rebased across. It runs after the
// transform engine and before apply.
type Detector struct{}

func NewDetector() *Detector {
	return &Detector{}
}

// Detect returns one record per committed concurrent operation that
// collides with the (already transformed) incoming op. Pure retain pairs
// never conflict.
func (d *Detector) Detect(incoming *model.Operation, concurrent []*model.Operation) []*model.ConflictRecord {
	var records []*model.ConflictRecord
	for _, c := range concurrent {
		if kind, sev := classify(incoming, c); kind != "" {
			records = append(records, &model.ConflictRecord{
				Id:         uuid.New(),
				OperationA: incoming.Id,
				OperationB: c.Id,
				BlockId:    incoming.BlockId,
				Kind:       kind,
				Severity:   sev,
				DetectedAt: time.Now(),
			})
		}
	}
	return records
}

// NewLockViolation records an operation targeting a block locked
// non-breakably by someone else. These are never auto-resolved.
func (d *Detector) NewLockViolation(op *model.Operation, lock *model.ContentLock) *model.ConflictRecord {
	return &model.ConflictRecord{
		Id:         uuid.New(),
		OperationA: op.Id,
		BlockId:    op.BlockId,
		Kind:       model.ConflictLockViolation,
		Severity:   model.SeverityHigh,
		Resolution: "rejected: lock " + lock.Id.String() + " held by " + lock.HolderId.String(),
		DetectedAt: time.Now(),
	}
}

// NewStructureChange records an unresolvable transform, routed to the
// resolver instead of silently dropping the operation.
func (d *Detector) NewStructureChange(op *model.Operation) *model.ConflictRecord {
	return &model.ConflictRecord{
		Id:         uuid.New(),
		OperationA: op.Id,
		BlockId:    op.BlockId,
		Kind:       model.ConflictStructureChange,
		Severity:   model.SeverityHigh,
		DetectedAt: time.Now(),
	}
}

// NewPermissionConflict records an author submitting an operation their
// permissions do not allow.
func (d *Detector) NewPermissionConflict(op *model.Operation) *model.ConflictRecord {
	return &model.ConflictRecord{
		Id:         uuid.New(),
		OperationA: op.Id,
		BlockId:    op.BlockId,
		Kind:       model.ConflictPermissionConflict,
		Severity:   model.SeverityMedium,
		DetectedAt: time.Now(),
	}
}

func classify(a, c *model.Operation) (model.ConflictKind, model.ConflictSeverity) {
	if a.Type == model.OpRetain || c.Type == model.OpRetain {
		return "", ""
	}
	if a.BlockId != c.BlockId && !touchesBlock(c, a.BlockId) && !touchesBlock(a, c.BlockId) {
		return "", ""
	}
	if a.IsStructural() || c.IsStructural() {
		return model.ConflictStructureChange, model.SeverityHigh
	}
	if !rangesOverlap(a, c) {
		return "", ""
	}
	switch {
	case a.Type == model.OpDelete && c.Type == model.OpDelete:
		return model.ConflictContentOverlap, model.SeverityMedium
	case a.Type == model.OpInsert && c.Type == model.OpInsert:
		return model.ConflictConcurrentEdit, model.SeverityLow
	case a.Type == model.OpFormat && c.Type == model.OpFormat:
		if attrsDisagree(a.Attrs, c.Attrs) {
			return model.ConflictFormatConflict, model.SeverityLow
		}
		return "", ""
	default:
		return model.ConflictPositionMismatch, model.SeverityMedium
	}
}

func touchesBlock(op *model.Operation, blockId uuid.UUID) bool {
	if op.NewBlockId != nil && *op.NewBlockId == blockId {
		return true
	}
	if op.TargetBlockId != nil && *op.TargetBlockId == blockId {
		return true
	}
	return false
}

// rangesOverlap checks the half-open target ranges. Inserts occupy the span
// of their inserted text so edits landing on the same spot register.
func rangesOverlap(a, c *model.Operation) bool {
	aStart, aEnd := a.Position, a.RangeEnd()
	cStart, cEnd := c.Position, c.RangeEnd()
	if aStart == cStart {
		return true
	}
	return aStart < cEnd && cStart < aEnd
}

func attrsDisagree(a, b model.Formatting) bool {
	for k, av := range a {
		if bv, ok := b[k]; ok && av != bv {
			return true
		}
	}
	return false
}

package model

import (
	"time"

	"github.com/google/uuid"
)

type ConflictKind string

const (
	ConflictConcurrentEdit     ConflictKind = "concurrent_edit"
	ConflictPositionMismatch   ConflictKind = "position_mismatch"
	ConflictContentOverlap     ConflictKind = "content_overlap"
	ConflictFormatConflict     ConflictKind = "format_conflict"
	ConflictStructureChange    ConflictKind = "structure_change"
	ConflictPermissionConflict ConflictKind = "permission_conflict"
	ConflictLockViolation      ConflictKind = "lock_violation"
)

type ConflictSeverity string

const (
	SeverityLow      ConflictSeverity = "low"
	SeverityMedium   ConflictSeverity = "medium"
	SeverityHigh     ConflictSeverity = "high"
	SeverityCritical ConflictSeverity = "critical"
)

type ResolutionStrategy string

const (
	StrategyOperationalTransform ResolutionStrategy = "operational_transform"
	StrategyLastWriteWins        ResolutionStrategy = "last_write_wins"
	StrategyManualResolution     ResolutionStrategy = "manual_resolution"
)

// ConflictRecord is created by the detector and closed by the resolver.
type ConflictRecord struct {
	Id         uuid.UUID          `json:"id"`
	OperationA uuid.UUID          `json:"operation_a"`
	OperationB uuid.UUID          `json:"operation_b"`
	BlockId    uuid.UUID          `json:"block_id"`
	Kind       ConflictKind       `json:"kind"`
	Severity   ConflictSeverity   `json:"severity"`
	Strategy   ResolutionStrategy `json:"resolution_strategy"`
	Resolution string             `json:"resolution,omitempty"`
	DetectedAt time.Time          `json:"detected_at"`
	ResolvedAt *time.Time         `json:"resolved_at,omitempty"`
}

func (c *ConflictRecord) Resolved() bool {
	return c.ResolvedAt != nil
}
